package validation

import (
	"fmt"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
)

// Threshold bounds.
const (
	ThresholdMin           = 1
	Threshold30DayMax      = 30
	ThresholdCumulativeMax = 100
)

// ValidateThresholds enforces integer values, per-field bounds and cumulative > 30-day per category.
func (v *Validator) ValidateThresholds(req dto.ThresholdRequest) Result {
	res := newResult()

	fields := []struct {
		name  string
		value *float64
		max   int
	}{
		{"absences30Day", req.Absences30Day, Threshold30DayMax},
		{"absencesCumulative", req.AbsencesCumulative, ThresholdCumulativeMax},
		{"lateness30Day", req.Lateness30Day, Threshold30DayMax},
		{"latenessCumulative", req.LatenessCumulative, ThresholdCumulativeMax},
	}
	for _, f := range fields {
		if f.value == nil {
			res.addError(f.name, f.name+" is required")
			continue
		}
		v.checkVar(res, f.name, *f.value, fmt.Sprintf("wholenumber,min=%d,max=%d", ThresholdMin, f.max))
	}

	crossCheck(res, "absencesCumulative", req.AbsencesCumulative, "absences30Day", req.Absences30Day)
	crossCheck(res, "latenessCumulative", req.LatenessCumulative, "lateness30Day", req.Lateness30Day)

	if req.Absences30Day != nil && *req.Absences30Day == ThresholdMin {
		res.addWarning("absences30Day of 1 raises an alert on every absence")
	}
	if req.Lateness30Day != nil && *req.Lateness30Day == ThresholdMin {
		res.addWarning("lateness30Day of 1 raises an alert on every late arrival")
	}

	return res.done()
}

// crossCheck requires the cumulative threshold to exceed its 30-day counterpart once both are individually valid.
func crossCheck(res *Result, cumulativeName string, cumulative *float64, rollingName string, rolling *float64) {
	if cumulative == nil || rolling == nil || res.hasError(cumulativeName) || res.hasError(rollingName) {
		return
	}
	if *cumulative <= *rolling {
		res.addError(cumulativeName, fmt.Sprintf("%s must be greater than %s", cumulativeName, rollingName))
	}
}
