package validation

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// ValidateAttendanceBatch checks a batch submission. Flags that contradict the status are warnings.
func (v *Validator) ValidateAttendanceBatch(req dto.AttendanceBatchRequest) Result {
	res := newResult()
	v.collect(res, v.engine.Struct(req))

	if d, ok := parseDate(req.Date); ok && d.After(v.today()) {
		res.addError("date", "date cannot be in the future")
	}

	seen := make(map[string]int, len(req.Students))
	for i, entry := range req.Students {
		id := strings.TrimSpace(entry.ID)
		if id != "" {
			if first, dup := seen[id]; dup {
				res.addError(fmt.Sprintf("students[%d].id", i), fmt.Sprintf("student %s is listed more than once (first at students[%d])", id, first))
			} else {
				seen[id] = i
			}
		}

		status, err := models.ParseAttendanceStatus(entry.Status)
		if err != nil {
			continue
		}
		attended := status == models.AttendanceStatusPresent || status == models.AttendanceStatusLate
		if isSet(entry.Late) && !attended {
			res.addWarning(fmt.Sprintf("students[%d]: late flag ignored for %s status", i, status))
		}
		if isSet(entry.EarlyDismissal) && !attended {
			res.addWarning(fmt.Sprintf("students[%d]: earlyDismissal flag ignored for %s status", i, status))
		}
		if isSet(entry.Excused) && attended {
			res.addWarning(fmt.Sprintf("students[%d]: excused flag ignored for %s status", i, status))
		}
	}

	return res.done()
}

func isSet(flag *bool) bool {
	return flag != nil && *flag
}
