package validation

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
)

// ValidateStudentForm checks name and grade formats.
func (v *Validator) ValidateStudentForm(req dto.StudentRequest) Result {
	return v.Struct(req)
}

// ValidateClassForm checks the class name, grade, capacity and member ids.
func (v *Validator) ValidateClassForm(req dto.ClassRequest) Result {
	res := newResult()
	v.collect(res, v.engine.Struct(req))

	seen := make(map[string]struct{}, len(req.StudentIDs))
	for i, id := range req.StudentIDs {
		if _, dup := seen[id]; dup {
			res.addError(fmt.Sprintf("studentIds[%d]", i), fmt.Sprintf("student %s is listed more than once", id))
			continue
		}
		seen[id] = struct{}{}
	}

	if req.Capacity != nil && *req.Capacity > 0 && len(seen) > *req.Capacity {
		res.addWarning(fmt.Sprintf("class has %d students for a capacity of %d", len(seen), *req.Capacity))
	}
	return res.done()
}

// ValidateDayOff checks a scheduled day off. Future dates are allowed.
func (v *Validator) ValidateDayOff(req dto.DayOffRequest) Result {
	res := newResult()
	v.collect(res, v.engine.Struct(req))

	if d, ok := parseDate(req.Date); ok {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			res.addWarning(fmt.Sprintf("%s falls on a %s", req.Date, wd))
		}
	}
	return res.done()
}

// ValidateDateRange checks optional from/to list bounds.
func (v *Validator) ValidateDateRange(from, to string) Result {
	res := newResult()
	if from != "" {
		v.checkVar(res, "from", from, tagISODate)
	}
	if to != "" {
		v.checkVar(res, "to", to, tagISODate)
	}
	if !res.hasError("from") && !res.hasError("to") && from != "" && to != "" && from > to {
		res.addError("from", "from must be on or before to")
	}
	return res.done()
}
