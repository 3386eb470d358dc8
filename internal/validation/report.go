package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
)

const (
	// ReportMaxLimit bounds the page size of interactive reports.
	ReportMaxLimit = 100
	// ExportMaxLimit bounds the rows rendered into an export file.
	ExportMaxLimit = 1000

	maxRangeDays    = 365
	warnRangeDays   = 90
	minSearchLength = 2
)

type dateRangeInput struct {
	From string `json:"from" validate:"required,isodate"`
	To   string `json:"to" validate:"required,isodate"`
}

type reportFilterInput struct {
	StudentIDs  []string        `json:"studentIds" validate:"omitempty,max=500,dive,entityid"`
	ClassID     string          `json:"classId" validate:"omitempty,entityid"`
	StudentName string          `json:"studentName" validate:"max=100"`
	Date        string          `json:"date" validate:"omitempty,isodate"`
	DateRange   *dateRangeInput `json:"dateRange"`
	Period      string          `json:"period" validate:"omitempty,report_period"`
	LastDays    int             `json:"lastDays" validate:"min=0,max=365"`
	Statuses    []string        `json:"statuses" validate:"omitempty,dive,attendance_status"`
}

// ValidateReportFilter checks a report request. maxLimit <= 0 uses ReportMaxLimit.
func (v *Validator) ValidateReportFilter(filter models.ReportFilter, page models.ReportPage, sort models.ReportSort, maxLimit int) Result {
	if maxLimit <= 0 {
		maxLimit = ReportMaxLimit
	}
	res := newResult()
	v.validateFilter(res, filter, "")
	v.validatePage(res, page.Page, page.Limit, maxLimit, "pagination.")
	v.validateSort(res, sort, "sort.")
	return res.done()
}

// ValidatePagination checks page >= 1 and 1 <= limit <= max. Zero values mean "use the default".
func (v *Validator) ValidatePagination(page, limit, max int) Result {
	res := newResult()
	v.validatePage(res, page, limit, max, "")
	return res.done()
}

// ValidateExportRequest checks an export request; exports allow up to ExportMaxLimit rows.
func (v *Validator) ValidateExportRequest(req dto.ExportRequest) Result {
	res := newResult()
	v.checkVar(res, "format", strings.ToLower(req.Format), "required,oneof=csv pdf")
	v.validateFilter(res, req.Filter, "filter.")
	v.validatePage(res, 0, req.Limit, ExportMaxLimit, "")
	v.validateSort(res, req.Sort, "sort.")
	return res.done()
}

// ValidateQuestion checks a natural-language query payload.
func (v *Validator) ValidateQuestion(req dto.QueryRequest) Result {
	return v.Struct(req)
}

func (v *Validator) validateFilter(res *Result, filter models.ReportFilter, prefix string) {
	input := reportFilterInput{
		StudentIDs:  filter.StudentIDs,
		ClassID:     filter.ClassID,
		StudentName: filter.StudentName,
		Date:        filter.Date,
		Period:      string(filter.Period),
		LastDays:    filter.LastDays,
	}
	if filter.DateRange != nil {
		input.DateRange = &dateRangeInput{From: filter.DateRange.From, To: filter.DateRange.To}
	}
	for _, status := range filter.Statuses {
		input.Statuses = append(input.Statuses, string(status))
	}

	sub := newResult()
	v.collect(sub, v.engine.Struct(input))
	for _, e := range sub.Errors {
		res.addError(prefix+e.Field, e.Message)
	}

	today := v.today()
	if d, ok := parseDate(filter.Date); ok && d.After(today) {
		res.addError(prefix+"date", "date cannot be in the future")
	}

	if r := filter.DateRange; r != nil {
		from, fromOK := parseDate(r.From)
		to, toOK := parseDate(r.To)
		if fromOK && from.After(today) {
			res.addError(prefix+"dateRange.from", "dateRange.from cannot be in the future")
		}
		if toOK && to.After(today) {
			res.addError(prefix+"dateRange.to", "dateRange.to cannot be in the future")
		}
		if fromOK && toOK {
			span := int(to.Sub(from).Hours()/24) + 1
			switch {
			case from.After(to):
				res.addError(prefix+"dateRange", "dateRange.from must be on or before dateRange.to")
			case span > maxRangeDays:
				res.addError(prefix+"dateRange", fmt.Sprintf("dateRange cannot span more than %d days", maxRangeDays))
			case span > warnRangeDays:
				res.addWarning(fmt.Sprintf("dateRange spans %d days; large ranges may be slow", span))
			}
		}
		if filter.Date != "" {
			res.addWarning("date takes precedence over dateRange")
		}
	}

	if filter.LastDays > warnRangeDays && filter.LastDays <= maxRangeDays {
		res.addWarning(fmt.Sprintf("lastDays of %d covers a large range and may be slow", filter.LastDays))
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(filter.StudentName)); n > 0 && n < minSearchLength {
		res.addWarning(fmt.Sprintf("studentName search shorter than %d characters matches broadly", minSearchLength))
	}
}

func (v *Validator) validatePage(res *Result, page, limit, max int, prefix string) {
	if page < 0 {
		res.addError(prefix+"page", prefix+"page must be at least 1")
	}
	if limit < 0 || limit > max {
		res.addError(prefix+"limit", fmt.Sprintf("%slimit must be between 1 and %d", prefix, max))
	}
}

func (v *Validator) validateSort(res *Result, sort models.ReportSort, prefix string) {
	if sort.Field != "" {
		v.checkVar(res, prefix+"field", strings.ToLower(sort.Field), "oneof=name date status grade")
	}
	if sort.Order != "" {
		v.checkVar(res, prefix+"order", strings.ToLower(sort.Order), "oneof=asc desc")
	}
}
