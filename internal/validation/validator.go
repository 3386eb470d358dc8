package validation

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// Custom validation tags.
const (
	tagISODate          = "isodate"
	tagNotBlank         = "notblank"
	tagPersonName       = "personname"
	tagClassName        = "classname"
	tagGrade            = "grade"
	tagEntityID         = "entityid"
	tagAttendanceStatus = "attendance_status"
	tagReportPeriod     = "report_period"
	tagWholeNumber      = "wholenumber"
)

var (
	personNamePattern = regexp.MustCompile(`^[\p{L}][\p{L}\p{M}' .-]{0,49}$`)
	classNamePattern  = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}\p{M}' .&()/-]{0,99}$`)
	gradePattern      = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z -]{0,9}$`)
	entityIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

var customMessages = map[string]string{
	tagISODate:          "{0} must be a valid date in YYYY-MM-DD format",
	tagNotBlank:         "{0} cannot be blank",
	tagPersonName:       "{0} may only contain letters, spaces, apostrophes, periods and hyphens (max 50)",
	tagClassName:        "{0} must start with a letter or digit and be at most 100 characters",
	tagGrade:            "{0} must be 1-10 letters, digits or hyphens",
	tagEntityID:         "{0} must be 1-64 letters, digits, underscores or hyphens",
	tagAttendanceStatus: "{0} must be one of PRESENT, LATE, ABSENT, EXCUSED",
	tagReportPeriod:     "{0} must be one of today, yesterday, this_week, last_week, this_month, last_month",
	tagWholeNumber:      "{0} must be a whole number",
}

// FieldError is a blocking problem with one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating untrusted input. Warnings never block.
type Result struct {
	IsValid  bool         `json:"isValid"`
	Errors   []FieldError `json:"errors"`
	Warnings []string     `json:"warnings"`
}

func newResult() *Result {
	return &Result{Errors: []FieldError{}, Warnings: []string{}}
}

func (r *Result) addError(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

func (r *Result) addWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

func (r *Result) hasError(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (r *Result) done() Result {
	r.IsValid = len(r.Errors) == 0
	return *r
}

// Err converts a failed result into a 400 error carrying the field errors.
func (r Result) Err() error {
	if r.IsValid || len(r.Errors) == 0 {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, r.Errors[0].Message).WithDetails(map[string]interface{}{
		"errors":   r.Errors,
		"warnings": r.Warnings,
	})
}

// Validator applies struct tags and business rules to request payloads.
type Validator struct {
	engine     *validator.Validate
	translator ut.Translator
	now        func() time.Time
}

// Option customises a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for "no future date" rules.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns a shared Validator using the wall clock.
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// New builds a Validator with English messages and JSON field names.
func New(opts ...Option) *Validator {
	engine := validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(engine, translator)

	engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = engine.RegisterValidation(tagISODate, func(fl validator.FieldLevel) bool { return isISODate(fl.Field().String()) })
	_ = engine.RegisterValidation(tagNotBlank, func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" })
	_ = engine.RegisterValidation(tagPersonName, matches(personNamePattern))
	_ = engine.RegisterValidation(tagClassName, matches(classNamePattern))
	_ = engine.RegisterValidation(tagGrade, matches(gradePattern))
	_ = engine.RegisterValidation(tagEntityID, matches(entityIDPattern))
	_ = engine.RegisterValidation(tagAttendanceStatus, func(fl validator.FieldLevel) bool {
		_, err := models.ParseAttendanceStatus(fl.Field().String())
		return err == nil
	})
	_ = engine.RegisterValidation(tagReportPeriod, func(fl validator.FieldLevel) bool {
		return models.ReportPeriod(strings.ToLower(fl.Field().String())).Valid()
	})
	_ = engine.RegisterValidation(tagWholeNumber, func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			return f.Float() == math.Trunc(f.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		default:
			return false
		}
	})

	for tag, message := range customMessages {
		tag, message := tag, message
		_ = engine.RegisterTranslation(tag, translator,
			func(t ut.Translator) error { return t.Add(tag, message, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, err := t.T(tag, fe.Field())
				if err != nil {
					return fe.Error()
				}
				return msg
			})
	}

	v := &Validator{engine: engine, translator: translator, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Engine exposes the underlying validator for struct tags outside this package.
func (v *Validator) Engine() *validator.Validate {
	return v.engine
}

// Struct validates tagged fields and returns the generic result.
func (v *Validator) Struct(s interface{}) Result {
	res := newResult()
	v.collect(res, v.engine.Struct(s))
	return res.done()
}

// today is the clock's UTC calendar date, the same day report windows are built from.
func (v *Validator) today() time.Time {
	y, m, d := v.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (v *Validator) collect(res *Result, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.addError("", err.Error())
		return
	}
	for _, fe := range verrs {
		res.addError(fieldPath(fe), fe.Translate(v.translator))
	}
}

// checkVar validates a single value and reports failures under field.
func (v *Validator) checkVar(res *Result, field string, value interface{}, tag string) bool {
	err := v.engine.Var(value, tag)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.addError(field, err.Error())
		return false
	}
	for _, fe := range verrs {
		res.addError(field, field+" "+strings.TrimSpace(fe.Translate(v.translator)))
	}
	return false
}

// fieldPath drops the root struct name from the namespace, e.g. students[0].status.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(strings.TrimSpace(fl.Field().String()))
	}
}

func isISODate(raw string) bool {
	if len(raw) != len(models.DateLayout) {
		return false
	}
	_, err := time.Parse(models.DateLayout, raw)
	return err == nil
}

func parseDate(raw string) (time.Time, bool) {
	if !isISODate(raw) {
		return time.Time{}, false
	}
	d, _ := time.Parse(models.DateLayout, raw)
	return d, true
}
