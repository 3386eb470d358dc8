package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/llm"
)

const queryPromptTemplate = `You translate questions about school attendance into a JSON report filter.
Today is %s (%s). Weeks start on Monday.

Reply with a single JSON object and nothing else. Allowed keys, all optional:
  "studentIds": array of student id strings
  "classId": string
  "studentName": string, case-insensitive substring of a student's name
  "date": "YYYY-MM-DD"
  "dateRange": {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD"}
  "period": one of "today", "yesterday", "this_week", "last_week", "this_month", "last_month"
  "lastDays": integer between 1 and 365
  "statuses": array of "PRESENT", "LATE", "ABSENT", "EXCUSED"
  "onlyLate": boolean
  "onlyEarlyDismissal": boolean
  "includeExcused": boolean

Use at most one of date, dateRange, period and lastDays. Dates may not be in the future.
Omit keys the question does not mention. Reply with {} when the question asks for everything.`

type reportGenerator interface {
	Generate(ctx context.Context, filter models.ReportFilter, page models.ReportPage, sort models.ReportSort) (*models.ReportResult, error)
}

// QueryService answers natural-language questions by translating them into report filters.
type QueryService struct {
	client    llm.Completer
	reports   reportGenerator
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewQueryService constructs the service. A nil client disables the feature.
func NewQueryService(client llm.Completer, reports reportGenerator, validate *validation.Validator, logger *zap.Logger) *QueryService {
	if validate == nil {
		validate = validation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{client: client, reports: reports, validator: validate, logger: logger, now: time.Now}
}

// Enabled reports whether a model client is configured.
func (s *QueryService) Enabled() bool {
	return s != nil && s.client != nil
}

// Ask interprets the question and runs the resulting report.
func (s *QueryService) Ask(ctx context.Context, req dto.QueryRequest) (*dto.QueryResponse, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureUnavailable, "natural-language queries are not configured")
	}
	if res := s.validator.ValidateQuestion(req); !res.IsValid {
		return nil, res.Err()
	}
	question := strings.TrimSpace(req.Question)

	reply, err := s.client.Complete(ctx, s.systemPrompt(), question)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, appErrors.Clone(appErrors.ErrFeatureUnavailable, "natural-language queries are not configured")
		}
		s.logger.Warn("query completion failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to interpret question")
	}

	filter, err := ParseQueryFilter(reply)
	if err != nil {
		s.logger.Info("unparseable query filter", zap.String("reply", reply), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not understand the question")
	}
	if res := s.validator.ValidateReportFilter(filter, models.ReportPage{}, models.ReportSort{}, 0); !res.IsValid {
		return nil, res.Err()
	}

	report, err := s.reports.Generate(ctx, filter, models.ReportPage{}, models.ReportSort{})
	if err != nil {
		return nil, err
	}
	return &dto.QueryResponse{Question: question, Filter: filter, Report: report}, nil
}

func (s *QueryService) systemPrompt() string {
	today := s.now()
	return fmt.Sprintf(queryPromptTemplate, today.Format("2006-01-02"), today.Weekday())
}

// ParseQueryFilter decodes a model reply into a filter. Surrounding code fences and prose
// around the JSON object are tolerated; unknown keys are rejected.
func ParseQueryFilter(reply string) (models.ReportFilter, error) {
	text := llm.StripCodeFence(reply)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return models.ReportFilter{}, fmt.Errorf("no JSON object in reply")
	}

	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.DisallowUnknownFields()
	var filter models.ReportFilter
	if err := dec.Decode(&filter); err != nil {
		return models.ReportFilter{}, fmt.Errorf("decode filter: %w", err)
	}
	for i, status := range filter.Statuses {
		filter.Statuses[i] = models.AttendanceStatus(strings.ToUpper(string(status)))
	}
	return filter, nil
}
