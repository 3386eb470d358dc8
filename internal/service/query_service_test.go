package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/llm"
)

type completerStub struct {
	reply   string
	err     error
	systems []string
	users   []string
}

func (c *completerStub) Complete(ctx context.Context, system, user string) (string, error) {
	c.systems = append(c.systems, system)
	c.users = append(c.users, user)
	return c.reply, c.err
}

type reportGeneratorStub struct {
	filters []models.ReportFilter
}

func (r *reportGeneratorStub) Generate(ctx context.Context, filter models.ReportFilter, page models.ReportPage, sort models.ReportSort) (*models.ReportResult, error) {
	r.filters = append(r.filters, filter)
	return &models.ReportResult{Summary: models.ReportSummary{TotalRecords: 3}}, nil
}

func newQueryFixture(client llm.Completer) (*QueryService, *reportGeneratorStub) {
	reports := &reportGeneratorStub{}
	svc := NewQueryService(client, reports, validation.New(validation.WithClock(fixedNow)), zap.NewNop())
	svc.now = fixedNow
	return svc, reports
}

func TestParseQueryFilter(t *testing.T) {
	filter, err := ParseQueryFilter("Here you go:\n```json\n{\"lastDays\": 7, \"statuses\": [\"absent\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, 7, filter.LastDays)
	assert.Equal(t, []models.AttendanceStatus{models.AttendanceStatusAbsent}, filter.Statuses)

	filter, err = ParseQueryFilter("{}")
	require.NoError(t, err)
	assert.Equal(t, models.ReportFilter{}, filter)

	_, err = ParseQueryFilter(`{"sql": "DROP TABLE students"}`)
	assert.Error(t, err)

	_, err = ParseQueryFilter("I cannot help with that")
	assert.Error(t, err)
}

func TestQueryServiceAsk(t *testing.T) {
	client := &completerStub{reply: `{"studentName": "ada", "period": "this_week", "onlyLate": true}`}
	svc, reports := newQueryFixture(client)

	resp, err := svc.Ask(context.Background(), dto.QueryRequest{Question: "  Who was late this week? "})
	require.NoError(t, err)
	assert.Equal(t, "Who was late this week?", resp.Question)
	assert.Equal(t, models.PeriodThisWeek, resp.Filter.Period)
	assert.True(t, resp.Filter.OnlyLate)
	assert.Equal(t, 3, resp.Report.Summary.TotalRecords)
	require.Len(t, reports.filters, 1)
	assert.Equal(t, "ada", reports.filters[0].StudentName)
	assert.True(t, strings.Contains(client.systems[0], "Today is 2024-03-31 (Sunday)"))
}

func TestQueryServiceAskFailures(t *testing.T) {
	disabled, _ := newQueryFixture(nil)
	assert.False(t, disabled.Enabled())
	_, err := disabled.Ask(context.Background(), dto.QueryRequest{Question: "anything"})
	assert.True(t, errors.Is(err, appErrors.ErrFeatureUnavailable))

	noKey, _ := newQueryFixture(&completerStub{err: llm.ErrMissingAPIKey})
	_, err = noKey.Ask(context.Background(), dto.QueryRequest{Question: "anything"})
	assert.True(t, errors.Is(err, appErrors.ErrFeatureUnavailable))

	broken, _ := newQueryFixture(&completerStub{err: errors.New("timeout")})
	_, err = broken.Ask(context.Background(), dto.QueryRequest{Question: "anything"})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	client := &completerStub{reply: "{}"}
	svc, reports := newQueryFixture(client)
	_, err = svc.Ask(context.Background(), dto.QueryRequest{Question: "   "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, client.users)

	client.reply = "not json"
	_, err = svc.Ask(context.Background(), dto.QueryRequest{Question: "who?"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	client.reply = `{"date": "2030-01-01"}`
	_, err = svc.Ask(context.Background(), dto.QueryRequest{Question: "who?"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, reports.filters)
}
