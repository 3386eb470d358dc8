package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type fakeThresholdSrv struct {
	current  models.ThresholdSet
	result   validation.Result
	warnings []string
	err      error
}

func (f *fakeThresholdSrv) Get(context.Context) (models.ThresholdSet, error) {
	return f.current, f.err
}

func (f *fakeThresholdSrv) Validate(dto.ThresholdRequest) validation.Result {
	return f.result
}

func (f *fakeThresholdSrv) Update(_ context.Context, req dto.ThresholdRequest) (*models.ThresholdSet, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	set := models.ThresholdSet{
		Absences30Day:      int(*req.Absences30Day),
		AbsencesCumulative: int(*req.AbsencesCumulative),
		Lateness30Day:      int(*req.Lateness30Day),
		LatenessCumulative: int(*req.LatenessCumulative),
	}
	return &set, f.warnings, nil
}

type fakeQuerySrv struct {
	resp *dto.QueryResponse
	err  error
}

func (f *fakeQuerySrv) Ask(context.Context, dto.QueryRequest) (*dto.QueryResponse, error) {
	return f.resp, f.err
}

func floatPtr(v float64) *float64 { return &v }

func TestThresholdHandlerValidateAlwaysAnswers200(t *testing.T) {
	srv := &fakeThresholdSrv{result: validation.Result{
		IsValid:  false,
		Errors:   []validation.FieldError{{Field: "absences30Day", Message: "absences30Day must be a whole number"}},
		Warnings: []string{},
	}}
	handler := NewThresholdHandler(srv)

	c, rec := newGinContext(http.MethodPost, "/settings/thresholds/validate", dto.ThresholdRequest{Absences30Day: floatPtr(2.5)})
	handler.Validate(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var result validation.Result
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &result))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "absences30Day", result.Errors[0].Field)
}

func TestThresholdHandlerUpdateCarriesWarnings(t *testing.T) {
	srv := &fakeThresholdSrv{warnings: []string{"lateness30Day exceeds latenessCumulative"}}
	handler := NewThresholdHandler(srv)

	c, rec := newGinContext(http.MethodPut, "/settings/thresholds", dto.ThresholdRequest{
		Absences30Day:      floatPtr(3),
		AbsencesCumulative: floatPtr(10),
		Lateness30Day:      floatPtr(8),
		LatenessCumulative: floatPtr(5),
	})
	handler.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, []interface{}{"lateness30Day exceeds latenessCumulative"}, env.Meta["warnings"])
}

func TestThresholdHandlerUpdateValidationError(t *testing.T) {
	srv := &fakeThresholdSrv{err: appErrors.Clone(appErrors.ErrValidation, "absences30Day is required")}
	handler := NewThresholdHandler(srv)

	c, rec := newGinContext(http.MethodPut, "/settings/thresholds", dto.ThresholdRequest{})
	handler.Update(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHandlerUnavailable(t *testing.T) {
	handler := NewQueryHandler(&fakeQuerySrv{err: appErrors.Clone(appErrors.ErrFeatureUnavailable, "natural-language queries are not configured")})

	c, rec := newGinContext(http.MethodPost, "/query", dto.QueryRequest{Question: "who was late this week?"})
	handler.Ask(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrFeatureUnavailable.Code, env.Error.Code)
}

func TestQueryHandlerSuccess(t *testing.T) {
	handler := NewQueryHandler(&fakeQuerySrv{resp: &dto.QueryResponse{
		Question: "who was late this week?",
		Filter:   models.ReportFilter{Period: models.PeriodThisWeek, OnlyLate: true},
		Report:   &models.ReportResult{},
	}})

	c, rec := newGinContext(http.MethodPost, "/query", dto.QueryRequest{Question: "who was late this week?"})
	handler.Ask(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.QueryResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	assert.Equal(t, models.PeriodThisWeek, resp.Filter.Period)
	assert.True(t, resp.Filter.OnlyLate)
}
