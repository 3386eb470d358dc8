package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type attendanceFixture struct {
	svc         *AttendanceService
	repo        *attendanceRepoStub
	daysOff     *dayOffRepoStub
	invalidator *invalidatorStub
}

func newAttendanceFixture() attendanceFixture {
	repo := &attendanceRepoStub{}
	students := newStudentRepoStub(
		models.Student{ID: "s1", FirstName: "Ada", LastName: "Lovelace"},
		models.Student{ID: "s2", FirstName: "Alan", LastName: "Turing"},
	)
	daysOff := &dayOffRepoStub{}
	invalidator := &invalidatorStub{}
	validate := validation.New(validation.WithClock(fixedNow))
	svc := NewAttendanceService(repo, students, daysOff, invalidator, nil, validate, zap.NewNop())
	return attendanceFixture{svc: svc, repo: repo, daysOff: daysOff, invalidator: invalidator}
}

func TestBuildAttendanceRecordFlags(t *testing.T) {
	cases := []struct {
		name  string
		entry dto.AttendanceEntryRequest
		late  bool
		early bool
		exc   bool
	}{
		{name: "late status", entry: dto.AttendanceEntryRequest{Status: "late"}, late: true},
		{name: "present with late flag", entry: dto.AttendanceEntryRequest{Status: "PRESENT", Late: boolPtr(true), EarlyDismissal: boolPtr(true)}, late: true, early: true},
		{name: "absent ignores late flag", entry: dto.AttendanceEntryRequest{Status: "ABSENT", Late: boolPtr(true), Excused: boolPtr(true)}, exc: true},
		{name: "excused status", entry: dto.AttendanceEntryRequest{Status: "EXCUSED"}, exc: true},
		{name: "present ignores excused flag", entry: dto.AttendanceEntryRequest{Status: "PRESENT", Excused: boolPtr(true)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := BuildAttendanceRecord("s1", "2024-03-29", tc.entry)
			assert.Equal(t, tc.late, rec.Late)
			assert.Equal(t, tc.early, rec.EarlyDismissal)
			assert.Equal(t, tc.exc, rec.Excused)
		})
	}

	rec := BuildAttendanceRecord("s1", "2024-03-29", dto.AttendanceEntryRequest{Status: " present ", Notes: strPtr("  ")})
	assert.Equal(t, models.AttendanceStatusPresent, rec.Status)
	assert.Nil(t, rec.Notes)
}

func TestAttendanceServiceSubmitBatchSuccess(t *testing.T) {
	fx := newAttendanceFixture()

	result, err := fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date: "2024-03-29",
		Students: []dto.AttendanceEntryRequest{
			{ID: "s1", Status: "LATE"},
			{ID: "s2", Status: "present", Late: boolPtr(true)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusSuccess, result.Status)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Warnings)
	require.Len(t, fx.repo.saved, 2)
	assert.True(t, fx.repo.saved[0].Late)
	assert.True(t, fx.repo.saved[1].Late)
	assert.Equal(t, models.AttendanceStatusPresent, fx.repo.saved[1].Status)
	assert.Equal(t, []bool{false}, fx.repo.overrides)
	assert.Equal(t, 1, fx.invalidator.calls)
	assert.Equal(t, ActionCreated, result.Results[0].Action)
}

func TestAttendanceServiceSubmitBatchPartial(t *testing.T) {
	fx := newAttendanceFixture()
	fx.daysOff.days = []models.DayOff{{ID: "d1", Date: "2024-03-29", Reason: "Good Friday"}}

	result, err := fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date: "2024-03-29",
		Students: []dto.AttendanceEntryRequest{
			{ID: "s1", Status: "ABSENT", Late: boolPtr(true)},
			{ID: "ghost", Status: "PRESENT"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusPartial, result.Status)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, models.AttendanceItemResult{StudentID: "ghost", Success: false, Error: "student not found"}, result.Results[1])
	assert.Contains(t, result.Warnings, "2024-03-29 is a scheduled day off")
	assert.Contains(t, result.Warnings, "students[0]: late flag ignored for ABSENT status")
	require.Len(t, fx.repo.saved, 1)
	assert.False(t, fx.repo.saved[0].Late)
}

func TestAttendanceServiceSubmitBatchAllUnknown(t *testing.T) {
	fx := newAttendanceFixture()

	result, err := fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date:     "2024-03-29",
		Students: []dto.AttendanceEntryRequest{{ID: "ghost", Status: "PRESENT"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusError, result.Status)
	assert.Empty(t, fx.repo.overrides)
	assert.Zero(t, fx.invalidator.calls)
}

func TestAttendanceServiceSubmitBatchDuplicate(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.saveErr = &models.DuplicateAttendanceError{Existing: []models.AttendanceRecord{
		record("s1", "2024-03-29", models.AttendanceStatusAbsent),
	}}

	_, err := fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date:     "2024-03-29",
		Students: []dto.AttendanceEntryRequest{{ID: "s1", Status: "PRESENT"}},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErr.Code)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	duplicates, ok := details["duplicates"].([]models.AttendanceDuplicate)
	require.True(t, ok)
	require.Len(t, duplicates, 1)
	assert.Equal(t, models.AttendanceStatusAbsent, duplicates[0].Existing.Status)
	assert.Equal(t, models.AttendanceStatusPresent, duplicates[0].Incoming.Status)
	assert.Zero(t, fx.invalidator.calls)
}

func TestAttendanceServiceSubmitBatchOverride(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.outcome = models.SaveOutcome{Created: 1, Updated: 1, UpdatedIDs: map[string]bool{"s2": true}}

	result, err := fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date:     "2024-03-29",
		Override: true,
		Students: []dto.AttendanceEntryRequest{{ID: "s1", Status: "PRESENT"}, {ID: "s2", Status: "ABSENT"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, fx.repo.overrides)
	assert.Equal(t, ActionCreated, result.Results[0].Action)
	assert.Equal(t, ActionUpdated, result.Results[1].Action)
	assert.Equal(t, 1, result.Updated)
}

func TestAttendanceServiceSubmitBatchValidation(t *testing.T) {
	fx := newAttendanceFixture()

	_, err := fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date:     "2024-04-01",
		Students: []dto.AttendanceEntryRequest{{ID: "s1", Status: "PRESENT"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, "date cannot be in the future", err.Error())

	_, err = fx.svc.SubmitBatch(context.Background(), dto.AttendanceBatchRequest{
		Date:     "2024-03-29",
		Students: []dto.AttendanceEntryRequest{{ID: "s1", Status: "PRESENT"}, {ID: "s1", Status: "ABSENT"}},
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, fx.repo.overrides)
}

func TestAttendanceServiceForStudent(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.records = []models.AttendanceRecord{
		record("s1", "2024-03-28", models.AttendanceStatusPresent),
		record("s2", "2024-03-28", models.AttendanceStatusAbsent),
	}

	records, err := fx.svc.ForStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].StudentID)

	_, err = fx.svc.ForStudent(context.Background(), "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
