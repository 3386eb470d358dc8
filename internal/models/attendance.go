package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for attendance, days off and filters.
const DateLayout = "2006-01-02"

// AttendanceStatus is the terminal status recorded for a student on a date.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// AttendanceStatuses lists every supported status in display order.
func AttendanceStatuses() []AttendanceStatus {
	return []AttendanceStatus{AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent, AttendanceStatusExcused}
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus accepts any letter case and surrounding whitespace.
func ParseAttendanceStatus(raw string) (AttendanceStatus, error) {
	status := AttendanceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown attendance status %q", raw)
	}
	return status, nil
}

// AttendanceRecord is one student's attendance on one calendar date.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"studentId"`
	Date           string           `db:"date" json:"date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Late           bool             `db:"late" json:"late"`
	EarlyDismissal bool             `db:"early_dismissal" json:"earlyDismissal"`
	Excused        bool             `db:"excused" json:"excused"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updatedAt"`
}

// IsLate reports lateness by status or by the late flag.
func (r AttendanceRecord) IsLate() bool {
	return r.Status == AttendanceStatusLate || r.Late
}

// IsExcused reports an excused absence by status or by flag.
func (r AttendanceRecord) IsExcused() bool {
	return r.Status == AttendanceStatusExcused || r.Excused
}

// Day parses the record date. Malformed dates return the zero time and false.
func (r AttendanceRecord) Day() (time.Time, bool) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// AttendanceQuery narrows record lookups in storage.
type AttendanceQuery struct {
	StudentIDs []string
	DateFrom   string
	DateTo     string
}

// AttendanceSnapshot is the comparable part of a record used in conflict reports.
type AttendanceSnapshot struct {
	Status         AttendanceStatus `json:"status"`
	Late           bool             `json:"late"`
	EarlyDismissal bool             `json:"earlyDismissal"`
	Excused        bool             `json:"excused"`
	Notes          *string          `json:"notes,omitempty"`
}

// Snapshot extracts the comparable values of a record.
func (r AttendanceRecord) Snapshot() AttendanceSnapshot {
	return AttendanceSnapshot{Status: r.Status, Late: r.Late, EarlyDismissal: r.EarlyDismissal, Excused: r.Excused, Notes: r.Notes}
}

// AttendanceDuplicate describes an incoming record that collides with a stored one.
type AttendanceDuplicate struct {
	StudentID string             `json:"studentId"`
	Date      string             `json:"date"`
	Existing  AttendanceSnapshot `json:"existing"`
	Incoming  AttendanceSnapshot `json:"incoming"`
}

// BatchStatus summarises the outcome of a batch submission.
type BatchStatus string

const (
	BatchStatusSuccess BatchStatus = "success"
	BatchStatusPartial BatchStatus = "partial"
	BatchStatusError   BatchStatus = "error"
)

// AttendanceItemResult is the per-student outcome of a batch submission.
type AttendanceItemResult struct {
	StudentID string `json:"studentId"`
	Success   bool   `json:"success"`
	Action    string `json:"action,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AttendanceBatchResult is the tally returned for a batch submission.
type AttendanceBatchResult struct {
	Status       BatchStatus            `json:"status"`
	Date         string                 `json:"date"`
	Processed    int                    `json:"processed"`
	SuccessCount int                    `json:"successCount"`
	ErrorCount   int                    `json:"errorCount"`
	Created      int                    `json:"created"`
	Updated      int                    `json:"updated"`
	Results      []AttendanceItemResult `json:"results"`
	Warnings     []string               `json:"warnings"`
}

// SaveOutcome reports how many rows a batch write inserted and overwrote.
type SaveOutcome struct {
	Created    int
	Updated    int
	UpdatedIDs map[string]bool
}

// ErrDuplicateAttendance matches DuplicateAttendanceError with errors.Is.
var ErrDuplicateAttendance = errors.New("attendance already recorded")

// DuplicateAttendanceError carries the stored records that blocked a write.
type DuplicateAttendanceError struct {
	Existing []AttendanceRecord
}

func (e *DuplicateAttendanceError) Error() string {
	return fmt.Sprintf("%d attendance record(s) already recorded", len(e.Existing))
}

func (e *DuplicateAttendanceError) Is(target error) bool {
	return target == ErrDuplicateAttendance
}
