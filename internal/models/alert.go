package models

import "time"

// AlertType distinguishes absence and lateness alerts.
type AlertType string

const (
	AlertTypeAbsence  AlertType = "ABSENCE"
	AlertTypeLateness AlertType = "LATENESS"
)

// AlertPeriod distinguishes rolling and all-time counters.
type AlertPeriod string

const (
	AlertPeriodThirtyDays AlertPeriod = "THIRTY_DAYS"
	AlertPeriodCumulative AlertPeriod = "CUMULATIVE"
)

// TriggeredAlert is one threshold breach.
type TriggeredAlert struct {
	Type           AlertType   `json:"type"`
	Period         AlertPeriod `json:"period"`
	CurrentCount   int         `json:"currentCount"`
	ThresholdCount int         `json:"thresholdCount"`
}

// AlertCounts are the four counters compared against a ThresholdSet.
type AlertCounts struct {
	Absences30Day      int `json:"absences30Day"`
	AbsencesCumulative int `json:"absencesCumulative"`
	Lateness30Day      int `json:"lateness30Day"`
	LatenessCumulative int `json:"latenessCumulative"`
}

// ApproachingThresholds flags counters within the warning buffer of their threshold.
type ApproachingThresholds struct {
	Absences30Day      bool `json:"absences30Day"`
	AbsencesCumulative bool `json:"absencesCumulative"`
	Lateness30Day      bool `json:"lateness30Day"`
	LatenessCumulative bool `json:"latenessCumulative"`
}

// Any reports whether at least one counter is approaching.
func (a ApproachingThresholds) Any() bool {
	return a.Absences30Day || a.AbsencesCumulative || a.Lateness30Day || a.LatenessCumulative
}

// AlertResult is the evaluation of one student against a threshold set.
type AlertResult struct {
	StudentID   string                `json:"studentId"`
	StudentName string                `json:"studentName,omitempty"`
	Counts      AlertCounts           `json:"counts"`
	Alerts      []TriggeredAlert      `json:"alerts"`
	Approaching ApproachingThresholds `json:"approaching"`
	Thresholds  ThresholdSet          `json:"thresholds"`
	EvaluatedAt time.Time             `json:"evaluatedAt"`
}

// HasAlerts reports whether any threshold fired.
func (r AlertResult) HasAlerts() bool {
	return len(r.Alerts) > 0
}

// ClassAlertSummary evaluates every member of a class.
type ClassAlertSummary struct {
	ClassID         string        `json:"classId"`
	ClassName       string        `json:"className"`
	StudentCount    int           `json:"studentCount"`
	FlaggedStudents int           `json:"flaggedStudents"`
	Students        []AlertResult `json:"students"`
}

// AttendanceTrend summarises the last N days using present plus late as attended.
type AttendanceTrend struct {
	StudentID      string `json:"studentId,omitempty"`
	Days           int    `json:"days"`
	Total          int    `json:"total"`
	Present        int    `json:"present"`
	Late           int    `json:"late"`
	Absent         int    `json:"absent"`
	Excused        int    `json:"excused"`
	AttendanceRate int    `json:"attendanceRate"`
}
