package models

import "time"

// ThresholdSet holds the alert limits for absences and lateness.
type ThresholdSet struct {
	Absences30Day      int        `db:"absences_30_day" json:"absences30Day"`
	AbsencesCumulative int        `db:"absences_cumulative" json:"absencesCumulative"`
	Lateness30Day      int        `db:"lateness_30_day" json:"lateness30Day"`
	LatenessCumulative int        `db:"lateness_cumulative" json:"latenessCumulative"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}

// DefaultThresholds is used until an operator saves a threshold set.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		Absences30Day:      3,
		AbsencesCumulative: 10,
		Lateness30Day:      3,
		LatenessCumulative: 10,
	}
}
