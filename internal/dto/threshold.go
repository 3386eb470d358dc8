package dto

// ThresholdRequest accepts raw JSON numbers so fractional input is reported as a field error.
type ThresholdRequest struct {
	Absences30Day      *float64 `json:"absences30Day"`
	AbsencesCumulative *float64 `json:"absencesCumulative"`
	Lateness30Day      *float64 `json:"lateness30Day"`
	LatenessCumulative *float64 `json:"latenessCumulative"`
}
