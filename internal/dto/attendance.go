package dto

// AttendanceEntryRequest is one student's line in a batch submission.
type AttendanceEntryRequest struct {
	ID             string  `json:"id" validate:"required,entityid"`
	Status         string  `json:"status" validate:"required,attendance_status"`
	Late           *bool   `json:"late,omitempty"`
	EarlyDismissal *bool   `json:"earlyDismissal,omitempty"`
	Excused        *bool   `json:"excused,omitempty"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// AttendanceBatchRequest records attendance for many students on one date.
type AttendanceBatchRequest struct {
	Date     string                   `json:"date" validate:"required,isodate"`
	Students []AttendanceEntryRequest `json:"students" validate:"required,min=1,max=500,dive"`
	Override bool                     `json:"override"`
}
