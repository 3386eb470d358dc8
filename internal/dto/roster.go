package dto

// StudentRequest creates or replaces a student.
type StudentRequest struct {
	FirstName string  `json:"firstName" validate:"required,personname"`
	LastName  string  `json:"lastName" validate:"required,personname"`
	Grade     *string `json:"grade,omitempty" validate:"omitempty,grade"`
}

// ClassRequest creates or replaces a class. StudentIDs, when present, replaces membership.
type ClassRequest struct {
	Name       string   `json:"name" validate:"required,classname"`
	Grade      *string  `json:"grade,omitempty" validate:"omitempty,grade"`
	Capacity   *int     `json:"capacity,omitempty" validate:"omitempty,min=1,max=1000"`
	StudentIDs []string `json:"studentIds,omitempty" validate:"omitempty,max=1000,dive,entityid"`
}

// ClassMemberRequest adds a student to a class.
type ClassMemberRequest struct {
	StudentID string `json:"studentId" validate:"required,entityid"`
}

// DayOffRequest schedules a day without attendance.
type DayOffRequest struct {
	Date    string  `json:"date" validate:"required,isodate"`
	Reason  string  `json:"reason" validate:"required,notblank,max=200"`
	ClassID *string `json:"classId,omitempty" validate:"omitempty,entityid"`
}
