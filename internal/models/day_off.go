package models

import "time"

// DayOff marks a date without scheduled attendance. A nil ClassID applies school-wide.
type DayOff struct {
	ID        string    `db:"id" json:"id"`
	Date      string    `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	ClassID   *string   `db:"class_id" json:"classId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DayOffFilter bounds a days-off listing. Empty fields are unbounded.
type DayOffFilter struct {
	From    string
	To      string
	ClassID string
}
