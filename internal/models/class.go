package models

import "time"

// Class groups students; membership is kept in a join table.
type Class struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	Grade                *string   `db:"grade" json:"grade,omitempty"`
	Capacity             *int      `db:"capacity" json:"capacity,omitempty"`
	StudentIDs           []string  `db:"-" json:"studentIds"`
	EnrollmentPercentage int       `db:"-" json:"enrollmentPercentage"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// ClassFilter captures list filters for classes.
type ClassFilter struct {
	Search    string
	Grade     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ClassMember is a row of the class_students join table.
type ClassMember struct {
	ClassID   string `db:"class_id"`
	StudentID string `db:"student_id"`
}
