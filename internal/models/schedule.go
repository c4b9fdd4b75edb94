package models

import "time"

// Schedule is a class offering (course section) that owns grades and
// attendance. Its class type selects the grading weight table.
type Schedule struct {
	ID           string    `db:"id" json:"id"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	Title        string    `db:"title" json:"title"`
	Section      string    `db:"section" json:"section"`
	ClassType    string    `db:"class_type" json:"class_type"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
