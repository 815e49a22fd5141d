package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course describes a sellable course offering. Duration is expressed in
// months and bounds both the group length and the payment schedule.
type Course struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Duration  int             `db:"duration" json:"duration"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Level     string          `db:"level" json:"level"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// CourseLecturer links a lecturer to a course they may teach.
type CourseLecturer struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// CourseLecturerDetail enriches the assignment with display names.
type CourseLecturerDetail struct {
	CourseLecturer
	CourseName   string `db:"course_name" json:"course_name"`
	LecturerName string `db:"lecturer_name" json:"lecturer_name"`
}
