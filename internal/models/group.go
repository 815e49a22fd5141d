package models

import "time"

// GroupStatus represents the lifecycle of a running course group.
type GroupStatus string

// Group lifecycle states. Transitions go forward only.
const (
	GroupStatusOngoing  GroupStatus = "ONGOING"
	GroupStatusFinished GroupStatus = "FINISHED"
)

// GroupStudentStatus represents a student's satisfaction state in a group.
type GroupStudentStatus string

// Possible group student statuses.
const (
	GroupStudentUnsatisfied GroupStudentStatus = "UNSATISFIED"
	GroupStudentSatisfied   GroupStudentStatus = "SATISFIED"
	GroupStudentPending     GroupStudentStatus = "PENDING"
)

// Group is a running instance of a course taught by one lecturer.
// EndDate is computed from the course duration at creation and never
// changes afterwards.
type Group struct {
	ID               string      `db:"id" json:"id"`
	Classroom        string      `db:"classroom" json:"classroom"`
	StartDate        time.Time   `db:"start_date" json:"start_date"`
	EndDate          time.Time   `db:"end_date" json:"end_date"`
	Status           GroupStatus `db:"status" json:"status"`
	CourseLecturerID string      `db:"course_lecturer_id" json:"course_lecturer_id"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// GroupDetail enriches Group with course and lecturer context.
type GroupDetail struct {
	Group
	CourseID       string `db:"course_id" json:"course_id"`
	CourseName     string `db:"course_name" json:"course_name"`
	CourseDuration int    `db:"course_duration" json:"course_duration"`
	CourseLevel    string `db:"course_level" json:"course_level"`
	LecturerID     string `db:"lecturer_id" json:"lecturer_id"`
	LecturerName   string `db:"lecturer_name" json:"lecturer_name"`
}

// GroupStudent is the enrollment record linking a student to a group.
type GroupStudent struct {
	ID        string             `db:"id" json:"id"`
	GroupID   string             `db:"group_id" json:"group_id"`
	StudentID string             `db:"student_id" json:"student_id"`
	Status    GroupStudentStatus `db:"status" json:"status"`
	Feedback  *int               `db:"feedback" json:"feedback,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// GroupStudentDetail enriches GroupStudent with student display fields.
type GroupStudentDetail struct {
	GroupStudent
	StudentName string `db:"student_name" json:"student_name"`
	Email       string `db:"email" json:"email"`
}
