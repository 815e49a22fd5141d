package models

import "time"

// Call is a capacity-limited enrollment window for a course.
type Call struct {
	ID                  string     `db:"id" json:"id"`
	CourseID            string     `db:"course_id" json:"course_id"`
	Capacity            int        `db:"capacity" json:"capacity"`
	DateAdded           time.Time  `db:"date_added" json:"date_added"`
	ApplicationDeadline *time.Time `db:"application_deadline" json:"application_deadline,omitempty"`
}

// CallDetail enriches Call with course context.
type CallDetail struct {
	Call
	CourseName     string `db:"course_name" json:"course_name"`
	CourseDuration int    `db:"course_duration" json:"course_duration"`
	CourseLevel    string `db:"course_level" json:"course_level"`
}

// StudentCall links a student to the call they applied for. Existence is
// binary; the row count per call is bounded by Call.Capacity.
type StudentCall struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CallID    string    `db:"call_id" json:"call_id"`
	AppliedAt time.Time `db:"applied_at" json:"applied_at"`
}

// StudentCallDetail enriches the pair with display fields.
type StudentCallDetail struct {
	StudentCall
	StudentName  string `db:"student_name" json:"student_name"`
	CallCapacity int    `db:"call_capacity" json:"call_capacity"`
	CourseName   string `db:"course_name" json:"course_name"`
}

// CapacityInfo is the derived occupancy view for a call.
type CapacityInfo struct {
	CallID         string  `json:"call_id"`
	Capacity       int     `json:"capacity"`
	Current        int     `json:"current_students"`
	Available      int     `json:"available_spots"`
	IsFull         bool    `json:"is_full"`
	UtilizationPct float64 `json:"utilization_percentage"`
}

// EnrollmentStats aggregates call/student relationship figures.
type EnrollmentStats struct {
	TotalRelationships   int     `json:"total_student_call_relationships"`
	StudentsWithCalls    int     `json:"total_students_with_calls"`
	CallsWithStudents    int     `json:"total_calls_with_students"`
	StudentsWithoutCalls int     `json:"students_without_calls"`
	CallsWithoutStudents int     `json:"calls_without_students"`
	AvgStudentsPerCall   float64 `json:"average_students_per_call"`
	AvgCallsPerStudent   float64 `json:"average_calls_per_student"`
}

// BulkEnrollResult reports the outcome of a best-effort bulk enrollment.
type BulkEnrollResult struct {
	Accepted int                   `json:"accepted"`
	Rejected []BulkEnrollRejection `json:"rejected"`
	Message  string                `json:"message"`
}

// BulkEnrollRejection names a skipped student and the reason.
type BulkEnrollRejection struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BulkWithdrawResult reports how many rows a bulk withdraw removed.
type BulkWithdrawResult struct {
	Removed int    `json:"removed"`
	Message string `json:"message"`
}
