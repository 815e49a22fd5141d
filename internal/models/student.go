package models

import "time"

// Student represents a learner profile linked 1:1 to a user account.
type Student struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Employed  bool      `db:"employed" json:"employed"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with account fields for list views.
type StudentDetail struct {
	Student
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	AccountActive bool   `db:"account_active" json:"account_active"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Employed  *bool
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
