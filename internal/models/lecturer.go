package models

import "time"

// Lecturer represents a teaching profile linked 1:1 to a user account.
type Lecturer struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	ContractStart    time.Time  `db:"contract_start" json:"contract_start"`
	ContractEnd      *time.Time `db:"contract_end" json:"contract_end,omitempty"`
	UniversityDegree string     `db:"university_degree" json:"university_degree"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// LecturerDetail enriches Lecturer with account fields for list views.
type LecturerDetail struct {
	Lecturer
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	AccountActive bool   `db:"account_active" json:"account_active"`
}
