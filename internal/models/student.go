package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Major     string    `db:"major" json:"major"`
	Phone     string    `db:"phone" json:"phone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Major     string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
