package models

import "time"

// Subject represents an academic subject, uniquely keyed by (name, major).
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Major     string    `db:"major" json:"major"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Major     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
