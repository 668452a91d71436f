package models

import "time"

// DayOfWeek enumerates the weekdays a session can recur on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// IsValid reports whether the value is a known weekday.
func (d DayOfWeek) IsValid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// GroupSession is a recurring weekly time slot belonging to a course group.
// Times are stored as HH:MM wall-clock strings.
type GroupSession struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Classroom *string   `db:"classroom" json:"classroom,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	GroupID   string
	TeacherID string
	Classroom string
	DayOfWeek DayOfWeek
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SessionConflict describes an existing session that collides with a candidate.
type SessionConflict struct {
	SessionID string    `json:"session_id"`
	GroupID   string    `json:"group_id"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Classroom *string   `json:"classroom,omitempty"`
	Dimension string    `json:"dimension"`
}

// Conflict dimensions reported by the scheduling checks.
const (
	ConflictDimensionSlot      = "SLOT"
	ConflictDimensionTeacher   = "TEACHER"
	ConflictDimensionClassroom = "CLASSROOM"
)

// SessionConflictError is returned when a session collides with an existing one.
type SessionConflictError struct {
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Conflict SessionConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *SessionConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
