package models

import "time"

// CourseGroupStatus is the lifecycle state of a course group.
type CourseGroupStatus string

const (
	GroupStatusPlanned CourseGroupStatus = "PLANNED"
	GroupStatusActive  CourseGroupStatus = "ACTIVE"
	GroupStatusClosed  CourseGroupStatus = "CLOSED"
)

// groupTransitions is the allowed lifecycle transition table. CLOSED is terminal.
var groupTransitions = map[CourseGroupStatus][]CourseGroupStatus{
	GroupStatusPlanned: {GroupStatusActive, GroupStatusClosed},
	GroupStatusActive:  {GroupStatusClosed},
	GroupStatusClosed:  {},
}

// CanTransitionTo reports whether the status change is permitted.
func (s CourseGroupStatus) CanTransitionTo(next CourseGroupStatus) bool {
	for _, allowed := range groupTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether the status is a known lifecycle state.
func (s CourseGroupStatus) IsValid() bool {
	switch s {
	case GroupStatusPlanned, GroupStatusActive, GroupStatusClosed:
		return true
	}
	return false
}

// CourseGroupType categorises the delivery mode of a group.
type CourseGroupType string

const (
	GroupTypeRegular   CourseGroupType = "REGULAR"
	GroupTypeIntensive CourseGroupType = "INTENSIVE"
	GroupTypeRemedial  CourseGroupType = "REMEDIAL"
	GroupTypeOnline    CourseGroupType = "ONLINE"
)

// CourseGroup is one offering of a subject. The teacher reference stays nil
// until an explicit assignment.
type CourseGroup struct {
	ID          string            `db:"id" json:"id"`
	SubjectID   string            `db:"subject_id" json:"subject_id"`
	TeacherID   *string           `db:"teacher_id" json:"teacher_id,omitempty"`
	Status      CourseGroupStatus `db:"status" json:"status"`
	GroupType   CourseGroupType   `db:"group_type" json:"group_type"`
	Price       float64           `db:"price" json:"price"`
	MaxCapacity int               `db:"max_capacity" json:"max_capacity"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// CourseGroupDetail enriches a group with subject/teacher names and occupancy.
type CourseGroupDetail struct {
	CourseGroup
	SubjectName    string  `db:"subject_name" json:"subject_name"`
	SubjectMajor   string  `db:"subject_major" json:"subject_major"`
	TeacherName    *string `db:"teacher_name" json:"teacher_name,omitempty"`
	EnrolledCount  int     `db:"enrolled_count" json:"enrolled_count"`
	AvailableSpots int     `db:"available_spots" json:"available_spots"`
}

// CourseGroupFilter describes query params for listing groups.
type CourseGroupFilter struct {
	SubjectID string
	TeacherID string
	Status    CourseGroupStatus
	GroupType CourseGroupType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
