package models

import "time"

// GroupRequestStatus is the review state of a group-creation request.
type GroupRequestStatus string

const (
	RequestStatusPending  GroupRequestStatus = "PENDING"
	RequestStatusApproved GroupRequestStatus = "APPROVED"
	RequestStatusRejected GroupRequestStatus = "REJECTED"
)

// GroupRequest is a student's petition to open a new course group for a
// subject.
type GroupRequest struct {
	ID          string             `db:"id" json:"id"`
	StudentID   string             `db:"student_id" json:"student_id"`
	SubjectID   string             `db:"subject_id" json:"subject_id"`
	Status      GroupRequestStatus `db:"status" json:"status"`
	Note        *string            `db:"note" json:"note,omitempty"`
	RequestDate time.Time          `db:"request_date" json:"request_date"`
	ResolvedAt  *time.Time         `db:"resolved_at" json:"resolved_at,omitempty"`
}

// GroupRequestDetail enriches requests with descriptive fields.
type GroupRequestDetail struct {
	GroupRequest
	StudentName string `db:"student_name" json:"student_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// GroupRequestFilter describes query params for listing requests.
type GroupRequestFilter struct {
	StudentID string
	SubjectID string
	Status    GroupRequestStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
