package models

import "time"

// PaymentStatus tracks the payment state of an enrollment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Enrollment links a student to a course group. The (student, group) pair is
// unique.
type Enrollment struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	GroupID       string        `db:"group_id" json:"group_id"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	EnrolledAt    time.Time     `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches enrollments with descriptive fields.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
}

// EnrollmentFilter describes query params for listing enrollments.
type EnrollmentFilter struct {
	StudentID     string
	GroupID       string
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
