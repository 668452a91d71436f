package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/akademos/academy-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students st ON st.id = e.student_id
LEFT JOIN course_groups g ON g.id = e.group_id
LEFT JOIN subjects s ON s.id = g.subject_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("e.payment_status = $%d", len(args)+1))
		args = append(args, filter.PaymentStatus)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "st.full_name",
		"subject_name": "s.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.group_id, e.payment_status, e.enrolled_at,
        st.full_name AS student_name, st.email AS student_email, s.name AS subject_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, group_id, payment_status, enrolled_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.group_id, e.payment_status, e.enrolled_at,
        st.full_name AS student_name, st.email AS student_email, s.name AS subject_name
        FROM enrollments e
        LEFT JOIN students st ON st.id = e.student_id
        LEFT JOIN course_groups g ON g.id = e.group_id
        LEFT JOIN subjects s ON s.id = g.subject_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks if the (student, group) pair is already enrolled.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, groupID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, groupID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CountByGroup returns the current occupancy of a group.
func (r *EnrollmentRepository) CountByGroup(ctx context.Context, groupID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE group_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID); err != nil {
		return 0, fmt.Errorf("count group enrollments: %w", err)
	}
	return count, nil
}

// ListByGroup returns the roster of a group with student context.
func (r *EnrollmentRepository) ListByGroup(ctx context.Context, groupID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.group_id, e.payment_status, e.enrolled_at,
        st.full_name AS student_name, st.email AS student_email, s.name AS subject_name
        FROM enrollments e
        LEFT JOIN students st ON st.id = e.student_id
        LEFT JOIN course_groups g ON g.id = e.group_id
        LEFT JOIN subjects s ON s.id = g.subject_id
        WHERE e.group_id = $1
        ORDER BY st.full_name`
	var roster []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &roster, query, groupID); err != nil {
		return nil, fmt.Errorf("list group roster: %w", err)
	}
	return roster, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.PaymentStatus == "" {
		enrollment.PaymentStatus = models.PaymentStatusPending
	}
	const query = `INSERT INTO enrollments (id, student_id, group_id, payment_status, enrolled_at)
        VALUES (:id, :student_id, :group_id, :payment_status, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdatePaymentStatus updates the payment state for an enrollment.
func (r *EnrollmentRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE enrollments SET payment_status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// Delete removes an enrollment (cancellation).
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
