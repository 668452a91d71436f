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

// GroupRequestRepository handles persistence of group-creation requests.
type GroupRequestRepository struct {
	db *sqlx.DB
}

// NewGroupRequestRepository constructs the repository.
func NewGroupRequestRepository(db *sqlx.DB) *GroupRequestRepository {
	return &GroupRequestRepository{db: db}
}

// List returns requests filtered by the provided criteria.
func (r *GroupRequestRepository) List(ctx context.Context, filter models.GroupRequestFilter) ([]models.GroupRequestDetail, int, error) {
	base := `FROM group_requests gr
LEFT JOIN students st ON st.id = gr.student_id
LEFT JOIN subjects s ON s.id = gr.subject_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("gr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("gr.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("gr.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"request_date": "gr.request_date",
		"student_name": "st.full_name",
		"subject_name": "s.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "gr.request_date"
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

	query := fmt.Sprintf(`SELECT gr.id, gr.student_id, gr.subject_id, gr.status, gr.note, gr.request_date, gr.resolved_at,
        st.full_name AS student_name, s.name AS subject_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var requests []models.GroupRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list group requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count group requests: %w", err)
	}
	return requests, total, nil
}

// FindByID returns a request by its ID.
func (r *GroupRequestRepository) FindByID(ctx context.Context, id string) (*models.GroupRequest, error) {
	const query = `SELECT id, student_id, subject_id, status, note, request_date, resolved_at FROM group_requests WHERE id = $1`
	var request models.GroupRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ExistsPending checks if the student already has an open request for the
// subject.
func (r *GroupRequestRepository) ExistsPending(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM group_requests WHERE student_id = $1 AND subject_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID, models.RequestStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return true, nil
}

// Create persists a new request record.
func (r *GroupRequestRepository) Create(ctx context.Context, request *models.GroupRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestDate.IsZero() {
		request.RequestDate = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	const query = `INSERT INTO group_requests (id, student_id, subject_id, status, note, request_date)
        VALUES (:id, :student_id, :subject_id, :status, :note, :request_date)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create group request: %w", err)
	}
	return nil
}

// UpdateStatus resolves a request with the reviewer's decision.
func (r *GroupRequestRepository) UpdateStatus(ctx context.Context, id string, status models.GroupRequestStatus, note *string, resolvedAt time.Time) error {
	const query = `UPDATE group_requests SET status = $2, note = $3, resolved_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, note, resolvedAt); err != nil {
		return fmt.Errorf("resolve group request: %w", err)
	}
	return nil
}
