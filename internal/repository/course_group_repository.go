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

// CourseGroupRepository handles persistence of course groups.
type CourseGroupRepository struct {
	db *sqlx.DB
}

// NewCourseGroupRepository constructs the repository.
func NewCourseGroupRepository(db *sqlx.DB) *CourseGroupRepository {
	return &CourseGroupRepository{db: db}
}

// List returns groups filtered by the provided criteria.
func (r *CourseGroupRepository) List(ctx context.Context, filter models.CourseGroupFilter) ([]models.CourseGroupDetail, int, error) {
	base := `FROM course_groups g
LEFT JOIN subjects s ON s.id = g.subject_id
LEFT JOIN teachers t ON t.id = g.teacher_id`
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("g.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("g.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.GroupType != "" {
		conditions = append(conditions, fmt.Sprintf("g.group_type = $%d", len(args)+1))
		args = append(args, filter.GroupType)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "g.created_at",
		"price":        "g.price",
		"subject_name": "s.name",
		"status":       "g.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "g.created_at"
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

	query := fmt.Sprintf(`SELECT g.id, g.subject_id, g.teacher_id, g.status, g.group_type, g.price, g.max_capacity,
        g.created_at, g.updated_at, s.name AS subject_name, s.major AS subject_major, t.full_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.group_id = g.id) AS enrolled_count,
        g.max_capacity - (SELECT COUNT(*) FROM enrollments e WHERE e.group_id = g.id) AS available_spots
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var groups []models.CourseGroupDetail
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list course groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count course groups: %w", err)
	}
	return groups, total, nil
}

// FindByID returns a group by its ID.
func (r *CourseGroupRepository) FindByID(ctx context.Context, id string) (*models.CourseGroup, error) {
	const query = `SELECT id, subject_id, teacher_id, status, group_type, price, max_capacity, created_at, updated_at
        FROM course_groups WHERE id = $1`
	var group models.CourseGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// FindDetailByID returns a group with subject/teacher context and occupancy.
func (r *CourseGroupRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseGroupDetail, error) {
	const query = `SELECT g.id, g.subject_id, g.teacher_id, g.status, g.group_type, g.price, g.max_capacity,
        g.created_at, g.updated_at, s.name AS subject_name, s.major AS subject_major, t.full_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.group_id = g.id) AS enrolled_count,
        g.max_capacity - (SELECT COUNT(*) FROM enrollments e WHERE e.group_id = g.id) AS available_spots
        FROM course_groups g
        LEFT JOIN subjects s ON s.id = g.subject_id
        LEFT JOIN teachers t ON t.id = g.teacher_id
        WHERE g.id = $1`
	var detail models.CourseGroupDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsOpenBySubject reports whether a non-closed group already serves the
// subject. Used to reject redundant group requests.
func (r *CourseGroupRepository) ExistsOpenBySubject(ctx context.Context, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM course_groups WHERE subject_id = $1 AND status <> $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectID, models.GroupStatusClosed); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open group for subject: %w", err)
	}
	return true, nil
}

// Create persists a new group record.
func (r *CourseGroupRepository) Create(ctx context.Context, group *models.CourseGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	if group.Status == "" {
		group.Status = models.GroupStatusPlanned
	}
	const query = `INSERT INTO course_groups (id, subject_id, teacher_id, status, group_type, price, max_capacity, created_at, updated_at)
        VALUES (:id, :subject_id, :teacher_id, :status, :group_type, :price, :max_capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create course group: %w", err)
	}
	return nil
}

// UpdateStatus moves the group to a new lifecycle state.
func (r *CourseGroupRepository) UpdateStatus(ctx context.Context, id string, status models.CourseGroupStatus) error {
	const query = `UPDATE course_groups SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update group status: %w", err)
	}
	return nil
}

// UpdateTeacher sets or clears the assigned teacher.
func (r *CourseGroupRepository) UpdateTeacher(ctx context.Context, id string, teacherID *string) error {
	const query = `UPDATE course_groups SET teacher_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, teacherID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update group teacher: %w", err)
	}
	return nil
}

// Update persists mutable group attributes.
func (r *CourseGroupRepository) Update(ctx context.Context, group *models.CourseGroup) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_groups SET group_type = :group_type, price = :price,
        max_capacity = :max_capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update course group: %w", err)
	}
	return nil
}

// Delete removes a group; sessions cascade at the schema level.
func (r *CourseGroupRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM course_groups WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course group: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
