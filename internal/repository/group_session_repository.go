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

// GroupSessionRepository handles persistence of group sessions.
type GroupSessionRepository struct {
	db *sqlx.DB
}

// NewGroupSessionRepository constructs the repository.
func NewGroupSessionRepository(db *sqlx.DB) *GroupSessionRepository {
	return &GroupSessionRepository{db: db}
}

// List returns sessions filtered by the provided criteria.
func (r *GroupSessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.GroupSession, int, error) {
	base := "FROM group_sessions gs"
	var conditions []string
	var args []interface{}

	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("gs.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TeacherID != "" {
		base += " JOIN course_groups g ON g.id = gs.group_id"
		conditions = append(conditions, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Classroom != "" {
		conditions = append(conditions, fmt.Sprintf("gs.classroom = $%d", len(args)+1))
		args = append(args, filter.Classroom)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("gs.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"day_of_week": "gs.day_of_week",
		"start_time":  "gs.start_time",
		"created_at":  "gs.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "gs.day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT gs.id, gs.group_id, gs.day_of_week, gs.start_time, gs.end_time, gs.classroom,
        gs.created_at, gs.updated_at %s ORDER BY %s %s, gs.start_time ASC LIMIT %d OFFSET %d`,
		base+clause, orderBy, order, size, offset)

	var sessions []models.GroupSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a session by its ID.
func (r *GroupSessionRepository) FindByID(ctx context.Context, id string) (*models.GroupSession, error) {
	const query = `SELECT id, group_id, day_of_week, start_time, end_time, classroom, created_at, updated_at
        FROM group_sessions WHERE id = $1`
	var session models.GroupSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByGroup returns every session belonging to a group.
func (r *GroupSessionRepository) ListByGroup(ctx context.Context, groupID string) ([]models.GroupSession, error) {
	const query = `SELECT id, group_id, day_of_week, start_time, end_time, classroom, created_at, updated_at
        FROM group_sessions WHERE group_id = $1 ORDER BY day_of_week, start_time`
	var sessions []models.GroupSession
	if err := r.db.SelectContext(ctx, &sessions, query, groupID); err != nil {
		return nil, fmt.Errorf("list group sessions: %w", err)
	}
	return sessions, nil
}

// ListByTeacher returns every session across groups taught by the teacher.
func (r *GroupSessionRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.GroupSession, error) {
	const query = `SELECT gs.id, gs.group_id, gs.day_of_week, gs.start_time, gs.end_time, gs.classroom,
        gs.created_at, gs.updated_at
        FROM group_sessions gs
        JOIN course_groups g ON g.id = gs.group_id
        WHERE g.teacher_id = $1
        ORDER BY gs.day_of_week, gs.start_time`
	var sessions []models.GroupSession
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher sessions: %w", err)
	}
	return sessions, nil
}

// ListByClassroomAndDay returns sessions booked in a classroom on a weekday.
func (r *GroupSessionRepository) ListByClassroomAndDay(ctx context.Context, classroom string, day models.DayOfWeek) ([]models.GroupSession, error) {
	const query = `SELECT id, group_id, day_of_week, start_time, end_time, classroom, created_at, updated_at
        FROM group_sessions WHERE classroom = $1 AND day_of_week = $2 ORDER BY start_time`
	var sessions []models.GroupSession
	if err := r.db.SelectContext(ctx, &sessions, query, classroom, day); err != nil {
		return nil, fmt.Errorf("list classroom sessions: %w", err)
	}
	return sessions, nil
}

// Create persists a new session record.
func (r *GroupSessionRepository) Create(ctx context.Context, session *models.GroupSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO group_sessions (id, group_id, day_of_week, start_time, end_time, classroom, created_at, updated_at)
        VALUES (:id, :group_id, :day_of_week, :start_time, :end_time, :classroom, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update persists mutable session fields.
func (r *GroupSessionRepository) Update(ctx context.Context, session *models.GroupSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE group_sessions SET day_of_week = :day_of_week, start_time = :start_time,
        end_time = :end_time, classroom = :classroom, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Delete removes a session entry.
func (r *GroupSessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM group_sessions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
