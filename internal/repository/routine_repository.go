package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

const routineColumns = "id, department, semester, shift, group_name, days, last_updated, created_at"

// RoutineRepository persists weekly routines. A routine is unique per
// department, semester, shift and group.
type RoutineRepository struct {
	db *sqlx.DB
}

// NewRoutineRepository constructs a RoutineRepository.
func NewRoutineRepository(db *sqlx.DB) *RoutineRepository {
	return &RoutineRepository{db: db}
}

func (r *RoutineRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAll returns every stored routine. The generator needs the full set as its conflict source.
func (r *RoutineRepository) ListAll(ctx context.Context) ([]models.Routine, error) {
	query := fmt.Sprintf("SELECT %s FROM routines ORDER BY department, semester, shift, group_name", routineColumns)
	var routines []models.Routine
	if err := r.db.SelectContext(ctx, &routines, query); err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return routines, nil
}

// List returns routines matching filters along with total count.
func (r *RoutineRepository) List(ctx context.Context, filter models.RoutineFilter) ([]models.Routine, int, error) {
	base := "FROM routines WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(department) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Department))
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Shift != "" {
		conditions = append(conditions, fmt.Sprintf("shift = $%d", len(args)+1))
		args = append(args, filter.Shift)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY department, semester, shift, group_name LIMIT %d OFFSET %d", routineColumns, base, size, offset)
	var routines []models.Routine
	if err := r.db.SelectContext(ctx, &routines, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list routines: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count routines: %w", err)
	}
	return routines, total, nil
}

// FindByID loads a routine by its identifier.
func (r *RoutineRepository) FindByID(ctx context.Context, id string) (*models.Routine, error) {
	query := fmt.Sprintf("SELECT %s FROM routines WHERE id = $1", routineColumns)
	var routine models.Routine
	if err := r.db.GetContext(ctx, &routine, query, id); err != nil {
		return nil, err
	}
	return &routine, nil
}

// FindByKey loads a routine by its identity tuple.
func (r *RoutineRepository) FindByKey(ctx context.Context, department, semester, shift, group string) (*models.Routine, error) {
	query := fmt.Sprintf("SELECT %s FROM routines WHERE LOWER(department) = $1 AND semester = $2 AND shift = $3 AND LOWER(group_name) = $4", routineColumns)
	var routine models.Routine
	if err := r.db.GetContext(ctx, &routine, query, strings.ToLower(department), semester, shift, strings.ToLower(group)); err != nil {
		return nil, err
	}
	return &routine, nil
}

// Upsert inserts the routine or replaces the days of the existing routine with
// the same identity. The stored id is written back into the record.
func (r *RoutineRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, routine *models.Routine) error {
	if routine == nil {
		return fmt.Errorf("routine payload is nil")
	}
	if routine.Department == "" || routine.Semester == "" || routine.Shift == "" || routine.Group == "" {
		return fmt.Errorf("department, semester, shift and group are required")
	}
	if routine.ID == "" {
		routine.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if routine.LastUpdated.IsZero() {
		routine.LastUpdated = now
	}
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = now
	}

	const query = `
INSERT INTO routines (id, department, semester, shift, group_name, days, last_updated, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (department, semester, shift, group_name)
DO UPDATE SET days = EXCLUDED.days, last_updated = EXCLUDED.last_updated
RETURNING id`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		routine.ID, routine.Department, routine.Semester, routine.Shift, routine.Group,
		routine.Days, routine.LastUpdated, routine.CreatedAt)
	if err := row.Scan(&routine.ID); err != nil {
		return fmt.Errorf("upsert routine: %w", err)
	}
	return nil
}

// Delete removes a routine.
func (r *RoutineRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM routines WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("routine rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
