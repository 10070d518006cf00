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

// ConstraintRepository manages teacher unavailability windows.
type ConstraintRepository struct {
	db *sqlx.DB
}

// NewConstraintRepository constructs a ConstraintRepository.
func NewConstraintRepository(db *sqlx.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

// ListAll returns every stored constraint.
func (r *ConstraintRepository) ListAll(ctx context.Context) ([]models.TeacherConstraint, error) {
	const query = `SELECT id, teacher, day, start_time, end_time, reason, created_at FROM teacher_constraints ORDER BY teacher, day, start_time`
	var items []models.TeacherConstraint
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list teacher constraints: %w", err)
	}
	return items, nil
}

// ListByTeacher returns the constraints of one teacher.
func (r *ConstraintRepository) ListByTeacher(ctx context.Context, teacher string) ([]models.TeacherConstraint, error) {
	const query = `SELECT id, teacher, day, start_time, end_time, reason, created_at FROM teacher_constraints WHERE LOWER(teacher) = $1 ORDER BY day, start_time`
	var items []models.TeacherConstraint
	if err := r.db.SelectContext(ctx, &items, query, strings.ToLower(strings.TrimSpace(teacher))); err != nil {
		return nil, fmt.Errorf("list teacher constraints: %w", err)
	}
	return items, nil
}

// Create inserts a constraint.
func (r *ConstraintRepository) Create(ctx context.Context, item *models.TeacherConstraint) error {
	if item == nil {
		return fmt.Errorf("constraint payload is nil")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO teacher_constraints (id, teacher, day, start_time, end_time, reason, created_at)
VALUES (:id, :teacher, :day, :start_time, :end_time, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("insert teacher constraint: %w", err)
	}
	return nil
}

// Delete removes a constraint.
func (r *ConstraintRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teacher_constraints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher constraint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("teacher constraint rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
