package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

// CatalogRepository reads the static rooms, teachers and subjects tables.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListRooms returns all rooms ordered by name.
func (r *CatalogRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, is_lab, department, location, capacity FROM rooms ORDER BY name`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListTeachers returns all teachers ordered by name.
func (r *CatalogRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, name, department FROM teachers ORDER BY name`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListSubjects returns all subjects ordered by code.
func (r *CatalogRepository) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT id, code, name, department FROM subjects ORDER BY code`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
