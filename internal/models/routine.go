package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

// Routine is the persisted weekly schedule of one group. Days holds the
// serialized []routine.Day tree.
type Routine struct {
	ID          string         `db:"id" json:"id"`
	Department  string         `db:"department" json:"department"`
	Semester    string         `db:"semester" json:"semester"`
	Shift       string         `db:"shift" json:"shift"`
	Group       string         `db:"group_name" json:"group"`
	Days        types.JSONText `db:"days" json:"days"`
	LastUpdated time.Time      `db:"last_updated" json:"last_updated"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// RoutineFilter narrows routine listings.
type RoutineFilter struct {
	Department string
	Semester   string
	Shift      string
	Page       int
	PageSize   int
}

// ToDomain decodes the record into the scheduling model.
func (r Routine) ToDomain() (routine.Routine, error) {
	out := routine.Routine{
		ID:          r.ID,
		Department:  r.Department,
		Semester:    r.Semester,
		Shift:       routine.NormalizeShift(r.Shift),
		Group:       r.Group,
		LastUpdated: r.LastUpdated,
	}
	if len(r.Days) == 0 {
		out.Days = routine.EmptyDays()
		return out, nil
	}
	if err := json.Unmarshal(r.Days, &out.Days); err != nil {
		return routine.Routine{}, fmt.Errorf("decode routine %s days: %w", r.ID, err)
	}
	return out, nil
}

// RoutineFromDomain encodes a scheduling routine into a record.
func RoutineFromDomain(r routine.Routine) (*Routine, error) {
	days := r.Days
	if days == nil {
		days = routine.EmptyDays()
	}
	payload, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("encode routine %s days: %w", r.ID, err)
	}
	return &Routine{
		ID:          r.ID,
		Department:  r.Department,
		Semester:    r.Semester,
		Shift:       string(r.Shift),
		Group:       r.Group,
		Days:        types.JSONText(payload),
		LastUpdated: r.LastUpdated,
	}, nil
}

// RoutinesToDomain decodes a slice of records.
func RoutinesToDomain(records []Routine) ([]routine.Routine, error) {
	out := make([]routine.Routine, 0, len(records))
	for _, rec := range records {
		r, err := rec.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
