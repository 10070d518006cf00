package models

import (
	"time"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

// TeacherConstraint is a stored unavailability window.
type TeacherConstraint struct {
	ID        string    `db:"id" json:"id"`
	Teacher   string    `db:"teacher" json:"teacher"`
	Day       string    `db:"day" json:"day"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ConstraintsToDomain converts stored constraints.
func ConstraintsToDomain(items []TeacherConstraint) []routine.Constraint {
	out := make([]routine.Constraint, len(items))
	for i, c := range items {
		out[i] = routine.Constraint{Teacher: c.Teacher, Day: routine.Weekday(c.Day), StartTime: c.StartTime, EndTime: c.EndTime}
	}
	return out
}
