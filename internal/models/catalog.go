package models

import "github.com/noah-isme/campus-routine-api/internal/routine"

// Room is a teaching room or lab.
type Room struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	IsLab      bool   `db:"is_lab" json:"is_lab"`
	Department string `db:"department" json:"department"`
	Location   string `db:"location" json:"location"`
	Capacity   int    `db:"capacity" json:"capacity"`
}

// Teacher is an instructor.
type Teacher struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
}

// Subject carries the owning department of a course.
type Subject struct {
	ID         string `db:"id" json:"id"`
	Code       string `db:"code" json:"code"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
}

// Catalog bundles the static resources a generator run reads.
type Catalog struct {
	Rooms    []routine.Room
	Teachers []routine.Teacher
	Subjects []routine.Subject
}

// RoomsToDomain converts room records.
func RoomsToDomain(rooms []Room) []routine.Room {
	out := make([]routine.Room, len(rooms))
	for i, r := range rooms {
		out[i] = routine.Room{Name: r.Name, IsLab: r.IsLab, Department: r.Department, Location: r.Location, Capacity: r.Capacity}
	}
	return out
}

// TeachersToDomain converts teacher records.
func TeachersToDomain(teachers []Teacher) []routine.Teacher {
	out := make([]routine.Teacher, len(teachers))
	for i, t := range teachers {
		out[i] = routine.Teacher{Name: t.Name, Department: t.Department}
	}
	return out
}

// SubjectsToDomain converts subject records.
func SubjectsToDomain(subjects []Subject) []routine.Subject {
	out := make([]routine.Subject, len(subjects))
	for i, s := range subjects {
		out[i] = routine.Subject{Name: s.Name, Code: s.Code, Department: s.Department}
	}
	return out
}
