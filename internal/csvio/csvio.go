// Package csvio reads scheduling inputs from CSV and writes routines back out.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/campus-routine-api/internal/routine"
	"github.com/noah-isme/campus-routine-api/pkg/export"
)

// RoomRecord is one row of a rooms file.
type RoomRecord struct {
	Name       string `csv:"name"`
	IsLab      bool   `csv:"is_lab"`
	Department string `csv:"department"`
	Location   string `csv:"location"`
	Capacity   int    `csv:"capacity"`
}

// LoadRecord is one row of a teaching load file.
type LoadRecord struct {
	Subject     string `csv:"subject"`
	SubjectCode string `csv:"subject_code"`
	Teacher     string `csv:"teacher"`
	TheoryCount int    `csv:"theory_count"`
	LabCount    int    `csv:"lab_count"`
}

// ConstraintRecord is one row of a teacher constraint file.
type ConstraintRecord struct {
	Teacher   string `csv:"teacher"`
	Day       string `csv:"day"`
	StartTime string `csv:"start_time"`
	EndTime   string `csv:"end_time"`
}

func newReader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true
	r.Comment = '#'
	return r
}

func unmarshal(in io.Reader, out interface{}) error {
	return gocsv.UnmarshalCSV(newReader(in), out)
}

// ReadRooms parses a rooms file. Rows without a name are rejected.
func ReadRooms(in io.Reader) ([]routine.Room, error) {
	var records []RoomRecord
	if err := unmarshal(in, &records); err != nil {
		return nil, fmt.Errorf("parse rooms: %w", err)
	}
	out := make([]routine.Room, 0, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			return nil, fmt.Errorf("rooms row %d: name required", i+2)
		}
		out = append(out, routine.Room{
			Name:       strings.TrimSpace(rec.Name),
			IsLab:      rec.IsLab,
			Department: strings.TrimSpace(rec.Department),
			Location:   strings.TrimSpace(rec.Location),
			Capacity:   rec.Capacity,
		})
	}
	return out, nil
}

// ReadLoads parses a teaching load file.
func ReadLoads(in io.Reader) ([]routine.LoadItem, error) {
	var records []LoadRecord
	if err := unmarshal(in, &records); err != nil {
		return nil, fmt.Errorf("parse loads: %w", err)
	}
	out := make([]routine.LoadItem, 0, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Subject) == "" || strings.TrimSpace(rec.Teacher) == "" {
			return nil, fmt.Errorf("loads row %d: subject and teacher required", i+2)
		}
		if rec.TheoryCount < 0 || rec.LabCount < 0 {
			return nil, fmt.Errorf("loads row %d: counts must not be negative", i+2)
		}
		out = append(out, routine.LoadItem{
			Subject:     strings.TrimSpace(rec.Subject),
			SubjectCode: strings.TrimSpace(rec.SubjectCode),
			Teacher:     strings.TrimSpace(rec.Teacher),
			TheoryCount: rec.TheoryCount,
			LabCount:    rec.LabCount,
		})
	}
	return out, nil
}

// ReadConstraints parses a teacher constraint file.
func ReadConstraints(in io.Reader) ([]routine.Constraint, error) {
	var records []ConstraintRecord
	if err := unmarshal(in, &records); err != nil {
		return nil, fmt.Errorf("parse constraints: %w", err)
	}
	out := make([]routine.Constraint, 0, len(records))
	for i, rec := range records {
		day, err := routine.ParseWeekday(rec.Day)
		if err != nil {
			return nil, fmt.Errorf("constraints row %d: %w", i+2, err)
		}
		if _, err := routine.NewWindow(rec.StartTime, rec.EndTime); err != nil {
			return nil, fmt.Errorf("constraints row %d: %w", i+2, err)
		}
		out = append(out, routine.Constraint{
			Teacher:   strings.TrimSpace(rec.Teacher),
			Day:       day,
			StartTime: strings.TrimSpace(rec.StartTime),
			EndTime:   strings.TrimSpace(rec.EndTime),
		})
	}
	return out, nil
}

// ReadRoutine parses session rows into the routine identified by key.
func ReadRoutine(in io.Reader, id string, key routine.RoutineKey) (routine.Routine, error) {
	var rows []export.SessionRow
	if err := unmarshal(in, &rows); err != nil {
		return routine.Routine{}, fmt.Errorf("parse routine: %w", err)
	}
	out := routine.Routine{
		ID:         id,
		Department: key.Department,
		Semester:   key.Semester,
		Shift:      key.Shift,
		Group:      key.Group,
		Days:       routine.EmptyDays(),
	}
	for i, row := range rows {
		day, err := routine.ParseWeekday(row.Day)
		if err != nil {
			return routine.Routine{}, fmt.Errorf("routine row %d: %w", i+2, err)
		}
		if _, err := routine.NewWindow(row.StartTime, row.EndTime); err != nil {
			return routine.Routine{}, fmt.Errorf("routine row %d: %w", i+2, err)
		}
		sessionType := routine.Theory
		if strings.EqualFold(row.Type, string(routine.Lab)) {
			sessionType = routine.Lab
		}
		session := routine.Session{
			ID:          row.SessionID,
			StartTime:   row.StartTime,
			EndTime:     row.EndTime,
			Subject:     row.Subject,
			SubjectCode: row.SubjectCode,
			Teacher:     row.Teacher,
			Room:        row.Room,
			Type:        sessionType,
			IsMerged:    row.Merged,
			MergeGroup:  row.MergeGroup,
		}
		if session.ID == "" {
			session.ID = fmt.Sprintf("%s-%d", id, i+1)
		}
		for d := range out.Days {
			if out.Days[d].Name == day {
				out.Days[d].Classes = append(out.Days[d].Classes, session)
			}
		}
	}
	return out, nil
}

// WriteRoutine writes the routine as session rows.
func WriteRoutine(w io.Writer, r routine.Routine) error {
	body, err := export.NewCSVExporter().RenderRoutine(r)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write routine: %w", err)
	}
	return nil
}

// ReadFile opens path and hands it to read.
func ReadFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return read(f)
}
