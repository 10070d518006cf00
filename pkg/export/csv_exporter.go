package export

import (
	"fmt"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

// SessionRow is the flat CSV form of one scheduled session.
type SessionRow struct {
	Day         string `csv:"day"`
	StartTime   string `csv:"start_time"`
	EndTime     string `csv:"end_time"`
	Subject     string `csv:"subject"`
	SubjectCode string `csv:"subject_code"`
	Teacher     string `csv:"teacher"`
	Room        string `csv:"room"`
	Type        string `csv:"type"`
	Merged      bool   `csv:"merged"`
	MergeGroup  string `csv:"merge_group"`
	SessionID   string `csv:"session_id"`
}

// SessionRows flattens a routine in weekday then start-time order.
func SessionRows(r routine.Routine) []SessionRow {
	order := make(map[routine.Weekday]int, len(routine.Weekdays))
	for i, d := range routine.Weekdays {
		order[d] = i
	}
	sessions := r.Sessions()
	sort.SliceStable(sessions, func(i, j int) bool {
		if order[sessions[i].Day] != order[sessions[j].Day] {
			return order[sessions[i].Day] < order[sessions[j].Day]
		}
		return sessions[i].Session.Window().Start < sessions[j].Session.Window().Start
	})
	rows := make([]SessionRow, 0, len(sessions))
	for _, ds := range sessions {
		s := ds.Session
		rows = append(rows, SessionRow{
			Day:         string(ds.Day),
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			Subject:     s.Subject,
			SubjectCode: s.SubjectCode,
			Teacher:     s.Teacher,
			Room:        s.Room,
			Type:        string(s.Type),
			Merged:      s.IsMerged,
			MergeGroup:  s.MergeGroup,
			SessionID:   s.ID,
		})
	}
	return rows
}

// CSVExporter renders routines as one row per session.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderRoutine produces CSV encoded bytes for the routine.
func (e *CSVExporter) RenderRoutine(r routine.Routine) ([]byte, error) {
	rows := SessionRows(r)
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("write routine csv: %w", err)
	}
	return out, nil
}
