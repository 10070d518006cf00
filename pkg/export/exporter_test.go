package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

func sampleRoutine() routine.Routine {
	days := routine.EmptyDays()
	days[1].Classes = []routine.Session{
		{ID: "s2", StartTime: "10:15", EndTime: "11:00", Subject: "Math", SubjectCode: "MTH", Teacher: "Karim", Room: "101", Type: routine.Theory},
		{ID: "s3", StartTime: "08:00", EndTime: "10:15", Subject: "Physics", SubjectCode: "PHY", Teacher: "Rahim", Room: "Lab-1", Type: routine.Lab, IsMerged: true, MergeGroup: "s9"},
	}
	days[0].Classes = []routine.Session{
		{ID: "s1", StartTime: "08:45", EndTime: "09:30", Subject: "Chemistry", Teacher: "Rahim", Room: "102", Type: routine.Theory},
	}
	return routine.Routine{ID: "r1", Department: "CST", Semester: "1", Shift: routine.NormalizeShift("1st"), Group: "A", Days: days}
}

func TestSessionRowsOrdering(t *testing.T) {
	rows := SessionRows(sampleRoutine())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"s1", "s3", "s2"}, []string{rows[0].SessionID, rows[1].SessionID, rows[2].SessionID})
	assert.True(t, rows[1].Merged)
	assert.Equal(t, "s9", rows[1].MergeGroup)
}

func TestCSVExporterRenderRoutine(t *testing.T) {
	out, err := NewCSVExporter().RenderRoutine(sampleRoutine())
	require.NoError(t, err)

	var rows []SessionRow
	require.NoError(t, gocsv.UnmarshalBytes(out, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Lab", rows[1].Type)
	assert.True(t, strings.HasPrefix(string(out), "day,start_time,end_time"))

	empty, err := NewCSVExporter().RenderRoutine(routine.Routine{Days: routine.EmptyDays()})
	require.NoError(t, err)
	assert.Contains(t, string(empty), "session_id")
}

func TestPDFExporterRenderRoutine(t *testing.T) {
	out, err := NewPDFExporter().RenderRoutine(sampleRoutine(), "Class Routine")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
