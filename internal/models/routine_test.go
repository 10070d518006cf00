package models

import (
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

func TestRoutineRecordRoundTrip(t *testing.T) {
	days := routine.EmptyDays()
	days[0].Classes = []routine.Session{{ID: "s-1", StartTime: "08:00", EndTime: "08:45", Subject: "Math", Teacher: "Rahim", Room: "101", Type: routine.Theory}}
	src := routine.Routine{ID: "r-1", Department: "CST", Semester: "1", Shift: routine.ShiftMorning, Group: "A", Days: days}

	rec, err := RoutineFromDomain(src)
	require.NoError(t, err)
	assert.Equal(t, "1st", rec.Shift)

	back, err := rec.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, src.Key(), back.Key())
	assert.Equal(t, "Math", back.Days[0].Classes[0].Subject)
}

func TestRoutineToDomainEmptyDays(t *testing.T) {
	r, err := Routine{ID: "r-1", Shift: "2nd"}.ToDomain()
	require.NoError(t, err)
	assert.Len(t, r.Days, 5)
	assert.Equal(t, routine.ShiftDay, r.Shift)

	_, err = Routine{ID: "r-2", Days: types.JSONText(`{`)}.ToDomain()
	assert.Error(t, err)
}
