package csvio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

func TestReadRooms(t *testing.T) {
	in := "name,is_lab,department,location,capacity\n101,false,CST,Block A,40\n# spare\nLab-1,true,CST,Block B,30\n"
	rooms, err := ReadRooms(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.True(t, rooms[1].IsLab)
	assert.Equal(t, 40, rooms[0].Capacity)

	_, err = ReadRooms(strings.NewReader("name,is_lab\n,true\n"))
	assert.Error(t, err)
}

func TestReadLoads(t *testing.T) {
	in := "subject,subject_code,teacher,theory_count,lab_count\nPhysics,PHY,Rahim,2,3\n"
	loads, err := ReadLoads(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []routine.LoadItem{{Subject: "Physics", SubjectCode: "PHY", Teacher: "Rahim", TheoryCount: 2, LabCount: 3}}, loads)

	_, err = ReadLoads(strings.NewReader("subject,teacher,theory_count\nPhysics,Rahim,-1\n"))
	assert.Error(t, err)
	_, err = ReadLoads(strings.NewReader("subject,teacher,theory_count\nPhysics,,1\n"))
	assert.Error(t, err)
}

func TestReadConstraints(t *testing.T) {
	in := "teacher,day,start_time,end_time\nRahim,monday,08:00,10:15\n"
	cs, err := ReadConstraints(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, routine.Monday, cs[0].Day)

	_, err = ReadConstraints(strings.NewReader("teacher,day,start_time,end_time\nRahim,Saturday,08:00,09:00\n"))
	assert.Error(t, err)
	_, err = ReadConstraints(strings.NewReader("teacher,day,start_time,end_time\nRahim,Monday,10:00,09:00\n"))
	assert.Error(t, err)
}

func TestRoutineRoundTrip(t *testing.T) {
	key := routine.RoutineKey{Department: "CST", Semester: "1", Shift: routine.ShiftMorning, Group: "A"}
	days := routine.EmptyDays()
	days[2].Classes = []routine.Session{
		{ID: "s1", StartTime: "08:00", EndTime: "10:15", Subject: "Physics", Teacher: "Rahim", Room: "Lab-1", Type: routine.Lab},
		{ID: "s2", StartTime: "10:15", EndTime: "11:00", Subject: "Math", Teacher: "Karim", Room: routine.RoomUnplaced, Type: routine.Theory, IsMerged: true, MergeGroup: "x"},
	}
	original := routine.Routine{ID: "r1", Department: key.Department, Semester: key.Semester, Shift: key.Shift, Group: key.Group, Days: days}

	var buf bytes.Buffer
	require.NoError(t, WriteRoutine(&buf, original))

	parsed, err := ReadRoutine(&buf, "r1", key)
	require.NoError(t, err)
	assert.Equal(t, original.Days, parsed.Days)
	assert.Equal(t, key, parsed.Key())
}

func TestReadRoutineAssignsMissingIDs(t *testing.T) {
	in := "day,start_time,end_time,subject,teacher,room,type\nSunday,08:00,08:45,Math,Karim,101,Theory\n"
	r, err := ReadRoutine(strings.NewReader(in), "r9", routine.RoutineKey{Shift: routine.ShiftMorning})
	require.NoError(t, err)
	sessions := r.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "r9-1", sessions[0].Session.ID)
}
