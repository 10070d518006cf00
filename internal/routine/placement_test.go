package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRooms = []Room{
	{Name: "101", Department: "CST", Location: "Computer Building", Capacity: 40},
	{Name: "102", Department: "CT", Location: "Academic Building", Capacity: 60},
	{Name: "Lab-1", IsLab: true, Department: "CST", Capacity: 30},
	{Name: "Lab-2", IsLab: true, Department: "ET", Capacity: 30},
}

func emptyTarget(group string) Routine {
	return Routine{ID: "r-" + group, Department: "CST", Semester: "1", Shift: ShiftMorning, Group: group}
}

func countSessions(days []Day) (theory, lab int, all []Session) {
	for _, d := range days {
		for _, s := range d.Classes {
			all = append(all, s)
			if s.Type == Lab {
				lab++
			} else {
				theory++
			}
		}
	}
	return theory, lab, all
}

func TestGenerateSingleLoadItem(t *testing.T) {
	g := newTestGenerator(7)
	res := g.Generate(GenerateInput{
		Target: emptyTarget("A"),
		Loads:  []LoadItem{{Subject: "Physics", SubjectCode: "PHY", Teacher: "Rahim", TheoryCount: 2, LabCount: 3}},
		Rooms:  testRooms,
	})

	require.Empty(t, res.Unplaced)
	theory, lab, all := countSessions(res.Days)
	assert.Equal(t, 2, theory)
	assert.Equal(t, 1, lab)
	assert.Len(t, all, 3)

	grid := NewGrid(ShiftMorning)
	for _, s := range all {
		if s.Type == Lab {
			assert.Equal(t, 3, grid.Span(s.StartTime, s.EndTime))
			assert.Contains(t, []string{"Lab-1", "Lab-2"}, s.Room)
		} else {
			assert.Equal(t, 1, grid.Span(s.StartTime, s.EndTime))
			assert.Contains(t, []string{"101", "102"}, s.Room)
		}
	}
	assert.Equal(t, 3, res.Stats.Units)
	assert.Len(t, res.Placed, 3)
}

func TestGenerateTeacherBlockedAllWeek(t *testing.T) {
	var constraints []Constraint
	for _, d := range Weekdays {
		constraints = append(constraints,
			Constraint{Teacher: "Rahim", Day: d, StartTime: "08:00", EndTime: "13:15"},
			Constraint{Teacher: "Rahim", Day: d, StartTime: "10:00", EndTime: "18:45"},
		)
	}

	g := newTestGenerator(11)
	res := g.Generate(GenerateInput{
		Target: emptyTarget("A"),
		Loads: []LoadItem{
			{Subject: "Math", Teacher: "Rahim", TheoryCount: 2},
			{Subject: "Physics", Teacher: "Rahim", TheoryCount: 1, LabCount: 3},
		},
		Constraints: constraints,
		Rooms:       testRooms,
	})

	_, _, all := countSessions(res.Days)
	assert.Empty(t, all)
	require.Len(t, res.Unplaced, 4)
	reasons := map[string]int{}
	for _, item := range res.Unplaced {
		reasons[item.Reason]++
		assert.NotNil(t, item.Suggestions)
	}
	assert.Equal(t, 3, reasons[ReasonNoTheorySlot])
	assert.Equal(t, 1, reasons[ReasonNoLabSlot])
}

func propertyLoads() []LoadItem {
	return []LoadItem{
		{Subject: "Math", Teacher: "Rahim", TheoryCount: 3},
		{Subject: "Physics", Teacher: "Karim", TheoryCount: 2, LabCount: 3},
		{Subject: "Programming", Teacher: "Nadia", TheoryCount: 2, LabCount: 6},
		{Subject: "English", Teacher: "Rahim", TheoryCount: 2},
		{Subject: "Chemistry", Teacher: "Salma", TheoryCount: 1, LabCount: 2},
	}
}

func TestGenerateHonoursInvariantsAcrossSeeds(t *testing.T) {
	other := routineWith("r-b", "B", Sunday,
		session("x1", "08:00", "08:45", "Math", "Rahim", "101", Theory),
		session("x2", "08:45", "11:00", "Networks", "Karim", "Lab-1", Lab),
	)
	other.Days[2].Classes = []Session{session("x3", "09:30", "10:15", "English", "Nadia", "102", Theory)}

	expected := len(ExpandLoad(propertyLoads()))

	for seed := int64(1); seed <= 25; seed++ {
		g := newTestGenerator(seed)
		res := g.Generate(GenerateInput{
			Target:   emptyTarget("A"),
			Loads:    propertyLoads(),
			Routines: []Routine{other},
			Rooms:    testRooms,
		})

		generated := emptyTarget("A")
		generated.Days = res.Days
		assert.Empty(t, CheckRoutines([]Routine{other, generated}), "seed %d", seed)
		assert.Equal(t, expected, len(res.Placed)+len(res.Unplaced), "seed %d", seed)

		_, moves := g.Compact(generated, []Routine{other}, nil, nil)
		assert.Zero(t, moves, "seed %d", seed)
	}
}

func TestGenerateKeepsExistingDays(t *testing.T) {
	existing := routineWith("r-A", "A", Monday, session("old", "08:00", "08:45", "History", "Salma", "102", Theory))
	g := newTestGenerator(3)
	res := g.Generate(GenerateInput{
		Target:   emptyTarget("A"),
		Loads:    []LoadItem{{Subject: "History", Teacher: "Salma", TheoryCount: 1}},
		Routines: []Routine{existing},
		Rooms:    testRooms,
	})

	require.Empty(t, res.Unplaced)
	for _, d := range res.Days {
		if d.Name == Monday {
			require.Len(t, d.Classes, 1)
			assert.Equal(t, "old", d.Classes[0].ID)
		}
	}
	_, _, all := countSessions(res.Days)
	assert.Len(t, all, 2)
}

func TestGenerateReduceLabOption(t *testing.T) {
	g := newTestGenerator(5)
	res := g.Generate(GenerateInput{
		Target:  emptyTarget("A"),
		Loads:   []LoadItem{{Subject: "Physics", Teacher: "Rahim", LabCount: 3}},
		Rooms:   testRooms,
		Options: Options{ReduceLab: true},
	})

	_, lab, all := countSessions(res.Days)
	require.Equal(t, 1, lab)
	assert.Equal(t, 2, NewGrid(ShiftMorning).Span(all[0].StartTime, all[0].EndTime))
}

func TestGenerateEvictsTheoryForLab(t *testing.T) {
	target := emptyTarget("A")
	target.Days = EmptyDays()
	subjects := []string{"Bangla", "History", "Geography", "Civics", "Economics"}
	for i := range target.Days {
		target.Days[i].Classes = []Session{
			session(subjects[i]+"-1", "08:45", "09:30", subjects[i], "Teacher-"+subjects[i], "101", Theory),
			session(subjects[i]+"-2", "11:00", "11:45", subjects[(i+1)%5], "Teacher-"+subjects[(i+1)%5], "102", Theory),
		}
	}

	g := newTestGenerator(9)
	res := g.Generate(GenerateInput{
		Target: target,
		Loads:  []LoadItem{{Subject: "Physics", Teacher: "Rahim", LabCount: 3}},
		Rooms:  testRooms,
	})

	assert.GreaterOrEqual(t, res.Stats.Evicted, 1)
	assert.Zero(t, res.Stats.ReducedLabs)
	_, lab, all := countSessions(res.Days)
	require.Equal(t, 1, lab)
	assert.Equal(t, 11, len(all)+len(res.Unplaced))

	generated := target
	generated.Days = res.Days
	assert.Empty(t, CheckRoutines([]Routine{generated}))
}

func TestGenerateCombinedClassJoinsExistingSession(t *testing.T) {
	other := routineWith("r-b", "B", Sunday, session("x1", "08:00", "08:45", "Math", "Rahim", "102", Theory))
	constraints := []Constraint{{Teacher: "Rahim", Day: Sunday, StartTime: "08:45", EndTime: "18:45"}}
	for _, d := range Weekdays[1:] {
		constraints = append(constraints, Constraint{Teacher: "Rahim", Day: d, StartTime: "08:00", EndTime: "18:45"})
	}

	g := newTestGenerator(13)
	res := g.Generate(GenerateInput{
		Target:      emptyTarget("A"),
		Loads:       []LoadItem{{Subject: "Math", Teacher: "Rahim", TheoryCount: 1}},
		Constraints: constraints,
		Routines:    []Routine{other},
		Rooms:       testRooms,
		Options:     Options{CombineClasses: true},
	})

	require.Empty(t, res.Unplaced)
	_, _, all := countSessions(res.Days)
	require.Len(t, all, 1)
	assert.Equal(t, "08:00", all[0].StartTime)
	assert.Equal(t, "102", all[0].Room)
	assert.True(t, all[0].IsMerged)
	require.Len(t, res.Merges, 1)
	assert.Equal(t, MergeLink{SessionID: all[0].ID, RoutineID: "r-b", ExternalSessionID: "x1"}, res.Merges[0])
}

func TestGenerateRoomlessFallback(t *testing.T) {
	g := newTestGenerator(17)
	res := g.Generate(GenerateInput{
		Target: emptyTarget("A"),
		Loads:  []LoadItem{{Subject: "Physics", Teacher: "Rahim", TheoryCount: 1, LabCount: 2}},
		Rooms:  []Room{{Name: "101"}},
	})

	require.Empty(t, res.Unplaced)
	_, _, all := countSessions(res.Days)
	for _, s := range all {
		if s.Type == Lab {
			assert.Equal(t, RoomUnplaced, s.Room)
		} else {
			assert.Equal(t, "101", s.Room)
		}
	}
	assert.Equal(t, 1, res.Stats.Roomless)
}

func TestGenerateSuggestsMergeForUnplacedUnit(t *testing.T) {
	other := routineWith("r-b", "B", Monday, session("x1", "09:30", "10:15", "Math", "Rahim", "101", Theory))
	var constraints []Constraint
	for _, d := range Weekdays {
		constraints = append(constraints, Constraint{Teacher: "Rahim", Day: d, StartTime: "08:00", EndTime: "09:30"})
		constraints = append(constraints, Constraint{Teacher: "Rahim", Day: d, StartTime: "10:15", EndTime: "18:45"})
	}
	constraints = append(constraints,
		Constraint{Teacher: "Rahim", Day: Sunday, StartTime: "09:30", EndTime: "10:15"},
		Constraint{Teacher: "Rahim", Day: Tuesday, StartTime: "09:30", EndTime: "10:15"},
		Constraint{Teacher: "Rahim", Day: Wednesday, StartTime: "09:30", EndTime: "10:15"},
		Constraint{Teacher: "Rahim", Day: Thursday, StartTime: "09:30", EndTime: "10:15"},
	)

	g := newTestGenerator(19)
	res := g.Generate(GenerateInput{
		Target:      emptyTarget("A"),
		Loads:       []LoadItem{{Subject: "Math", Teacher: "Rahim", TheoryCount: 1}},
		Constraints: constraints,
		Routines:    []Routine{other},
		Rooms:       testRooms,
	})

	require.Len(t, res.Unplaced, 1)
	item := res.Unplaced[0]
	assert.Equal(t, ReasonNoTheorySlot, item.Reason)
	require.NotEmpty(t, item.Suggestions)
	assert.Equal(t, SuggestMerge, item.Suggestions[0].Kind)
	assert.Equal(t, Monday, item.Suggestions[0].Day)
	assert.Equal(t, "r-b", item.Suggestions[0].RoutineID)
}

func TestGenerateLinkedRoutinesPreferLargeRooms(t *testing.T) {
	partner := emptyTarget("B")
	partner.Days = EmptyDays()
	g := newTestGenerator(5)

	res := g.Generate(GenerateInput{
		Target:  emptyTarget("A"),
		Loads:   []LoadItem{{Subject: "Math", Teacher: "Rahim", TheoryCount: 1}},
		Rooms:   []Room{{Name: "small", Capacity: 30}, {Name: "large", Capacity: 90}},
		Options: Options{LinkedRoutines: []Routine{partner}},
	})

	require.Empty(t, res.Unplaced)
	_, _, all := countSessions(res.Days)
	require.Len(t, all, 1)
	assert.Equal(t, "large", all[0].Room)
}
