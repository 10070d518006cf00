package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBatchReplicatesMergedSessions(t *testing.T) {
	const techA, techB = "CST|1|1st|A", "CST|1|1st|B"
	g := newTestGenerator(21)

	res := g.GenerateBatch(BatchInput{
		Assignments: []Assignment{{
			Teacher: "Rahim",
			Subjects: []SubjectAssignment{{
				Subject:      "Physics",
				SubjectCode:  "PHY",
				TheoryCount:  2,
				Technologies: []string{techA, techB},
				MergedGroups: map[string][]string{techA: {techB}},
			}},
		}},
		Rooms: testRooms,
	})

	require.Empty(t, res.Failures)
	require.Len(t, res.Routines, 2)
	assert.Len(t, res.Created, 2)

	a, b := res.Routines[0], res.Routines[1]
	assert.Equal(t, "A", a.Group)
	assert.Equal(t, "B", b.Group)

	sa, sb := a.Sessions(), b.Sessions()
	require.Len(t, sa, 2)
	require.Len(t, sb, 2)
	for i := range sa {
		assert.Equal(t, sa[i].Day, sb[i].Day)
		assert.Equal(t, sa[i].Session.StartTime, sb[i].Session.StartTime)
		assert.Equal(t, sa[i].Session.EndTime, sb[i].Session.EndTime)
		assert.Equal(t, "Physics", sb[i].Session.Subject)
		assert.Equal(t, "Rahim", sb[i].Session.Teacher)
		assert.True(t, sa[i].Session.IsMerged)
		assert.True(t, sb[i].Session.IsMerged)
		assert.NotEqual(t, sa[i].Session.ID, sb[i].Session.ID)
		assert.Equal(t, sa[i].Session.ID, sb[i].Session.MergeGroup)
	}
	assert.Empty(t, CheckRoutines(res.Routines))
}

func TestGenerateBatchUsesBlockedTimes(t *testing.T) {
	var blocked []BlockedTime
	for _, d := range Weekdays {
		blocked = append(blocked, BlockedTime{Day: d, StartTime: "08:00", EndTime: "13:15"})
	}
	existing := emptyTarget("A")
	existing.Days = EmptyDays()
	g := newTestGenerator(23)

	res := g.GenerateBatch(BatchInput{
		Assignments: []Assignment{{
			Teacher:      "Rahim",
			BlockedTimes: blocked,
			Subjects: []SubjectAssignment{
				{Subject: "Math", TheoryCount: 2, Technologies: []string{"CST|1|1st|A", "not-a-technology"}},
			},
		}},
		Routines: []Routine{existing},
		Rooms:    testRooms,
	})

	assert.Empty(t, res.Created)
	require.Len(t, res.Failures, 3)
	reasons := map[string]int{}
	for _, f := range res.Failures {
		reasons[f.Reason]++
		if f.Reason == ReasonNoTheorySlot {
			assert.Equal(t, "r-A", f.RoutineID)
			assert.Equal(t, "A", f.Key.Group)
		}
	}
	assert.Equal(t, 2, reasons[ReasonNoTheorySlot])
	assert.Equal(t, 1, reasons[ReasonInvalidTechnology])
}

func TestMarkMerged(t *testing.T) {
	r := routineWith("r-a", "A", Sunday, session("a1", "08:00", "08:45", "Math", "Rahim", "101", Theory))

	assert.True(t, MarkMerged(&r, "a1"))
	assert.True(t, r.Days[0].Classes[0].IsMerged)
	assert.Equal(t, "a1", r.Days[0].Classes[0].MergeGroup)
	assert.False(t, MarkMerged(&r, "missing"))
}

func TestGenerateBatchPartnerListedBeforeItsGroup(t *testing.T) {
	const techA, techB = "CST|1|1st|A", "CST|1|1st|B"
	g := newTestGenerator(21)

	res := g.GenerateBatch(BatchInput{
		Assignments: []Assignment{{
			Teacher: "Rahim",
			Subjects: []SubjectAssignment{{
				Subject:      "Physics",
				TheoryCount:  2,
				Technologies: []string{techB, techA},
				MergedGroups: map[string][]string{techA: {techB}},
			}},
		}},
		Rooms: testRooms,
	})

	require.Empty(t, res.Failures)
	require.Len(t, res.Routines, 2)
	byGroup := map[string]Routine{}
	for _, r := range res.Routines {
		byGroup[r.Group] = r
	}
	sa, sb := byGroup["A"].Sessions(), byGroup["B"].Sessions()
	require.Len(t, sa, 2)
	require.Len(t, sb, 2)
	for i := range sb {
		assert.Equal(t, sa[i].Session.ID, sb[i].Session.MergeGroup)
		assert.Equal(t, sa[i].Session.StartTime, sb[i].Session.StartTime)
	}
	assert.Empty(t, CheckRoutines(res.Routines))
}

func TestMergeOwners(t *testing.T) {
	owners := mergeOwners(map[string][]string{
		"CST|1|1st|A": {"CST|1|1st|B", "cst|1|1st|a"},
		"CST|1|1st|C": {"CST|1|1st|B", "CST|1|1st|D"},
	})

	assert.Equal(t, map[string]string{
		"cst|1|1st|b": "CST|1|1st|A",
		"cst|1|1st|d": "CST|1|1st|C",
	}, owners)
}
