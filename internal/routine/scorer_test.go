package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLabPeriods(t *testing.T) {
	cases := map[int][]int{
		0: nil,
		2: {2},
		3: {3},
		4: {2, 2},
		5: {3, 2},
		6: {3, 3},
		7: {3, 3, 1},
	}
	for in, want := range cases {
		assert.Equal(t, want, SplitLabPeriods(in), "periods %d", in)
	}
}

func TestExpandLoadTheoryBeforeLab(t *testing.T) {
	units := ExpandLoad([]LoadItem{{Subject: "Physics", Teacher: "Rahim", TheoryCount: 2, LabCount: 3}})

	assert.Len(t, units, 3)
	assert.Equal(t, Theory, units[0].Type)
	assert.Equal(t, Theory, units[1].Type)
	assert.Equal(t, Lab, units[2].Type)
	assert.Equal(t, 3, units[2].Duration)
	for _, u := range units {
		assert.Equal(t, 5, u.TotalLoad)
	}
}

func TestRoomScorerTheory(t *testing.T) {
	s := NewRoomScorer(nil, false)
	room := Room{Name: "301", Department: "CST", Location: "Computer Building"}

	assert.Equal(t, 150.0, s.Score(room, ScoreContext{Department: "Computer Science and Technology"}))
	assert.Equal(t, 155.0, s.Score(room, ScoreContext{Department: "CST", PreviousRoom: "301"}))
	assert.Equal(t, 0.0, s.Score(room, ScoreContext{Department: "Civil Technology"}))
	assert.Equal(t, Disqualified, s.Score(Room{Name: "Lab-1", IsLab: true}, ScoreContext{Department: "CST"}))
}

func TestRoomScorerLab(t *testing.T) {
	s := NewRoomScorer(nil, false)
	lab := Room{Name: "Lab-1", IsLab: true, Department: "ET"}

	assert.Equal(t, 500.0, s.Score(lab, ScoreContext{IsLab: true, Department: "CST", SubjectDepartment: "Electronics Technology"}))
	assert.Equal(t, 100.0, s.Score(lab, ScoreContext{IsLab: true, Department: "ET"}))
	assert.Equal(t, -100.0, s.Score(lab, ScoreContext{IsLab: true, Department: "CST"}))
	assert.Equal(t, Disqualified, s.Score(Room{Name: "101"}, ScoreContext{IsLab: true}))
}

func TestRoomScorerCombinedPrefersCapacity(t *testing.T) {
	s := NewRoomScorer(nil, true)
	rooms := []Room{
		{Name: "small", Capacity: 30},
		{Name: "lab", IsLab: true, Capacity: 200},
		{Name: "large", Capacity: 90},
	}

	ranked := s.Rank(rooms, ScoreContext{Department: "Civil Technology"})
	assert.Len(t, ranked, 2)
	assert.Equal(t, "large", ranked[0].Name)
	assert.Equal(t, "small", ranked[1].Name)
}
