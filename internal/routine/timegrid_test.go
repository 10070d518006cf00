package routine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	v, err := ParseClock("08:45")
	require.NoError(t, err)
	assert.Equal(t, 525, v)

	v, err = ParseClock("1:30 pm")
	require.NoError(t, err)
	assert.Equal(t, 810, v)

	_, err = ParseClock("soon")
	assert.Error(t, err)
}

func TestWindowOverlapIsHalfOpen(t *testing.T) {
	a, err := NewWindow("08:00", "08:45")
	require.NoError(t, err)
	b, err := NewWindow("08:45", "09:30")
	require.NoError(t, err)
	c, err := NewWindow("08:30", "09:00")
	require.NoError(t, err)

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))

	_, err = NewWindow("09:00", "08:00")
	assert.Error(t, err)
}

func TestGridLookups(t *testing.T) {
	g := NewGrid(ShiftMorning)
	assert.Equal(t, SlotsPerShift, g.Len())
	assert.Equal(t, 1, g.IndexOf("08:45"))
	assert.Equal(t, -1, g.IndexOf("08:50"))

	slot, ok := g.WindowAt(4, 3)
	require.True(t, ok)
	assert.Equal(t, TimeSlot{Start: "11:00", End: "13:15"}, slot)

	_, ok = g.WindowAt(5, 3)
	assert.False(t, ok)

	assert.Equal(t, 3, g.Span("08:00", "10:15"))
	assert.Equal(t, 0, g.Span("08:00", "10:00"))
}

func TestNormalizeShift(t *testing.T) {
	assert.Equal(t, ShiftDay, NormalizeShift(" 2nd "))
	assert.Equal(t, ShiftDay, NormalizeShift("Day"))
	assert.Equal(t, ShiftMorning, NormalizeShift(""))

	day := NewGrid(ShiftDay)
	assert.Equal(t, "13:30", day.Slot(0).Start)
	assert.Equal(t, "18:45", day.Slot(day.Len()-1).End)
}

func TestParseTechnology(t *testing.T) {
	key, err := ParseTechnology("CST| 3 |2nd|B")
	require.NoError(t, err)
	assert.Equal(t, RoutineKey{Department: "CST", Semester: "3", Shift: ShiftDay, Group: "B"}, key)

	_, err = ParseTechnology("CST|3|B")
	assert.Error(t, err)
	_, err = ParseTechnology("CST||1st|B")
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday(" tuesday ")
	require.NoError(t, err)
	assert.Equal(t, Tuesday, d)

	_, err = ParseWeekday("Friday")
	assert.Error(t, err)
}
