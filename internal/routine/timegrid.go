package routine

import (
	"fmt"
	"strings"
	"time"
)

// Weekday names a teaching day.
type Weekday string

const (
	Sunday    Weekday = "Sunday"
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
)

// Weekdays lists the teaching days in calendar order.
var Weekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday}

// ParseWeekday resolves a case-insensitive day name onto a teaching day.
func ParseWeekday(raw string) (Weekday, error) {
	d := canonicalDay(Weekday(strings.TrimSpace(raw)))
	for _, w := range Weekdays {
		if d == w {
			return w, nil
		}
	}
	return "", fmt.Errorf("%q is not a teaching day", raw)
}

// Shift selects one of the two fixed slot tables.
type Shift string

const (
	ShiftMorning Shift = "1st"
	ShiftDay     Shift = "2nd"
)

// SlotsPerShift is the number of teaching periods in a shift.
const SlotsPerShift = 7

// TimeSlot is one 45 minute period expressed as wall-clock strings.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var shiftTables = map[Shift][SlotsPerShift]TimeSlot{
	ShiftMorning: {
		{"08:00", "08:45"},
		{"08:45", "09:30"},
		{"09:30", "10:15"},
		{"10:15", "11:00"},
		{"11:00", "11:45"},
		{"11:45", "12:30"},
		{"12:30", "13:15"},
	},
	ShiftDay: {
		{"13:30", "14:15"},
		{"14:15", "15:00"},
		{"15:00", "15:45"},
		{"15:45", "16:30"},
		{"16:30", "17:15"},
		{"17:15", "18:00"},
		{"18:00", "18:45"},
	},
}

// NormalizeShift maps free-form shift labels onto a known shift.
// Unknown labels fall back to the morning table.
func NormalizeShift(raw string) Shift {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "2nd", "second", "day", "2":
		return ShiftDay
	default:
		return ShiftMorning
	}
}

// SlotsFor returns a copy of the slot table for the shift.
func SlotsFor(shift Shift) []TimeSlot {
	table, ok := shiftTables[shift]
	if !ok {
		table = shiftTables[ShiftMorning]
	}
	out := make([]TimeSlot, SlotsPerShift)
	copy(out, table[:])
	return out
}

var clockLayouts = []string{"15:04", "3:04 PM", "03:04 PM", "3:04PM", "03:04PM"}

// ParseClock converts a wall-clock string into minutes since midnight.
func ParseClock(raw string) (int, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid clock value %q", raw)
}

func mustClock(raw string) int {
	v, err := ParseClock(raw)
	if err != nil {
		return -1
	}
	return v
}

// Window is a half-open [Start, End) interval in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// NewWindow parses a start/end pair.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e <= s {
		return Window{}, fmt.Errorf("window %s-%s ends before it starts", start, end)
	}
	return Window{Start: s, End: e}, nil
}

// Overlaps reports whether two windows share any minute.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return w.Start >= 0 && w.End > w.Start
}

// Grid is the slot table of one shift with index lookups.
type Grid struct {
	shift Shift
	slots []TimeSlot
	index map[int]int
}

// NewGrid builds the grid for a shift.
func NewGrid(shift Shift) Grid {
	slots := SlotsFor(shift)
	index := make(map[int]int, len(slots))
	for i, slot := range slots {
		index[mustClock(slot.Start)] = i
	}
	return Grid{shift: shift, slots: slots, index: index}
}

// Shift returns the grid's shift.
func (g Grid) Shift() Shift { return g.shift }

// Len returns the number of slots.
func (g Grid) Len() int { return len(g.slots) }

// Slot returns the i-th slot.
func (g Grid) Slot(i int) TimeSlot { return g.slots[i] }

// IndexOf returns the slot index starting at the clock value, or -1.
func (g Grid) IndexOf(clock string) int {
	m, err := ParseClock(clock)
	if err != nil {
		return -1
	}
	if i, ok := g.index[m]; ok {
		return i
	}
	return -1
}

// WindowAt returns the start/end strings for a block of duration slots
// beginning at slot start. ok is false when the block runs past the shift.
func (g Grid) WindowAt(start, duration int) (TimeSlot, bool) {
	if start < 0 || duration < 1 || start+duration > len(g.slots) {
		return TimeSlot{}, false
	}
	return TimeSlot{Start: g.slots[start].Start, End: g.slots[start+duration-1].End}, true
}

// Span returns how many slots a session occupies, or 0 if it is off-grid.
func (g Grid) Span(start, end string) int {
	from := g.IndexOf(start)
	if from < 0 {
		return 0
	}
	e := mustClock(end)
	for i := from; i < len(g.slots); i++ {
		if mustClock(g.slots[i].End) == e {
			return i - from + 1
		}
	}
	return 0
}
