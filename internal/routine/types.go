package routine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SessionType distinguishes lectures from lab blocks.
type SessionType string

const (
	Theory SessionType = "Theory"
	Lab    SessionType = "Lab"
)

// RoomUnplaced marks a session whose time is fixed but which has no room yet.
const RoomUnplaced = "Unplaced"

// Unplaced reasons reported for units the engine could not schedule.
const (
	ReasonNoLabSlot    = "No Lab Slot/Teacher Busy"
	ReasonNoTheorySlot = "No Theory Slot/Teacher Busy"
)

// Session is one scheduled class occurrence.
type Session struct {
	ID          string      `json:"id"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	Subject     string      `json:"subject"`
	SubjectCode string      `json:"subjectCode"`
	Teacher     string      `json:"teacher"`
	Room        string      `json:"room"`
	Type        SessionType `json:"type"`
	IsMerged    bool        `json:"isMerged"`
	// MergeGroup links replicas of a combined class to the session they were copied from.
	MergeGroup string `json:"mergeGroup,omitempty"`
}

// Window returns the session's time window. Malformed times yield an invalid window.
func (s Session) Window() Window {
	w, err := NewWindow(s.StartTime, s.EndTime)
	if err != nil {
		return Window{Start: -1, End: -1}
	}
	return w
}

// HasRoom reports whether the session has a real room assigned.
func (s Session) HasRoom() bool {
	return s.Room != "" && s.Room != RoomUnplaced
}

// Day holds the sessions of one weekday sorted by start time.
type Day struct {
	Name    Weekday   `json:"name"`
	Classes []Session `json:"classes"`
}

func (d *Day) sortClasses() {
	sort.SliceStable(d.Classes, func(i, j int) bool {
		return d.Classes[i].Window().Start < d.Classes[j].Window().Start
	})
}

func (d *Day) add(s Session) {
	d.Classes = append(d.Classes, s)
	d.sortClasses()
}

func (d *Day) remove(id string) (Session, bool) {
	for i, s := range d.Classes {
		if s.ID == id {
			d.Classes = append(d.Classes[:i], d.Classes[i+1:]...)
			return s, true
		}
	}
	return Session{}, false
}

func (d Day) hasType(t SessionType) bool {
	for _, s := range d.Classes {
		if s.Type == t {
			return true
		}
	}
	return false
}

// RoutineKey identifies a routine: one department, semester, shift and group.
type RoutineKey struct {
	Department string `json:"department"`
	Semester   string `json:"semester"`
	Shift      Shift  `json:"shift"`
	Group      string `json:"group"`
}

// String renders the key as a technology id.
func (k RoutineKey) String() string {
	return strings.Join([]string{k.Department, k.Semester, string(k.Shift), k.Group}, "|")
}

// ParseTechnology parses a department|semester|shift|group id.
func ParseTechnology(id string) (RoutineKey, error) {
	parts := strings.Split(id, "|")
	if len(parts) != 4 {
		return RoutineKey{}, fmt.Errorf("technology id %q must have 4 parts", id)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return RoutineKey{}, fmt.Errorf("technology id %q has an empty part", id)
		}
	}
	return RoutineKey{Department: parts[0], Semester: parts[1], Shift: NormalizeShift(parts[2]), Group: parts[3]}, nil
}

func (k RoutineKey) sameAs(o RoutineKey) bool {
	return strings.EqualFold(k.Department, o.Department) &&
		strings.EqualFold(k.Semester, o.Semester) &&
		k.Shift == o.Shift &&
		strings.EqualFold(k.Group, o.Group)
}

// Routine is the weekly schedule of one group.
type Routine struct {
	ID          string    `json:"id"`
	Department  string    `json:"department"`
	Semester    string    `json:"semester"`
	Shift       Shift     `json:"shift"`
	Group       string    `json:"group"`
	Days        []Day     `json:"days"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Key returns the routine's identifying tuple.
func (r Routine) Key() RoutineKey {
	return RoutineKey{Department: r.Department, Semester: r.Semester, Shift: r.Shift, Group: r.Group}
}

// Clone deep-copies the routine so callers can mutate it freely.
func (r Routine) Clone() Routine {
	out := r
	out.Days = cloneDays(r.Days)
	return out
}

// Sessions returns every session with the day it belongs to.
func (r Routine) Sessions() []DaySession {
	var out []DaySession
	for _, d := range r.Days {
		for _, s := range d.Classes {
			out = append(out, DaySession{Day: d.Name, Session: s})
		}
	}
	return out
}

// DaySession pairs a session with its weekday.
type DaySession struct {
	Day     Weekday `json:"day"`
	Session Session `json:"session"`
}

// EmptyDays returns five empty teaching days.
func EmptyDays() []Day {
	days := make([]Day, len(Weekdays))
	for i, name := range Weekdays {
		days[i] = Day{Name: name, Classes: []Session{}}
	}
	return days
}

// normalizeDays aligns arbitrary stored days onto the five weekdays.
func normalizeDays(in []Day) []Day {
	days := EmptyDays()
	for _, d := range in {
		for i := range days {
			if strings.EqualFold(string(days[i].Name), string(d.Name)) {
				days[i].Classes = append(days[i].Classes, d.Classes...)
			}
		}
	}
	for i := range days {
		days[i].sortClasses()
	}
	return days
}

func cloneDays(in []Day) []Day {
	out := make([]Day, len(in))
	for i, d := range in {
		out[i] = Day{Name: d.Name, Classes: append([]Session{}, d.Classes...)}
	}
	return out
}

// LoadItem is a teaching requirement for one subject against one group.
type LoadItem struct {
	Subject     string `json:"subject"`
	SubjectCode string `json:"subjectCode"`
	Teacher     string `json:"teacher"`
	TheoryCount int    `json:"theoryCount"`
	LabCount    int    `json:"labCount"`
}

// PlaceableUnit is one contiguous block waiting to be placed.
type PlaceableUnit struct {
	Subject     string      `json:"subject"`
	SubjectCode string      `json:"subjectCode"`
	Teacher     string      `json:"teacher"`
	Type        SessionType `json:"type"`
	Duration    int         `json:"duration"`
	TotalLoad   int         `json:"totalLoad"`
}

// Constraint is a declared unavailability window for a teacher.
type Constraint struct {
	Teacher   string  `json:"teacher"`
	Day       Weekday `json:"day"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
}

// Room is a static teaching resource.
type Room struct {
	Name       string `json:"name"`
	IsLab      bool   `json:"isLab"`
	Department string `json:"department"`
	Location   string `json:"location"`
	Capacity   int    `json:"capacity"`
}

// Teacher is an instructor known to the generator.
type Teacher struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// Subject carries the department owning a subject.
type Subject struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	Department string `json:"department"`
}

// BlockedTime is a teacher's recurring unavailability in batch input.
type BlockedTime struct {
	Day       Weekday `json:"day"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
}

// Assignment is one teacher's load across technologies.
type Assignment struct {
	Teacher      string              `json:"teacher"`
	BlockedTimes []BlockedTime       `json:"blockedTimes"`
	Subjects     []SubjectAssignment `json:"subjects"`
}

// SubjectAssignment lists the technologies a subject is taught to.
type SubjectAssignment struct {
	Subject      string   `json:"subject"`
	SubjectCode  string   `json:"subjectCode"`
	TheoryCount  int      `json:"theoryCount"`
	LabCount     int      `json:"labCount"`
	Technologies []string `json:"technologies"`
	// MergedGroups maps a technology id to the partner ids taught jointly with it.
	MergedGroups map[string][]string `json:"mergedGroups,omitempty"`
}

// Options alter merge and duration behaviour of a run.
type Options struct {
	CombineClasses bool      `json:"combineClasses"`
	ReduceLab      bool      `json:"reduceLab"`
	LinkedRoutines []Routine `json:"linkedRoutines,omitempty"`
}

// SuggestionKind labels a suggestion for an unplaced unit.
type SuggestionKind string

const (
	SuggestMerge SuggestionKind = "merge"
	SuggestSlot  SuggestionKind = "slot"
)

// Suggestion is a hint for resolving an unplaced unit by hand.
type Suggestion struct {
	Kind      SuggestionKind `json:"kind"`
	Day       Weekday        `json:"day"`
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
	Room      string         `json:"room"`
	RoutineID string         `json:"routineId,omitempty"`
	Note      string         `json:"note,omitempty"`
}

// UnplacedItem is a unit the engine could not schedule.
type UnplacedItem struct {
	Subject     string       `json:"subject"`
	SubjectCode string       `json:"subjectCode"`
	Teacher     string       `json:"teacher"`
	Type        SessionType  `json:"type"`
	Duration    int          `json:"duration"`
	Reason      string       `json:"reason"`
	Suggestions []Suggestion `json:"suggestions"`
}
