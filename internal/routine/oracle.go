package routine

import (
	"strings"

	"github.com/samber/lo"
)

// MergeKey describes the session a combined class may merge into.
type MergeKey struct {
	Subject string
	Type    SessionType
}

type externalSession struct {
	Session
	RoutineID string
}

// schedule is the routine under construction. One run owns it exclusively.
type schedule struct {
	key  RoutineKey
	grid Grid
	days []Day
}

func newSchedule(key RoutineKey, days []Day) *schedule {
	return &schedule{key: key, grid: NewGrid(key.Shift), days: normalizeDays(days)}
}

func (s *schedule) day(name Weekday) *Day {
	for i := range s.days {
		if sameDay(s.days[i].Name, name) {
			return &s.days[i]
		}
	}
	return nil
}

func (s *schedule) find(id string) (Weekday, Session, bool) {
	for _, d := range s.days {
		for _, c := range d.Classes {
			if c.ID == id {
				return d.Name, c, true
			}
		}
	}
	return "", Session{}, false
}

// Oracle answers conflict questions for one day/time window. It never mutates
// the schedules it reads.
type Oracle struct {
	constraints []Constraint
	external    map[Weekday][]externalSession
	linked      []Routine
	current     *schedule
}

// NewOracle builds an oracle over every persisted routine except target, whose
// days are treated as the schedule under construction.
func NewOracle(target Routine, routines []Routine, constraints []Constraint, linked []Routine) *Oracle {
	return newOracle(newSchedule(target.Key(), target.Days), routines, constraints, linked)
}

func newOracle(current *schedule, routines []Routine, constraints []Constraint, linked []Routine) *Oracle {
	o := &Oracle{
		constraints: constraints,
		external:    make(map[Weekday][]externalSession),
		linked:      linked,
		current:     current,
	}
	for _, r := range routines {
		if r.Key().sameAs(current.key) {
			continue
		}
		for _, d := range r.Days {
			name := canonicalDay(d.Name)
			for _, s := range d.Classes {
				o.external[name] = append(o.external[name], externalSession{Session: s, RoutineID: r.ID})
			}
		}
	}
	return o
}

// IsTeacherBusy reports whether the teacher is committed during the window.
// With a merge key, an identical session of the same teacher, subject and type
// in another routine is a valid merge, as long as at most one such session exists.
func (o *Oracle) IsTeacherBusy(teacher string, day Weekday, w Window, merge *MergeKey, ignore ...string) bool {
	for _, c := range o.constraints {
		if !sameName(c.Teacher, teacher) || !sameDay(c.Day, day) {
			continue
		}
		cw, err := NewWindow(c.StartTime, c.EndTime)
		if err == nil && cw.Overlaps(w) {
			return true
		}
	}

	merges := 0
	for _, e := range o.external[canonicalDay(day)] {
		if lo.Contains(ignore, e.ID) || !sameName(e.Teacher, teacher) {
			continue
		}
		ew := e.Window()
		if !ew.Overlaps(w) {
			continue
		}
		if merge != nil && ew == w && e.Type == merge.Type && sameName(e.Subject, merge.Subject) {
			merges++
			if merges > 1 {
				return true
			}
			continue
		}
		return true
	}

	if d := o.current.day(day); d != nil {
		for _, s := range d.Classes {
			if lo.Contains(ignore, s.ID) {
				continue
			}
			if sameName(s.Teacher, teacher) && s.Window().Overlaps(w) {
				return true
			}
		}
	}
	return false
}

// MergeCandidate returns a session in another routine that an identical
// combined class could join. The joining class must take over its room, even
// when that room is still unassigned.
func (o *Oracle) MergeCandidate(teacher string, day Weekday, w Window, merge MergeKey) (Session, string, bool) {
	for _, e := range o.external[canonicalDay(day)] {
		if !sameName(e.Teacher, teacher) || e.Type != merge.Type || !sameName(e.Subject, merge.Subject) {
			continue
		}
		if e.Window() == w {
			return e.Session, e.RoutineID, true
		}
	}
	return Session{}, "", false
}

// IsRoomBusy reports whether the room hosts any other session during the window.
// Merges never exempt rooms; callers reusing a merge room pass its id in ignore.
func (o *Oracle) IsRoomBusy(room string, day Weekday, w Window, ignore ...string) bool {
	if room == "" || room == RoomUnplaced {
		return false
	}
	for _, e := range o.external[canonicalDay(day)] {
		if lo.Contains(ignore, e.ID) {
			continue
		}
		if sameName(e.Room, room) && e.Window().Overlaps(w) {
			return true
		}
	}
	if d := o.current.day(day); d != nil {
		for _, s := range d.Classes {
			if lo.Contains(ignore, s.ID) {
				continue
			}
			if sameName(s.Room, room) && s.Window().Overlaps(w) {
				return true
			}
		}
	}
	return false
}

// IsGroupBusy reports whether the group already attends a class in the window.
func (o *Oracle) IsGroupBusy(day Weekday, w Window, ignore ...string) bool {
	d := o.current.day(day)
	if d == nil {
		return true
	}
	return lo.SomeBy(d.Classes, func(s Session) bool {
		return !lo.Contains(ignore, s.ID) && s.Window().Overlaps(w)
	})
}

// IsSubjectAlreadyOnDay enforces one occurrence of a subject per day per group.
func (o *Oracle) IsSubjectAlreadyOnDay(day Weekday, subject string, ignore ...string) bool {
	d := o.current.day(day)
	if d == nil {
		return false
	}
	return lo.SomeBy(d.Classes, func(s Session) bool {
		return !lo.Contains(ignore, s.ID) && sameName(s.Subject, subject)
	})
}

// IsLinkedBusy reports whether any linked partner routine is occupied in the
// window or already holds the subject that day.
func (o *Oracle) IsLinkedBusy(day Weekday, w Window, subject string) bool {
	for _, r := range o.linked {
		for _, d := range r.Days {
			if !sameDay(d.Name, day) {
				continue
			}
			for _, s := range d.Classes {
				if s.Window().Overlaps(w) || sameName(s.Subject, subject) {
					return true
				}
			}
		}
	}
	return false
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normalizedName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sameDay(a, b Weekday) bool {
	return sameName(string(a), string(b))
}

func canonicalDay(d Weekday) Weekday {
	for _, w := range Weekdays {
		if sameDay(w, d) {
			return w
		}
	}
	return d
}
