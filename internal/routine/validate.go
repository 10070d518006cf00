package routine

import (
	"fmt"
	"sort"
)

// ViolationKind names a broken scheduling rule.
type ViolationKind string

const (
	ViolationGroupOverlap    ViolationKind = "group_overlap"
	ViolationTeacherOverlap  ViolationKind = "teacher_overlap"
	ViolationRoomOverlap     ViolationKind = "room_overlap"
	ViolationSubjectRepeated ViolationKind = "subject_repeated"
)

// Violation is one conflict found by CheckRoutines.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	Day        Weekday       `json:"day"`
	RoutineIDs []string      `json:"routineIds"`
	SessionIDs []string      `json:"sessionIds"`
	Detail     string        `json:"detail"`
}

type located struct {
	routineID string
	session   Session
	window    Window
}

// CheckRoutines audits a set of routines. Within a routine, sessions must not
// overlap and a subject appears at most once a day. Across routines, a teacher
// may only be double booked by merged sessions of the same subject and type,
// and a room only by replicas of one merged session.
func CheckRoutines(routines []Routine) []Violation {
	var out []Violation
	byDay := make(map[Weekday][]located)

	for _, r := range routines {
		for _, d := range r.Days {
			day := canonicalDay(d.Name)
			subjects := make(map[string]string)
			for i, s := range d.Classes {
				w := s.Window()
				for _, o := range d.Classes[i+1:] {
					if w.Overlaps(o.Window()) {
						out = append(out, Violation{
							Kind:       ViolationGroupOverlap,
							Day:        day,
							RoutineIDs: []string{r.ID},
							SessionIDs: []string{s.ID, o.ID},
							Detail:     fmt.Sprintf("%s overlaps %s", s.Subject, o.Subject),
						})
					}
				}
				key := normalizedName(s.Subject)
				if first, dup := subjects[key]; dup {
					out = append(out, Violation{
						Kind:       ViolationSubjectRepeated,
						Day:        day,
						RoutineIDs: []string{r.ID},
						SessionIDs: []string{first, s.ID},
						Detail:     fmt.Sprintf("%s scheduled twice", s.Subject),
					})
				} else {
					subjects[key] = s.ID
				}
				byDay[day] = append(byDay[day], located{routineID: r.ID, session: s, window: w})
			}
		}
	}

	for _, day := range Weekdays {
		entries := byDay[day]
		for i, a := range entries {
			for _, b := range entries[i+1:] {
				if a.routineID == b.routineID || !a.window.Overlaps(b.window) {
					continue
				}
				if sameName(a.session.Teacher, b.session.Teacher) && !mergedPair(a.session, b.session) {
					out = append(out, pairViolation(ViolationTeacherOverlap, day, a, b, a.session.Teacher))
				}
				if a.session.HasRoom() && sameName(a.session.Room, b.session.Room) && !samePhysical(a, b) {
					out = append(out, pairViolation(ViolationRoomOverlap, day, a, b, a.session.Room))
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func mergedPair(a, b Session) bool {
	return a.IsMerged && b.IsMerged && a.Type == b.Type && sameName(a.Subject, b.Subject)
}

func samePhysical(a, b located) bool {
	return mergedPair(a.session, b.session) && a.window == b.window && sameName(a.session.Teacher, b.session.Teacher)
}

func pairViolation(kind ViolationKind, day Weekday, a, b located, what string) Violation {
	return Violation{
		Kind:       kind,
		Day:        day,
		RoutineIDs: []string{a.routineID, b.routineID},
		SessionIDs: []string{a.session.ID, b.session.ID},
		Detail:     fmt.Sprintf("%s double booked %s-%s", what, a.session.StartTime, a.session.EndTime),
	}
}
