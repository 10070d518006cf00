package routine

const maxMergeSuggestions = 3

const noteSubjectRepeated = "subject already scheduled that day"

// suggest lists hints for an unplaced unit: sessions in other routines it could
// be merged into, then the first slot that ignores the one-subject-per-day rule.
func (r *run) suggest(item UnplacedItem) []Suggestion {
	out := []Suggestion{}
	u := PlaceableUnit{
		Subject:     item.Subject,
		SubjectCode: item.SubjectCode,
		Teacher:     item.Teacher,
		Type:        item.Type,
		Duration:    item.Duration,
	}

	for _, day := range Weekdays {
		for _, e := range r.oracle.external[day] {
			if len(out) >= maxMergeSuggestions {
				break
			}
			if !sameName(e.Teacher, u.Teacher) || !sameName(e.Subject, u.Subject) || e.Type != u.Type {
				continue
			}
			w := e.Window()
			if !w.Valid() || r.oracle.IsGroupBusy(day, w) || r.oracle.IsSubjectAlreadyOnDay(day, u.Subject) {
				continue
			}
			out = append(out, Suggestion{
				Kind:      SuggestMerge,
				Day:       day,
				StartTime: e.StartTime,
				EndTime:   e.EndTime,
				Room:      e.Room,
				RoutineID: e.RoutineID,
			})
		}
	}

	if s, ok := r.slotSuggestion(u); ok {
		out = append(out, s)
	}
	return out
}

func (r *run) slotSuggestion(u PlaceableUnit) (Suggestion, bool) {
	grid := r.sched.grid
	for _, day := range Weekdays {
		for start := 0; start+u.Duration <= grid.Len(); start++ {
			slot, ok := grid.WindowAt(start, u.Duration)
			if !ok {
				continue
			}
			w := Window{Start: mustClock(slot.Start), End: mustClock(slot.End)}
			if r.oracle.IsGroupBusy(day, w) ||
				r.oracle.IsTeacherBusy(u.Teacher, day, w, nil) ||
				r.oracle.IsLinkedBusy(day, w, "") {
				continue
			}
			s := Suggestion{Kind: SuggestSlot, Day: day, StartTime: slot.Start, EndTime: slot.End, Room: RoomUnplaced}
			if room, _, ok := r.pickRoom(u, day, w, nil); ok {
				s.Room = room
			}
			if r.oracle.IsSubjectAlreadyOnDay(day, u.Subject) {
				s.Note = noteSubjectRepeated
			}
			return s, true
		}
	}
	return Suggestion{}, false
}
