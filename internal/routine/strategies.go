package routine

import "github.com/samber/lo"

// strategy is one placement attempt. Strategies are tried in order until one
// succeeds.
type strategy struct {
	name string
	try  func(r *run, u PlaceableUnit) (placement, bool)
}

var labStrategies = []strategy{
	{name: "lab_fresh_day", try: labFreshDay},
	{name: "lab_any_day", try: labAnyDay},
	{name: "lab_evict_theory", try: labEvictTheory},
	{name: "lab_reduced", try: labReduced},
	{name: "lab_roomless", try: labRoomless},
}

var theoryStrategies = []strategy{
	{name: "theory_adjacent", try: theoryAdjacent},
	{name: "theory_empty_day", try: theoryEmptyDay},
	{name: "theory_any_day", try: theoryAnyDay},
	{name: "theory_roomless", try: theoryRoomless},
}

func (r *run) daysWhere(pred func(Day) bool) []Weekday {
	return lo.Filter(r.g.shuffledDays(), func(name Weekday, _ int) bool {
		d := r.sched.day(name)
		return d != nil && pred(*d)
	})
}

// labFreshDay keeps at most one lab per day where possible.
func labFreshDay(r *run, u PlaceableUnit) (placement, bool) {
	days := r.daysWhere(func(d Day) bool { return !d.hasType(Lab) })
	return r.search(u, days, u.Duration, nil, false)
}

func labAnyDay(r *run, u PlaceableUnit) (placement, bool) {
	return r.search(u, r.g.shuffledDays(), u.Duration, nil, false)
}

// labEvictTheory clears movable theory sessions out of a three slot window.
// Evicted units go back on the theory queue.
func labEvictTheory(r *run, u PlaceableUnit) (placement, bool) {
	if u.Duration != 3 {
		return placement{}, false
	}
	grid := r.sched.grid
	for _, name := range r.g.shuffledDays() {
		day := r.sched.day(name)
		if day == nil {
			continue
		}
		for _, start := range r.g.slotOrder(grid.Len()-u.Duration+1, true) {
			slot, ok := grid.WindowAt(start, u.Duration)
			if !ok {
				continue
			}
			w := Window{Start: mustClock(slot.Start), End: mustClock(slot.End)}
			var evict []string
			movable := true
			for _, s := range day.Classes {
				if !s.Window().Overlaps(w) {
					continue
				}
				if s.Type != Theory || s.IsMerged {
					movable = false
					break
				}
				evict = append(evict, s.ID)
			}
			if !movable || len(evict) == 0 {
				continue
			}
			if !r.windowFree(u, name, w, evict) {
				continue
			}
			room, link, ok := r.pickRoom(u, name, w, evict)
			if !ok {
				continue
			}
			return placement{day: name, slot: start, duration: u.Duration, room: room, mergeWith: link, evict: evict}, true
		}
	}
	return placement{}, false
}

// labReduced shortens a three slot lab to two slots.
func labReduced(r *run, u PlaceableUnit) (placement, bool) {
	if u.Duration != 3 {
		return placement{}, false
	}
	short := u
	short.Duration = 2
	if p, ok := labFreshDay(r, short); ok {
		return p, true
	}
	return labAnyDay(r, short)
}

// labRoomless fixes the time and leaves the room for the repair engine.
func labRoomless(r *run, u PlaceableUnit) (placement, bool) {
	return r.search(u, r.g.shuffledDays(), u.Duration, nil, true)
}

// theoryAdjacent prefers windows touching an existing session of the group.
func theoryAdjacent(r *run, u PlaceableUnit) (placement, bool) {
	days := r.daysWhere(func(d Day) bool { return len(d.Classes) > 0 })
	return r.search(u, days, u.Duration, func(name Weekday, w Window) bool {
		return lo.SomeBy(r.sched.day(name).Classes, func(s Session) bool {
			sw := s.Window()
			return sw.End == w.Start || sw.Start == w.End
		})
	}, false)
}

func theoryEmptyDay(r *run, u PlaceableUnit) (placement, bool) {
	days := r.daysWhere(func(d Day) bool { return len(d.Classes) == 0 })
	return r.search(u, days, u.Duration, nil, false)
}

func theoryAnyDay(r *run, u PlaceableUnit) (placement, bool) {
	return r.search(u, r.g.shuffledDays(), u.Duration, nil, false)
}

func theoryRoomless(r *run, u PlaceableUnit) (placement, bool) {
	return r.search(u, r.g.shuffledDays(), u.Duration, nil, true)
}
