package routine

import "go.uber.org/zap"

// Compact shifts sessions of the target routine earlier to close gaps, as long
// as teacher, room, group and linked partners stay free. Merged sessions never
// move. It returns the compacted routine and the number of moves.
func (g *Generator) Compact(target Routine, routines []Routine, constraints []Constraint, linked []Routine) (Routine, int) {
	r := g.newRun(GenerateInput{
		Target:      target,
		Routines:    routines,
		Constraints: constraints,
		Options:     Options{LinkedRoutines: linked},
	})
	moves := r.compact()
	out := target.Clone()
	out.Days = r.sched.days
	if moves > 0 {
		out.LastUpdated = g.now()
	}
	g.logger.Debug("routine compacted", zap.String("routine", target.Key().String()), zap.Int("moves", moves))
	return out, moves
}

func (r *run) compact() int {
	moves := 0
	for i := range r.sched.days {
		moves += r.compactDay(&r.sched.days[i])
	}
	return moves
}

// compactDay repeats single moves until a full pass changes nothing. Every move
// strictly decreases a start time, so the loop terminates.
func (r *run) compactDay(d *Day) int {
	grid := r.sched.grid
	moves := 0
	for {
		moved := false
		for i := 0; i+1 < len(d.Classes); i++ {
			prev, next := d.Classes[i], d.Classes[i+1]
			if next.IsMerged {
				continue
			}
			pw, nw := prev.Window(), next.Window()
			if !pw.Valid() || !nw.Valid() || nw.Start <= pw.End {
				continue
			}
			span := grid.Span(next.StartTime, next.EndTime)
			start := grid.IndexOf(prev.EndTime)
			if span == 0 || start < 0 {
				continue
			}
			slot, ok := grid.WindowAt(start, span)
			if !ok {
				continue
			}
			w := Window{Start: mustClock(slot.Start), End: mustClock(slot.End)}
			if !r.canMove(next, d.Name, w) {
				continue
			}
			d.Classes[i+1].StartTime = slot.Start
			d.Classes[i+1].EndTime = slot.End
			d.sortClasses()
			moves++
			moved = true
			break
		}
		if !moved {
			return moves
		}
	}
}

func (r *run) canMove(s Session, day Weekday, w Window) bool {
	o := r.oracle
	return !o.IsGroupBusy(day, w, s.ID) &&
		!o.IsTeacherBusy(s.Teacher, day, w, nil, s.ID) &&
		!o.IsRoomBusy(s.Room, day, w, s.ID) &&
		!o.IsLinkedBusy(day, w, "")
}
