package routine

import (
	"fmt"

	"go.uber.org/zap"
)

// Repair actions recorded in a RefactorResult.
const (
	ActionReduceLab  = "reduce_lab"
	ActionAssignRoom = "assign_room"
	ActionRelocate   = "relocate"
)

// MessageNoChanges is returned when a repair found nothing to fix.
const MessageNoChanges = "no changes needed"

// RefactorConfig drives the repair engine. Routines holds every persisted
// routine used as an external conflict source.
type RefactorConfig struct {
	ReduceLab        bool
	TargetDepartment string
	Rooms            []Room
	Routines         []Routine
	Constraints      []Constraint
}

// RefactorChange describes one repair.
type RefactorChange struct {
	RoutineID string  `json:"routineId"`
	SessionID string  `json:"sessionId"`
	Action    string  `json:"action"`
	Day       Weekday `json:"day"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

// RefactorResult carries the repaired routines and what changed.
type RefactorResult struct {
	Routines []Routine        `json:"routines"`
	Changes  int              `json:"changes"`
	Log      []RefactorChange `json:"log"`
	Message  string           `json:"message"`
}

// Refactor shortens three period labs of the target department when asked and
// gives every roomless session a room, moving it elsewhere in the week if its
// current time has no free room. Replicas of a combined class are repaired
// together; persisted routines holding such replicas join the result.
func (g *Generator) Refactor(routines []Routine, cfg RefactorConfig) RefactorResult {
	working := withMergePartners(routines, cfg.Routines)
	for i := range working {
		working[i] = working[i].Clone()
		working[i].Days = normalizeDays(working[i].Days)
	}
	var log []RefactorChange

	if cfg.ReduceLab {
		matched := make([]bool, len(working))
		groups := make(map[string]bool)
		for i, r := range working {
			matched[i] = cfg.TargetDepartment == "" || g.departments.Match(r.Department, cfg.TargetDepartment)
			if !matched[i] {
				continue
			}
			for _, d := range r.Days {
				for _, c := range d.Classes {
					if c.Type == Lab && c.IsMerged && c.MergeGroup != "" {
						groups[c.MergeGroup] = true
					}
				}
			}
		}
		for i := range working {
			inScope := matched[i]
			log = append(log, g.reduceLabs(&working[i], func(s Session) bool {
				return inScope || (s.IsMerged && groups[s.MergeGroup])
			})...)
		}
	}

	repaired := make(map[string]bool)
	for i := range working {
		log = append(log, g.repairRooms(working, i, cfg, repaired)...)
	}

	changed := make(map[string]bool, len(log))
	for _, c := range log {
		changed[c.RoutineID] = true
	}
	now := g.now()
	for i := range working {
		if changed[working[i].ID] {
			working[i].LastUpdated = now
		}
	}

	res := RefactorResult{Routines: working, Changes: len(log), Log: log, Message: MessageNoChanges}
	if res.Log == nil {
		res.Log = []RefactorChange{}
	}
	if res.Changes > 0 {
		res.Message = fmt.Sprintf("%d changes applied", res.Changes)
	}
	g.logger.Info("routines refactored", zap.Int("routines", len(working)), zap.Int("changes", res.Changes))
	return res
}

// withMergePartners appends the persisted routines that share a merge group
// with the requested ones, after them and in persisted order.
func withMergePartners(routines, persisted []Routine) []Routine {
	out := append([]Routine{}, routines...)
	ids := make(map[string]bool, len(routines))
	groups := make(map[string]bool)
	for _, r := range routines {
		ids[r.ID] = true
		for _, g := range mergeGroupsOf(r) {
			groups[g] = true
		}
	}
	if len(groups) == 0 {
		return out
	}
	for _, r := range persisted {
		if ids[r.ID] {
			continue
		}
		for _, g := range mergeGroupsOf(r) {
			if groups[g] {
				ids[r.ID] = true
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func mergeGroupsOf(r Routine) []string {
	var out []string
	for _, d := range r.Days {
		for _, s := range d.Classes {
			if s.IsMerged && s.MergeGroup != "" {
				out = append(out, s.MergeGroup)
			}
		}
	}
	return out
}

// externalFor merges persisted routines with the in-flight copies, preferring
// the latter, and drops the routine at index skip.
func externalFor(working []Routine, skip int, persisted []Routine) []Routine {
	ids := make(map[string]bool, len(working))
	out := make([]Routine, 0, len(working)+len(persisted))
	for i, r := range working {
		ids[r.ID] = true
		if i != skip {
			out = append(out, r)
		}
	}
	for _, r := range persisted {
		if !ids[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (g *Generator) reduceLabs(r *Routine, inScope func(Session) bool) []RefactorChange {
	grid := NewGrid(NormalizeShift(string(r.Shift)))
	var log []RefactorChange
	for di := range r.Days {
		for si := range r.Days[di].Classes {
			s := &r.Days[di].Classes[si]
			if s.Type != Lab || grid.Span(s.StartTime, s.EndTime) != 3 || !inScope(*s) {
				continue
			}
			start := grid.IndexOf(s.StartTime)
			from := s.StartTime + "-" + s.EndTime
			s.EndTime = grid.Slot(start + 1).End
			log = append(log, RefactorChange{
				RoutineID: r.ID,
				SessionID: s.ID,
				Action:    ActionReduceLab,
				Day:       r.Days[di].Name,
				From:      from,
				To:        s.StartTime + "-" + s.EndTime,
			})
		}
	}
	return log
}

func (g *Generator) repairRun(working []Routine, idx int, cfg RefactorConfig) *run {
	return g.newRun(GenerateInput{
		Target:      working[idx],
		Routines:    externalFor(working, idx, cfg.Routines),
		Constraints: cfg.Constraints,
		Rooms:       cfg.Rooms,
	})
}

// repairRooms fixes the roomless sessions of working[idx]. Merge groups are
// handed to repairGroup once and recorded in repaired.
func (g *Generator) repairRooms(working []Routine, idx int, cfg RefactorConfig, repaired map[string]bool) []RefactorChange {
	var pending []Session
	for _, d := range working[idx].Days {
		for _, s := range d.Classes {
			if s.Room == RoomUnplaced {
				pending = append(pending, s)
			}
		}
	}
	if len(pending) == 0 {
		return nil
	}

	r := g.repairRun(working, idx, cfg)
	var log []RefactorChange
	for _, s := range pending {
		if s.IsMerged && s.MergeGroup != "" {
			if repaired[s.MergeGroup] {
				continue
			}
			repaired[s.MergeGroup] = true
			if members := mergeMembers(working, s.MergeGroup); len(members) > 1 {
				working[idx].Days = r.sched.days
				log = append(log, g.repairGroup(working, members, cfg)...)
				r = g.repairRun(working, idx, cfg)
				continue
			}
		}
		if c, ok := r.repairSession(s.ID); ok {
			c.RoutineID = working[idx].ID
			log = append(log, c)
		}
	}
	working[idx].Days = r.sched.days
	return log
}

// mergeMember is one replica of a combined class.
type mergeMember struct {
	index int
	id    string
}

func mergeMembers(working []Routine, group string) []mergeMember {
	var out []mergeMember
	for i, r := range working {
		for _, d := range r.Days {
			for _, s := range d.Classes {
				if s.IsMerged && s.MergeGroup == group {
					out = append(out, mergeMember{index: i, id: s.ID})
				}
			}
		}
	}
	return out
}

// repairGroup gives every replica of a combined class the same room, or moves
// all of them to the same new time. Replicas stay untouched when neither works.
func (g *Generator) repairGroup(working []Routine, members []mergeMember, cfg RefactorConfig) []RefactorChange {
	runs := make([]*run, len(members))
	ignore := make([]string, len(members))
	byIndex := make(map[int]*run)
	for k, m := range members {
		if byIndex[m.index] == nil {
			byIndex[m.index] = g.repairRun(working, m.index, cfg)
		}
		runs[k] = byIndex[m.index]
		ignore[k] = m.id
	}
	lead := runs[0]
	dayName, s, ok := lead.sched.find(members[0].id)
	if !ok {
		return nil
	}
	u := PlaceableUnit{Subject: s.Subject, SubjectCode: s.SubjectCode, Teacher: s.Teacher, Type: s.Type}

	aligned := true
	current := ""
	for k, m := range members {
		d, c, ok := runs[k].sched.find(m.id)
		if !ok || !sameDay(d, dayName) || c.Window() != s.Window() {
			aligned = false
			break
		}
		if c.HasRoom() && current == "" {
			current = c.Room
		}
	}

	var log []RefactorChange
	commit := func() {
		for idx, r := range byIndex {
			working[idx].Days = r.sched.days
		}
	}

	if w := s.Window(); aligned && w.Valid() {
		room, ok := current, current != "" && !lead.oracle.IsRoomBusy(current, dayName, w, ignore...)
		if !ok {
			room, ok = lead.freeRoom(u, dayName, w, ignore)
		}
		if ok {
			for k, m := range members {
				day := runs[k].sched.day(dayName)
				for i := range day.Classes {
					c := &day.Classes[i]
					if c.ID != m.id || sameName(c.Room, room) {
						continue
					}
					log = append(log, RefactorChange{
						RoutineID: working[m.index].ID,
						SessionID: m.id,
						Action:    ActionAssignRoom,
						Day:       dayName,
						From:      c.Room,
						To:        room,
					})
					c.Room = room
				}
			}
			commit()
			return log
		}
	}

	duration := lead.sched.grid.Span(s.StartTime, s.EndTime)
	if duration == 0 {
		duration = 1
		if s.Type == Lab {
			duration = 2
		}
	}
	grid := lead.sched.grid
	for _, name := range Weekdays {
		for start := 0; start+duration <= grid.Len(); start++ {
			slot, _ := grid.WindowAt(start, duration)
			w := Window{Start: mustClock(slot.Start), End: mustClock(slot.End)}
			free := true
			for _, r := range byIndex {
				if !r.windowFree(u, name, w, ignore) {
					free = false
					break
				}
			}
			if !free {
				continue
			}
			room, ok := lead.freeRoom(u, name, w, ignore)
			if !ok {
				continue
			}
			for k, m := range members {
				from, moved, _ := runs[k].sched.find(m.id)
				runs[k].sched.day(from).remove(m.id)
				log = append(log, RefactorChange{
					RoutineID: working[m.index].ID,
					SessionID: m.id,
					Action:    ActionRelocate,
					Day:       name,
					From:      fmt.Sprintf("%s %s-%s", from, moved.StartTime, moved.EndTime),
					To:        fmt.Sprintf("%s %s-%s %s", name, slot.Start, slot.End, room),
				})
				moved.StartTime, moved.EndTime, moved.Room = slot.Start, slot.End, room
				runs[k].sched.day(name).add(moved)
			}
			commit()
			return log
		}
	}
	return nil
}

func (r *run) repairSession(id string) (RefactorChange, bool) {
	dayName, s, ok := r.sched.find(id)
	if !ok {
		return RefactorChange{}, false
	}
	u := PlaceableUnit{Subject: s.Subject, SubjectCode: s.SubjectCode, Teacher: s.Teacher, Type: s.Type}
	ignore := []string{s.ID}

	if w := s.Window(); w.Valid() {
		if room, ok := r.freeRoom(u, dayName, w, ignore); ok {
			day := r.sched.day(dayName)
			for i := range day.Classes {
				if day.Classes[i].ID == id {
					day.Classes[i].Room = room
				}
			}
			return RefactorChange{SessionID: id, Action: ActionAssignRoom, Day: dayName, From: RoomUnplaced, To: room}, true
		}
	}

	duration := r.sched.grid.Span(s.StartTime, s.EndTime)
	if duration == 0 {
		duration = 1
		if s.Type == Lab {
			duration = 2
		}
	}
	grid := r.sched.grid
	for _, name := range Weekdays {
		for start := 0; start+duration <= grid.Len(); start++ {
			slot, _ := grid.WindowAt(start, duration)
			w := Window{Start: mustClock(slot.Start), End: mustClock(slot.End)}
			if !r.windowFree(u, name, w, ignore) {
				continue
			}
			room, ok := r.freeRoom(u, name, w, ignore)
			if !ok {
				continue
			}
			from := fmt.Sprintf("%s %s-%s", dayName, s.StartTime, s.EndTime)
			r.sched.day(dayName).remove(id)
			s.StartTime, s.EndTime, s.Room = slot.Start, slot.End, room
			r.sched.day(name).add(s)
			return RefactorChange{
				SessionID: id,
				Action:    ActionRelocate,
				Day:       name,
				From:      from,
				To:        fmt.Sprintf("%s %s-%s %s", name, slot.Start, slot.End, room),
			}, true
		}
	}
	return RefactorChange{}, false
}

// freeRoom returns the best ranked room of the right type that is free in the
// window. Merge rooms are not considered during repair.
func (r *run) freeRoom(u PlaceableUnit, day Weekday, w Window, ignore []string) (string, bool) {
	ctx := ScoreContext{
		Department:        r.sched.key.Department,
		IsLab:             u.Type == Lab,
		SubjectDepartment: r.subjectDepartment(u.Subject, u.SubjectCode),
		PreviousRoom:      r.previousRoom(day, w),
	}
	for _, room := range r.scorer.Rank(r.in.Rooms, ctx) {
		if !r.oracle.IsRoomBusy(room.Name, day, w, ignore...) {
			return room.Name, true
		}
	}
	return "", false
}
