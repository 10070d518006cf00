package routine

import (
	"strings"

	"go.uber.org/zap"
)

// GenerateInput is everything one placement run needs. Target identifies the
// routine; its days, or the days of the persisted routine with the same key,
// are kept and new sessions are added around them.
type GenerateInput struct {
	Target      Routine
	Loads       []LoadItem
	Constraints []Constraint
	Routines    []Routine
	Rooms       []Room
	Teachers    []Teacher
	Subjects    []Subject
	Options     Options
}

// MergeLink records that a new session joined a session of another routine.
type MergeLink struct {
	SessionID         string `json:"sessionId"`
	RoutineID         string `json:"routineId"`
	ExternalSessionID string `json:"externalSessionId"`
}

// Stats summarises a placement run.
type Stats struct {
	Units           int `json:"units"`
	PlacedLabs      int `json:"placedLabs"`
	PlacedTheory    int `json:"placedTheory"`
	Evicted         int `json:"evicted"`
	ReducedLabs     int `json:"reducedLabs"`
	Roomless        int `json:"roomless"`
	CompactionMoves int `json:"compactionMoves"`
}

// GenerateResult carries the new days and the units left unplaced.
type GenerateResult struct {
	Days     []Day          `json:"days"`
	Unplaced []UnplacedItem `json:"unplaced"`
	Placed   []string       `json:"placed"`
	Merges   []MergeLink    `json:"merges,omitempty"`
	Stats    Stats          `json:"stats"`
}

// placement is a chosen position for a unit.
type placement struct {
	day       Weekday
	slot      int
	duration  int
	room      string
	mergeWith *MergeLink
	evict     []string
}

type run struct {
	g          *Generator
	in         GenerateInput
	sched      *schedule
	oracle     *Oracle
	scorer     RoomScorer
	subjectDep map[string]string
	units      map[string]PlaceableUnit
	queue      []PlaceableUnit
	unplaced   []UnplacedItem
	placed     []string
	merges     []MergeLink
	stats      Stats
}

func (g *Generator) newRun(in GenerateInput) *run {
	days := in.Target.Days
	if len(days) == 0 {
		for _, r := range in.Routines {
			if r.Key().sameAs(in.Target.Key()) {
				days = r.Days
				break
			}
		}
	}
	sched := newSchedule(in.Target.Key(), cloneDays(days))
	r := &run{
		g:          g,
		in:         in,
		sched:      sched,
		oracle:     newOracle(sched, in.Routines, in.Constraints, in.Options.LinkedRoutines),
		scorer:     NewRoomScorer(g.departments, in.Options.CombineClasses || len(in.Options.LinkedRoutines) > 0),
		subjectDep: make(map[string]string),
		units:      make(map[string]PlaceableUnit),
	}
	teacherDep := make(map[string]string, len(in.Teachers))
	for _, t := range in.Teachers {
		teacherDep[strings.ToLower(strings.TrimSpace(t.Name))] = t.Department
	}
	for _, s := range in.Subjects {
		if s.Department == "" {
			continue
		}
		r.subjectDep[strings.ToLower(strings.TrimSpace(s.Name))] = s.Department
		if s.Code != "" {
			r.subjectDep[strings.ToLower(strings.TrimSpace(s.Code))] = s.Department
		}
	}
	for _, l := range in.Loads {
		if r.subjectDepartment(l.Subject, l.SubjectCode) != "" {
			continue
		}
		if dep := teacherDep[strings.ToLower(strings.TrimSpace(l.Teacher))]; dep != "" {
			r.subjectDep[strings.ToLower(strings.TrimSpace(l.Subject))] = dep
		}
	}
	return r
}

func (r *run) subjectDepartment(subject, code string) string {
	if dep := r.subjectDep[strings.ToLower(strings.TrimSpace(code))]; code != "" && dep != "" {
		return dep
	}
	return r.subjectDep[strings.ToLower(strings.TrimSpace(subject))]
}

// Generate places the target's load. Labs go first in shuffled order with
// escalating strategies, then theory units in sequence, then the compactor
// closes gaps. Units that fit nowhere are returned with suggestions.
func (g *Generator) Generate(in GenerateInput) GenerateResult {
	r := g.newRun(in)

	var labs []PlaceableUnit
	for _, u := range ExpandLoad(in.Loads) {
		if u.Type == Lab {
			if in.Options.ReduceLab && u.Duration == 3 {
				u.Duration = 2
			}
			labs = append(labs, u)
			continue
		}
		r.queue = append(r.queue, u)
	}
	r.stats.Units = len(labs) + len(r.queue)

	g.rng.Shuffle(len(labs), func(i, j int) { labs[i], labs[j] = labs[j], labs[i] })
	for _, u := range labs {
		r.place(u, labStrategies, ReasonNoLabSlot)
	}
	// Evicted theory units are appended to the queue while labs are placed.
	for i := 0; i < len(r.queue); i++ {
		r.place(r.queue[i], theoryStrategies, ReasonNoTheorySlot)
	}

	r.stats.CompactionMoves = r.compact()
	for i := range r.unplaced {
		r.unplaced[i].Suggestions = r.suggest(r.unplaced[i])
	}

	g.logger.Debug("routine generated",
		zap.String("routine", in.Target.Key().String()),
		zap.Int("units", r.stats.Units),
		zap.Int("placed_labs", r.stats.PlacedLabs),
		zap.Int("placed_theory", r.stats.PlacedTheory),
		zap.Int("evicted", r.stats.Evicted),
		zap.Int("unplaced", len(r.unplaced)),
		zap.Int("compaction_moves", r.stats.CompactionMoves),
	)

	unplaced := r.unplaced
	if unplaced == nil {
		unplaced = []UnplacedItem{}
	}
	return GenerateResult{
		Days:     r.sched.days,
		Unplaced: unplaced,
		Placed:   r.placed,
		Merges:   r.merges,
		Stats:    r.stats,
	}
}

func (r *run) place(u PlaceableUnit, strategies []strategy, reason string) {
	for _, s := range strategies {
		if p, ok := s.try(r, u); ok {
			r.apply(u, p)
			r.g.logger.Debug("unit placed",
				zap.String("subject", u.Subject),
				zap.String("type", string(u.Type)),
				zap.String("strategy", s.name),
				zap.String("day", string(p.day)),
				zap.String("room", p.room),
			)
			return
		}
	}
	r.unplaced = append(r.unplaced, UnplacedItem{
		Subject:     u.Subject,
		SubjectCode: u.SubjectCode,
		Teacher:     u.Teacher,
		Type:        u.Type,
		Duration:    u.Duration,
		Reason:      reason,
	})
}

func (r *run) apply(u PlaceableUnit, p placement) {
	day := r.sched.day(p.day)
	for _, id := range p.evict {
		evicted, ok := day.remove(id)
		if !ok {
			continue
		}
		r.stats.Evicted++
		r.queue = append(r.queue, r.unitFor(evicted))
	}

	slot, _ := r.sched.grid.WindowAt(p.slot, p.duration)
	s := Session{
		ID:          r.g.newID(),
		StartTime:   slot.Start,
		EndTime:     slot.End,
		Subject:     u.Subject,
		SubjectCode: u.SubjectCode,
		Teacher:     u.Teacher,
		Room:        p.room,
		Type:        u.Type,
	}
	if p.mergeWith != nil {
		link := *p.mergeWith
		link.SessionID = s.ID
		s.IsMerged = true
		s.MergeGroup = link.ExternalSessionID
		r.merges = append(r.merges, link)
	}
	day.add(s)
	r.units[s.ID] = PlaceableUnit{
		Subject:     u.Subject,
		SubjectCode: u.SubjectCode,
		Teacher:     u.Teacher,
		Type:        u.Type,
		Duration:    p.duration,
		TotalLoad:   u.TotalLoad,
	}
	r.placed = append(r.placed, s.ID)

	if u.Type == Lab {
		r.stats.PlacedLabs++
		if p.duration < u.Duration {
			r.stats.ReducedLabs++
		}
	} else {
		r.stats.PlacedTheory++
	}
	if !s.HasRoom() {
		r.stats.Roomless++
	}
}

// unitFor rebuilds the placeable unit behind an evicted session.
func (r *run) unitFor(s Session) PlaceableUnit {
	if u, ok := r.units[s.ID]; ok {
		return u
	}
	duration := r.sched.grid.Span(s.StartTime, s.EndTime)
	if duration == 0 {
		duration = 1
	}
	return PlaceableUnit{
		Subject:     s.Subject,
		SubjectCode: s.SubjectCode,
		Teacher:     s.Teacher,
		Type:        s.Type,
		Duration:    duration,
		TotalLoad:   duration,
	}
}

func (r *run) mergeKey(u PlaceableUnit) *MergeKey {
	if !r.in.Options.CombineClasses {
		return nil
	}
	return &MergeKey{Subject: u.Subject, Type: u.Type}
}

// windowFree checks every constraint except room availability.
func (r *run) windowFree(u PlaceableUnit, day Weekday, w Window, ignore []string) bool {
	o := r.oracle
	return !o.IsGroupBusy(day, w, ignore...) &&
		!o.IsSubjectAlreadyOnDay(day, u.Subject, ignore...) &&
		!o.IsLinkedBusy(day, w, u.Subject) &&
		!o.IsTeacherBusy(u.Teacher, day, w, r.mergeKey(u), ignore...)
}

// pickRoom returns the best free room for the window. A combined class that
// joins another routine's session inherits that session's room.
func (r *run) pickRoom(u PlaceableUnit, day Weekday, w Window, ignore []string) (string, *MergeLink, bool) {
	if key := r.mergeKey(u); key != nil {
		if cand, routineID, ok := r.oracle.MergeCandidate(u.Teacher, day, w, *key); ok {
			if r.oracle.IsRoomBusy(cand.Room, day, w, append(append([]string{}, ignore...), cand.ID)...) {
				return "", nil, false
			}
			room := cand.Room
			if room == "" {
				room = RoomUnplaced
			}
			return room, &MergeLink{RoutineID: routineID, ExternalSessionID: cand.ID}, true
		}
	}
	ctx := ScoreContext{
		Department:        r.sched.key.Department,
		IsLab:             u.Type == Lab,
		SubjectDepartment: r.subjectDepartment(u.Subject, u.SubjectCode),
		PreviousRoom:      r.previousRoom(day, w),
	}
	for _, room := range r.scorer.Rank(r.in.Rooms, ctx) {
		if !r.oracle.IsRoomBusy(room.Name, day, w, ignore...) {
			return room.Name, nil, true
		}
	}
	return "", nil, false
}

func (r *run) previousRoom(day Weekday, w Window) string {
	d := r.sched.day(day)
	if d == nil {
		return ""
	}
	for _, s := range d.Classes {
		if s.Window().End == w.Start && s.HasRoom() {
			return s.Room
		}
	}
	return ""
}

// search scans days and start slots in the given order and returns the first
// feasible placement. accept narrows candidates further; roomless allows a
// placement without a room when every suitable room is busy.
func (r *run) search(u PlaceableUnit, days []Weekday, duration int, accept func(Weekday, Window) bool, roomless bool) (placement, bool) {
	grid := r.sched.grid
	for _, day := range days {
		for _, start := range r.g.slotOrder(grid.Len()-duration+1, u.Type == Lab) {
			slot, ok := grid.WindowAt(start, duration)
			if !ok {
				continue
			}
			w := Window{Start: mustClock(slot.Start), End: mustClock(slot.End)}
			if !r.windowFree(u, day, w, nil) {
				continue
			}
			if accept != nil && !accept(day, w) {
				continue
			}
			room, link, ok := r.pickRoom(u, day, w, nil)
			if !ok {
				if !roomless {
					continue
				}
				room = RoomUnplaced
			}
			return placement{day: day, slot: start, duration: duration, room: room, mergeWith: link}, true
		}
	}
	return placement{}, false
}
