package routine

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ReasonInvalidTechnology is reported for technology ids that cannot be parsed.
const ReasonInvalidTechnology = "Invalid Technology Id"

// BatchInput is the assignment set for a batch run.
type BatchInput struct {
	Assignments []Assignment
	Routines    []Routine
	Rooms       []Room
	Teachers    []Teacher
	Subjects    []Subject
}

// BatchFailure is an unplaced unit tagged with the routine it was meant for.
type BatchFailure struct {
	RoutineID  string     `json:"routineId"`
	Technology string     `json:"technology"`
	Key        RoutineKey `json:"key"`
	Partners   []string   `json:"partners,omitempty"`
	UnplacedItem
}

// BatchResult lists every routine the batch created or changed.
type BatchResult struct {
	Routines []Routine      `json:"routines"`
	Created  []string       `json:"created"`
	Failures []BatchFailure `json:"failures"`
	Stats    Stats          `json:"stats"`
}

// workingSet holds the batch's evolving copy of all routines.
type workingSet struct {
	routines []*Routine
	byKey    map[string]*Routine
	touched  []string
	created  []string
	seen     map[string]bool
}

func newWorkingSet(existing []Routine) *workingSet {
	ws := &workingSet{byKey: make(map[string]*Routine), seen: make(map[string]bool)}
	for _, r := range existing {
		c := r.Clone()
		c.Shift = NormalizeShift(string(c.Shift))
		ws.routines = append(ws.routines, &c)
		ws.byKey[workingKey(c.Key())] = &c
	}
	return ws
}

func workingKey(k RoutineKey) string {
	return strings.ToLower(k.String())
}

func (ws *workingSet) resolve(key RoutineKey, newID func() string) *Routine {
	if r, ok := ws.byKey[workingKey(key)]; ok {
		return r
	}
	r := &Routine{
		ID:         newID(),
		Department: key.Department,
		Semester:   key.Semester,
		Shift:      key.Shift,
		Group:      key.Group,
		Days:       EmptyDays(),
	}
	ws.routines = append(ws.routines, r)
	ws.byKey[workingKey(key)] = r
	ws.created = append(ws.created, r.ID)
	return r
}

func (ws *workingSet) byID(id string) *Routine {
	for _, r := range ws.routines {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (ws *workingSet) touch(r *Routine) {
	if !ws.seen[r.ID] {
		ws.seen[r.ID] = true
		ws.touched = append(ws.touched, r.ID)
	}
}

func (ws *workingSet) snapshot() []Routine {
	out := make([]Routine, len(ws.routines))
	for i, r := range ws.routines {
		out[i] = *r
	}
	return out
}

// GenerateBatch places every assignment. Technologies taught jointly are placed
// once against the primary routine, with partners as linked occupancy, and the
// new sessions are then replicated into each partner.
func (g *Generator) GenerateBatch(in BatchInput) BatchResult {
	ws := newWorkingSet(in.Routines)
	var failures []BatchFailure
	var total Stats

	for _, a := range in.Assignments {
		constraints := make([]Constraint, 0, len(a.BlockedTimes))
		for _, b := range a.BlockedTimes {
			constraints = append(constraints, Constraint{Teacher: a.Teacher, Day: b.Day, StartTime: b.StartTime, EndTime: b.EndTime})
		}

		for _, sa := range a.Subjects {
			processed := make(map[string]bool)
			owners := mergeOwners(sa.MergedGroups)
			for _, listed := range sa.Technologies {
				tech := listed
				if owner, ok := owners[normalizedName(listed)]; ok {
					tech = owner
				}
				if processed[normalizedName(tech)] {
					continue
				}
				processed[normalizedName(tech)] = true

				key, err := ParseTechnology(tech)
				if err != nil {
					g.logger.Warn("skipping technology", zap.String("technology", tech), zap.Error(err))
					failures = append(failures, BatchFailure{
						Technology: tech,
						UnplacedItem: UnplacedItem{
							Subject:     sa.Subject,
							SubjectCode: sa.SubjectCode,
							Teacher:     a.Teacher,
							Reason:      ReasonInvalidTechnology,
							Suggestions: []Suggestion{},
						},
					})
					continue
				}
				target := ws.resolve(key, g.newID)

				var partners []*Routine
				var partnerIDs []string
				for _, pid := range sa.MergedGroups[tech] {
					pkey, err := ParseTechnology(pid)
					if err != nil {
						g.logger.Warn("skipping merge partner", zap.String("technology", pid), zap.Error(err))
						continue
					}
					processed[normalizedName(pid)] = true
					p := ws.resolve(pkey, g.newID)
					if p == target {
						continue
					}
					partners = append(partners, p)
					partnerIDs = append(partnerIDs, pid)
				}

				linked := make([]Routine, len(partners))
				for i, p := range partners {
					linked[i] = *p
				}
				res := g.Generate(GenerateInput{
					Target:      *target,
					Loads:       []LoadItem{{Subject: sa.Subject, SubjectCode: sa.SubjectCode, Teacher: a.Teacher, TheoryCount: sa.TheoryCount, LabCount: sa.LabCount}},
					Constraints: constraints,
					Routines:    ws.snapshot(),
					Rooms:       in.Rooms,
					Teachers:    in.Teachers,
					Subjects:    in.Subjects,
					Options:     Options{CombineClasses: len(partners) > 0, LinkedRoutines: linked},
				})
				total = addStats(total, res.Stats)

				target.Days = res.Days
				target.LastUpdated = g.now()
				ws.touch(target)
				g.markExternalMerges(ws, res.Merges)
				if len(partners) > 0 {
					g.replicate(target, partners, res.Placed, sa.Subject, a.Teacher)
					for _, p := range partners {
						ws.touch(p)
					}
				}

				for _, item := range res.Unplaced {
					failures = append(failures, BatchFailure{
						RoutineID:    target.ID,
						Technology:   tech,
						Key:          key,
						Partners:     partnerIDs,
						UnplacedItem: item,
					})
				}
			}
		}
	}

	out := BatchResult{Routines: []Routine{}, Created: ws.created, Failures: failures, Stats: total}
	for _, id := range ws.touched {
		out.Routines = append(out.Routines, *ws.byID(id))
	}
	if out.Created == nil {
		out.Created = []string{}
	}
	if out.Failures == nil {
		out.Failures = []BatchFailure{}
	}
	g.logger.Info("batch generated",
		zap.Int("routines", len(out.Routines)),
		zap.Int("created", len(out.Created)),
		zap.Int("failures", len(out.Failures)),
	)
	return out
}

// mergeOwners maps every merge partner to the technology whose group lists
// it, so a partner listed first is placed through its group's primary.
func mergeOwners(groups map[string][]string) map[string]string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	owners := make(map[string]string)
	for _, k := range keys {
		for _, pid := range groups[k] {
			n := normalizedName(pid)
			if n == normalizedName(k) {
				continue
			}
			if _, taken := owners[n]; !taken {
				owners[n] = k
			}
		}
	}
	return owners
}

// replicate copies the sessions placed for subject/teacher into each partner
// under a fresh id. Source and replicas are flagged merged and share the
// source id as MergeGroup.
func (g *Generator) replicate(source *Routine, partners []*Routine, placed []string, subject, teacher string) {
	ids := make(map[string]bool, len(placed))
	for _, id := range placed {
		ids[id] = true
	}
	for di := range source.Days {
		day := &source.Days[di]
		for si := range day.Classes {
			s := &day.Classes[si]
			if !ids[s.ID] || !sameName(s.Subject, subject) || !sameName(s.Teacher, teacher) {
				continue
			}
			s.IsMerged = true
			if s.MergeGroup == "" {
				s.MergeGroup = s.ID
			}
			for _, p := range partners {
				replica := *s
				replica.ID = g.newID()
				p.Days = normalizeDays(p.Days)
				for pi := range p.Days {
					if sameDay(p.Days[pi].Name, day.Name) {
						p.Days[pi].add(replica)
					}
				}
				p.LastUpdated = g.now()
			}
		}
	}
}

// markExternalMerges flags sessions of other routines that a combined class joined.
func (g *Generator) markExternalMerges(ws *workingSet, merges []MergeLink) {
	for _, m := range merges {
		if r := ws.byID(m.RoutineID); r != nil && MarkMerged(r, m.ExternalSessionID) {
			ws.touch(r)
		}
	}
}

// MarkMerged flags the session as part of a combined class. It reports
// whether the session exists in the routine.
func MarkMerged(r *Routine, sessionID string) bool {
	for di := range r.Days {
		for si := range r.Days[di].Classes {
			s := &r.Days[di].Classes[si]
			if s.ID != sessionID {
				continue
			}
			s.IsMerged = true
			if s.MergeGroup == "" {
				s.MergeGroup = s.ID
			}
			return true
		}
	}
	return false
}

func addStats(a, b Stats) Stats {
	return Stats{
		Units:           a.Units + b.Units,
		PlacedLabs:      a.PlacedLabs + b.PlacedLabs,
		PlacedTheory:    a.PlacedTheory + b.PlacedTheory,
		Evicted:         a.Evicted + b.Evicted,
		ReducedLabs:     a.ReducedLabs + b.ReducedLabs,
		Roomless:        a.Roomless + b.Roomless,
		CompactionMoves: a.CompactionMoves + b.CompactionMoves,
	}
}
