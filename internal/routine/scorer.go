package routine

import (
	"sort"
	"strings"
)

// Disqualified is returned for rooms that can never host the unit.
const Disqualified = -1e9

// ScoreContext describes the unit a room is being ranked for.
type ScoreContext struct {
	Department        string
	IsLab             bool
	SubjectDepartment string
	PreviousRoom      string
}

// RoomScorer ranks candidate rooms; higher is better.
type RoomScorer struct {
	departments *DepartmentTable
	combined    bool
}

// NewRoomScorer builds a scorer. combined enables the capacity preference used
// when partner routines share the session.
func NewRoomScorer(departments *DepartmentTable, combined bool) RoomScorer {
	if departments == nil {
		departments = defaultDepartmentTable
	}
	return RoomScorer{departments: departments, combined: combined}
}

// Score applies the additive room rules.
func (s RoomScorer) Score(room Room, ctx ScoreContext) float64 {
	if room.IsLab != ctx.IsLab {
		return Disqualified
	}
	var score float64
	if s.combined {
		score += float64(room.Capacity * 2)
	}

	if !ctx.IsLab {
		location := strings.ToLower(room.Location)
		if s.departments.Category(ctx.Department) == CategoryTechnology {
			if strings.Contains(location, "computer") {
				score += 50
			}
		} else if strings.Contains(location, "academic") || strings.Contains(location, "main") {
			score += 50
		}
		if s.departments.Match(room.Department, ctx.Department) {
			score += 100
		}
		if ctx.PreviousRoom != "" && sameName(ctx.PreviousRoom, room.Name) {
			score += 5
		}
		return score
	}

	switch {
	case s.departments.Match(room.Department, ctx.SubjectDepartment):
		score += 500
	case s.departments.Match(room.Department, ctx.Department):
		score += 100
	case strings.TrimSpace(room.Department) != "" && strings.TrimSpace(ctx.Department) != "":
		score -= 100
	}
	return score
}

type rankedRoom struct {
	Room  Room
	Score float64
}

// Rank orders rooms by score, keeping input order for ties and dropping
// disqualified rooms.
func (s RoomScorer) Rank(rooms []Room, ctx ScoreContext) []Room {
	ranked := make([]rankedRoom, 0, len(rooms))
	for _, r := range rooms {
		score := s.Score(r, ctx)
		if score <= Disqualified {
			continue
		}
		ranked = append(ranked, rankedRoom{Room: r, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	out := make([]Room, len(ranked))
	for i, r := range ranked {
		out[i] = r.Room
	}
	return out
}
