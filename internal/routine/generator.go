package routine

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Generator runs the placement, batch and repair engines. It owns a random
// source and is therefore not safe for concurrent use; create one per request.
type Generator struct {
	rng         *rand.Rand
	logger      *zap.Logger
	newID       func() string
	now         func() time.Time
	departments *DepartmentTable
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand injects the random source.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLogger attaches a logger for run summaries.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithIDGenerator overrides session and routine id creation.
func WithIDGenerator(fn func() string) Option {
	return func(g *Generator) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// WithClock overrides the clock used for LastUpdated stamps.
func WithClock(fn func() time.Time) Option {
	return func(g *Generator) {
		if fn != nil {
			g.now = fn
		}
	}
}

// WithDepartments replaces the department abbreviation table.
func WithDepartments(t *DepartmentTable) Option {
	return func(g *Generator) {
		if t != nil {
			g.departments = t
		}
	}
}

// NewGenerator constructs a generator with sensible defaults.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      zap.NewNop(),
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
		departments: defaultDepartmentTable,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) shuffledDays() []Weekday {
	days := append([]Weekday(nil), Weekdays...)
	g.rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
	return days
}

// slotOrder returns candidate start indices in random order. Half of the time
// slot 0 is pushed to the back so theory classes can open the day.
func (g *Generator) slotOrder(n int, spareFirst bool) []int {
	if n <= 0 {
		return nil
	}
	order := g.rng.Perm(n)
	if spareFirst && n > 1 && g.rng.Intn(2) == 0 {
		for i, v := range order {
			if v == 0 {
				order = append(append(order[:i:i], order[i+1:]...), 0)
				break
			}
		}
	}
	return order
}
