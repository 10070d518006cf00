package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/events"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
)

type routineRepository interface {
	ListAll(ctx context.Context) ([]models.Routine, error)
	List(ctx context.Context, filter models.RoutineFilter) ([]models.Routine, int, error)
	FindByID(ctx context.Context, id string) (*models.Routine, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, record *models.Routine) error
	Delete(ctx context.Context, id string) error
}

type catalogReader interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
}

type constraintReader interface {
	ListAll(ctx context.Context) ([]models.TeacherConstraint, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// RoutineGeneratorConfig governs generator behaviour.
type RoutineGeneratorConfig struct {
	ProposalTTL time.Duration
	// Seed fixes the random source of every run when non-zero.
	Seed        int64
	Departments *routine.DepartmentTable
	RoutineTTL  time.Duration
	JobTTL      time.Duration
}

// RoutineGeneratorService builds routine proposals, runs batches and repairs,
// and persists the outcome.
type RoutineGeneratorService struct {
	routines    routineRepository
	catalog     catalogReader
	constraints constraintReader
	tx          txProvider
	cache       *CacheService
	metrics     *MetricsService
	publisher   events.Publisher
	queue       jobDispatcher
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         RoutineGeneratorConfig
	store       *proposalStore
	jobs        *batchJobStore
	now         func() time.Time
}

// NewRoutineGeneratorService wires generator dependencies.
func NewRoutineGeneratorService(
	routines routineRepository,
	catalog catalogReader,
	constraints constraintReader,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	publisher events.Publisher,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RoutineGeneratorConfig,
) *RoutineGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}
	if cfg.Departments == nil {
		cfg.Departments, _ = routine.ParseDepartments(nil)
	}
	now := func() time.Time { return time.Now().UTC() }
	return &RoutineGeneratorService{
		routines:    routines,
		catalog:     catalog,
		constraints: constraints,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		publisher:   publisher,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		store:       newProposalStore(cfg.ProposalTTL, now),
		jobs:        newBatchJobStore(),
		now:         now,
	}
}

// SetDispatcher attaches the queue used by EnqueueBatch.
func (s *RoutineGeneratorService) SetDispatcher(queue jobDispatcher) {
	s.queue = queue
}

func (s *RoutineGeneratorService) generator(seed int64) *routine.Generator {
	opts := []routine.Option{routine.WithLogger(s.logger), routine.WithDepartments(s.cfg.Departments)}
	if seed == 0 {
		seed = s.cfg.Seed
	}
	if seed != 0 {
		opts = append(opts, routine.WithSeed(seed))
	}
	return routine.NewGenerator(opts...)
}

// workspace is the state every generator run reads.
type workspace struct {
	routines    []routine.Routine
	rooms       []routine.Room
	teachers    []routine.Teacher
	subjects    []routine.Subject
	constraints []routine.Constraint
}

func (s *RoutineGeneratorService) loadWorkspace(ctx context.Context) (*workspace, error) {
	records, err := s.routines.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routines")
	}
	stored, err := models.RoutinesToDomain(records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode routines")
	}
	ws := &workspace{routines: stored}
	if s.catalog != nil {
		rooms, err := s.catalog.ListRooms(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
		}
		teachers, err := s.catalog.ListTeachers(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
		}
		subjects, err := s.catalog.ListSubjects(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
		}
		ws.rooms = models.RoomsToDomain(rooms)
		ws.teachers = models.TeachersToDomain(teachers)
		ws.subjects = models.SubjectsToDomain(subjects)
	}
	if s.constraints != nil {
		items, err := s.constraints.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher constraints")
		}
		ws.constraints = models.ConstraintsToDomain(items)
	}
	return ws, nil
}

// Generate runs the placement engine for one routine and stores the result as
// a proposal until it is saved or expires.
func (s *RoutineGeneratorService) Generate(ctx context.Context, req dto.GenerateRoutineRequest) (*dto.GenerateRoutineResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid routine generation payload")
	}
	adhoc, err := toConstraints(req.Constraints)
	if err != nil {
		return nil, err
	}
	if lo.EveryBy(req.Loads, func(l dto.LoadItemRequest) bool { return l.TheoryCount+l.LabCount == 0 }) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "loads must request at least one period")
	}

	ws, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	target := routine.Routine{
		Department: strings.TrimSpace(req.Target.Department),
		Semester:   strings.TrimSpace(req.Target.Semester),
		Shift:      routine.NormalizeShift(req.Target.Shift),
		Group:      strings.TrimSpace(req.Target.Group),
	}
	if existing, ok := findByKey(ws.routines, target.Key()); ok {
		target.ID = existing.ID
	} else {
		target.ID = uuid.NewString()
	}

	var linked []routine.Routine
	for _, group := range req.LinkedGroups {
		key := target.Key()
		key.Group = strings.TrimSpace(group)
		if r, ok := findByKey(ws.routines, key); ok && r.ID != target.ID {
			linked = append(linked, r)
		}
	}

	start := time.Now()
	result := s.generator(req.Seed).Generate(routine.GenerateInput{
		Target:      target,
		Loads:       toLoadItems(req.Loads),
		Constraints: append(ws.constraints, adhoc...),
		Routines:    ws.routines,
		Rooms:       ws.rooms,
		Teachers:    ws.teachers,
		Subjects:    ws.subjects,
		Options: routine.Options{
			CombineClasses: req.CombineClasses,
			ReduceLab:      req.ReduceLab,
			LinkedRoutines: linked,
		},
	})
	s.metrics.ObserveGeneratorRun(RunKindSingle, result.Stats, result.Unplaced, time.Since(start))

	target.Days = result.Days
	proposal := routineProposal{
		ID:          uuid.NewString(),
		Routine:     target,
		Placed:      result.Placed,
		Merges:      result.Merges,
		RequestedAt: s.now(),
	}
	s.store.Save(proposal)

	s.logger.Info("routine proposal generated",
		zap.String("proposal_id", proposal.ID),
		zap.String("routine", target.Key().String()),
		zap.Int("placed", len(result.Placed)),
		zap.Int("unplaced", len(result.Unplaced)),
	)

	return &dto.GenerateRoutineResponse{
		ProposalID: proposal.ID,
		Target:     req.Target,
		Days:       result.Days,
		Unplaced:   result.Unplaced,
		Merges:     result.Merges,
		Stats:      result.Stats,
		ExpiresAt:  proposal.RequestedAt.Add(s.cfg.ProposalTTL),
	}, nil
}

// Save persists a proposal. Sessions of other routines that a combined class
// joined are flagged merged in the same transaction. The save is refused when
// routines stored since the proposal was generated now clash with it.
func (s *RoutineGeneratorService) Save(ctx context.Context, req dto.SaveRoutineRequest) (*dto.SaveRoutineResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid save routine payload")
	}
	proposal, err := s.store.Get(req.ProposalID)
	if err != nil {
		return nil, err
	}

	ws, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	changed := []routine.Routine{proposal.Routine}
	others := make(map[string]*routine.Routine)
	for _, m := range proposal.Merges {
		ext, ok := others[m.RoutineID]
		if !ok {
			r, found := lo.Find(ws.routines, func(r routine.Routine) bool { return r.ID == m.RoutineID })
			if !found {
				return nil, appErrors.Clone(appErrors.ErrConflict, "merged routine no longer exists")
			}
			r = r.Clone()
			ext = &r
			others[m.RoutineID] = ext
		}
		if !routine.MarkMerged(ext, m.ExternalSessionID) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "merged session no longer exists")
		}
	}
	for _, r := range others {
		r.LastUpdated = s.now()
		changed = append(changed, *r)
	}

	if clashes := newClashes(ws.routines, changed, proposal.Placed); len(clashes) > 0 {
		return nil, appErrors.Wrap(&ConflictError{Violations: clashes}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "proposal conflicts with routines saved after it was generated")
	}

	if err := s.persist(ctx, changed); err != nil {
		return nil, err
	}
	s.store.Delete(req.ProposalID)
	s.afterWrite(ctx, events.SubjectRoutineGenerated, map[string]interface{}{
		"routineId":  proposal.Routine.ID,
		"routine":    proposal.Routine.Key().String(),
		"placed":     len(proposal.Placed),
		"mergedWith": lo.Keys(others),
	})

	return &dto.SaveRoutineResponse{RoutineID: proposal.Routine.ID, Merged: len(proposal.Merges)}, nil
}

// persist upserts the routines in one transaction.
func (s *RoutineGeneratorService) persist(ctx context.Context, changed []routine.Routine) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	records := make([]*models.Routine, 0, len(changed))
	for _, r := range changed {
		if r.LastUpdated.IsZero() {
			r.LastUpdated = s.now()
		}
		record, encErr := models.RoutineFromDomain(r)
		if encErr != nil {
			return appErrors.Wrap(encErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode routine")
		}
		records = append(records, record)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, record := range records {
		if err = s.routines.Upsert(ctx, tx, record); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist routine")
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit routine transaction")
		return err
	}
	return nil
}

// afterWrite drops cached reads and publishes an event. Failures are logged
// only since the write has already committed.
func (s *RoutineGeneratorService) afterWrite(ctx context.Context, subject string, payload interface{}) {
	if err := s.cache.InvalidateRoutines(ctx); err != nil {
		s.logger.Warn("routine cache invalidation failed", zap.Error(err))
	}
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("routine event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// List returns stored routines with pagination.
func (s *RoutineGeneratorService) List(ctx context.Context, query dto.RoutineQuery) ([]routine.Routine, *models.Pagination, error) {
	filter := models.RoutineFilter{
		Department: strings.TrimSpace(query.Department),
		Semester:   strings.TrimSpace(query.Semester),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if query.Shift != "" {
		filter.Shift = string(routine.NormalizeShift(query.Shift))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	type cachedList struct {
		Items []routine.Routine  `json:"items"`
		Page  models.Pagination `json:"page"`
	}
	key := RoutineListKey(filter.Department, filter.Semester, filter.Shift, filter.Page, filter.PageSize)
	var cached cachedList
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, &cached.Page, nil
	}

	records, total, err := s.routines.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list routines")
	}
	items, err := models.RoutinesToDomain(records)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode routines")
	}
	page := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	_ = s.cache.Set(ctx, key, cachedList{Items: items, Page: page}, s.cfg.RoutineTTL)
	return items, &page, nil
}

// Get returns one routine.
func (s *RoutineGeneratorService) Get(ctx context.Context, id string) (*routine.Routine, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "routine id is required")
	}
	var cached routine.Routine
	if hit, _ := s.cache.Get(ctx, RoutineKey(id), &cached); hit {
		return &cached, nil
	}
	record, err := s.routines.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "routine not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine")
	}
	out, err := record.ToDomain()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode routine")
	}
	_ = s.cache.Set(ctx, RoutineKey(id), out, s.cfg.RoutineTTL)
	return &out, nil
}

// Delete removes a routine.
func (s *RoutineGeneratorService) Delete(ctx context.Context, id string) error {
	if err := s.routines.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "routine not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete routine")
	}
	if err := s.cache.InvalidateRoutines(ctx); err != nil {
		s.logger.Warn("routine cache invalidation failed", zap.Error(err))
	}
	return nil
}

// Conflicts audits one routine against every stored routine.
func (s *RoutineGeneratorService) Conflicts(ctx context.Context, id string) (*dto.ConflictReport, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.routines.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routines")
	}
	all, err := models.RoutinesToDomain(records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode routines")
	}
	violations := lo.Filter(routine.CheckRoutines(all), func(v routine.Violation, _ int) bool {
		return lo.Contains(v.RoutineIDs, id)
	})
	if violations == nil {
		violations = []routine.Violation{}
	}
	return &dto.ConflictReport{RoutineID: id, Violations: violations}, nil
}

// ConflictError carries the violations that blocked a save.
type ConflictError struct {
	Violations []routine.Violation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d conflicting sessions", len(e.Violations))
}

// newClashes checks the changed routines against the stored set and returns
// violations touching a newly placed session.
func newClashes(stored, changed []routine.Routine, placed []string) []routine.Violation {
	ids := lo.SliceToMap(changed, func(r routine.Routine) (string, bool) { return r.ID, true })
	merged := lo.Reject(stored, func(r routine.Routine, _ int) bool { return ids[r.ID] })
	merged = append(merged, changed...)
	fresh := lo.SliceToMap(placed, func(id string) (string, bool) { return id, true })
	return lo.Filter(routine.CheckRoutines(merged), func(v routine.Violation, _ int) bool {
		return lo.SomeBy(v.SessionIDs, func(id string) bool { return fresh[id] })
	})
}

func findByKey(routines []routine.Routine, key routine.RoutineKey) (routine.Routine, bool) {
	return lo.Find(routines, func(r routine.Routine) bool {
		return strings.EqualFold(r.Department, key.Department) &&
			strings.EqualFold(r.Semester, key.Semester) &&
			r.Shift == key.Shift &&
			strings.EqualFold(r.Group, key.Group)
	})
}

func toLoadItems(loads []dto.LoadItemRequest) []routine.LoadItem {
	return lo.Map(loads, func(l dto.LoadItemRequest, _ int) routine.LoadItem {
		return routine.LoadItem{
			Subject:     strings.TrimSpace(l.Subject),
			SubjectCode: strings.TrimSpace(l.SubjectCode),
			Teacher:     strings.TrimSpace(l.Teacher),
			TheoryCount: l.TheoryCount,
			LabCount:    l.LabCount,
		}
	})
}

func toConstraints(items []dto.ConstraintRequest) ([]routine.Constraint, error) {
	out := make([]routine.Constraint, 0, len(items))
	for _, c := range items {
		day, err := routine.ParseWeekday(c.Day)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid constraint day")
		}
		if _, err := routine.NewWindow(c.StartTime, c.EndTime); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid constraint window")
		}
		out = append(out, routine.Constraint{Teacher: strings.TrimSpace(c.Teacher), Day: day, StartTime: c.StartTime, EndTime: c.EndTime})
	}
	return out, nil
}

// routineProposal is a generated routine waiting to be saved.
type routineProposal struct {
	ID          string
	Routine     routine.Routine
	Placed      []string
	Merges      []routine.MergeLink
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]routineProposal
}

func newProposalStore(ttl time.Duration, now func() time.Time) *proposalStore {
	return &proposalStore{ttl: ttl, now: now, items: make(map[string]routineProposal)}
}

func (s *proposalStore) Save(p routineProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = p
}

// Get distinguishes unknown proposals from expired ones.
func (s *proposalStore) Get(id string) (routineProposal, error) {
	s.mu.RLock()
	p, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return routineProposal{}, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	}
	if s.now().Sub(p.RequestedAt) > s.ttl {
		s.Delete(id)
		return routineProposal{}, appErrors.Clone(appErrors.ErrProposalExpired, "proposal expired")
	}
	return p, nil
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
