package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/events"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
)

type routineRepoStub struct {
	mu       sync.Mutex
	items    map[string]models.Routine
	upserted []models.Routine
}

func newRoutineRepoStub(routines ...routine.Routine) *routineRepoStub {
	repo := &routineRepoStub{items: map[string]models.Routine{}}
	for _, r := range routines {
		record, err := models.RoutineFromDomain(r)
		if err != nil {
			panic(err)
		}
		repo.items[r.ID] = *record
	}
	return repo
}

func (r *routineRepoStub) ListAll(context.Context) ([]models.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Routine, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out, nil
}

func (r *routineRepoStub) List(ctx context.Context, filter models.RoutineFilter) ([]models.Routine, int, error) {
	all, _ := r.ListAll(ctx)
	var out []models.Routine
	for _, item := range all {
		if filter.Department == "" || item.Department == filter.Department {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (r *routineRepoStub) FindByID(_ context.Context, id string) (*models.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (r *routineRepoStub) Upsert(_ context.Context, _ sqlx.ExtContext, record *models.Routine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[record.ID] = *record
	r.upserted = append(r.upserted, *record)
	return nil
}

func (r *routineRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

type catalogStub struct{}

func (catalogStub) ListRooms(context.Context) ([]models.Room, error) {
	return []models.Room{
		{ID: "1", Name: "101", Department: "CST"},
		{ID: "2", Name: "102", Department: "CT"},
		{ID: "3", Name: "Lab-1", IsLab: true, Department: "CST"},
	}, nil
}

func (catalogStub) ListTeachers(context.Context) ([]models.Teacher, error) {
	return []models.Teacher{{ID: "t1", Name: "Rahim", Department: "CST"}, {ID: "t2", Name: "Karim", Department: "CST"}}, nil
}

func (catalogStub) ListSubjects(context.Context) ([]models.Subject, error) {
	return []models.Subject{{ID: "s1", Code: "PHY", Name: "Physics", Department: "CST"}}, nil
}

type constraintStub struct {
	items []models.TeacherConstraint
}

func (c constraintStub) ListAll(context.Context) ([]models.TeacherConstraint, error) {
	return c.items, nil
}

type publisherStub struct {
	mu       sync.Mutex
	subjects []string
}

func (p *publisherStub) Publish(_ context.Context, subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *publisherStub) Close() error { return nil }

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type routineFixture struct {
	svc       *RoutineGeneratorService
	repo      *routineRepoStub
	publisher *publisherStub
	mock      sqlmock.Sqlmock
}

func newRoutineServiceFixture(t *testing.T, stored ...routine.Routine) routineFixture {
	tx, mock := newTxProviderMock(t)
	repo := newRoutineRepoStub(stored...)
	publisher := &publisherStub{}
	svc := NewRoutineGeneratorService(repo, catalogStub{}, constraintStub{}, tx, nil, NewMetricsService(), publisher, nil, nil,
		RoutineGeneratorConfig{Seed: 7, ProposalTTL: time.Minute})
	return routineFixture{svc: svc, repo: repo, publisher: publisher, mock: mock}
}

func cstTarget(group string) dto.RoutineTarget {
	return dto.RoutineTarget{Department: "CST", Semester: "1", Shift: "1st", Group: group}
}

func storedRoutine(id, group string, day routine.Weekday, sessions ...routine.Session) routine.Routine {
	days := routine.EmptyDays()
	for i := range days {
		if days[i].Name == day {
			days[i].Classes = append(days[i].Classes, sessions...)
		}
	}
	return routine.Routine{ID: id, Department: "CST", Semester: "1", Shift: routine.ShiftMorning, Group: group, Days: days}
}

func errorCode(err error) string {
	return appErrors.FromError(err).Code
}

func TestRoutineGeneratorServiceGenerate(t *testing.T) {
	f := newRoutineServiceFixture(t)
	loads := []dto.LoadItemRequest{
		{Subject: "Math", Teacher: "Rahim", TheoryCount: 3},
		{Subject: "Physics", SubjectCode: "PHY", Teacher: "Karim", TheoryCount: 1, LabCount: 3},
	}

	resp, err := f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{Target: cstTarget("A"), Loads: loads})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Empty(t, resp.Unplaced)

	expected := routine.ExpandLoad(toLoadItems(loads))
	generated := routine.Routine{ID: "preview", Days: resp.Days}
	assert.Len(t, generated.Sessions(), len(expected))
	assert.Empty(t, routine.CheckRoutines([]routine.Routine{generated}))
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.Equal(t, uint64(1), f.svc.metrics.Snapshot().GeneratorRuns)
}

func TestRoutineGeneratorServiceGenerateValidation(t *testing.T) {
	f := newRoutineServiceFixture(t)

	_, err := f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{Target: cstTarget("A")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	_, err = f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{
		Target:      cstTarget("A"),
		Loads:       []dto.LoadItemRequest{{Subject: "Math", Teacher: "Rahim", TheoryCount: 1}},
		Constraints: []dto.ConstraintRequest{{Teacher: "Rahim", Day: "Friday", StartTime: "08:00", EndTime: "09:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	_, err = f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{
		Target: cstTarget("A"),
		Loads:  []dto.LoadItemRequest{{Subject: "Math", Teacher: "Rahim"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestRoutineGeneratorServiceSave(t *testing.T) {
	existing := storedRoutine("r-a", "A", routine.Sunday,
		routine.Session{ID: "old", StartTime: "08:00", EndTime: "08:45", Subject: "English", Teacher: "Nadia", Room: "102", Type: routine.Theory})
	f := newRoutineServiceFixture(t, existing)

	resp, err := f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{
		Target: cstTarget("A"),
		Loads:  []dto.LoadItemRequest{{Subject: "Math", Teacher: "Rahim", TheoryCount: 2}},
	})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	saved, err := f.svc.Save(context.Background(), dto.SaveRoutineRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, "r-a", saved.RoutineID, "the existing routine is updated in place")
	assert.NoError(t, f.mock.ExpectationsWereMet())

	require.Len(t, f.repo.upserted, 1)
	out, err := f.repo.upserted[0].ToDomain()
	require.NoError(t, err)
	assert.Len(t, out.Sessions(), 3)
	assert.Equal(t, []string{events.SubjectRoutineGenerated}, f.publisher.subjects)

	_, err = f.svc.Save(context.Background(), dto.SaveRoutineRequest{ProposalID: resp.ProposalID})
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestRoutineGeneratorServiceSaveExpired(t *testing.T) {
	f := newRoutineServiceFixture(t)
	resp, err := f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{
		Target: cstTarget("A"),
		Loads:  []dto.LoadItemRequest{{Subject: "Math", Teacher: "Rahim", TheoryCount: 1}},
	})
	require.NoError(t, err)

	f.svc.store.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = f.svc.Save(context.Background(), dto.SaveRoutineRequest{ProposalID: resp.ProposalID})
	assert.Equal(t, appErrors.ErrProposalExpired.Code, errorCode(err))
}

func TestRoutineGeneratorServiceSaveRejectsStaleProposal(t *testing.T) {
	f := newRoutineServiceFixture(t)
	resp, err := f.svc.Generate(context.Background(), dto.GenerateRoutineRequest{
		Target: cstTarget("A"),
		Loads:  []dto.LoadItemRequest{{Subject: "Math", Teacher: "Rahim", TheoryCount: 2}},
	})
	require.NoError(t, err)

	// another group claimed Rahim at the same times after the preview
	clash := routine.Routine{ID: "r-b", Department: "CST", Semester: "1", Shift: routine.ShiftMorning, Group: "B", Days: routine.EmptyDays()}
	for di, d := range resp.Days {
		for _, s := range d.Classes {
			s.ID = "b-" + s.ID
			s.Room = "Elsewhere"
			clash.Days[di].Classes = append(clash.Days[di].Classes, s)
		}
	}
	record, err := models.RoutineFromDomain(clash)
	require.NoError(t, err)
	f.repo.items[clash.ID] = *record

	_, err = f.svc.Save(context.Background(), dto.SaveRoutineRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Len(t, conflict.Violations, 2)
	assert.Empty(t, f.repo.upserted)
}

func TestRoutineGeneratorServiceGetListDelete(t *testing.T) {
	f := newRoutineServiceFixture(t, storedRoutine("r-a", "A", routine.Monday))

	got, err := f.svc.Get(context.Background(), "r-a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Group)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))

	items, page, err := f.svc.List(context.Background(), dto.RoutineQuery{Department: "CST"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	require.NoError(t, f.svc.Delete(context.Background(), "r-a"))
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(f.svc.Delete(context.Background(), "r-a")))
}

func TestRoutineGeneratorServiceConflicts(t *testing.T) {
	a := storedRoutine("r-a", "A", routine.Sunday,
		routine.Session{ID: "a1", StartTime: "08:00", EndTime: "08:45", Subject: "Math", Teacher: "Rahim", Room: "101", Type: routine.Theory})
	b := storedRoutine("r-b", "B", routine.Sunday,
		routine.Session{ID: "b1", StartTime: "08:00", EndTime: "08:45", Subject: "Math", Teacher: "Rahim", Room: "102", Type: routine.Theory})
	c := storedRoutine("r-c", "C", routine.Monday)
	f := newRoutineServiceFixture(t, a, b, c)

	report, err := f.svc.Conflicts(context.Background(), "r-a")
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, routine.ViolationTeacherOverlap, report.Violations[0].Kind)

	report, err = f.svc.Conflicts(context.Background(), "r-c")
	require.NoError(t, err)
	assert.Empty(t, report.Violations)
}
