package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/events"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
)

// BatchJobType labels asynchronous batch jobs on the queue.
const BatchJobType = "routine_batch"

// GenerateBatch places every assignment across the routines it names and
// persists every routine it created or changed.
func (s *RoutineGeneratorService) GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid batch payload")
	}
	assignments, err := toAssignments(req.Assignments)
	if err != nil {
		return nil, err
	}
	ws, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := s.generator(req.Seed).GenerateBatch(routine.BatchInput{
		Assignments: assignments,
		Routines:    ws.routines,
		Rooms:       ws.rooms,
		Teachers:    ws.teachers,
		Subjects:    ws.subjects,
	})
	unplaced := lo.Map(result.Failures, func(f routine.BatchFailure, _ int) routine.UnplacedItem { return f.UnplacedItem })
	s.metrics.ObserveGeneratorRun(RunKindBatch, result.Stats, unplaced, time.Since(start))

	if len(result.Routines) > 0 {
		if err := s.persist(ctx, result.Routines); err != nil {
			return nil, err
		}
	}
	resp := &dto.BatchGenerateResponse{
		Updated:  lo.Map(result.Routines, func(r routine.Routine, _ int) string { return r.ID }),
		Created:  result.Created,
		Failures: result.Failures,
		Stats:    result.Stats,
	}
	s.afterWrite(ctx, events.SubjectBatchCompleted, map[string]interface{}{
		"updated":  len(resp.Updated),
		"created":  len(resp.Created),
		"failures": len(resp.Failures),
	})
	return resp, nil
}

// EnqueueBatch validates the request and hands it to the worker queue.
func (s *RoutineGeneratorService) EnqueueBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid batch payload")
	}
	if _, err := toAssignments(req.Assignments); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "batch queue unavailable")
	}

	now := s.now()
	status := dto.BatchJobResponse{JobID: uuid.NewString(), Status: dto.BatchJobQueued, CreatedAt: now, UpdatedAt: now}
	s.recordJob(ctx, status)
	if err := s.queue.Enqueue(jobs.Job{ID: status.JobID, Type: BatchJobType, Payload: req}); err != nil {
		status.Status = dto.BatchJobFailed
		status.Error = "failed to enqueue job"
		status.UpdatedAt = s.now()
		s.recordJob(ctx, status)
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue batch job")
	}
	return &status, nil
}

// BatchStatus reports an asynchronous batch job.
func (s *RoutineGeneratorService) BatchStatus(ctx context.Context, id string) (*dto.BatchJobResponse, error) {
	var status dto.BatchJobResponse
	if hit, _ := s.cache.Get(ctx, BatchJobKey(id), &status); hit {
		return &status, nil
	}
	if st, ok := s.jobs.Get(id); ok {
		return &st, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "batch job not found")
}

// HandleBatchJob runs a queued batch. It is the queue handler.
func (s *RoutineGeneratorService) HandleBatchJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.BatchGenerateRequest)
	if !ok {
		s.failJob(ctx, job, fmt.Errorf("unexpected payload %T", job.Payload))
		return nil
	}
	status, _ := s.jobs.Get(job.ID)
	status.JobID = job.ID
	status.Status = dto.BatchJobRunning
	status.Attempts = job.Attempt + 1
	status.UpdatedAt = s.now()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = job.Enqueued
	}
	s.recordJob(ctx, status)

	result, err := s.GenerateBatch(ctx, req)
	if err != nil {
		status.Status = dto.BatchJobQueued
		status.Error = err.Error()
		status.UpdatedAt = s.now()
		s.recordJob(ctx, status)
		if appErr := appErrors.FromError(err); appErr.Status < 500 {
			return jobs.Permanent(err)
		}
		return err
	}
	status.Status = dto.BatchJobCompleted
	status.Error = ""
	status.Result = result
	status.UpdatedAt = s.now()
	s.recordJob(ctx, status)
	s.metrics.RecordBatchJob(dto.BatchJobCompleted)
	return nil
}

// MarkBatchExhausted records a job that ran out of retries.
func (s *RoutineGeneratorService) MarkBatchExhausted(job jobs.Job, err error) {
	s.failJob(context.Background(), job, err)
}

func (s *RoutineGeneratorService) failJob(ctx context.Context, job jobs.Job, cause error) {
	status, _ := s.jobs.Get(job.ID)
	status.JobID = job.ID
	status.Status = dto.BatchJobFailed
	status.Attempts = job.Attempt
	if cause != nil {
		status.Error = cause.Error()
	}
	status.UpdatedAt = s.now()
	s.recordJob(ctx, status)
	s.metrics.RecordBatchJob(dto.BatchJobFailed)
	s.logger.Error("routine batch job failed", zap.String("job_id", job.ID), zap.Error(cause))
}

func (s *RoutineGeneratorService) recordJob(ctx context.Context, status dto.BatchJobResponse) {
	s.jobs.Put(status)
	if err := s.cache.Set(ctx, BatchJobKey(status.JobID), status, s.cfg.JobTTL); err != nil {
		s.logger.Warn("batch job status cache write failed", zap.String("job_id", status.JobID), zap.Error(err))
	}
}

// Refactor repairs stored routines and persists those that changed unless
// the request is a dry run.
func (s *RoutineGeneratorService) Refactor(ctx context.Context, req dto.RefactorRequest) (*dto.RefactorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid refactor payload")
	}
	ws, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	var targets []routine.Routine
	switch {
	case len(req.RoutineIDs) > 0:
		byID := lo.KeyBy(ws.routines, func(r routine.Routine) string { return r.ID })
		for _, id := range lo.Uniq(req.RoutineIDs) {
			r, ok := byID[id]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("routine %s not found", id))
			}
			targets = append(targets, r)
		}
	case strings.TrimSpace(req.TargetDepartment) != "":
		targets = lo.Filter(ws.routines, func(r routine.Routine, _ int) bool {
			return s.cfg.Departments.Match(r.Department, req.TargetDepartment)
		})
	default:
		targets = ws.routines
	}
	if len(targets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no routines match the refactor request")
	}

	start := time.Now()
	result := s.generator(0).Refactor(targets, routine.RefactorConfig{
		ReduceLab:        req.ReduceLab,
		TargetDepartment: req.TargetDepartment,
		Rooms:            ws.rooms,
		Routines:         ws.routines,
		Constraints:      ws.constraints,
	})
	s.metrics.ObserveRefactor(result.Changes, time.Since(start))

	resp := &dto.RefactorResponse{Changes: result.Changes, Log: result.Log, Message: result.Message, DryRun: req.DryRun}
	if req.DryRun || result.Changes == 0 {
		return resp, nil
	}

	changedIDs := lo.SliceToMap(result.Log, func(c routine.RefactorChange) (string, bool) { return c.RoutineID, true })
	changed := lo.Filter(result.Routines, func(r routine.Routine, _ int) bool { return changedIDs[r.ID] })
	if err := s.persist(ctx, changed); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, events.SubjectRoutineRefactored, map[string]interface{}{
		"routines": lo.Keys(changedIDs),
		"changes":  result.Changes,
	})
	return resp, nil
}

func toAssignments(items []dto.AssignmentRequest) ([]routine.Assignment, error) {
	out := make([]routine.Assignment, 0, len(items))
	for _, a := range items {
		assignment := routine.Assignment{Teacher: strings.TrimSpace(a.Teacher)}
		for _, b := range a.BlockedTimes {
			day, err := routine.ParseWeekday(b.Day)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked time day")
			}
			if _, err := routine.NewWindow(b.StartTime, b.EndTime); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked time window")
			}
			assignment.BlockedTimes = append(assignment.BlockedTimes, routine.BlockedTime{Day: day, StartTime: b.StartTime, EndTime: b.EndTime})
		}
		for _, sa := range a.Subjects {
			if sa.TheoryCount+sa.LabCount == 0 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s requests no periods", sa.Subject))
			}
			assignment.Subjects = append(assignment.Subjects, routine.SubjectAssignment{
				Subject:      strings.TrimSpace(sa.Subject),
				SubjectCode:  strings.TrimSpace(sa.SubjectCode),
				TheoryCount:  sa.TheoryCount,
				LabCount:     sa.LabCount,
				Technologies: sa.Technologies,
				MergedGroups: sa.MergedGroups,
			})
		}
		out = append(out, assignment)
	}
	return out, nil
}

// batchJobStore keeps job status in memory for when the cache is disabled.
type batchJobStore struct {
	mu    sync.RWMutex
	items map[string]dto.BatchJobResponse
}

func newBatchJobStore() *batchJobStore {
	return &batchJobStore{items: make(map[string]dto.BatchJobResponse)}
}

func (s *batchJobStore) Put(status dto.BatchJobResponse) {
	s.mu.Lock()
	s.items[status.JobID] = status
	s.mu.Unlock()
}

func (s *batchJobStore) Get(id string) (dto.BatchJobResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.items[id]
	return status, ok
}
