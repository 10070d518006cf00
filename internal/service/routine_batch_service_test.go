package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/events"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
)

func batchRequest() dto.BatchGenerateRequest {
	return dto.BatchGenerateRequest{Assignments: []dto.AssignmentRequest{{
		Teacher:      "Rahim",
		BlockedTimes: []dto.BlockedTimeRequest{{Day: "sunday", StartTime: "08:00", EndTime: "13:15"}},
		Subjects: []dto.SubjectAssignmentRequest{{
			Subject:      "Physics",
			SubjectCode:  "PHY",
			TheoryCount:  2,
			Technologies: []string{"CST|1|1st|A", "CST|1|1st|B"},
			MergedGroups: map[string][]string{"CST|1|1st|A": {"CST|1|1st|B"}},
		}},
	}}}
}

func TestRoutineGeneratorServiceGenerateBatch(t *testing.T) {
	f := newRoutineServiceFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.svc.GenerateBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Failures)
	assert.Len(t, resp.Created, 2)
	assert.Len(t, resp.Updated, 2)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	require.Len(t, f.repo.upserted, 2)
	for _, record := range f.repo.upserted {
		r, err := record.ToDomain()
		require.NoError(t, err)
		for _, s := range r.Sessions() {
			assert.NotEqual(t, routine.Sunday, s.Day, "blocked day must stay free")
			assert.True(t, s.Session.IsMerged)
		}
	}
	assert.Equal(t, []string{events.SubjectBatchCompleted}, f.publisher.subjects)
}

func TestRoutineGeneratorServiceGenerateBatchValidation(t *testing.T) {
	f := newRoutineServiceFixture(t)

	req := batchRequest()
	req.Assignments[0].BlockedTimes[0].Day = "Saturday"
	_, err := f.svc.GenerateBatch(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	req = batchRequest()
	req.Assignments[0].Subjects[0].TheoryCount = 0
	_, err = f.svc.GenerateBatch(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestRoutineGeneratorServiceBatchJobLifecycle(t *testing.T) {
	f := newRoutineServiceFixture(t)
	dispatcher := &dispatcherStub{}

	_, err := f.svc.EnqueueBatch(context.Background(), batchRequest())
	assert.Equal(t, appErrors.ErrUnavailable.Code, errorCode(err))

	f.svc.SetDispatcher(dispatcher)
	queued, err := f.svc.EnqueueBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	assert.Equal(t, dto.BatchJobQueued, queued.Status)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, BatchJobType, dispatcher.jobs[0].Type)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.HandleBatchJob(context.Background(), dispatcher.jobs[0]))

	status, err := f.svc.BatchStatus(context.Background(), queued.JobID)
	require.NoError(t, err)
	assert.Equal(t, dto.BatchJobCompleted, status.Status)
	require.NotNil(t, status.Result)
	assert.Len(t, status.Result.Created, 2)
	assert.Equal(t, 1, status.Attempts)

	_, err = f.svc.BatchStatus(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestRoutineGeneratorServiceBatchJobFailures(t *testing.T) {
	f := newRoutineServiceFixture(t)
	f.svc.SetDispatcher(&dispatcherStub{err: errors.New("queue stopped")})

	_, err := f.svc.EnqueueBatch(context.Background(), batchRequest())
	assert.Equal(t, appErrors.ErrUnavailable.Code, errorCode(err))

	require.NoError(t, f.svc.HandleBatchJob(context.Background(), jobs.Job{ID: "bad", Payload: "not a request"}))
	status, err := f.svc.BatchStatus(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, dto.BatchJobFailed, status.Status)

	f.svc.MarkBatchExhausted(jobs.Job{ID: "retry", Attempt: 3}, errors.New("db down"))
	status, err = f.svc.BatchStatus(context.Background(), "retry")
	require.NoError(t, err)
	assert.Equal(t, dto.BatchJobFailed, status.Status)
	assert.Equal(t, "db down", status.Error)
}

func TestRoutineGeneratorServiceRefactor(t *testing.T) {
	broken := storedRoutine("r-a", "A", routine.Monday,
		routine.Session{ID: "t1", StartTime: "08:45", EndTime: "09:30", Subject: "Math", Teacher: "Rahim", Room: routine.RoomUnplaced, Type: routine.Theory})
	fine := storedRoutine("r-b", "B", routine.Monday,
		routine.Session{ID: "t2", StartTime: "10:15", EndTime: "11:00", Subject: "Math", Teacher: "Karim", Room: "101", Type: routine.Theory})
	f := newRoutineServiceFixture(t, broken, fine)

	dry, err := f.svc.Refactor(context.Background(), dto.RefactorRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Changes)
	assert.True(t, dry.DryRun)
	assert.Empty(t, f.repo.upserted)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	resp, err := f.svc.Refactor(context.Background(), dto.RefactorRequest{RoutineIDs: []string{"r-a"}})
	require.NoError(t, err)
	assert.Equal(t, "1 changes applied", resp.Message)
	require.Len(t, f.repo.upserted, 1)
	assert.Equal(t, "r-a", f.repo.upserted[0].ID)
	assert.Equal(t, []string{events.SubjectRoutineRefactored}, f.publisher.subjects)

	_, err = f.svc.Refactor(context.Background(), dto.RefactorRequest{RoutineIDs: []string{"missing"}})
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestRoutineGeneratorServiceRefactorNothingToDo(t *testing.T) {
	f := newRoutineServiceFixture(t, storedRoutine("r-a", "A", routine.Monday))

	resp, err := f.svc.Refactor(context.Background(), dto.RefactorRequest{TargetDepartment: "Computer Science and Technology"})
	require.NoError(t, err)
	assert.Zero(t, resp.Changes)
	assert.Equal(t, routine.MessageNoChanges, resp.Message)

	_, err = f.svc.Refactor(context.Background(), dto.RefactorRequest{TargetDepartment: "CT"})
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestRoutineGeneratorServiceBatchJobClientErrorsAreNotRetried(t *testing.T) {
	f := newRoutineServiceFixture(t)
	req := batchRequest()
	req.Assignments[0].Subjects[0].TheoryCount = 0

	err := f.svc.HandleBatchJob(context.Background(), jobs.Job{ID: "invalid", Payload: req})
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}
