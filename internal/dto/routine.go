package dto

import (
	"time"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

// RoutineTarget identifies the routine a request works on.
type RoutineTarget struct {
	Department string `json:"department" validate:"required"`
	Semester   string `json:"semester" validate:"required"`
	Shift      string `json:"shift" validate:"required"`
	Group      string `json:"group" validate:"required"`
}

// LoadItemRequest is one subject requirement for the target group.
type LoadItemRequest struct {
	Subject     string `json:"subject" validate:"required"`
	SubjectCode string `json:"subjectCode"`
	Teacher     string `json:"teacher" validate:"required"`
	TheoryCount int    `json:"theoryCount" validate:"min=0,max=10"`
	LabCount    int    `json:"labCount" validate:"min=0,max=10"`
}

// ConstraintRequest is an ad-hoc teacher unavailability window.
type ConstraintRequest struct {
	Teacher   string `json:"teacher" validate:"required"`
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// GenerateRoutineRequest asks for a routine proposal. Stored teacher
// constraints are merged with the ad-hoc ones.
type GenerateRoutineRequest struct {
	Target         RoutineTarget       `json:"target" validate:"required"`
	Loads          []LoadItemRequest   `json:"loads" validate:"required,min=1,dive"`
	Constraints    []ConstraintRequest `json:"constraints" validate:"omitempty,dive"`
	CombineClasses bool                `json:"combineClasses"`
	ReduceLab      bool                `json:"reduceLab"`
	LinkedGroups   []string            `json:"linkedGroups"`
	Seed           int64               `json:"seed"`
}

// GenerateRoutineResponse returns the proposal.
type GenerateRoutineResponse struct {
	ProposalID string                 `json:"proposalId"`
	Target     RoutineTarget          `json:"target"`
	Days       []routine.Day          `json:"days"`
	Unplaced   []routine.UnplacedItem `json:"unplaced"`
	Merges     []routine.MergeLink    `json:"merges,omitempty"`
	Stats      routine.Stats          `json:"stats"`
	ExpiresAt  time.Time              `json:"expiresAt"`
}

// SaveRoutineRequest persists a stored proposal.
type SaveRoutineRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// SaveRoutineResponse reports the persisted routine.
type SaveRoutineResponse struct {
	RoutineID string `json:"routineId"`
	Merged    int    `json:"merged"`
}

// BlockedTimeRequest is a recurring unavailability in batch input.
type BlockedTimeRequest struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// SubjectAssignmentRequest lists the technologies a subject is taught to.
type SubjectAssignmentRequest struct {
	Subject      string              `json:"subject" validate:"required"`
	SubjectCode  string              `json:"subjectCode"`
	TheoryCount  int                 `json:"theoryCount" validate:"min=0,max=10"`
	LabCount     int                 `json:"labCount" validate:"min=0,max=10"`
	Technologies []string            `json:"technologies" validate:"required,min=1"`
	MergedGroups map[string][]string `json:"mergedGroups"`
}

// AssignmentRequest is one teacher's load.
type AssignmentRequest struct {
	Teacher      string                     `json:"teacher" validate:"required"`
	BlockedTimes []BlockedTimeRequest       `json:"blockedTimes" validate:"omitempty,dive"`
	Subjects     []SubjectAssignmentRequest `json:"subjects" validate:"required,min=1,dive"`
}

// BatchGenerateRequest schedules many teachers across many routines.
type BatchGenerateRequest struct {
	Assignments []AssignmentRequest `json:"assignments" validate:"required,min=1,dive"`
	Seed        int64               `json:"seed"`
}

// BatchGenerateResponse summarises a batch run.
type BatchGenerateResponse struct {
	Updated  []string               `json:"updated"`
	Created  []string               `json:"created"`
	Failures []routine.BatchFailure `json:"failures"`
	Stats    routine.Stats          `json:"stats"`
}

// BatchJobStatus values.
const (
	BatchJobQueued    = "QUEUED"
	BatchJobRunning   = "RUNNING"
	BatchJobCompleted = "COMPLETED"
	BatchJobFailed    = "FAILED"
)

// BatchJobResponse is the status of an asynchronous batch.
type BatchJobResponse struct {
	JobID     string                 `json:"jobId"`
	Status    string                 `json:"status"`
	Attempts  int                    `json:"attempts"`
	Error     string                 `json:"error,omitempty"`
	Result    *BatchGenerateResponse `json:"result,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// RefactorRequest repairs stored routines. An empty RoutineIDs repairs every
// routine of TargetDepartment, or all routines when that is empty too.
type RefactorRequest struct {
	RoutineIDs       []string `json:"routineIds"`
	TargetDepartment string   `json:"targetDepartment"`
	ReduceLab        bool     `json:"reduceLab"`
	DryRun           bool     `json:"dryRun"`
}

// RefactorResponse reports what changed.
type RefactorResponse struct {
	Changes int                      `json:"changes"`
	Log     []routine.RefactorChange `json:"log"`
	Message string                   `json:"message"`
	DryRun  bool                     `json:"dryRun"`
}

// RoutineQuery filters routine listings.
type RoutineQuery struct {
	Department string `form:"department"`
	Semester   string `form:"semester"`
	Shift      string `form:"shift"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}

// ConflictReport lists the violations found in a routine.
type ConflictReport struct {
	RoutineID  string              `json:"routineId"`
	Violations []routine.Violation `json:"violations"`
}
