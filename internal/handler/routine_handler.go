package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	"github.com/noah-isme/campus-routine-api/internal/service"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/response"
)

const (
	maxLoadItems   = 128
	maxAssignments = 256
)

type routinePreviewResponse struct {
	Mode     string                       `json:"mode"`
	Proposal *dto.GenerateRoutineResponse `json:"proposal"`
}

type routineGenerator interface {
	Generate(ctx context.Context, req dto.GenerateRoutineRequest) (*dto.GenerateRoutineResponse, error)
	Save(ctx context.Context, req dto.SaveRoutineRequest) (*dto.SaveRoutineResponse, error)
	GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	EnqueueBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchJobResponse, error)
	BatchStatus(ctx context.Context, id string) (*dto.BatchJobResponse, error)
	Refactor(ctx context.Context, req dto.RefactorRequest) (*dto.RefactorResponse, error)
	List(ctx context.Context, query dto.RoutineQuery) ([]routine.Routine, *models.Pagination, error)
	Get(ctx context.Context, id string) (*routine.Routine, error)
	Delete(ctx context.Context, id string) error
	Conflicts(ctx context.Context, id string) (*dto.ConflictReport, error)
}

type routineExporter interface {
	Export(ctx context.Context, id, format string) (*service.ExportFile, error)
	Link(ctx context.Context, id, format string) (*service.ExportLink, error)
	Download(token string) (*service.ExportFile, error)
}

// RoutineHandler exposes class routine endpoints.
type RoutineHandler struct {
	service  routineGenerator
	exporter routineExporter
	logger   *zap.Logger
}

// NewRoutineHandler constructs the handler.
func NewRoutineHandler(svc *service.RoutineGeneratorService, exporter *service.RoutineExportService, logger *zap.Logger) *RoutineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutineHandler{service: svc, exporter: exporter, logger: logger}
}

// Generate godoc
// @Summary Generate a routine proposal
// @Description Places the teaching load into the target routine and returns a preview that can be saved before it expires.
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRoutineRequest true "Generate routine payload"
// @Success 200 {object} response.Envelope
// @Router /routines/generate [post]
func (h *RoutineHandler) Generate(c *gin.Context) {
	var req dto.GenerateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid generate payload"))
		return
	}
	if len(req.Loads) > maxLoadItems {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "loads exceeds supported limit"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, routinePreviewResponse{Mode: "preview", Proposal: result}, nil)
}

// Save godoc
// @Summary Persist a routine proposal
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.SaveRoutineRequest true "Save routine payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /routines/save [post]
func (h *RoutineHandler) Save(c *gin.Context) {
	var req dto.SaveRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid save payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "routine saved", zap.String("routine_id", result.RoutineID))
	response.Created(c, result)
}

// GenerateBatch godoc
// @Summary Generate routines for several teachers at once
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /routines/batch [post]
func (h *RoutineHandler) GenerateBatch(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	result, err := h.service.GenerateBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "routine batch generated", zap.Int("updated", len(result.Updated)), zap.Int("failures", len(result.Failures)))
	response.JSON(c, http.StatusOK, result, nil)
}

// EnqueueBatch godoc
// @Summary Queue a batch generation job
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /routines/batch/jobs [post]
func (h *RoutineHandler) EnqueueBatch(c *gin.Context) {
	req, ok := h.bindBatch(c)
	if !ok {
		return
	}
	job, err := h.service.EnqueueBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "routine batch queued", zap.String("job_id", job.JobID))
	response.Accepted(c, job)
}

// BatchStatus godoc
// @Summary Get batch job status
// @Tags Routines
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /routines/batch/jobs/{id} [get]
func (h *RoutineHandler) BatchStatus(c *gin.Context) {
	job, err := h.service.BatchStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Refactor godoc
// @Summary Repair stored routines
// @Description Moves sessions out of clashes and into free rooms. dryRun reports the changes without saving them.
// @Tags Routines
// @Accept json
// @Produce json
// @Param payload body dto.RefactorRequest true "Refactor payload"
// @Success 200 {object} response.Envelope
// @Router /routines/refactor [post]
func (h *RoutineHandler) Refactor(c *gin.Context) {
	var req dto.RefactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid refactor payload"))
		return
	}
	result, err := h.service.Refactor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !req.DryRun {
		h.audit(c, "routines refactored", zap.Int("changes", result.Changes))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List routines
// @Tags Routines
// @Produce json
// @Param department query string false "Department code or name"
// @Param semester query string false "Semester"
// @Param shift query string false "Shift"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /routines [get]
func (h *RoutineHandler) List(c *gin.Context) {
	var query dto.RoutineQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query parameters"))
		return
	}
	items, page, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, page)
}

// Get godoc
// @Summary Get a routine
// @Tags Routines
// @Produce json
// @Param id path string true "Routine ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /routines/{id} [get]
func (h *RoutineHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Conflicts godoc
// @Summary Audit a routine for clashes
// @Tags Routines
// @Produce json
// @Param id path string true "Routine ID"
// @Success 200 {object} response.Envelope
// @Router /routines/{id}/conflicts [get]
func (h *RoutineHandler) Conflicts(c *gin.Context) {
	report, err := h.service.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export a routine as PDF or CSV
// @Description With link=true the file is stored and a signed download link is returned instead.
// @Tags Routines
// @Produce application/pdf
// @Produce text/csv
// @Produce json
// @Param id path string true "Routine ID"
// @Param format query string false "pdf or csv" Enums(pdf, csv)
// @Param link query bool false "Return a signed download link"
// @Success 200 {file} file
// @Router /routines/{id}/export [get]
func (h *RoutineHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "pdf")
	if link, _ := strconv.ParseBool(c.Query("link")); link {
		result, err := h.exporter.Link(c.Request.Context(), c.Param("id"), format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, result)
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Download godoc
// @Summary Download a stored export through its signed token
// @Tags Routines
// @Produce application/pdf
// @Produce text/csv
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Router /exports/{token} [get]
func (h *RoutineHandler) Download(c *gin.Context) {
	file, err := h.exporter.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Delete godoc
// @Summary Delete a routine
// @Tags Routines
// @Param id path string true "Routine ID"
// @Success 204
// @Router /routines/{id} [delete]
func (h *RoutineHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "routine deleted", zap.String("routine_id", c.Param("id")))
	response.NoContent(c)
}

func (h *RoutineHandler) bindBatch(c *gin.Context) (dto.BatchGenerateRequest, bool) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid batch payload"))
		return req, false
	}
	if len(req.Assignments) > maxAssignments {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "assignments exceeds supported limit"))
		return req, false
	}
	return req, true
}

func (h *RoutineHandler) audit(c *gin.Context, msg string, fields ...zap.Field) {
	if claims, ok := middleware.CurrentClaims(c); ok {
		fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
	}
	h.logger.Info(msg, fields...)
}
