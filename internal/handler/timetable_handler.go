package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

const maxBatchClasses = 256

type timetablePreviewResponse struct {
	Mode     string                         `json:"mode"`
	Proposal *dto.GenerateTimetableResponse `json:"proposal"`
}

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error)
	GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	EnqueueBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchJobStatus, error)
	BatchStatus(ctx context.Context, jobID string) (*dto.BatchJobStatus, error)
	ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error)
	ClassRuns(ctx context.Context, classID string) ([]dto.TimetableRunView, error)
	EditSlot(ctx context.Context, req dto.EditSlotRequest) (*dto.EditSlotResponse, error)
	Grid(ctx context.Context) *dto.GridResponse
}

type conflictReporter interface {
	Detect(ctx context.Context) (*dto.ConflictReport, error)
}

type timetableExporter interface {
	ClassTimetable(ctx context.Context, classID string, format service.ExportFormat) (*service.ExportFile, error)
}

// TimetableHandler exposes timetable generation, editing and reporting endpoints.
type TimetableHandler struct {
	service   timetableGenerator
	conflicts conflictReporter
	exporter  timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, conflicts *service.ConflictService, exporter *service.ExportService) *TimetableHandler {
	return &TimetableHandler{service: svc, conflicts: conflicts, exporter: exporter}
}

// Grid godoc
// @Summary Weekly grid
// @Description Working days, periods and breaks the generator fills.
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Grid(c.Request.Context()))
}

// Generate godoc
// @Summary Generate timetable proposal for a class
// @Description Builds a preview. Nothing is persisted until the proposal is saved.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generate timetable payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetablePreviewResponse{Mode: "preview", Proposal: result})
}

// Save godoc
// @Summary Persist timetable proposal
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save timetable payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GenerateBatch godoc
// @Summary Regenerate timetables for many classes
// @Description Generates and persists every listed class (all classes when empty) and reports school-wide conflicts.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/batch [post]
func (h *TimetableHandler) GenerateBatch(c *gin.Context) {
	req, ok := bindBatchRequest(c)
	if !ok {
		return
	}
	result, err := h.service.GenerateBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// EnqueueBatch godoc
// @Summary Queue a batch regeneration
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/batch/jobs [post]
func (h *TimetableHandler) EnqueueBatch(c *gin.Context) {
	req, ok := bindBatchRequest(c)
	if !ok {
		return
	}
	status, err := h.service.EnqueueBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// BatchStatus godoc
// @Summary Batch job status
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/batch/jobs/{id} [get]
func (h *TimetableHandler) BatchStatus(c *gin.Context) {
	status, err := h.service.BatchStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Conflicts godoc
// @Summary School-wide timetable conflicts
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	report, err := h.conflicts.Detect(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{"cached": report.Cached})
}

// ClassTimetable godoc
// @Summary Persisted timetable of a class
// @Tags Timetables
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/timetable [get]
func (h *TimetableHandler) ClassTimetable(c *gin.Context) {
	result, err := h.service.ClassTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ClassRuns godoc
// @Summary Generation history of a class
// @Tags Timetables
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/timetable/runs [get]
func (h *TimetableHandler) ClassRuns(c *gin.Context) {
	runs, err := h.service.ClassRuns(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"total": len(runs)})
}

// EditSlot godoc
// @Summary Set or clear one timetable cell
// @Description Returns the edited timetable and the school-wide conflicts after the edit. Conflicts never block the edit.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.EditSlotRequest true "Slot edit payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/timetable/slots [patch]
func (h *TimetableHandler) EditSlot(c *gin.Context) {
	var req dto.EditSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot edit payload"))
		return
	}
	req.ClassID = c.Param("id")
	result, err := h.service.EditSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Download a class timetable
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ClassTimetable(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func bindBatchRequest(c *gin.Context) (dto.BatchGenerateRequest, bool) {
	var req dto.BatchGenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
			return req, false
		}
	}
	if len(req.ClassIDs) > maxBatchClasses {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classIds exceeds supported limit"))
		return req, false
	}
	return req, true
}
