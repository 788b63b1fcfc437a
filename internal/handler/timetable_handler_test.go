package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableGeneratorMock struct {
	generateReq dto.GenerateTimetableRequest
	batchReq    dto.BatchGenerateRequest
	editReq     dto.EditSlotRequest
	err         error
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.generateReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{ProposalID: "proposal-1", ClassID: req.ClassID}, nil
}

func (m *timetableGeneratorMock) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	return &dto.SaveTimetableResponse{RunID: "run-1", Version: 2}, nil
}

func (m *timetableGeneratorMock) GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	m.batchReq = req
	return &dto.BatchGenerateResponse{Strategy: "stable"}, nil
}

func (m *timetableGeneratorMock) EnqueueBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchJobStatus, error) {
	m.batchReq = req
	return &dto.BatchJobStatus{JobID: "job-1", Status: "QUEUED"}, nil
}

func (m *timetableGeneratorMock) BatchStatus(ctx context.Context, jobID string) (*dto.BatchJobStatus, error) {
	if jobID != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch job not found")
	}
	return &dto.BatchJobStatus{JobID: jobID, Status: "SUCCEEDED"}, nil
}

func (m *timetableGeneratorMock) ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error) {
	return &dto.ClassTimetableResponse{ClassID: classID}, nil
}

func (m *timetableGeneratorMock) ClassRuns(ctx context.Context, classID string) ([]dto.TimetableRunView, error) {
	return []dto.TimetableRunView{{ID: "run-2", ClassID: classID, Version: 2}, {ID: "run-1", ClassID: classID, Version: 1}}, nil
}

func (m *timetableGeneratorMock) EditSlot(ctx context.Context, req dto.EditSlotRequest) (*dto.EditSlotResponse, error) {
	m.editReq = req
	return &dto.EditSlotResponse{Timetable: dto.ClassTimetableResponse{ClassID: req.ClassID}}, nil
}

func (m *timetableGeneratorMock) Grid(ctx context.Context) *dto.GridResponse {
	return &dto.GridResponse{WorkingDays: []string{"MONDAY"}, OpenSlots: 5}
}

type conflictReporterMock struct{}

func (conflictReporterMock) Detect(ctx context.Context) (*dto.ConflictReport, error) {
	return &dto.ConflictReport{Total: 0, Cached: true}, nil
}

type exporterMock struct {
	format service.ExportFormat
}

func (m *exporterMock) ClassTimetable(ctx context.Context, classID string, format service.ExportFormat) (*service.ExportFile, error) {
	m.format = format
	return &service.ExportFile{Filename: "timetable_X.csv", ContentType: "text/csv", Body: []byte("Period,Monday\n")}, nil
}

func newTimetableRouter(h *TimetableHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/api/v1")
	group.GET("/timetables/grid", h.Grid)
	group.POST("/timetables/generate", h.Generate)
	group.POST("/timetables/save", h.Save)
	group.POST("/timetables/batch", h.GenerateBatch)
	group.POST("/timetables/batch/jobs", h.EnqueueBatch)
	group.GET("/timetables/batch/jobs/:id", h.BatchStatus)
	group.GET("/timetables/conflicts", h.Conflicts)
	group.GET("/classes/:id/timetable", h.ClassTimetable)
	group.GET("/classes/:id/timetable/runs", h.ClassRuns)
	group.PATCH("/classes/:id/timetable/slots", h.EditSlot)
	group.GET("/classes/:id/timetable/export", h.Export)
	return router
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerate(t *testing.T) {
	mockSvc := &timetableGeneratorMock{}
	router := newTimetableRouter(&TimetableHandler{service: mockSvc})

	w := perform(router, http.MethodPost, "/api/v1/timetables/generate", []byte(`{"classId":"class-1","strategy":"shuffle","seed":9}`))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "class-1", mockSvc.generateReq.ClassID)
	require.NotNil(t, mockSvc.generateReq.Seed)
	require.Equal(t, int64(9), *mockSvc.generateReq.Seed)

	var envelope struct {
		Data timetablePreviewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "preview", envelope.Data.Mode)
	require.Equal(t, "proposal-1", envelope.Data.Proposal.ProposalID)
}

func TestTimetableHandlerGenerateMalformedBody(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableGeneratorMock{}})

	w := perform(router, http.MethodPost, "/api/v1/timetables/generate", []byte(`{"classId":`))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerateMapsServiceErrors(t *testing.T) {
	mockSvc := &timetableGeneratorMock{err: appErrors.ErrNoSchedulableSubjects}
	router := newTimetableRouter(&TimetableHandler{service: mockSvc})

	w := perform(router, http.MethodPost, "/api/v1/timetables/generate", []byte(`{"classId":"class-9"}`))

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	require.Contains(t, w.Body.String(), "NO_SCHEDULABLE_SUBJECTS")

	mockSvc.err = errors.New("boom")
	w = perform(router, http.MethodPost, "/api/v1/timetables/generate", []byte(`{"classId":"class-9"}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTimetableHandlerSaveCreated(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableGeneratorMock{}})

	w := perform(router, http.MethodPost, "/api/v1/timetables/save", []byte(`{"proposalId":"proposal-1"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "run-1")
}

func TestTimetableHandlerBatch(t *testing.T) {
	mockSvc := &timetableGeneratorMock{}
	router := newTimetableRouter(&TimetableHandler{service: mockSvc})

	w := perform(router, http.MethodPost, "/api/v1/timetables/batch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, mockSvc.batchReq.ClassIDs)

	w = perform(router, http.MethodPost, "/api/v1/timetables/batch/jobs", []byte(`{"classIds":["class-1"],"seedBusyFromSchool":true}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, []string{"class-1"}, mockSvc.batchReq.ClassIDs)
	require.True(t, mockSvc.batchReq.SeedBusyFromSchool)

	w = perform(router, http.MethodGet, "/api/v1/timetables/batch/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "SUCCEEDED")

	w = perform(router, http.MethodGet, "/api/v1/timetables/batch/jobs/job-2", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerConflicts(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableGeneratorMock{}, conflicts: conflictReporterMock{}})

	w := perform(router, http.MethodGet, "/api/v1/timetables/conflicts", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, true, envelope.Meta["cached"])
}

func TestTimetableHandlerEditSlotUsesPathClass(t *testing.T) {
	mockSvc := &timetableGeneratorMock{}
	router := newTimetableRouter(&TimetableHandler{service: mockSvc})

	w := perform(router, http.MethodPatch, "/api/v1/classes/class-7/timetable/slots", []byte(`{"classId":"ignored","day":"MONDAY","period":2,"subjectId":"math","teacherId":"t-1"}`))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "class-7", mockSvc.editReq.ClassID)
	require.Equal(t, 2, mockSvc.editReq.Period)
}

func TestTimetableHandlerExport(t *testing.T) {
	exporter := &exporterMock{}
	router := newTimetableRouter(&TimetableHandler{service: &timetableGeneratorMock{}, exporter: exporter})

	w := perform(router, http.MethodGet, "/api/v1/classes/class-1/timetable/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, service.ExportFormatCSV, exporter.format)
	require.Contains(t, w.Header().Get("Content-Disposition"), "timetable_X.csv")
	require.Equal(t, "Period,Monday\n", w.Body.String())

	w = perform(router, http.MethodGet, "/api/v1/classes/class-1/timetable/export?format=docx", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGrid(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableGeneratorMock{}})

	w := perform(router, http.MethodGet, "/api/v1/timetables/grid", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"openSlots":5`)
}

func TestTimetableHandlerClassRuns(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableGeneratorMock{}})

	w := perform(router, http.MethodGet, "/api/v1/classes/class-1/timetable/runs", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []dto.TimetableRunView `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	require.Equal(t, float64(2), envelope.Meta["total"])
}
