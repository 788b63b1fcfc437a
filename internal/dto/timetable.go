package dto

import (
	"encoding/json"
	"time"
)

// WarningCode classifies advisory outcomes of a generation run.
type WarningCode string

const (
	WarningPartialPlacement WarningCode = "PARTIAL_PLACEMENT"
	WarningQuotaOverflow    WarningCode = "QUOTA_OVERFLOW"
	WarningConflict         WarningCode = "CONFLICT"
	WarningNonDeterministic WarningCode = "NON_DETERMINISTIC"
	WarningClassSkipped     WarningCode = "CLASS_SKIPPED"
)

// TimetableWarning never blocks persistence; it explains a degraded result.
type TimetableWarning struct {
	Code    WarningCode    `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// GridSlotView is one cell of the weekly grid.
type GridSlotView struct {
	Day        string `json:"day"`
	DayOfWeek  int    `json:"dayOfWeek"`
	Period     int    `json:"period"`
	Start      string `json:"start"`
	End        string `json:"end"`
	IsBreak    bool   `json:"isBreak"`
	BreakLabel string `json:"breakLabel,omitempty"`
}

// GridResponse describes the configured school week.
type GridResponse struct {
	WorkingDays []string       `json:"workingDays"`
	Slots       []GridSlotView `json:"slots"`
	OpenSlots   int            `json:"openSlots"`
}

// TimetableSlotView is an assigned lesson.
type TimetableSlotView struct {
	Day         string `json:"day"`
	DayOfWeek   int    `json:"dayOfWeek"`
	Period      int    `json:"period"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName,omitempty"`
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName,omitempty"`
}

// ConflictView is a detected timetable conflict.
type ConflictView struct {
	Type        string   `json:"type"`
	Day         string   `json:"day"`
	DayOfWeek   int      `json:"dayOfWeek"`
	Period      int      `json:"period"`
	TeacherID   string   `json:"teacherId,omitempty"`
	TeacherName string   `json:"teacherName,omitempty"`
	ClassIDs    []string `json:"classIds"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
}

// GenerateTimetableRequest asks for a preview timetable of one class.
type GenerateTimetableRequest struct {
	ClassID  string `json:"classId" validate:"required"`
	Strategy string `json:"strategy" validate:"omitempty,oneof=stable round_robin shuffle weighted"`
	// Seed fixes randomized strategies; omitted means a seed is drawn and reported.
	Seed *int64 `json:"seed"`
	// SeedBusyFromSchool treats teachers booked by other classes as unavailable.
	SeedBusyFromSchool bool `json:"seedBusyFromSchool"`
}

// GenerateTimetableResponse is a generated, not yet persisted, proposal.
type GenerateTimetableResponse struct {
	ProposalID    string              `json:"proposalId"`
	ClassID       string              `json:"classId"`
	ClassName     string              `json:"className"`
	Strategy      string              `json:"strategy"`
	Seed          *int64              `json:"seed,omitempty"`
	Deterministic bool                `json:"deterministic"`
	Assignments   []TimetableSlotView `json:"assignments"`
	Quotas        map[string]int      `json:"quotas"`
	Remaining     map[string]int      `json:"remaining"`
	Overflow      map[string]int      `json:"overflow"`
	Unfilled      []GridSlotView      `json:"unfilled"`
	Conflicts     []ConflictView      `json:"conflicts"`
	Warnings      []TimetableWarning  `json:"warnings"`
	GeneratedAt   time.Time           `json:"generatedAt"`
	ExpiresAt     time.Time           `json:"expiresAt"`
}

// SaveTimetableRequest persists a proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// SaveTimetableResponse reports the persisted run.
type SaveTimetableResponse struct {
	RunID     string             `json:"runId"`
	ClassID   string             `json:"classId"`
	Version   int                `json:"version"`
	SlotCount int                `json:"slotCount"`
	Conflicts []ConflictView     `json:"conflicts"`
	Warnings  []TimetableWarning `json:"warnings"`
}

// BatchGenerateRequest regenerates and persists many classes at once.
type BatchGenerateRequest struct {
	// ClassIDs empty means every class.
	ClassIDs           []string `json:"classIds" validate:"omitempty,dive,required"`
	Strategy           string   `json:"strategy" validate:"omitempty,oneof=stable round_robin shuffle weighted"`
	Seed               *int64   `json:"seed"`
	SeedBusyFromSchool bool     `json:"seedBusyFromSchool"`
}

// BatchClassResult summarises one class of a batch.
type BatchClassResult struct {
	ClassID   string             `json:"classId"`
	ClassName string             `json:"className"`
	RunID     string             `json:"runId,omitempty"`
	Version   int                `json:"version,omitempty"`
	SlotCount int                `json:"slotCount"`
	Unfilled  int                `json:"unfilled"`
	Overflow  map[string]int     `json:"overflow,omitempty"`
	Skipped   bool               `json:"skipped,omitempty"`
	Warnings  []TimetableWarning `json:"warnings"`
}

// BatchGenerateResponse reports a persisted batch and the school-wide conflicts after it.
type BatchGenerateResponse struct {
	Strategy      string             `json:"strategy"`
	Seed          *int64             `json:"seed,omitempty"`
	Deterministic bool               `json:"deterministic"`
	Classes       []BatchClassResult `json:"classes"`
	Conflicts     []ConflictView     `json:"conflicts"`
	Warnings      []TimetableWarning `json:"warnings"`
	CompletedAt   time.Time          `json:"completedAt"`
}

// BatchJobStatus reports the state of a queued batch regeneration.
type BatchJobStatus struct {
	JobID      string                 `json:"jobId"`
	Status     string                 `json:"status"`
	Attempts   int                    `json:"attempts"`
	Result     *BatchGenerateResponse `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	EnqueuedAt time.Time              `json:"enqueuedAt"`
	StartedAt  *time.Time             `json:"startedAt,omitempty"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
}

// ClassTimetableResponse is the persisted timetable of a class.
type ClassTimetableResponse struct {
	ClassID   string              `json:"classId"`
	ClassName string              `json:"className"`
	Slots     []TimetableSlotView `json:"slots"`
}

// TimetableRunView is one persisted generation of a class timetable.
type TimetableRunView struct {
	ID        string          `json:"id"`
	ClassID   string          `json:"classId"`
	Version   int             `json:"version"`
	Strategy  string          `json:"strategy"`
	Seed      *int64          `json:"seed,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EditSlotRequest sets or clears one cell of a class timetable.
type EditSlotRequest struct {
	ClassID   string `json:"-" validate:"required"`
	Day       string `json:"day" validate:"required"`
	Period    int    `json:"period" validate:"required,min=1"`
	SubjectID string `json:"subjectId" validate:"required_without=Clear"`
	TeacherID string `json:"teacherId" validate:"required_without=Clear"`
	Clear     bool   `json:"clear"`
}

// EditSlotResponse returns the edited timetable with school-wide conflicts.
type EditSlotResponse struct {
	Timetable ClassTimetableResponse `json:"timetable"`
	Conflicts []ConflictView         `json:"conflicts"`
}

// ConflictReport is the school-wide conflict dashboard payload.
type ConflictReport struct {
	Conflicts   []ConflictView `json:"conflicts"`
	Total       int            `json:"total"`
	BySeverity  map[string]int `json:"bySeverity"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Cached      bool           `json:"cached"`
}
