package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ConflictCacheKey holds the cached school-wide conflict report.
const ConflictCacheKey = "timetable:conflicts"

type schoolSlotLister interface {
	ListAll(ctx context.Context) ([]models.TimetableSlot, error)
}

type teacherNameLister interface {
	ListNames(ctx context.Context) (map[string]string, error)
}

type conflictCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ConflictService detects teacher double-bookings across every persisted class timetable.
type ConflictService struct {
	slots    schoolSlotLister
	teachers teacherNameLister
	cache    conflictCache
	metrics  *MetricsService
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewConflictService wires the conflict detector. cache and metrics may be nil.
func NewConflictService(slots schoolSlotLister, teachers teacherNameLister, cache conflictCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ConflictService{
		slots:    slots,
		teachers: teachers,
		cache:    cache,
		metrics:  metrics,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Detect returns the school-wide conflict report, served from cache when fresh.
func (s *ConflictService) Detect(ctx context.Context) (*dto.ConflictReport, error) {
	if s.cache != nil {
		var cached dto.ConflictReport
		hit, err := s.cache.Get(ctx, ConflictCacheKey, &cached)
		if err == nil && hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	slots, err := s.slots.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slots")
	}
	conflicts, err := s.detect(ctx, slotsToAssignments(slots))
	if err != nil {
		return nil, err
	}

	report := &dto.ConflictReport{
		Conflicts:   conflictViews(conflicts),
		Total:       len(conflicts),
		BySeverity:  countBySeverity(conflicts),
		GeneratedAt: s.now(),
	}
	s.metrics.SetConflicts(report.BySeverity)

	if s.cache != nil {
		if err := s.cache.Set(ctx, ConflictCacheKey, report, s.ttl); err != nil {
			s.logger.Warn("failed to cache conflict report", zap.Error(err))
		}
	}
	return report, nil
}

// Preview runs detection over the persisted timetables with the classes in
// replaced swapped for proposed. Nothing is cached.
func (s *ConflictService) Preview(ctx context.Context, replaced []string, proposed []timetable.Assignment) ([]timetable.Conflict, error) {
	slots, err := s.slots.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slots")
	}
	skip := make(map[string]struct{}, len(replaced))
	for _, id := range replaced {
		skip[id] = struct{}{}
	}
	kept := make([]models.TimetableSlot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := skip[slot.ClassID]; ok {
			continue
		}
		kept = append(kept, slot)
	}
	combined := append(slotsToAssignments(kept), proposed...)
	return s.detect(ctx, combined)
}

// Invalidate drops the cached report after timetables change.
func (s *ConflictService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, ConflictCacheKey)
}

func (s *ConflictService) detect(ctx context.Context, assignments []timetable.Assignment) ([]timetable.Conflict, error) {
	var directory timetable.TeacherDirectory
	if s.teachers != nil {
		names, err := s.teachers.ListNames(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher directory")
		}
		directory = timetable.TeacherNames(names)
	}
	return timetable.DetectConflicts(assignments, directory), nil
}

func countBySeverity(conflicts []timetable.Conflict) map[string]int {
	counts := map[string]int{
		string(timetable.SeverityHigh):   0,
		string(timetable.SeverityMedium): 0,
		string(timetable.SeverityLow):    0,
	}
	for _, c := range conflicts {
		counts[string(c.Severity)]++
	}
	return counts
}
