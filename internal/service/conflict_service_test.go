package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type slotListerStub struct {
	slots []models.TimetableSlot
	err   error
	calls int
}

func (s *slotListerStub) ListAll(ctx context.Context) ([]models.TimetableSlot, error) {
	s.calls++
	return s.slots, s.err
}

type teacherNamesStub map[string]string

func (s teacherNamesStub) ListNames(ctx context.Context) (map[string]string, error) {
	return s, nil
}

type memoryConflictCache struct {
	entries map[string][]byte
	deletes int
}

func newMemoryConflictCache() *memoryConflictCache {
	return &memoryConflictCache{entries: make(map[string][]byte)}
}

func (c *memoryConflictCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryConflictCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryConflictCache) Delete(ctx context.Context, keys ...string) error {
	c.deletes++
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func doubleBookedSlots() []models.TimetableSlot {
	return []models.TimetableSlot{
		{ClassID: "class-1", DayOfWeek: 1, Period: 2, SubjectID: "math", TeacherID: "t-1"},
		{ClassID: "class-2", DayOfWeek: 1, Period: 2, SubjectID: "math", TeacherID: "t-1"},
		{ClassID: "class-2", DayOfWeek: 1, Period: 3, SubjectID: "english", TeacherID: "t-2"},
	}
}

func TestConflictServiceDetectUsesTeacherNames(t *testing.T) {
	slots := &slotListerStub{slots: doubleBookedSlots()}
	metrics := NewMetricsService()
	svc := NewConflictService(slots, teacherNamesStub{"t-1": "Budi"}, nil, metrics, time.Minute, zap.NewNop())

	report, err := svc.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Total)
	conflict := report.Conflicts[0]
	assert.Equal(t, string(timetable.ConflictTeacherDoubleBooking), conflict.Type)
	assert.Equal(t, "Budi", conflict.TeacherName)
	assert.Equal(t, []string{"class-1", "class-2"}, conflict.ClassIDs)
	assert.Equal(t, 1, report.BySeverity[conflict.Severity])
	assert.False(t, report.Cached)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.conflicts.WithLabelValues(conflict.Severity)))
}

func TestConflictServiceDetectServesFromCache(t *testing.T) {
	slots := &slotListerStub{slots: doubleBookedSlots()}
	cache := newMemoryConflictCache()
	svc := NewConflictService(slots, nil, cache, nil, time.Minute, nil)

	first, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, slots.calls)

	require.NoError(t, svc.Invalidate(context.Background()))
	third, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, slots.calls)
}

func TestConflictServicePreviewReplacesClasses(t *testing.T) {
	slots := &slotListerStub{slots: doubleBookedSlots()}
	svc := NewConflictService(slots, nil, nil, nil, time.Minute, nil)

	proposed := []timetable.Assignment{
		{ClassID: "class-2", Day: timetable.Monday, Period: 2, SubjectID: "english", TeacherID: "t-2"},
	}
	conflicts, err := svc.Preview(context.Background(), []string{"class-2"}, proposed)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	proposed[0].TeacherID = "t-1"
	conflicts, err = svc.Preview(context.Background(), []string{"class-2"}, proposed)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestConflictServiceDetectLoadError(t *testing.T) {
	slots := &slotListerStub{err: errors.New("db down")}
	svc := NewConflictService(slots, nil, nil, nil, time.Minute, nil)

	_, err := svc.Detect(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
