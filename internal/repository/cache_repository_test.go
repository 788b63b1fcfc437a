package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "timetable:conflicts", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "timetable:conflicts", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "timetable:conflicts"))
	assert.NoError(t, repo.Close())
}
