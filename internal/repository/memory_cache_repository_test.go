package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

func TestMemoryCacheRepositoryExpiresEntries(t *testing.T) {
	repo := NewMemoryCacheRepository(8, time.Hour)
	now := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "report:a", map[string]int{"n": 1}, time.Minute))

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "report:a", &got))
	assert.Equal(t, 1, got["n"])

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "report:a", &got), appErrors.ErrCacheMiss)
	assert.Zero(t, repo.Len())
}

func TestMemoryCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := NewMemoryCacheRepository(8, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "report:a", 1, 0))
	require.NoError(t, repo.Set(ctx, "report:b", 2, 0))
	require.NoError(t, repo.Set(ctx, "alerts:a", 3, 0))

	removed, err := repo.DeleteByPattern(ctx, "report:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var v int
	assert.ErrorIs(t, repo.Get(ctx, "report:a", &v), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "alerts:a", &v))
	assert.Equal(t, 3, v)

	_, err = repo.DeleteByPattern(ctx, "[")
	assert.Error(t, err)
}
