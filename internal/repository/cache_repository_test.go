package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

func TestCacheRepositoryNilReceiverIsPassThrough(t *testing.T) {
	var repo *CacheRepository
	ctx := context.Background()

	var dest struct{ Value int }
	err := repo.Get(ctx, "gpa:5", &dest)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)

	assert.NoError(t, repo.Set(ctx, "gpa:5", dest, 0))
	assert.NoError(t, repo.Delete(ctx, "gpa:5"))
	assert.NoError(t, repo.DeleteByPattern(ctx, "gpa:*"))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryNilClientIsPassThrough(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest struct{ Value int }
	err := repo.Get(ctx, "roster:7", &dest)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "roster:7", dest, 0))
}
