package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	assert.False(t, repo.Enabled())

	var dest map[string]int
	err := repo.Get(context.Background(), "dashboard:summary", &dest)
	require.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(context.Background(), "dashboard:summary", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repo.Delete(context.Background(), "dashboard:summary"))
	require.NoError(t, repo.Close())
}
