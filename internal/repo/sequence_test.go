package repo

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avdeyev/identity-service/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps sqlite from returning busy errors under the
	// concurrent tests; serialization is the database's job in production.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.SequenceCounter{}))
	return &GormRepo{DB: db}
}

func TestNextID_StartsAtOneAndIncrements(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		got, err := r.NextID(ctx, UserIDCounter)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNextID_IndependentCounters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	a1, err := r.NextID(ctx, "a")
	require.NoError(t, err)
	b1, err := r.NextID(ctx, "b")
	require.NoError(t, err)
	a2, err := r.NextID(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), a1)
	assert.Equal(t, uint64(1), b1)
	assert.Equal(t, uint64(2), a2)
}

func TestNextID_ConcurrentAllocationsAreDistinct(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	const (
		workers = 8
		perEach = 25
	)

	ids := make(chan uint64, workers*perEach)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perEach; i++ {
				id, err := r.NextID(ctx, UserIDCounter)
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, workers*perEach)
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	require.Len(t, seen, workers*perEach)
	// No gaps either: exactly {1..N}.
	for want := uint64(1); want <= workers*perEach; want++ {
		assert.True(t, seen[want], "id %d missing", want)
	}
}
