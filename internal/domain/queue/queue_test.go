package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/catalog-sync/internal/testutil"
)

func TestEnqueueIsIdempotent(t *testing.T) {
	cache := testutil.NewFakeCache()
	q := NewWebhookQueue(cache, testutil.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, q.EnqueueSKU(ctx, "app-1", "15"))
	require.NoError(t, q.EnqueueSKU(ctx, "app-1", "15"))

	count, err := q.PendingCount(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDequeueBatchIsBounded(t *testing.T) {
	cache := testutil.NewFakeCache()
	q := NewWebhookQueue(cache, testutil.NewNopLogger())
	ctx := context.Background()

	for _, sku := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, q.EnqueueSKU(ctx, "app-1", sku))
	}

	acquired, err := q.AcquireRunLock(ctx, "app-1")
	require.NoError(t, err)
	require.True(t, acquired)

	batch, err := q.DequeueBatch(ctx, "app-1", 3)
	require.NoError(t, err)
	assert.Len(t, batch, 3)

	// невыбранные SKU остаются в очереди
	count, err := q.PendingCount(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDequeueBatchEmptyQueue(t *testing.T) {
	cache := testutil.NewFakeCache()
	q := NewWebhookQueue(cache, testutil.NewNopLogger())

	batch, err := q.DequeueBatch(context.Background(), "app-1", 100)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestRunLockMutualExclusion(t *testing.T) {
	cache := testutil.NewFakeCache()
	q := NewWebhookQueue(cache, testutil.NewNopLogger())
	ctx := context.Background()

	first, err := q.AcquireRunLock(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := q.AcquireRunLock(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, second)

	locked, err := q.IsRunLocked(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, locked)

	// лок другого приложения независим
	other, err := q.AcquireRunLock(ctx, "app-2")
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, q.ReleaseRunLock(ctx, "app-1"))
	locked, err = q.IsRunLocked(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestDequeueBatchPushesBackOnLockFailure(t *testing.T) {
	cache := testutil.NewFakeCache()
	q := NewWebhookQueue(cache, testutil.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, q.EnqueueSKU(ctx, "app-1", "15"))

	acquired, err := q.AcquireRunLock(ctx, "app-1")
	require.NoError(t, err)
	require.True(t, acquired)

	cache.FailExtendLock = errors.New("connection reset")

	batch, err := q.DequeueBatch(ctx, "app-1", 10)
	require.Error(t, err)
	assert.Nil(t, batch)

	// выбранные SKU возвращены в множество
	count, err := q.PendingCount(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
