package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservation/internal/logger"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, logger.NewTestLogger(), 50.0/3.0, 10*time.Minute), mr
}

func enqueueUsers(t *testing.T, q *Queue, eventID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		// Distinct scores keep arrival order deterministic.
		_, err := q.Client.ZAdd(context.Background(), queueKey(eventID), &redis.Z{
			Score:  float64(i),
			Member: fmt.Sprintf("user-%03d", i),
		}).Result()
		require.NoError(t, err)
	}
}

func TestEnqueue_AssignsArrivalRank(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	rank, err := q.Enqueue(ctx, "event-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rank)

	rank, err = q.Enqueue(ctx, "event-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)
}

func TestEnqueue_ReentryKeepsPosition(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-1", 3)

	// user-001 re-enqueues; the original slot must survive.
	rank, err := q.Enqueue(ctx, "event-1", "user-001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	size, err := q.Size(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestRank_NotQueued(t *testing.T) {
	q, _ := newTestQueue(t)

	_, queued, err := q.Rank(context.Background(), "event-1", "ghost")
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestStatus_WaitingAndAdmitted(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-1", 50)

	status, err := q.Status(ctx, "event-1", "user-049")
	require.NoError(t, err)
	assert.False(t, status.Admitted)
	assert.Equal(t, int64(50), status.Rank)
	assert.Equal(t, int64(3), status.EstimatedWaitSeconds, "50 / (50/3 per sec) = 3s")

	// Absence of a queue entry reads as admitted, whether the user was
	// promoted or never queued.
	status, err = q.Status(ctx, "event-1", "stranger")
	require.NoError(t, err)
	assert.True(t, status.Admitted)
	assert.Zero(t, status.Rank)
}

func TestAllowEntry_PromotesFrontInOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-1", 5)

	entered, err := q.AllowEntry(ctx, "event-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-000", "user-001", "user-002"}, entered)

	for _, userID := range entered {
		allowed, err := q.IsAllowed(ctx, "event-1", userID)
		require.NoError(t, err)
		assert.True(t, allowed, "%s must hold an admission window", userID)
	}

	size, err := q.Size(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), size, "queue shrinks by exactly the promoted count")
}

func TestAllowEntry_BatchLargerThanQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-1", 2)

	entered, err := q.AllowEntry(ctx, "event-1", 100)
	require.NoError(t, err)
	assert.Len(t, entered, 2)

	entered, err = q.AllowEntry(ctx, "event-1", 100)
	require.NoError(t, err)
	assert.Empty(t, entered, "an empty queue promotes nobody")
}

func TestAllowEntry_150QueuedBatch100(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-E", 150)

	// user-100 is ranked 101st before the cycle.
	before, queued, err := q.Rank(ctx, "event-E", "user-100")
	require.NoError(t, err)
	require.True(t, queued)
	assert.Equal(t, int64(101), before)

	entered, err := q.AllowEntry(ctx, "event-E", 100)
	require.NoError(t, err)
	assert.Len(t, entered, 100)

	size, err := q.Size(ctx, "event-E")
	require.NoError(t, err)
	assert.Equal(t, int64(50), size)

	// The 101st user moved up by exactly the promoted prefix.
	after, queued, err := q.Rank(ctx, "event-E", "user-100")
	require.NoError(t, err)
	require.True(t, queued)
	assert.Equal(t, int64(1), after)

	allowed, err := q.IsAllowed(ctx, "event-E", "user-100")
	require.NoError(t, err)
	assert.False(t, allowed, "unpromoted users gain no admission window")
}

func TestRank_NonDecreasingAsOthersArrive(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "event-1", "alice")
	require.NoError(t, err)

	first, queued, err := q.Rank(ctx, "event-1", "alice")
	require.NoError(t, err)
	require.True(t, queued)

	for i := 0; i < 10; i++ {
		_, err := q.Enqueue(ctx, "event-1", fmt.Sprintf("late-%d", i))
		require.NoError(t, err)

		current, queued, err := q.Rank(ctx, "event-1", "alice")
		require.NoError(t, err)
		require.True(t, queued)
		assert.Equal(t, first, current, "later arrivals never push alice back")
	}
}

func TestAdmissionWindow_Expires(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "event-1", "alice")
	require.NoError(t, err)
	_, err = q.AllowEntry(ctx, "event-1", 1)
	require.NoError(t, err)

	allowed, err := q.IsAllowed(ctx, "event-1", "alice")
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(11 * time.Minute)

	allowed, err = q.IsAllowed(ctx, "event-1", "alice")
	require.NoError(t, err)
	assert.False(t, allowed, "admission window must self-expire")
}
