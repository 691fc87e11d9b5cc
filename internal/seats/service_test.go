package seats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

type stubLockChecker struct {
	held  map[string]bool
	calls int
}

func (s *stubLockChecker) IsHeld(ctx context.Context, seatID string) (bool, error) {
	s.calls++
	return s.held[seatID], nil
}

func setupTestService(t *testing.T) (*Service, *stubLockChecker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewTestLogger()
	locks := &stubLockChecker{held: make(map[string]bool)}
	svc := NewService(setupTestStore(t), NewCache(client, log, 10*time.Minute), locks, log)
	return svc, locks, mr
}

func TestAvailableSeats_ReadThroughThenCached(t *testing.T) {
	svc, locks, _ := setupTestService(t)
	ctx := context.Background()
	seats := seedEvent(t, svc.Store, "event-1", 3)
	locks.held[seats[1].ID] = true

	views, err := svc.AvailableSeats(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.False(t, views[0].Locked)
	assert.True(t, views[1].Locked, "lock overlay rendered on the rebuild")
	assert.Equal(t, 3, locks.calls)

	// Second read is served from cache without touching the lock store.
	views, err = svc.AvailableSeats(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.True(t, views[1].Locked, "cached listing keeps the overlay")
	assert.Equal(t, 3, locks.calls, "cache hit must not re-check locks")
}

func TestAvailableSeats_UnknownEvent(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, err := svc.AvailableSeats(context.Background(), "no-such-event")
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))
}

func TestAvailableSeats_InvalidateForcesRebuild(t *testing.T) {
	svc, locks, _ := setupTestService(t)
	ctx := context.Background()
	seats := seedEvent(t, svc.Store, "event-1", 2)

	_, err := svc.AvailableSeats(ctx, "event-1")
	require.NoError(t, err)

	sold, err := svc.Store.MarkSold(ctx, seats[0].ID, seats[0].Version, "alice")
	require.NoError(t, err)
	require.True(t, sold)
	svc.Cache.Invalidate(ctx, "event-1")

	views, err := svc.AvailableSeats(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, models.SeatSold, views[0].Status, "rebuild reflects the confirmed sale")
	assert.Equal(t, 2+1, locks.calls, "sold seats skip the lock overlay on rebuild")
}

func TestCache_SetLockedFlipsOverlayInPlace(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	seats := seedEvent(t, svc.Store, "event-1", 2)

	_, err := svc.AvailableSeats(ctx, "event-1")
	require.NoError(t, err)

	svc.Cache.SetLocked(ctx, "event-1", seats[0].ID, true)

	views, ok := svc.Cache.GetListing(ctx, "event-1")
	require.True(t, ok)
	assert.True(t, views[0].Locked)
	assert.False(t, views[1].Locked)
}

func TestCache_ListingExpires(t *testing.T) {
	svc, _, mr := setupTestService(t)
	ctx := context.Background()
	seedEvent(t, svc.Store, "event-1", 1)

	_, err := svc.AvailableSeats(ctx, "event-1")
	require.NoError(t, err)
	_, ok := svc.Cache.GetListing(ctx, "event-1")
	require.True(t, ok)

	mr.FastForward(11 * time.Minute)

	_, ok = svc.Cache.GetListing(ctx, "event-1")
	assert.False(t, ok, "listing must age out on its own")
}

func TestValidateForOccupy(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	seats := seedEvent(t, svc.Store, "event-1", 1)
	seat := seats[0]

	got, err := svc.ValidateForOccupy(ctx, seat.ID, "event-1")
	require.NoError(t, err)
	assert.Equal(t, seat.ID, got.ID)

	_, err = svc.ValidateForOccupy(ctx, seat.ID, "other-event")
	require.Error(t, err)
	assert.True(t, fault.IsValidation(err))

	sold, err := svc.Store.MarkSold(ctx, seat.ID, seat.Version, "alice")
	require.NoError(t, err)
	require.True(t, sold)

	_, err = svc.ValidateForOccupy(ctx, seat.ID, "event-1")
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
}
