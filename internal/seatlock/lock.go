package seatlock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
)

// Manager holds per-seat leased locks in Redis. Acquisition is fail-fast:
// contention resolves as first requester wins, everyone else gets a
// conflict immediately. The lock key's existence is the only authority
// for "this seat is currently reserved".
type Manager struct {
	Client *redis.Client
	Logger *logger.Logger
	lease  time.Duration
}

func NewManager(client *redis.Client, log *logger.Logger, lease time.Duration) *Manager {
	return &Manager{Client: client, Logger: log, lease: lease}
}

func lockKey(seatID string) string {
	return "seat-lock:" + seatID
}

func ownerKey(seatID string) string {
	return lockKey(seatID) + ":owner"
}

// Acquire takes the seat's lock for userID with the configured lease, or
// fails with a conflict if any holder exists. No side effects on failure.
func (m *Manager) Acquire(ctx context.Context, seatID, userID string) error {
	ok, err := m.Client.SetNX(ctx, lockKey(seatID), userID, m.lease).Result()
	if err != nil {
		return fault.Transient("lock store unavailable", err)
	}
	if !ok {
		return fault.Conflict("seat is already held")
	}

	if err := m.Client.Set(ctx, ownerKey(seatID), userID, m.lease).Err(); err != nil {
		// Without the owner record the payment validation can never pass,
		// so give the lock back rather than strand the seat.
		m.Client.Del(ctx, lockKey(seatID))
		return fault.Transient("failed to record lock owner", err)
	}

	m.Logger.Info("LOCK", fmt.Sprintf("seat %s locked by %s for %s", seatID, userID, m.lease))
	return nil
}

// Release removes the lock if userID is the recorded holder. Releasing an
// absent lock, or one held by someone else, is a no-op: a late release
// after a force release and re-acquire must not clobber the new holder.
func (m *Manager) Release(ctx context.Context, seatID, userID string) error {
	val, err := m.Client.Get(ctx, lockKey(seatID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fault.Transient("lock store unavailable", err)
	}
	if val != userID {
		m.Logger.Warn("LOCK", fmt.Sprintf("release of seat %s skipped: held by %s, not %s", seatID, val, userID))
		return nil
	}
	if err := m.Client.Del(ctx, lockKey(seatID), ownerKey(seatID)).Err(); err != nil {
		return fault.Transient("failed to release lock", err)
	}
	m.Logger.Info("LOCK", fmt.Sprintf("seat %s released by %s", seatID, userID))
	return nil
}

// ForceRelease drops the lock regardless of holder. Reserved for the
// administrative cancel path; every use lands in the audit log.
func (m *Manager) ForceRelease(ctx context.Context, seatID string) error {
	holder, err := m.Client.Get(ctx, lockKey(seatID)).Result()
	if err != nil && err != redis.Nil {
		return fault.Transient("lock store unavailable", err)
	}
	if err := m.Client.Del(ctx, lockKey(seatID), ownerKey(seatID)).Err(); err != nil {
		return fault.Transient("failed to force-release lock", err)
	}
	m.Logger.LogAudit("FORCE_RELEASE", seatID, fmt.Sprintf("previous holder %q", holder))
	return nil
}

func (m *Manager) IsHeld(ctx context.Context, seatID string) (bool, error) {
	n, err := m.Client.Exists(ctx, lockKey(seatID)).Result()
	if err != nil {
		return false, fault.Transient("lock store unavailable", err)
	}
	return n > 0, nil
}

// OwnerOf returns the recorded holder of the seat's lock, or ok=false when
// no live owner record exists.
func (m *Manager) OwnerOf(ctx context.Context, seatID string) (string, bool, error) {
	val, err := m.Client.Get(ctx, ownerKey(seatID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fault.Transient("lock store unavailable", err)
	}
	return val, true, nil
}
