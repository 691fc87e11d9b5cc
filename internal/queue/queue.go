package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

// Queue is the per-event waiting room: a ranked set scored by arrival
// time, with promotion moving members into self-expiring admission keys.
type Queue struct {
	Client     *redis.Client
	Logger     *logger.Logger
	throughput float64
	window     time.Duration
}

func New(client *redis.Client, log *logger.Logger, throughputPerSec float64, admissionWindow time.Duration) *Queue {
	return &Queue{
		Client:     client,
		Logger:     log,
		throughput: throughputPerSec,
		window:     admissionWindow,
	}
}

func queueKey(eventID string) string {
	return "queue:" + eventID
}

func activeKey(eventID, userID string) string {
	return "active:" + eventID + ":" + userID
}

// Enqueue adds the user with the current time as ordering key and returns
// the 0-based rank. Re-enqueueing an already queued user keeps the
// original score and returns the existing rank.
func (q *Queue) Enqueue(ctx context.Context, eventID, userID string) (int64, error) {
	err := q.Client.ZAddNX(ctx, queueKey(eventID), &redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: userID,
	}).Err()
	if err != nil {
		return 0, fault.Transient("queue store unavailable", err)
	}

	rank, err := q.Client.ZRank(ctx, queueKey(eventID), userID).Result()
	if err != nil {
		return 0, fault.Transient("queue store unavailable", err)
	}
	return rank, nil
}

// Rank returns the 1-based waiting position. queued=false means the user
// either never joined or was already promoted.
func (q *Queue) Rank(ctx context.Context, eventID, userID string) (int64, bool, error) {
	rank, err := q.Client.ZRank(ctx, queueKey(eventID), userID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fault.Transient("queue store unavailable", err)
	}
	return rank + 1, true, nil
}

// Status reports rank and a best-effort wait estimate derived from the
// steady-state admission throughput. Absence of a queue entry reads as
// admitted; whether the user was promoted or never queued, the next step
// is the same.
func (q *Queue) Status(ctx context.Context, eventID, userID string) (models.QueueStatus, error) {
	rank, queued, err := q.Rank(ctx, eventID, userID)
	if err != nil {
		return models.QueueStatus{}, err
	}
	if !queued {
		return models.QueueStatus{Admitted: true}, nil
	}
	return models.QueueStatus{
		Rank:                 rank,
		EstimatedWaitSeconds: int64(float64(rank) / q.throughput),
		Admitted:             false,
	}, nil
}

// AllowEntry promotes up to count users from the front of the queue:
// each gets an admission key with the window TTL, then is removed from
// the ranked set. The grant happens before the removal so a user is never
// observable in neither state. Returns the promoted users in rank order.
func (q *Queue) AllowEntry(ctx context.Context, eventID string, count int) ([]string, error) {
	users, err := q.Client.ZRange(ctx, queueKey(eventID), 0, int64(count-1)).Result()
	if err != nil {
		return nil, fault.Transient("queue store unavailable", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	entered := make([]string, 0, len(users))
	for _, userID := range users {
		if err := q.Client.Set(ctx, activeKey(eventID, userID), "1", q.window).Err(); err != nil {
			q.Logger.Error("QUEUE", fmt.Sprintf("admission grant failed for %s on event %s: %v", userID, eventID, err))
			continue
		}
		if err := q.Client.ZRem(ctx, queueKey(eventID), userID).Err(); err != nil {
			q.Logger.Error("QUEUE", fmt.Sprintf("queue removal failed for %s on event %s: %v", userID, eventID, err))
		}
		entered = append(entered, userID)
	}

	if len(entered) > 0 {
		q.Logger.Info("QUEUE", fmt.Sprintf("admitted %d users to event %s", len(entered), eventID))
	}
	return entered, nil
}

// IsAllowed reports whether the user holds a live admission window.
func (q *Queue) IsAllowed(ctx context.Context, eventID, userID string) (bool, error) {
	n, err := q.Client.Exists(ctx, activeKey(eventID, userID)).Result()
	if err != nil {
		return false, fault.Transient("queue store unavailable", err)
	}
	return n > 0, nil
}

// Size returns the number of waiting entries for the event.
func (q *Queue) Size(ctx context.Context, eventID string) (int64, error) {
	n, err := q.Client.ZCard(ctx, queueKey(eventID)).Result()
	if err != nil {
		return 0, fault.Transient("queue store unavailable", err)
	}
	return n, nil
}

// Window is the admission TTL granted on promotion.
func (q *Queue) Window() time.Duration {
	return q.window
}
