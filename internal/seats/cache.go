package seats

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

// Cache holds the per-event seat listing as a Redis hash of seat views.
// It is an optimization only: every method degrades to a miss or a no-op
// on error so cache trouble can never block a correctness path.
type Cache struct {
	Client *redis.Client
	Logger *logger.Logger
	ttl    time.Duration
}

func NewCache(client *redis.Client, log *logger.Logger, ttl time.Duration) *Cache {
	return &Cache{Client: client, Logger: log, ttl: ttl}
}

func cacheKey(eventID string) string {
	return "seats:event:" + eventID
}

// GetListing returns the cached views sorted by seat number, or ok=false
// on a miss or any cache failure.
func (c *Cache) GetListing(ctx context.Context, eventID string) ([]models.SeatView, bool) {
	vals, err := c.Client.HVals(ctx, cacheKey(eventID)).Result()
	if err != nil || len(vals) == 0 {
		return nil, false
	}

	views := make([]models.SeatView, 0, len(vals))
	for _, raw := range vals {
		var view models.SeatView
		if err := json.Unmarshal([]byte(raw), &view); err != nil {
			c.Logger.Warn("CACHE", fmt.Sprintf("corrupt seat view in %s, dropping cache: %v", eventID, err))
			c.Invalidate(ctx, eventID)
			return nil, false
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].SeatNumber < views[j].SeatNumber })
	return views, true
}

func (c *Cache) PutListing(ctx context.Context, eventID string, views []models.SeatView) {
	if len(views) == 0 {
		return
	}
	fields := make(map[string]interface{}, len(views))
	for _, view := range views {
		raw, err := json.Marshal(view)
		if err != nil {
			return
		}
		fields[view.ID] = string(raw)
	}
	key := cacheKey(eventID)
	if err := c.Client.HSet(ctx, key, fields).Err(); err != nil {
		c.Logger.Warn("CACHE", fmt.Sprintf("seat listing cache write failed for %s: %v", eventID, err))
		return
	}
	c.Client.Expire(ctx, key, c.ttl)
}

// SetLocked flips the lock overlay of one cached seat in place; a miss is
// left alone for the next read-through to rebuild.
func (c *Cache) SetLocked(ctx context.Context, eventID, seatID string, locked bool) {
	key := cacheKey(eventID)
	raw, err := c.Client.HGet(ctx, key, seatID).Result()
	if err != nil {
		return
	}
	var view models.SeatView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return
	}
	view.Locked = locked
	updated, err := json.Marshal(view)
	if err != nil {
		return
	}
	c.Client.HSet(ctx, key, seatID, string(updated))
}

// Invalidate drops the event's listing; used after a confirmed sale.
func (c *Cache) Invalidate(ctx context.Context, eventID string) {
	if err := c.Client.Del(ctx, cacheKey(eventID)).Err(); err != nil {
		c.Logger.Warn("CACHE", fmt.Sprintf("seat listing invalidation failed for %s: %v", eventID, err))
	}
}
