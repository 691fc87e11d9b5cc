package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-reservation/internal/logger"
)

// EventLister supplies the events whose queues a cycle should drain.
// limit keeps cycle time bounded as the number of live events grows.
type EventLister interface {
	ListEventIDs(ctx context.Context, limit int) ([]string, error)
}

// Notifier is told about each promoted user. Notification failure is
// non-fatal: the admission key is the source of truth and polling covers
// missed pushes.
type Notifier interface {
	NotifyAdmitted(eventID, userID string)
}

// Scheduler promotes the head of every event's queue on a fixed interval.
type Scheduler struct {
	Queue    *Queue
	Events   EventLister
	Notifier Notifier
	Logger   *logger.Logger

	interval  time.Duration
	batchSize int
	maxEvents int
}

func NewScheduler(q *Queue, events EventLister, notifier Notifier, log *logger.Logger,
	interval time.Duration, batchSize, maxEvents int) *Scheduler {
	return &Scheduler{
		Queue:     q,
		Events:    events,
		Notifier:  notifier,
		Logger:    log,
		interval:  interval,
		batchSize: batchSize,
		maxEvents: maxEvents,
	}
}

// Run blocks until ctx is cancelled, promoting once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Logger.Info("SCHEDULER", fmt.Sprintf("admission scheduler started (interval=%s, batch=%d)", s.interval, s.batchSize))
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("SCHEDULER", "admission scheduler stopped")
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one promotion pass over at most maxEvents events, with
// per-event work fanned out under a small concurrency bound.
func (s *Scheduler) Cycle(ctx context.Context) {
	eventIDs, err := s.Events.ListEventIDs(ctx, s.maxEvents)
	if err != nil {
		s.Logger.Error("SCHEDULER", fmt.Sprintf("listing events failed: %v", err))
		return
	}
	if len(eventIDs) == 0 {
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)
	for _, eventID := range eventIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(eventID string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.promote(ctx, eventID)
		}(eventID)
	}
	wg.Wait()
}

func (s *Scheduler) promote(ctx context.Context, eventID string) {
	entered, err := s.Queue.AllowEntry(ctx, eventID, s.batchSize)
	if err != nil {
		s.Logger.Error("SCHEDULER", fmt.Sprintf("promotion failed for event %s: %v", eventID, err))
		return
	}
	if s.Notifier == nil {
		return
	}
	for _, userID := range entered {
		s.Notifier.NotifyAdmitted(eventID, userID)
	}
}
