package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservation/internal/logger"
)

type fakeEventLister struct {
	ids []string
	err error
}

func (f *fakeEventLister) ListEventIDs(ctx context.Context, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	admitted map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{admitted: make(map[string][]string)}
}

func (n *recordingNotifier) NotifyAdmitted(eventID, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admitted[eventID] = append(n.admitted[eventID], userID)
}

func (n *recordingNotifier) forEvent(eventID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.admitted[eventID]...)
}

func TestCycle_PromotesBatchAndNotifies(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-1", 5)

	notifier := newRecordingNotifier()
	s := NewScheduler(q, &fakeEventLister{ids: []string{"event-1"}}, notifier,
		logger.NewTestLogger(), 3*time.Second, 3, 100)

	s.Cycle(ctx)

	assert.Equal(t, []string{"user-000", "user-001", "user-002"}, notifier.forEvent("event-1"))

	size, err := q.Size(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)

	// The next cycle drains the rest and then becomes a no-op.
	s.Cycle(ctx)
	assert.Len(t, notifier.forEvent("event-1"), 5)
	s.Cycle(ctx)
	assert.Len(t, notifier.forEvent("event-1"), 5)
}

func TestCycle_CoversEveryListedEvent(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-A", 2)
	enqueueUsers(t, q, "event-B", 2)

	notifier := newRecordingNotifier()
	s := NewScheduler(q, &fakeEventLister{ids: []string{"event-A", "event-B"}}, notifier,
		logger.NewTestLogger(), 3*time.Second, 50, 100)

	s.Cycle(ctx)

	assert.Len(t, notifier.forEvent("event-A"), 2)
	assert.Len(t, notifier.forEvent("event-B"), 2)
}

func TestCycle_NilNotifierStillPromotes(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	enqueueUsers(t, q, "event-1", 2)

	s := NewScheduler(q, &fakeEventLister{ids: []string{"event-1"}}, nil,
		logger.NewTestLogger(), 3*time.Second, 50, 100)

	s.Cycle(ctx)

	allowed, err := q.IsAllowed(ctx, "event-1", "user-000")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	q, _ := newTestQueue(t)
	s := NewScheduler(q, &fakeEventLister{}, nil,
		logger.NewTestLogger(), time.Millisecond, 50, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
