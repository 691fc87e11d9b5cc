package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndNotify(t *testing.T) {
	e := NewAdmissionEmitter(10 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx, "event-1", "alice")
	e.NotifyAdmitted("event-1", "alice")

	select {
	case notice := <-ch:
		assert.Equal(t, "event-1", notice.EventID)
		assert.Equal(t, "alice", notice.UserID)
		assert.Equal(t, int64(600), notice.ExpiresInSeconds)
	case <-time.After(time.Second):
		t.Fatal("expected an admission notice")
	}
}

func TestNotify_OnlyReachesTargetUser(t *testing.T) {
	e := NewAdmissionEmitter(10 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aliceCh := e.Subscribe(ctx, "event-1", "alice")
	bobCh := e.Subscribe(ctx, "event-1", "bob")

	e.NotifyAdmitted("event-1", "alice")

	select {
	case <-aliceCh:
	case <-time.After(time.Second):
		t.Fatal("alice missed her notice")
	}
	select {
	case notice := <-bobCh:
		t.Fatalf("bob received alice's notice: %+v", notice)
	default:
	}
}

func TestNotify_NoSubscribersIsNoop(t *testing.T) {
	e := NewAdmissionEmitter(10 * time.Minute)
	e.NotifyAdmitted("event-1", "nobody")
}

func TestNotify_SlowClientDoesNotBlock(t *testing.T) {
	e := NewAdmissionEmitter(10 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.Subscribe(ctx, "event-1", "alice")

	// The channel buffer is finite; the notifier must stay non-blocking
	// once a slow client falls behind.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			e.NotifyAdmitted("event-1", "alice")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifier blocked on a slow client")
	}
}

func TestSubscribe_ContextEndClosesChannel(t *testing.T) {
	e := NewAdmissionEmitter(10 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, "event-1", "alice")
	cancel()

	select {
	case _, open := <-ch:
		require.False(t, open, "channel must close when the subscription ends")
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}
