package sse

import (
	"context"
	"sync"
	"time"

	"ms-reservation/internal/models"
)

// AdmissionEmitter fans promotion notices out to connected clients so an
// admitted user can proceed without polling. Delivery is best-effort; the
// admission key in the lock store remains the source of truth.
type AdmissionEmitter struct {
	clients map[string][]chan models.AdmissionNotice
	mu      sync.RWMutex
	window  time.Duration
}

func NewAdmissionEmitter(window time.Duration) *AdmissionEmitter {
	return &AdmissionEmitter{
		clients: make(map[string][]chan models.AdmissionNotice),
		window:  window,
	}
}

func clientKey(eventID, userID string) string {
	return eventID + ":" + userID
}

// Subscribe registers a client channel for one (event, user) pair and
// removes it when ctx ends.
func (e *AdmissionEmitter) Subscribe(ctx context.Context, eventID, userID string) chan models.AdmissionNotice {
	clientChan := make(chan models.AdmissionNotice, 10)
	key := clientKey(eventID, userID)

	e.mu.Lock()
	e.clients[key] = append(e.clients[key], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(key, clientChan)
	}()

	return clientChan
}

// NotifyAdmitted implements queue.Notifier.
func (e *AdmissionEmitter) NotifyAdmitted(eventID, userID string) {
	notice := models.AdmissionNotice{
		EventID:          eventID,
		UserID:           userID,
		ExpiresInSeconds: int64(e.window.Seconds()),
	}

	e.mu.RLock()
	clients := e.clients[clientKey(eventID, userID)]
	e.mu.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send: a slow client must not stall the scheduler.
		select {
		case clientChan <- notice:
		default:
		}
	}
}

func (e *AdmissionEmitter) removeClient(key string, clientChan chan models.AdmissionNotice) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[key]
	for i, c := range clients {
		if c == clientChan {
			e.clients[key] = append(clients[:i], clients[i+1:]...)
			close(c)
			break
		}
	}
	if len(e.clients[key]) == 0 {
		delete(e.clients, key)
	}
}
