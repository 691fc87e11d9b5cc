package payment

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

type SeatStore interface {
	GetSeat(ctx context.Context, seatID string) (*models.Seat, error)
	MarkSold(ctx context.Context, seatID string, version int64, userID string) (bool, error)
}

type LockReleaser interface {
	Release(ctx context.Context, seatID, userID string) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, eventID string)
}

// ConfirmationHandler applies the final seat-state change for delivered
// payment events. Deliveries are at-least-once and may interleave per
// seat; the version-checked update serializes them, so no mutex is
// involved and duplicates resolve as no-ops.
type ConfirmationHandler struct {
	Seats  SeatStore
	Locks  LockReleaser
	Cache  CacheInvalidator
	Logger *logger.Logger
}

func NewConfirmationHandler(seats SeatStore, locks LockReleaser, cache CacheInvalidator, log *logger.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{Seats: seats, Locks: locks, Cache: cache, Logger: log}
}

// HandleMessage adapts Confirm to the consumer loop. Malformed payloads
// are not retryable and go straight to the dead letter.
func (h *ConfirmationHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	seatID, userID, err := models.ParsePaymentMessage(string(msg.Value))
	if err != nil {
		return err
	}
	return h.Confirm(ctx, seatID, userID)
}

// Confirm loads the seat, attempts the AVAILABLE -> SOLD transition and
// then releases the reservation. The release runs for every resolved
// outcome (fresh sale, duplicate, version conflict); only a transient
// failure returns early, leaving the message to the broker's retry and
// the lock to its lease.
func (h *ConfirmationHandler) Confirm(ctx context.Context, seatID, userID string) error {
	seat, err := h.Seats.GetSeat(ctx, seatID)
	if err != nil {
		if fault.KindOf(err) == fault.KindTransient {
			return err
		}
		// A confirmation for a seat that does not exist means an upstream
		// invariant broke. Log loudly, still run the cleanup, and treat
		// the message as handled so the consumer loop keeps draining.
		h.Logger.Error("PAYMENT", fmt.Sprintf("confirmation for unknown seat %s (user %s): %v", seatID, userID, err))
		h.release(ctx, seatID, userID)
		return nil
	}

	if seat.Status == models.SeatSold {
		h.Logger.Info("PAYMENT", fmt.Sprintf("seat %s already sold, duplicate delivery skipped", seatID))
		h.release(ctx, seatID, userID)
		return nil
	}

	sold, err := h.Seats.MarkSold(ctx, seatID, seat.Version, userID)
	if err != nil {
		return err
	}
	if !sold {
		h.Logger.Warn("PAYMENT", fmt.Sprintf("version conflict on seat %s, another delivery already won", seatID))
		h.release(ctx, seatID, userID)
		return nil
	}

	h.Logger.Info("PAYMENT", fmt.Sprintf("seat %s sold to %s", seatID, userID))
	h.release(ctx, seatID, userID)
	if h.Cache != nil {
		h.Cache.Invalidate(ctx, seat.EventID)
	}
	return nil
}

// release is best-effort: an unreleased lock still expires with its lease.
// The owner-checked release means a lock that was force-released and
// re-acquired by someone else is left alone.
func (h *ConfirmationHandler) release(ctx context.Context, seatID, userID string) {
	if err := h.Locks.Release(ctx, seatID, userID); err != nil {
		h.Logger.Warn("PAYMENT", fmt.Sprintf("lock release failed for seat %s: %v", seatID, err))
	}
}
