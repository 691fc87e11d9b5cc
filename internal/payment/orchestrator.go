package payment

import (
	"context"
	"fmt"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

type SeatReader interface {
	GetSeat(ctx context.Context, seatID string) (*models.Seat, error)
}

type LockChecker interface {
	IsHeld(ctx context.Context, seatID string) (bool, error)
	OwnerOf(ctx context.Context, seatID string) (string, bool, error)
}

type Publisher interface {
	PublishPaymentCompleted(ctx context.Context, seatID, userID string) error
}

// Orchestrator authorizes a payment request: the caller must hold the
// seat's reservation and the seat must still be sellable. The checks are
// read-only; the sale itself happens downstream in the confirmation
// handler.
type Orchestrator struct {
	Seats  SeatReader
	Locks  LockChecker
	Broker Publisher
	Idem   *IdempotencyStore
	Logger *logger.Logger
}

func NewOrchestrator(seats SeatReader, locks LockChecker, broker Publisher, idem *IdempotencyStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{Seats: seats, Locks: locks, Broker: broker, Idem: idem, Logger: log}
}

// ValidateAndPay runs the validation chain under the idempotency record
// and emits the payment-request event. Any failure after the record is
// claimed deletes it again so a legitimate retry stays possible.
func (o *Orchestrator) ValidateAndPay(ctx context.Context, seatID, userID, idempotencyKey string) error {
	if err := o.Idem.Begin(ctx, idempotencyKey); err != nil {
		return err
	}

	if err := o.validate(ctx, seatID, userID); err != nil {
		o.Idem.Abort(ctx, idempotencyKey)
		return err
	}

	if err := o.Broker.PublishPaymentCompleted(ctx, seatID, userID); err != nil {
		o.Idem.Abort(ctx, idempotencyKey)
		return err
	}

	if err := o.Idem.Complete(ctx, idempotencyKey); err != nil {
		// The event is already out; the record stays PROCESSING until its
		// TTL, which only over-rejects duplicates, never double-sends.
		o.Logger.Warn("PAYMENT", fmt.Sprintf("idempotency completion failed for %s: %v", idempotencyKey, err))
	}

	o.Logger.Info("PAYMENT", fmt.Sprintf("payment event emitted for seat %s by %s", seatID, userID))
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, seatID, userID string) error {
	held, err := o.Locks.IsHeld(ctx, seatID)
	if err != nil {
		return err
	}
	if !held {
		return fault.Conflict("reservation expired")
	}

	owner, ok, err := o.Locks.OwnerOf(ctx, seatID)
	if err != nil {
		return err
	}
	if !ok || owner != userID {
		return fault.Conflict("not the reservation holder")
	}

	seat, err := o.Seats.GetSeat(ctx, seatID)
	if err != nil {
		return err
	}
	if seat.Status == models.SeatSold {
		return fault.Conflict("seat is already sold")
	}
	return nil
}
