package seats

import (
	"context"
	"fmt"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

// LockChecker is the slice of the lock manager the listing needs.
type LockChecker interface {
	IsHeld(ctx context.Context, seatID string) (bool, error)
}

// Service combines durable seat storage with the read-through,
// write-invalidate listing cache.
type Service struct {
	Store  *Store
	Cache  *Cache
	Locks  LockChecker
	Logger *logger.Logger
}

func NewService(store *Store, cache *Cache, locks LockChecker, log *logger.Logger) *Service {
	return &Service{Store: store, Cache: cache, Locks: locks, Logger: log}
}

// AvailableSeats serves the listing from cache when possible, otherwise
// rebuilds it from durable storage plus the lock store's overlay.
func (s *Service) AvailableSeats(ctx context.Context, eventID string) ([]models.SeatView, error) {
	if views, ok := s.Cache.GetListing(ctx, eventID); ok {
		return views, nil
	}

	seats, err := s.Store.SeatsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, fault.Validation("unknown event")
	}

	views := make([]models.SeatView, 0, len(seats))
	for _, seat := range seats {
		locked := false
		if seat.Status != models.SeatSold {
			held, err := s.Locks.IsHeld(ctx, seat.ID)
			if err != nil {
				// The overlay is cosmetic; storage truth still renders.
				s.Logger.Warn("CACHE", fmt.Sprintf("lock overlay unavailable for seat %s: %v", seat.ID, err))
			} else {
				locked = held
			}
		}
		views = append(views, models.ViewOf(seat, locked))
	}

	s.Cache.PutListing(ctx, eventID, views)
	return views, nil
}

// ValidateForOccupy checks the seat belongs to the event and is sellable.
func (s *Service) ValidateForOccupy(ctx context.Context, seatID, eventID string) (*models.Seat, error) {
	seat, err := s.Store.GetSeat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if seat.EventID != eventID {
		return nil, fault.Validation("seat does not belong to this event")
	}
	if seat.Status == models.SeatSold {
		return nil, fault.Conflict("seat is already sold")
	}
	return seat, nil
}
