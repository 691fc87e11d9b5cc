package seats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/models"
)

// Store is the durable side of seat state. Seat.status here is the sole
// authority for "this seat has been sold".
type Store struct {
	Bun *bun.DB
}

func (s *Store) GetSeat(ctx context.Context, seatID string) (*models.Seat, error) {
	var seat models.Seat
	err := s.Bun.NewSelect().
		Model(&seat).
		Where("id = ?", seatID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.Validation("seat not found")
	}
	if err != nil {
		return nil, fault.Transient("seat lookup failed", err)
	}
	return &seat, nil
}

func (s *Store) SeatsByEvent(ctx context.Context, eventID string) ([]models.Seat, error) {
	var seats []models.Seat
	err := s.Bun.NewSelect().
		Model(&seats).
		Where("event_id = ?", eventID).
		Order("seat_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fault.Transient("seat listing failed", err)
	}
	return seats, nil
}

// MarkSold performs the version-checked AVAILABLE -> SOLD transition.
// sold=false with a nil error means the precondition failed: another
// confirmation already won, which callers treat as a benign duplicate.
func (s *Store) MarkSold(ctx context.Context, seatID string, version int64, userID string) (bool, error) {
	res, err := s.Bun.NewUpdate().
		Model((*models.Seat)(nil)).
		Set("status = ?", models.SeatSold).
		Set("version = version + 1").
		Set("sold_to = ?", userID).
		Where("id = ?", seatID).
		Where("version = ?", version).
		Where("status = ?", models.SeatAvailable).
		Exec(ctx)
	if err != nil {
		return false, fault.Transient("seat update failed", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fault.Transient("seat update failed", err)
	}
	return rows == 1, nil
}

// CreateEvent registers an event and generates its seats in bulk.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if _, err := s.Bun.NewInsert().Model(event).Exec(ctx); err != nil {
		return fault.Transient("event insert failed", err)
	}

	seats := make([]models.Seat, 0, event.TotalSeats)
	for n := 1; n <= event.TotalSeats; n++ {
		seats = append(seats, models.Seat{
			ID:         uuid.New().String(),
			EventID:    event.ID,
			SeatNumber: n,
			Status:     models.SeatAvailable,
			Version:    0,
		})
	}
	if len(seats) == 0 {
		return nil
	}
	if _, err := s.Bun.NewInsert().Model(&seats).Exec(ctx); err != nil {
		return fault.Transient(fmt.Sprintf("seat generation failed for event %s", event.ID), err)
	}
	return nil
}

// ListEventIDs feeds the admission scheduler's bounded per-cycle work list.
func (s *Store) ListEventIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Column("id").
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fault.Transient("event listing failed", err)
	}
	return ids, nil
}
