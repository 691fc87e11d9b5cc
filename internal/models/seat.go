package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatSold      SeatStatus = "SOLD"
)

// Event is immutable once its seats are generated; the catalog
// collaborator owns create/edit/delete.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID         string    `bun:"id,pk" json:"id"`
	Name       string    `bun:"name,notnull" json:"name"`
	Venue      string    `bun:"venue" json:"venue"`
	TotalSeats int       `bun:"total_seats,notnull" json:"total_seats"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Seat transitions AVAILABLE -> SOLD exactly once; the version column
// backs the compare-and-swap update that enforces it.
type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	ID         string     `bun:"id,pk" json:"id"`
	EventID    string     `bun:"event_id,notnull" json:"event_id"`
	SeatNumber int        `bun:"seat_number,notnull" json:"seat_number"`
	Status     SeatStatus `bun:"status,notnull" json:"status"`
	Version    int64      `bun:"version,notnull" json:"-"`
	SoldTo     string     `bun:"sold_to,nullzero" json:"-"`
}

// SeatView is the cached listing shape; Locked overlays the lock store's
// view on top of durable status.
type SeatView struct {
	ID         string     `json:"id"`
	SeatNumber int        `json:"seat_number"`
	Status     SeatStatus `json:"status"`
	Locked     bool       `json:"locked"`
}

func ViewOf(seat Seat, locked bool) SeatView {
	return SeatView{
		ID:         seat.ID,
		SeatNumber: seat.SeatNumber,
		Status:     seat.Status,
		Locked:     locked,
	}
}
