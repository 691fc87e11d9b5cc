package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-reservation/internal/config"
	"ms-reservation/internal/database/migrations"
	"ms-reservation/internal/models"
	"ms-reservation/internal/seats"
)

// Applies schema migrations, and optionally seeds a demo event with its
// seats so the reservation flow can be exercised end to end.
func main() {
	_ = godotenv.Load()

	seedName := flag.String("seed-event", "", "name of a demo event to create")
	seedSeats := flag.Int("seed-seats", 100, "seat count for the demo event")
	flag.Parse()

	cfg := config.Load()
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("[Database] failed to open postgres: %v", err)
	}
	defer sqldb.Close()

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.Up(); err != nil {
		log.Fatalf("[Database] migration failed: %v", err)
	}
	log.Println("[Database] schema is up to date")

	if *seedName == "" {
		return
	}

	store := &seats.Store{Bun: bunDB}
	event := &models.Event{
		ID:         uuid.New().String(),
		Name:       *seedName,
		Venue:      "Main Hall",
		TotalSeats: *seedSeats,
	}
	if err := store.CreateEvent(context.Background(), event); err != nil {
		log.Fatalf("[Database] seeding failed: %v", err)
	}
	log.Printf("[Database] seeded event %s with %d seats", event.ID, *seedSeats)
}
