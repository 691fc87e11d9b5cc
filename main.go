package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-reservation/internal/api"
	"ms-reservation/internal/auth"
	"ms-reservation/internal/captcha"
	"ms-reservation/internal/config"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/payment"
	"ms-reservation/internal/queue"
	"ms-reservation/internal/seatlock"
	"ms-reservation/internal/seats"
	"ms-reservation/internal/sse"
	"ms-reservation/internal/tickets"
)

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to open postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to connect to postgres: %v", err))
	}
	log.Info("DATABASE", "postgres connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("failed to connect to redis at %s: %v", cfg.Redis.Addr, err))
	}
	log.Info("REDIS", "redis connection successful")
	return client
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	rdb := connectRedis(cfg, log)
	defer rdb.Close()

	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.PaymentTopic, cfg.Kafka.DeadLetterTopic}); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("topic creation failed, continuing: %v", err))
	}

	// Core components.
	store := &seats.Store{Bun: bunDB}
	cache := seats.NewCache(rdb, log, cfg.Lock.SeatCacheTTL)
	locks := seatlock.NewManager(rdb, log, cfg.Lock.SeatLockTTL)
	seatService := seats.NewService(store, cache, locks, log)

	waitingQueue := queue.New(rdb, log, cfg.Queue.ThroughputPerSec, cfg.Queue.AdmissionWindow)
	emitter := sse.NewAdmissionEmitter(cfg.Queue.AdmissionWindow)
	scheduler := queue.NewScheduler(waitingQueue, store, emitter, log,
		cfg.Queue.SchedulerInterval, cfg.Queue.AdmissionBatchSize, cfg.Queue.MaxEventsPerCycle)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PaymentTopic, log)
	defer producer.Close()

	idem := payment.NewIdempotencyStore(rdb, cfg.Payment.IdempotencyTTL)
	orchestrator := payment.NewOrchestrator(store, locks, producer, idem, log)
	confirmations := payment.NewConfirmationHandler(store, locks, cache, log)

	captchaGate := captcha.NewService(rdb, log, cfg.Captcha.TTL, cfg.Captcha.BypassKey)
	qrGenerator := tickets.NewQRGenerator(getSecret())

	handler := &api.Handler{
		Queue:    waitingQueue,
		Captcha:  captchaGate,
		Locks:    locks,
		Seats:    seatService,
		Payments: orchestrator,
		Emitter:  emitter,
		Tickets:  qrGenerator,
		Logger:   log,
	}

	r := chi.NewRouter()
	r.Use(auth.Middleware())
	handler.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers: the admission scheduler and the confirmation
	// consumers run on their own schedule, independent of requests.
	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		scheduler.Run(ctx)
	}()

	consumers := make([]*kafka.Consumer, 0, cfg.Kafka.Consumers)
	for i := 0; i < cfg.Kafka.Consumers; i++ {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.PaymentTopic, cfg.Kafka.GroupID,
			cfg.Kafka.DeadLetterTopic, cfg.Kafka.ConsumerRetries, cfg.Kafka.RetryBackoff, log)
		consumers = append(consumers, consumer)
		workers.Add(1)
		go func() {
			defer workers.Done()
			consumer.Run(ctx, confirmations.HandleMessage)
		}()
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("reservation service on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("http error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("SERVER", "shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	for _, consumer := range consumers {
		_ = consumer.Close()
	}
	workers.Wait()
	log.Info("SERVER", "shutdown complete")
}

func getSecret() string {
	if secret := os.Getenv("TICKET_QR_SECRET"); secret != "" {
		return secret
	}
	return "dev-only-ticket-secret"
}
