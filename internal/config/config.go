package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Lock     LockConfig
	Payment  PaymentConfig
	Captcha  CaptchaConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr     string
	PoolSize int
}

type KafkaConfig struct {
	Brokers         []string
	GroupID         string
	PaymentTopic    string
	DeadLetterTopic string
	ConsumerRetries int
	RetryBackoff    time.Duration
	Consumers       int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type QueueConfig struct {
	// AdmissionBatchSize users are promoted per event each scheduler cycle.
	AdmissionBatchSize int
	SchedulerInterval  time.Duration
	AdmissionWindow    time.Duration
	// ThroughputPerSec feeds the estimated-wait calculation only.
	ThroughputPerSec float64
	// MaxEventsPerCycle bounds how many events one cycle touches.
	MaxEventsPerCycle int
}

type LockConfig struct {
	SeatLockTTL  time.Duration
	SeatCacheTTL time.Duration
}

type PaymentConfig struct {
	IdempotencyTTL time.Duration
}

type CaptchaConfig struct {
	TTL time.Duration
	// BypassKey lets load-test traffic skip the gate; empty disables it.
	BypassKey string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Kafka: KafkaConfig{
			Brokers:         []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			GroupID:         getEnv("KAFKA_GROUP_ID", "ticketing-group"),
			PaymentTopic:    getEnv("KAFKA_TOPIC_PAYMENT", "payment-completed"),
			DeadLetterTopic: getEnv("KAFKA_TOPIC_PAYMENT_DLT", "payment-completed.DLT"),
			ConsumerRetries: getEnvInt("KAFKA_CONSUMER_RETRIES", 2),
			RetryBackoff:    getEnvDuration("KAFKA_RETRY_BACKOFF", time.Second),
			Consumers:       getEnvInt("KAFKA_CONSUMERS", 2),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "ticketing_user"),
			Password:     getEnv("DB_PASSWORD", "ticketing_pass"),
			Database:     getEnv("DB_NAME", "ticketing"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Queue: QueueConfig{
			AdmissionBatchSize: getEnvInt("QUEUE_ADMISSION_BATCH", 50),
			SchedulerInterval:  getEnvDuration("QUEUE_SCHEDULER_INTERVAL", 3*time.Second),
			AdmissionWindow:    getEnvDuration("QUEUE_ADMISSION_WINDOW", 10*time.Minute),
			ThroughputPerSec:   getEnvFloat("QUEUE_THROUGHPUT_PER_SEC", 50.0/3.0),
			MaxEventsPerCycle:  getEnvInt("QUEUE_MAX_EVENTS_PER_CYCLE", 100),
		},
		Lock: LockConfig{
			SeatLockTTL:  getEnvDuration("SEAT_LOCK_TTL", 5*time.Minute),
			SeatCacheTTL: getEnvDuration("SEAT_CACHE_TTL", 10*time.Minute),
		},
		Payment: PaymentConfig{
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		},
		Captcha: CaptchaConfig{
			TTL:       getEnvDuration("CAPTCHA_TTL", 3*time.Minute),
			BypassKey: getEnv("CAPTCHA_BYPASS_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
