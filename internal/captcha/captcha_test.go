package captcha

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservation/internal/logger"
)

func newTestService(t *testing.T, bypassKey string) (*Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewService(client, logger.NewTestLogger(), 3*time.Minute, bypassKey), mr
}

func TestGenerateAndValidate(t *testing.T) {
	svc, _ := newTestService(t, "")
	ctx := context.Background()

	code, err := svc.Generate(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	ok, err := svc.Validate(ctx, "session-1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_SingleUse(t *testing.T) {
	svc, _ := newTestService(t, "")
	ctx := context.Background()

	code, err := svc.Generate(ctx, "session-1")
	require.NoError(t, err)

	ok, err := svc.Validate(ctx, "session-1", code)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Validate(ctx, "session-1", code)
	require.NoError(t, err)
	assert.False(t, ok, "a consumed code must not pass again")
}

func TestValidate_WrongInputKeepsCode(t *testing.T) {
	svc, _ := newTestService(t, "")
	ctx := context.Background()

	code, err := svc.Generate(ctx, "session-1")
	require.NoError(t, err)

	ok, err := svc.Validate(ctx, "session-1", "WRONG1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A wrong guess does not burn the outstanding code.
	ok, err = svc.Validate(ctx, "session-1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_Expires(t *testing.T) {
	svc, mr := newTestService(t, "")
	ctx := context.Background()

	code, err := svc.Generate(ctx, "session-1")
	require.NoError(t, err)

	mr.FastForward(4 * time.Minute)

	ok, err := svc.Validate(ctx, "session-1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_SessionsAreIsolated(t *testing.T) {
	svc, _ := newTestService(t, "")
	ctx := context.Background()

	code, err := svc.Generate(ctx, "session-1")
	require.NoError(t, err)

	ok, err := svc.Validate(ctx, "session-2", code)
	require.NoError(t, err)
	assert.False(t, ok, "a code issued to one session must not pass for another")
}

func TestValidate_BypassKey(t *testing.T) {
	svc, _ := newTestService(t, "load-test-bypass")

	ok, err := svc.Validate(context.Background(), "any-session", "load-test-bypass")
	require.NoError(t, err)
	assert.True(t, ok)
}
