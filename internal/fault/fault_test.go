package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(Conflict("seat is already held")))
	assert.Equal(t, KindValidation, KindOf(Validation("eventId is required")))
	assert.Equal(t, KindTransient, KindOf(Transient("store unavailable", errors.New("connection refused"))))
	assert.Equal(t, KindFatal, KindOf(Fatal("seat row vanished mid-flight")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain error")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling payment: %w", Conflict("seat is already sold"))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsConflict(wrapped))
}

func TestError_MessageAndCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Transient("lock store unavailable", cause)

	assert.Equal(t, "lock store unavailable: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "seat is already held", Conflict("seat is already held").Error())
}
