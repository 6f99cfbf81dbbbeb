package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tcases := []struct {
		name string
		err  error
		kind Kind
		code string
	}{
		{
			name: "direct",
			err:  Conflict("live-already-active", "live session already active"),
			kind: KindConflict,
			code: "live-already-active",
		},
		{
			name: "wrapped",
			err:  fmt.Errorf("accept: %w", NotFound("consultation-request-not-found", "not found")),
			kind: KindNotFound,
			code: "consultation-request-not-found",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			kind: KindUnknown,
			code: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.code, CodeOf(tc.err))
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Validation("empty-message", "message is empty"))

	assert.True(t, errors.Is(err, Validation("empty-message", "")))
	assert.False(t, errors.Is(err, Conflict("empty-message", "")))
}

func TestUnavailableUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable("livekit-token-failed", "token issuer failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "livekit-token-failed: token issuer failed: dial tcp: refused", err.Error())
}
