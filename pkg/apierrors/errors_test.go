package apierrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := NewInvalidRequest("bad access key", nil)
	assert.Equal(t, "invalid_request: bad access key", e.Error())

	cause := errors.New("boom")
	e2 := NewPeerFailure("party 2 unreachable", cause)
	assert.Equal(t, "peer_failure: party 2 unreachable: boom", e2.Error())
	assert.ErrorIs(t, e2, cause)
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", NewInvalidRequest("x", nil), http.StatusBadRequest},
		{"proof invalid", NewProofInvalid("x", nil), http.StatusBadRequest},
		{"commitment mismatch", NewCommitmentMismatch("x", nil), http.StatusBadRequest},
		{"queue full", New(KindQueueFull, "x", nil), http.StatusBadRequest},
		{"not head", NewNotHead("x"), http.StatusBadRequest},
		{"peer failure", NewPeerFailure("x", nil), http.StatusInternalServerError},
		{"local failure", NewLocalFailure("x", nil), http.StatusInternalServerError},
		{"cache not ready", NewCacheNotReady("x"), http.StatusServiceUnavailable},
		{"unrecognized error", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotHead, KindOf(NewNotHead("x")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
