package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/media"
	"github.com/darestream/darestream/internal/stream"
)

func TestNoErrOK(t *testing.T) {
	msg := NoErrOK(7, map[string]any{"balance": 100})
	assert.Equal(t, 7, msg.Id)
	require.NotNil(t, msg.Response)
	assert.Equal(t, http.StatusOK, msg.Response.ResponseCode)
	assert.Equal(t, 100, msg.Response.Data["balance"])
	assert.False(t, msg.Timestamp.IsZero())
}

func TestErrInvalidMessage(t *testing.T) {
	assert.Equal(t, 0, ErrInvalidMessage(-1).Id)
	assert.Equal(t, 3, ErrInvalidMessage(3).Id)
}

func TestErrDomain(t *testing.T) {
	tt := []struct {
		name string
		err  error
		code int
	}{
		{"stream not found", stream.ErrNotFound, http.StatusNotFound},
		{"dare not found", dares.ErrNotFound, http.StatusNotFound},
		{"goal not found", dares.ErrGoalNotFound, http.StatusNotFound},
		{"session ended", stream.ErrSessionEnded, http.StatusGone},
		{"not host", stream.ErrNotHost, http.StatusForbidden},
		{"dare not host", dares.ErrNotHost, http.StatusForbidden},
		{"insufficient balance", ledger.ErrInsufficientBalance, http.StatusPaymentRequired},
		{"already voted", dares.ErrAlreadyVoted, http.StatusConflict},
		{"not pending", dares.ErrNotPending, http.StatusConflict},
		{"not approved", dares.ErrNotApproved, http.StatusConflict},
		{"already live", stream.ErrAlreadyLive, http.StatusConflict},
		{"goal completed", dares.ErrGoalCompleted, http.StatusConflict},
		{"below tier floor", dares.ErrBelowTierFloor, http.StatusUnprocessableEntity},
		{"unknown tier", dares.ErrUnknownTier, http.StatusUnprocessableEntity},
		{"invalid amount", ledger.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"media unavailable", media.ErrUnavailable, http.StatusBadGateway},
		{"store unavailable", ledger.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			msg := ErrDomain(5, tc.err)
			require.NotNil(t, msg.Response)
			assert.Equal(t, 5, msg.Id)
			assert.Equal(t, tc.code, msg.Response.ResponseCode)
			assert.NotEmpty(t, msg.Response.Error)
		})
	}

	t.Run("wrapped errors still map", func(t *testing.T) {
		wrapped := errors.Join(errors.New("context"), ledger.ErrInsufficientBalance)
		assert.Equal(t, http.StatusPaymentRequired, ErrDomain(1, wrapped).Response.ResponseCode)
	})

	t.Run("unknown errors never leak details", func(t *testing.T) {
		msg := ErrDomain(1, errors.New("pq: connection refused"))
		assert.Equal(t, "internal server error", msg.Response.Error)
	})
}
