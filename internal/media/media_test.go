package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRoomToken(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("test-signing-key"))
	require.NoError(t, err)

	tcases := []struct {
		name      string
		room      string
		identity  string
		publisher bool
		err       bool
	}{
		{
			name:      "host token",
			room:      "stream-1",
			identity:  "host-1",
			publisher: true,
		},
		{
			name:     "viewer token",
			room:     "stream-1",
			identity: "viewer-1",
		},
		{
			name:     "missing room",
			identity: "viewer-1",
			err:      true,
		},
		{
			name: "missing identity",
			room: "stream-1",
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := issuer.IssueRoomToken(context.Background(), tc.room, tc.identity, tc.publisher)
			if tc.err {
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, token)

			room, identity, publisher, err := issuer.VerifyRoomToken(token)
			assert.NoError(t, err)
			assert.Equal(t, tc.room, room)
			assert.Equal(t, tc.identity, identity)
			assert.Equal(t, tc.publisher, publisher)
		})
	}
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("key-one"))
	require.NoError(t, err)
	other, err := NewJWTIssuer([]byte("key-two"))
	require.NoError(t, err)

	token, err := issuer.IssueRoomToken(context.Background(), "stream-1", "viewer-1", false)
	require.NoError(t, err)

	_, _, _, err = other.VerifyRoomToken(token)
	assert.Error(t, err, "expected token signed with a different key to be rejected")
}

func TestNewJWTIssuerEmptyKey(t *testing.T) {
	_, err := NewJWTIssuer(nil)
	assert.Error(t, err)
}
