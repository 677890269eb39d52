package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darestream/darestream/internal/database"
)

func TestUserId(t *testing.T) {
	t.Run("user id present", func(t *testing.T) {
		ctx := WithUserId(context.Background(), "user-1")
		userId, ok := UserId(ctx)
		assert.True(t, ok)
		assert.Equal(t, "user-1", userId)
	})

	t.Run("user id absent", func(t *testing.T) {
		_, ok := UserId(context.Background())
		assert.False(t, ok)
	})
}

func Test_extractUserIdFromToken(t *testing.T) {
	app := newTestApp(t, &database.MockArchiveRepository{}, &MockPaymentProcessor{})

	t.Run("valid token", func(t *testing.T) {
		token, err := CreateSessionToken(testSigningKey, "user-1", time.Hour)
		require.NoError(t, err)

		userId, err := app.extractUserIdFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userId)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := CreateSessionToken(testSigningKey, "user-1", -time.Hour)
		require.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		token, err := CreateSessionToken([]byte("some-other-key"), "user-1", time.Hour)
		require.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := app.extractUserIdFromToken("not-a-token")
		assert.Error(t, err)
	})
}

func Test_sessionToken(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})

		token, ok := sessionToken(req)
		assert.True(t, ok)
		assert.Equal(t, "cookie-token", token)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer header-token")

		token, ok := sessionToken(req)
		assert.True(t, ok)
		assert.Equal(t, "header-token", token)
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})
		req.Header.Set("Authorization", "Bearer header-token")

		token, _ := sessionToken(req)
		assert.Equal(t, "cookie-token", token)
	})

	t.Run("nothing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, ok := sessionToken(req)
		assert.False(t, ok)
	})
}
