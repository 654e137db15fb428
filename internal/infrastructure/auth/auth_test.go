package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/redis"
	redismocks "github.com/honeynil/ShopBotLedger/internal/infrastructure/redis/mocks"
)

func TestTokenService(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, err := svc.Generate(7641419665)
	assert.NoError(t, err)

	claims, err := svc.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(7641419665), claims.AdminID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)

	other := NewTokenService("other", time.Hour)
	_, err = other.Validate(token)
	assert.Error(t, err)

	expired := NewTokenService("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Generate(1)
	assert.NoError(t, err)
	_, err = svc.Validate(old)
	assert.Error(t, err)

	_, err = NewTokenService("", time.Hour).Generate(1)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	tokens := NewTokenService("secret", time.Hour)
	const adminID = int64(7641419665)

	var seen int64
	handler := AuthMiddleware(redisClient, tokens, adminID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AdminID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/orders", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(""))
	})

	t.Run("valid token", func(t *testing.T) {
		token, _ := tokens.Generate(adminID)
		redisClient.EXPECT().Get(gomock.Any(), AdminTokenKey(adminID)).Return(token, nil)
		assert.Equal(t, http.StatusNoContent, serve("Bearer "+token))
		assert.Equal(t, adminID, seen)
	})

	t.Run("revoked token", func(t *testing.T) {
		token, _ := tokens.Generate(adminID)
		redisClient.EXPECT().Get(gomock.Any(), AdminTokenKey(adminID)).Return("", redis.ErrKeyNotFound)
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token))
	})

	t.Run("not the admin", func(t *testing.T) {
		token, _ := tokens.Generate(42)
		assert.Equal(t, http.StatusForbidden, serve("Bearer "+token))
	})
}
