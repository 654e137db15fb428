package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/redis"
)

type contextKey string

const adminIDKey contextKey = "admin_id"

// AdminTokenKey is where the currently valid token of an admin is stored;
// logging in again replaces it.
func AdminTokenKey(adminID int64) string {
	return fmt.Sprintf("admin:%d:token", adminID)
}

func AdminID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(adminIDKey).(int64)
	return id, ok
}

func AuthMiddleware(redisClient redis.RedisClient, tokens *TokenService, adminID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "authorization header missing", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := parts[1]
			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.AdminID != adminID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			// Check token in Redis
			storedToken, err := redisClient.Get(r.Context(), AdminTokenKey(claims.AdminID))
			if err != nil || storedToken != tokenStr {
				slog.Error("invalid or revoked token", "admin_id", claims.AdminID, "error", err)
				http.Error(w, "invalid or revoked token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), adminIDKey, claims.AdminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
