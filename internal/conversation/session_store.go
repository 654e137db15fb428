package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/redis"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const (
	sessionTTL = 30 * 24 * time.Hour
	eventTTL   = 24 * time.Hour
)

type SessionStore interface {
	Load(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// MarkEvent records eventID and reports false if it was seen before.
	MarkEvent(ctx context.Context, eventID string) (bool, error)
}

type RedisSessionStore struct {
	client redis.RedisClient
}

func NewRedisSessionStore(client redis.RedisClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

func eventKey(eventID string) string {
	return "event:" + eventID
}

func (r *RedisSessionStore) Load(ctx context.Context, userID int64) (*Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return newSession(userID), nil
	}
	if err != nil {
		return nil, pkgerrors.Persistence("load session", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || !s.State.Valid() {
		// A corrupt or outdated session restarts the dialogue.
		return newSession(userID), nil
	}
	s.UserID = userID
	return &s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.UserID), string(raw), sessionTTL); err != nil {
		return pkgerrors.Persistence("save session", err)
	}
	return nil
}

func (r *RedisSessionStore) MarkEvent(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	fresh, err := r.client.SetNX(ctx, eventKey(eventID), 1, eventTTL)
	if err != nil {
		return false, pkgerrors.Persistence("mark event", err)
	}
	return fresh, nil
}
