package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ayush/bookshelf/backend/internal/models"
)

const (
	SessionTTL    = 24 * time.Hour
	SessionCookie = "session_id"
)

// sessionRecord is what Redis holds under session:<id>.
type sessionRecord struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore wraps Redis for session management.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(id string) string { return "session:" + id }

// Create stores a new session for user and returns it without a token.
func (s *SessionStore) Create(ctx context.Context, user *models.User) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(SessionTTL).UTC(),
	}
	data, err := json.Marshal(sessionRecord{UserID: sess.UserID, Email: sess.Email, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), data, SessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Get returns the session, or nil if not found / expired.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	val, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &models.Session{ID: id, UserID: rec.UserID, Email: rec.Email, ExpiresAt: rec.ExpiresAt}, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}
