package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/mcmarket/domain"
)

// SessionRepositoryImpl implements domain.SessionRepository using Redis.
// Each user also has a set of their session IDs so all sessions can be dropped at once.
type SessionRepositoryImpl struct {
	client     *redis.Client
	prefix     string
	userPrefix string
	ttl        time.Duration
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *redis.Client, ttl time.Duration) domain.SessionRepository {
	return &SessionRepositoryImpl{
		client:     client,
		prefix:     "session:",
		userPrefix: "user_sessions:",
		ttl:        ttl,
	}
}

func (r *SessionRepositoryImpl) userKey(userID uint) string {
	return fmt.Sprintf("%s%d", r.userPrefix, userID)
}

// Create implements domain.SessionRepository
func (r *SessionRepositoryImpl) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefix+session.ID, data, r.ttl)
	pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
	pipe.Expire(ctx, r.userKey(session.UserID), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// FindByID implements domain.SessionRepository
func (r *SessionRepositoryImpl) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	key := r.prefix + sessionID
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.ExpiresAt.Before(time.Now()) {
		r.client.Del(ctx, key)
		return nil, domain.ErrSessionExpired
	}

	return &session, nil
}

// Delete implements domain.SessionRepository
func (r *SessionRepositoryImpl) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.prefix+sessionID).Err()
}

// DeleteByUser implements domain.SessionRepository
func (r *SessionRepositoryImpl) DeleteByUser(ctx context.Context, userID uint) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.prefix+id)
	}
	keys = append(keys, r.userKey(userID))
	return r.client.Del(ctx, keys...).Err()
}
