package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
)

const (
	hashFieldUserID = "user_id" // hash user_id - id пользователя
	hashFieldRole   = "role"    // hash role - роль, пусто = обычный пользователь
)

// SessionRepository читает сессии из Redis hash session:<id>
type SessionRepository struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewSessionRepository создаёт новый Redis session repository
func NewSessionRepository(client redis.Cmdable, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		client: client,
		logger: logger,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// GetSession получает user_id и роль по session_id
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (repository.Session, error) {
	vals, err := r.client.HMGet(ctx, sessionKey(sessionID), hashFieldUserID, hashFieldRole).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return repository.Session{}, repository.ErrSessionNotFound
		}
		r.logger.Error("failed to get session hash from redis",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return repository.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	// HMGET на отсутствующий ключ возвращает nil-значения, а не redis.Nil
	userID, _ := vals[0].(string)
	if userID == "" {
		r.logger.Debug("session hash not found", zap.String("session_id", sessionID))
		return repository.Session{}, repository.ErrSessionNotFound
	}
	role, _ := vals[1].(string)
	if role == "" {
		role = repository.RoleUser
	}

	return repository.Session{UserID: userID, Role: role}, nil
}
