package repository

import (
	"context"
	"errors"
)

// Роли пользователя в сессии
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Session — сессия, выданная сервисом аутентификации
type Session struct {
	UserID string
	Role   string
}

// IsAdmin — доступ к операциям оператора
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// SessionRepository читает сессии. Создаёт их сервис аутентификации, мы только проверяем
type SessionRepository interface {
	// GetSession возвращает ErrSessionNotFound, если сессии нет или она истекла
	GetSession(ctx context.Context, sessionID string) (Session, error)
}

// ErrSessionNotFound возвращается, когда сессия не найдена или истекла
var ErrSessionNotFound = errors.New("session not found")
