package authctx

import (
	"context"

	"github.com/shestoi/marketsettle/internal/repository"
)

type ctxKeySession struct{}

var sessionKey = ctxKeySession{}

// WithSession сохраняет проверенную сессию в контексте (кладёт HTTP middleware)
func WithSession(ctx context.Context, s repository.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext возвращает сессию из контекста, если она была установлена
func SessionFromContext(ctx context.Context) (repository.Session, bool) {
	s, ok := ctx.Value(sessionKey).(repository.Session)
	return s, ok
}
