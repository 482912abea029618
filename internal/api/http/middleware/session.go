package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/authctx"
	"github.com/shestoi/marketsettle/internal/repository"
)

const sessionIDHeader = "x-session-id"

// WithSession — HTTP middleware: читает x-session-id, проверяет сессию в хранилище и кладёт её в context.
// 401 при отсутствии заголовка или невалидной сессии
func WithSession(sessions repository.SessionRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := r.Header.Get(sessionIDHeader)
			if sid == "" {
				http.Error(w, "session_id is required", http.StatusUnauthorized)
				return
			}

			s, err := sessions.GetSession(r.Context(), sid)
			if err != nil {
				if errors.Is(err, repository.ErrSessionNotFound) {
					http.Error(w, "session is invalid or expired", http.StatusUnauthorized)
					return
				}
				logger.Error("failed to resolve session", zap.Error(err))
				http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := authctx.WithSession(r.Context(), s) // добавляем сессию в контекст
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin пропускает только сессии с ролью admin. Ставится после WithSession
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := authctx.SessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session_id is required", http.StatusUnauthorized)
			return
		}
		if !s.IsAdmin() {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
