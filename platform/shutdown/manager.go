package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager выполняет зарегистрированные shutdown функции в обратном порядке:
// сначала останавливается HTTP сервер, последними закрываются пул БД и exporters
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	steps []step
}

type step struct {
	name string
	fn   func(context.Context) error
}

// New создаёт Manager; timeout ограничивает каждую функцию отдельно
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{timeout: timeout, logger: logger}
}

// Add регистрирует shutdown функцию
func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// Wait блокируется до SIGINT/SIGTERM, отмены ctx или ошибки из fatal,
// затем вызывает Shutdown. Возвращает ошибку из fatal, если остановка вызвана ею
func (m *Manager) Wait(ctx context.Context, fatal <-chan error) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cause error
	select {
	case <-sigCtx.Done():
		m.logger.Info("received shutdown signal, starting graceful shutdown")
	case cause = <-fatal:
		m.logger.Error("component failed, starting graceful shutdown", zap.Error(cause))
	}

	if err := m.Shutdown(); err != nil {
		m.logger.Warn("graceful shutdown finished with errors", zap.Error(err))
	}
	return cause
}

// Shutdown выполняет все шаги; ошибка одного шага не останавливает остальные
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	steps := make([]step, len(m.steps))
	copy(steps, m.steps)
	m.steps = nil
	m.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		start := time.Now()
		err := s.fn(ctx)
		cancel()

		if err != nil {
			m.logger.Error("shutdown step failed",
				zap.String("name", s.name),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
			errs = append(errs, err)
			continue
		}
		m.logger.Info("shutdown step completed",
			zap.String("name", s.name),
			zap.Duration("duration", time.Since(start)))
	}

	m.logger.Info("graceful shutdown completed")
	return errors.Join(errs...)
}

// HTTPServer возвращает shutdown функцию для http.Server
func HTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return srv.Shutdown
}

// Pool возвращает shutdown функцию для пула без ошибки закрытия (pgxpool.Pool)
func Pool(pool interface{ Close() }) func(context.Context) error {
	return func(context.Context) error {
		pool.Close()
		return nil
	}
}

// Closer возвращает shutdown функцию для io.Closer (redis client, kafka writer)
func Closer(c interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return c.Close()
	}
}
