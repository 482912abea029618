package service

import (
	"errors"
	"fmt"

	"github.com/shestoi/marketsettle/internal/repository"
)

var (
	// ErrSignatureVerification — подпись вебхука не прошла проверку
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	// ErrPurchaseNotFound — покупка не найдена
	ErrPurchaseNotFound = errors.New("purchase not found")
)

// ValidationError — ошибка входных данных, показывается пользователю, не ретраится
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ExternalServiceError — процессор недоступен или отклонил вызов; вызывающий может повторить
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// StateConflictError — переход состояния возврата недопустим из текущего статуса
type StateConflictError struct {
	PurchaseID string
	Action     string
	Status     repository.RefundStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s purchase %s: refund status is %s", e.Action, e.PurchaseID, e.Status)
}
