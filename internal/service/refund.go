package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
	"github.com/shestoi/marketsettle/platform/observability"
)

// Статусы возврата у процессора, которые означают неуспех
var failedGatewayRefundStatuses = []string{"failed", "canceled"}

// RefundService ведёт покупку по машине состояний возврата:
// none → pending → approved → completed, pending → rejected, approved|pending → failed.
// Из failed можно повторить обработку
type RefundService struct {
	logger    *zap.Logger
	purchases repository.PurchaseRepository
	gateway   PaymentGateway
	notifier  Notifier
	alerter   OpsAlerter
	metrics   MetricsRecorder
	now       func() time.Time
}

// NewRefundService создаёт новый экземпляр RefundService
func NewRefundService(
	logger *zap.Logger,
	purchases repository.PurchaseRepository,
	gateway PaymentGateway,
	notifier Notifier,
	alerter OpsAlerter,
) *RefundService {
	return &RefundService{
		logger:    logger,
		purchases: purchases,
		gateway:   gateway,
		notifier:  notifier,
		alerter:   alerter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics подключает запись метрик
func (s *RefundService) WithMetrics(m MetricsRecorder) *RefundService {
	s.metrics = m
	return s
}

// RequestRefund переводит none → pending и сохраняет причину
func (s *RefundService) RequestRefund(ctx context.Context, purchaseID, reason string) (repository.Purchase, error) {
	reason = strings.TrimSpace(reason)
	p, err := s.transition(ctx, purchaseID, "request refund for",
		[]repository.RefundStatus{repository.RefundStatusNone},
		repository.RefundUpdate{Status: repository.RefundStatusPending, Reason: &reason})
	if err != nil {
		return repository.Purchase{}, err
	}

	observability.L(ctx, s.logger).Info("refund requested",
		zap.String("purchase_id", purchaseID),
		zap.String("buyer_id", p.BuyerID),
	)
	return p, nil
}

// RejectRefund переводит pending → rejected. Причина обязательна
func (s *RefundService) RejectRefund(ctx context.Context, purchaseID, reason string) (repository.Purchase, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return repository.Purchase{}, validationf("rejection reason is required")
	}
	p, err := s.transition(ctx, purchaseID, "reject refund for",
		[]repository.RefundStatus{repository.RefundStatusPending},
		repository.RefundUpdate{Status: repository.RefundStatusRejected, Reason: &reason})
	if err != nil {
		return repository.Purchase{}, err
	}

	observability.L(ctx, s.logger).Info("refund rejected", zap.String("purchase_id", purchaseID))
	return p, nil
}

// ProcessRefund одобряет возврат и исполняет его у процессора.
// Разрешён из pending, approved (зависшая обработка) и failed (повтор).
// Любая ошибка после approve переводит покупку в failed
func (s *RefundService) ProcessRefund(ctx context.Context, purchaseID, note string) (repository.Purchase, error) {
	logger := observability.L(ctx, s.logger)
	note = strings.TrimSpace(note)

	// approve: здесь же увеличивается номер попытки, он входит в idempotency key
	upd := repository.RefundUpdate{Status: repository.RefundStatusApproved, IncrementAttempt: true}
	if note != "" {
		upd.Note = &note
	}
	p, err := s.transition(ctx, purchaseID, "process refund for",
		[]repository.RefundStatus{repository.RefundStatusPending, repository.RefundStatusApproved, repository.RefundStatusFailed},
		upd)
	if err != nil {
		return repository.Purchase{}, err
	}

	logger.Info("refund approved",
		zap.String("purchase_id", p.ID),
		zap.Int("attempt", p.RefundAttempts),
	)

	refund, err := s.executeRefund(ctx, p)
	if err != nil {
		return repository.Purchase{}, s.markFailed(ctx, p, refund.ID, err)
	}

	refundedAt := s.now()
	refundID := refund.ID
	completed, err := s.purchases.UpdateRefund(ctx, p.ID,
		[]repository.RefundStatus{repository.RefundStatusApproved},
		repository.RefundUpdate{Status: repository.RefundStatusCompleted, RefundID: &refundID, RefundedAt: &refundedAt})
	if err != nil {
		// Деньги уже возвращены: операторы должны увидеть refund id
		logger.Error("refund executed but completion not recorded",
			zap.Error(err),
			zap.String("purchase_id", p.ID),
			zap.String("refund_id", refundID),
		)
		return repository.Purchase{}, s.markFailed(ctx, p, refundID, fmt.Errorf("record completion: %w", err))
	}

	logger.Info("refund completed",
		zap.String("purchase_id", p.ID),
		zap.String("refund_id", refundID),
		zap.String("amount", p.Amount.StringFixed(2)),
	)

	if s.metrics != nil {
		s.metrics.RecordRefund("completed")
	}
	s.notifyParties(ctx, completed)
	return completed, nil
}

// ListByRefundStatus — очередь для оператора
func (s *RefundService) ListByRefundStatus(ctx context.Context, status repository.RefundStatus, limit int) ([]repository.Purchase, error) {
	if !status.Valid() {
		return nil, validationf("unknown refund status %q", status)
	}
	purchases, err := s.purchases.ListPurchasesByRefundStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}

func (s *RefundService) executeRefund(ctx context.Context, p repository.Purchase) (Refund, error) {
	session, err := s.gateway.GetCheckoutSession(ctx, p.CheckoutSessionID)
	if err != nil {
		return Refund{}, fmt.Errorf("get checkout session: %w", err)
	}
	if session.PaymentIntentID == "" {
		return Refund{}, fmt.Errorf("checkout session %s has no payment intent", session.ID)
	}

	refund, err := s.gateway.CreateRefund(ctx, RefundRequest{
		PaymentIntentID: session.PaymentIntentID,
		Amount:          ToMinorUnits(p.Amount),
		PurchaseID:      p.ID,
		ReverseTransfer: session.DestinationAccountID != "",
		IdempotencyKey:  fmt.Sprintf("refund-%s-%d", p.ID, p.RefundAttempts),
	})
	if err != nil {
		return Refund{}, fmt.Errorf("create refund: %w", err)
	}
	for _, status := range failedGatewayRefundStatuses {
		if refund.Status == status {
			return refund, fmt.Errorf("refund %s finished with status %s", refund.ID, refund.Status)
		}
	}
	return refund, nil
}

// markFailed переводит approved → failed и возвращает ошибку для вызывающего
func (s *RefundService) markFailed(ctx context.Context, p repository.Purchase, refundID string, cause error) error {
	logger := observability.L(ctx, s.logger)

	// Причину покупателя не трогаем, текст ошибки кладём в заметку оператора
	msg := cause.Error()
	note := "refund failed: " + msg
	upd := repository.RefundUpdate{Status: repository.RefundStatusFailed, Note: &note}
	if refundID != "" {
		upd.RefundID = &refundID
	}
	if _, err := s.purchases.UpdateRefund(ctx, p.ID, []repository.RefundStatus{repository.RefundStatusApproved}, upd); err != nil {
		logger.Error("failed to mark refund failed",
			zap.Error(err),
			zap.String("purchase_id", p.ID),
		)
	}

	logger.Error("refund failed",
		zap.Error(cause),
		zap.String("purchase_id", p.ID),
		zap.Int("attempt", p.RefundAttempts),
	)

	if s.alerter != nil {
		text := fmt.Sprintf("Refund failed for purchase %s (attempt %d): %s", p.ID, p.RefundAttempts, msg)
		if err := s.alerter.Alert(ctx, text); err != nil {
			logger.Warn("failed to send ops alert", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordRefund("failed")
	}
	return &ExternalServiceError{Op: "refund", Err: cause}
}

func (s *RefundService) notifyParties(ctx context.Context, p repository.Purchase) {
	if s.notifier == nil {
		return
	}
	payload := map[string]string{
		"purchase_id": p.ID,
		"product_id":  p.ProductID,
		"amount":      p.Amount.StringFixed(2),
		"refund_id":   p.RefundID,
	}
	recipients := []struct {
		userID string
		kind   NotificationKind
	}{
		{p.BuyerID, NotificationPurchaseRefunded},
		{p.SellerID, NotificationSaleReversed},
	}
	for _, r := range recipients {
		if err := s.notifier.Notify(ctx, r.userID, r.kind, payload); err != nil {
			observability.L(ctx, s.logger).Warn("failed to send refund notification",
				zap.Error(err),
				zap.String("purchase_id", p.ID),
				zap.String("user_id", r.userID),
				zap.String("kind", string(r.kind)),
			)
		}
	}
}

// transition выполняет CAS-переход и переводит ошибки хранилища в ошибки сервиса
func (s *RefundService) transition(
	ctx context.Context,
	purchaseID, action string,
	from []repository.RefundStatus,
	upd repository.RefundUpdate,
) (repository.Purchase, error) {
	if purchaseID == "" {
		return repository.Purchase{}, validationf("purchase id is required")
	}

	p, err := s.purchases.UpdateRefund(ctx, purchaseID, from, upd)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, repository.ErrNotFound):
		return repository.Purchase{}, fmt.Errorf("%w: %s", ErrPurchaseNotFound, purchaseID)
	case errors.Is(err, repository.ErrStatusConflict):
		current, getErr := s.purchases.GetPurchase(ctx, purchaseID)
		if getErr != nil {
			return repository.Purchase{}, fmt.Errorf("failed to load purchase: %w", getErr)
		}
		return repository.Purchase{}, &StateConflictError{PurchaseID: purchaseID, Action: action, Status: current.RefundStatus}
	default:
		return repository.Purchase{}, fmt.Errorf("failed to update refund status: %w", err)
	}
}
