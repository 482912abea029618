package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
	"github.com/shestoi/marketsettle/platform/observability"
)

// Типы событий процессора, которые мы обрабатываем
const (
	EventCheckoutSessionCompleted      = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAccountUpdated                = "account.updated"
)

const paymentStatusPaid = "paid"

// HandlerDeps — зависимости обработчиков событий
type HandlerDeps struct {
	Logger    *zap.Logger
	Purchases repository.PurchaseRepository
	Catalog   repository.CatalogRepository
	Sellers   repository.SellerRepository
	Gateway   PaymentGateway
	Alerter   OpsAlerter
	NewID     func() string
}

// EventHandler обрабатывает событие одного типа.
// Ошибка означает, что процессор должен повторить доставку
type EventHandler func(ctx context.Context, deps HandlerDeps, event WebhookEvent) error

// DefaultEventHandlers — таблица обработчиков по типу события
func DefaultEventHandlers() map[string]EventHandler {
	return map[string]EventHandler{
		EventCheckoutSessionCompleted:      handleCheckoutSessionCompleted,
		EventCheckoutAsyncPaymentSucceeded: handleCheckoutSessionCompleted,
		EventAccountUpdated:                handleAccountUpdated,
	}
}

// WebhookService проверяет и диспетчеризует вебхуки процессора
type WebhookService struct {
	logger   *zap.Logger
	inbox    repository.WebhookInbox
	deps     HandlerDeps
	handlers map[string]EventHandler
	metrics  MetricsRecorder
}

// NewWebhookService создаёт новый экземпляр WebhookService
func NewWebhookService(
	logger *zap.Logger,
	ledger repository.Ledger,
	gateway PaymentGateway,
	alerter OpsAlerter,
) *WebhookService {
	return &WebhookService{
		logger: logger,
		inbox:  ledger,
		deps: HandlerDeps{
			Logger:    logger,
			Purchases: ledger,
			Catalog:   ledger,
			Sellers:   ledger,
			Gateway:   gateway,
			Alerter:   alerter,
			NewID:     uuid.NewString,
		},
		handlers: DefaultEventHandlers(),
	}
}

// WithMetrics подключает запись метрик
func (s *WebhookService) WithMetrics(m MetricsRecorder) *WebhookService {
	s.metrics = m
	return s
}

func (s *WebhookService) record(eventType, result string) {
	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(eventType, result)
	}
}

// HandleWebhook проверяет подпись и обрабатывает событие.
// nil означает «принято» (включая дубли и неизвестные типы).
// ErrSignatureVerification означает, что событие отвергнуто без побочных эффектов
func (s *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	logger := observability.L(ctx, s.logger)

	event, err := s.deps.Gateway.ParseWebhookEvent(payload, signature)
	if err != nil {
		logger.Warn("webhook rejected: signature verification failed",
			zap.Error(err),
			zap.Bool("security_event", true),
			zap.Int("payload_bytes", len(payload)),
		)
		alert(ctx, s.deps, "Webhook rejected: signature verification failed")
		s.record("unknown", "rejected")
		return fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		logger.Debug("webhook event type ignored",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		s.record(event.Type, "ignored")
		return nil
	}

	res, err := s.inbox.BeginWebhookEvent(ctx, event.ID, event.Type)
	if err != nil {
		logger.Error("failed to register webhook event",
			zap.Error(err),
			zap.String("event_id", event.ID),
		)
		return fmt.Errorf("failed to register webhook event: %w", err)
	}
	if res.AlreadyProcessed {
		logger.Info("webhook event already processed (duplicate)",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		s.record(event.Type, "duplicate")
		return nil
	}

	deps := s.deps
	deps.Logger = logger
	if err := handler(ctx, deps, event); err != nil {
		logger.Error("webhook event handling failed",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		if markErr := s.inbox.MarkWebhookEventFailed(ctx, event.ID, err.Error()); markErr != nil {
			logger.Error("failed to mark webhook event failed", zap.Error(markErr), zap.String("event_id", event.ID))
		}
		s.record(event.Type, "failed")
		return fmt.Errorf("handle %s: %w", event.Type, err)
	}

	if err := s.inbox.MarkWebhookEventProcessed(ctx, event.ID); err != nil {
		// Повторная доставка безопасна: покупки вставляются insert-or-ignore
		logger.Error("failed to mark webhook event processed", zap.Error(err), zap.String("event_id", event.ID))
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	logger.Info("webhook event processed",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	s.record(event.Type, "processed")
	return nil
}

// handleCheckoutSessionCompleted записывает по одной покупке на товар сессии.
// Повторы события безопасны благодаря уникальности (session id, product id)
func handleCheckoutSessionCompleted(ctx context.Context, deps HandlerDeps, event WebhookEvent) error {
	session := event.CheckoutSession
	if session == nil {
		deps.Logger.Error("checkout event without session payload", zap.String("event_id", event.ID))
		return nil
	}

	if session.PaymentStatus != paymentStatusPaid {
		// Отложенные методы оплаты придут отдельным async_payment_succeeded
		deps.Logger.Info("checkout session not paid yet, skipping",
			zap.String("session_id", session.ID),
			zap.String("payment_status", session.PaymentStatus),
		)
		return nil
	}

	buyerID := session.Metadata[metadataBuyerID]
	var productIDs []string
	if raw := session.Metadata[metadataProductIDs]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &productIDs); err != nil {
			productIDs = nil
		}
	}
	if buyerID == "" || len(productIDs) == 0 {
		// Повторная доставка не исправит metadata, поэтому событие подтверждаем
		deps.Logger.Error("checkout session metadata is malformed",
			zap.String("session_id", session.ID),
			zap.String("buyer_id", buyerID),
			zap.Int("products", len(productIDs)),
		)
		alert(ctx, deps, fmt.Sprintf("Checkout session %s has malformed metadata, purchases not recorded", session.ID))
		return nil
	}

	lines, total := session.Lines, session.AmountTotal
	if len(lines) == 0 {
		full, err := deps.Gateway.GetCheckoutSession(ctx, session.ID)
		if err != nil {
			return &ExternalServiceError{Op: "get checkout session", Err: err}
		}
		lines = full.Lines
		if total == 0 {
			total = full.AmountTotal
		}
	}
	amounts := lineAmounts(lines, total, productIDs)

	var recorded int
	for _, productID := range productIDs {
		product, err := deps.Catalog.GetProduct(ctx, productID)
		if errors.Is(err, repository.ErrNotFound) {
			deps.Logger.Error("paid product no longer in catalog, purchase not recorded",
				zap.String("session_id", session.ID),
				zap.String("product_id", productID),
			)
			alert(ctx, deps, fmt.Sprintf("Paid product %s from session %s is missing in catalog", productID, session.ID))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load product %s: %w", productID, err)
		}

		inserted, err := deps.Purchases.InsertPurchaseIfAbsent(ctx, repository.Purchase{
			ID:                deps.NewID(),
			ProductID:         productID,
			BuyerID:           buyerID,
			SellerID:          product.SellerID,
			Amount:            FromMinorUnits(amounts[productID]),
			CheckoutSessionID: session.ID,
			RefundStatus:      repository.RefundStatusNone,
		})
		if err != nil {
			return fmt.Errorf("failed to record purchase for product %s: %w", productID, err)
		}
		if !inserted {
			deps.Logger.Debug("purchase already recorded",
				zap.String("session_id", session.ID),
				zap.String("product_id", productID),
			)
			continue
		}
		recorded++
	}

	deps.Logger.Info("purchases recorded",
		zap.String("session_id", session.ID),
		zap.String("buyer_id", buyerID),
		zap.Int("recorded", recorded),
		zap.Int("products", len(productIDs)),
	)
	return nil
}

// lineAmounts сопоставляет товарам фактически списанные суммы.
// Если позиции нельзя сопоставить, total делится без потери центов
func lineAmounts(lines []SessionLine, total int64, productIDs []string) map[string]int64 {
	amounts := make(map[string]int64, len(productIDs))

	byProduct := make(map[string]int64, len(lines))
	for _, l := range lines {
		if l.ProductID != "" {
			byProduct[l.ProductID] += l.AmountTotal
		}
	}
	matched := true
	for _, id := range productIDs {
		if _, ok := byProduct[id]; !ok {
			matched = false
			break
		}
	}
	if matched {
		for _, id := range productIDs {
			amounts[id] = byProduct[id]
		}
		return amounts
	}

	// Позиции создаются в порядке product_ids
	if len(lines) == len(productIDs) {
		for i, id := range productIDs {
			amounts[id] = lines[i].AmountTotal
		}
		return amounts
	}

	parts := SplitAmount(total, len(productIDs))
	for i, id := range productIDs {
		amounts[id] = parts[i]
	}
	return amounts
}

// handleAccountUpdated синхронизирует флаг онбординга продавца
func handleAccountUpdated(ctx context.Context, deps HandlerDeps, event WebhookEvent) error {
	acct := event.Account
	if acct == nil || acct.ID == "" {
		deps.Logger.Error("account event without account payload", zap.String("event_id", event.ID))
		return nil
	}

	complete := acct.ChargesEnabled && acct.DetailsSubmitted
	err := deps.Sellers.SetOnboardingComplete(ctx, acct.ID, complete)
	if errors.Is(err, repository.ErrNotFound) {
		sellerID := acct.Metadata[metadataSellerID]
		if sellerID == "" {
			deps.Logger.Warn("account update for unknown connected account", zap.String("account_id", acct.ID))
			return nil
		}
		// Аккаунт создан, но его id не успели сохранить
		if err := deps.Sellers.SetConnectedAccount(ctx, sellerID, acct.ID); err != nil {
			return fmt.Errorf("failed to link connected account: %w", err)
		}
		err = deps.Sellers.SetOnboardingComplete(ctx, acct.ID, complete)
	}
	if err != nil {
		return fmt.Errorf("failed to update onboarding status: %w", err)
	}

	deps.Logger.Info("seller onboarding status updated",
		zap.String("account_id", acct.ID),
		zap.Bool("onboarding_complete", complete),
	)
	return nil
}

// alert отправляет алерт операторам, ошибки только логируются
func alert(ctx context.Context, deps HandlerDeps, text string) {
	if deps.Alerter == nil {
		return
	}
	if err := deps.Alerter.Alert(ctx, text); err != nil {
		deps.Logger.Warn("failed to send ops alert", zap.Error(err))
	}
}
