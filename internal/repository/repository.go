package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RefundStatus — состояние возврата по покупке
type RefundStatus string

const (
	RefundStatusNone      RefundStatus = "none"
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusFailed    RefundStatus = "failed"
)

// Valid проверяет, что статус входит в известный набор
func (s RefundStatus) Valid() bool {
	switch s {
	case RefundStatusNone, RefundStatusPending, RefundStatusApproved,
		RefundStatusCompleted, RefundStatusRejected, RefundStatusFailed:
		return true
	}
	return false
}

// Product — товар каталога. Каталог принадлежит другой подсистеме, здесь только чтение
type Product struct {
	ID          string
	Title       string
	Description string
	Price       decimal.Decimal
	SellerID    string
	FileRef     string
}

// SellerAccount — платёжная часть пользователя-продавца
type SellerAccount struct {
	SellerID           string
	ConnectedAccountID string // пусто, пока онбординг не начат
	OnboardingComplete bool
}

// PaymentReady — продавца можно включать в checkout session
func (a SellerAccount) PaymentReady() bool {
	return a.ConnectedAccountID != ""
}

// Purchase — запись леджера. Создаётся только вебхуком, дальше меняется только возвратами
type Purchase struct {
	ID                string
	ProductID         string
	BuyerID           string
	SellerID          string // копия на момент покупки
	Amount            decimal.Decimal
	CheckoutSessionID string
	RefundStatus      RefundStatus
	RefundReason      string
	RefundNote        string
	RefundedAt        *time.Time
	RefundID          string
	RefundAttempts    int
	CreatedAt         time.Time
}

// RefundUpdate описывает изменение refund-полей при переходе состояния.
// Nil/пустые поля не меняются.
type RefundUpdate struct {
	Status           RefundStatus
	Reason           *string
	Note             *string
	RefundID         *string
	RefundedAt       *time.Time
	IncrementAttempt bool
}

// InboxResult результат BeginWebhookEvent
type InboxResult struct {
	AlreadyProcessed bool // событие уже обработано, ничего не делаем
	CanProcess       bool // новое событие или повтор после ошибки
}

// PurchaseRepository — леджер покупок
type PurchaseRepository interface {
	// InsertPurchaseIfAbsent атомарно вставляет покупку; inserted=false если пара
	// (checkout_session_id, product_id) уже есть
	InsertPurchaseIfAbsent(ctx context.Context, p Purchase) (inserted bool, err error)

	// GetPurchase возвращает ErrNotFound, если покупки нет
	GetPurchase(ctx context.Context, id string) (Purchase, error)

	// UpdateRefund меняет refund-поля только если текущий статус входит в from (compare-and-swap).
	// Возвращает ErrNotFound или ErrStatusConflict
	UpdateRefund(ctx context.Context, id string, from []RefundStatus, upd RefundUpdate) (Purchase, error)

	// ListPurchasesByRefundStatus — для ручной сверки оператором
	ListPurchasesByRefundStatus(ctx context.Context, status RefundStatus, limit int) ([]Purchase, error)
}

// CatalogRepository — чтение каталога
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	// GetProductsByIDs возвращает найденные товары, отсутствующие просто пропускаются
	GetProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// SellerRepository — платёжные аккаунты продавцов
type SellerRepository interface {
	GetSellerAccount(ctx context.Context, sellerID string) (SellerAccount, error)
	GetSellerAccounts(ctx context.Context, sellerIDs []string) ([]SellerAccount, error)
	SetConnectedAccount(ctx context.Context, sellerID, accountID string) error
	// SetOnboardingComplete ищет продавца по connected account id
	SetOnboardingComplete(ctx context.Context, accountID string, complete bool) error
}

// WebhookInbox фиксирует входящие события процессора
type WebhookInbox interface {
	BeginWebhookEvent(ctx context.Context, eventID, eventType string) (InboxResult, error)
	MarkWebhookEventProcessed(ctx context.Context, eventID string) error
	MarkWebhookEventFailed(ctx context.Context, eventID string, errString string) error
}

// Ledger объединяет всё хранилище
type Ledger interface {
	PurchaseRepository
	CatalogRepository
	SellerRepository
	WebhookInbox
}

var (
	// ErrNotFound возвращается, когда запись не найдена
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict возвращается UpdateRefund, если статус уже изменился
	ErrStatusConflict = errors.New("refund status conflict")
)
