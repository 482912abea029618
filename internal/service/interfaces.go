package service

import "context"

// CheckoutLine — одна позиция checkout session, сумма уже в минорных единицах
type CheckoutLine struct {
	ProductID  string
	Title      string
	UnitAmount int64
}

// CheckoutSessionRequest содержит всё, что нужно процессору для hosted checkout
type CheckoutSessionRequest struct {
	Lines    []CheckoutLine
	Currency string
	Metadata map[string]string
	// DestinationAccountID заполняется, когда все товары от одного продавца (destination charge)
	DestinationAccountID string
	ApplicationFeeAmount int64
	// TransferGroup используется для корзины с несколькими продавцами
	TransferGroup string
}

// SessionLine — фактически списанная сумма по позиции
type SessionLine struct {
	ProductID   string
	AmountTotal int64
}

// CheckoutSession — доменное представление сессии процессора
type CheckoutSession struct {
	ID                   string
	URL                  string
	PaymentIntentID      string
	PaymentStatus        string
	Currency             string
	AmountTotal          int64
	Metadata             map[string]string
	Lines                []SessionLine
	DestinationAccountID string
}

// RefundRequest — возврат по payment intent
type RefundRequest struct {
	PaymentIntentID string
	Amount          int64
	PurchaseID      string
	ReverseTransfer bool
	IdempotencyKey  string
}

// Refund результат создания возврата
type Refund struct {
	ID     string
	Status string
}

// ConnectedAccount — connected account продавца у процессора
type ConnectedAccount struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Metadata         map[string]string
}

// AccountBalance — средства connected account в минорных единицах одной валюты
type AccountBalance struct {
	Available int64
	Pending   int64
	Currency  string
}

// WebhookEvent — проверенное событие процессора.
// Заполнено только поле, соответствующее типу события
type WebhookEvent struct {
	ID              string
	Type            string
	CheckoutSession *CheckoutSession
	Account         *ConnectedAccount
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentGateway --dir=. --output=./mocks --outpkg=mocks

// PaymentGateway определяет интерфейс платёжного процессора.
// Использует доменные типы, сервисный слой не знает о Stripe SDK
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	// GetCheckoutSession возвращает сессию вместе с payment intent и позициями
	GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)
	CreateRefund(ctx context.Context, req RefundRequest) (Refund, error)
	GetAccount(ctx context.Context, accountID string) (ConnectedAccount, error)
	GetBalance(ctx context.Context, accountID string) (AccountBalance, error)
	CreateConnectedAccount(ctx context.Context, sellerID string) (ConnectedAccount, error)
	// CreateAccountLink возвращает URL hosted онбординга
	CreateAccountLink(ctx context.Context, accountID string) (string, error)
	// ParseWebhookEvent проверяет подпись и разбирает событие
	ParseWebhookEvent(payload []byte, signatureHeader string) (WebhookEvent, error)
}

// NotificationKind тип уведомления пользователю
type NotificationKind string

const (
	NotificationPurchaseRefunded NotificationKind = "purchase_refunded"
	NotificationSaleReversed     NotificationKind = "sale_reversed"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Notifier --dir=. --output=./mocks --outpkg=mocks

// Notifier отправляет уведомления пользователям (fire-and-forget)
type Notifier interface {
	Notify(ctx context.Context, userID string, kind NotificationKind, payload map[string]string) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OpsAlerter --dir=. --output=./mocks --outpkg=mocks

// OpsAlerter — канал алертов для операторов
type OpsAlerter interface {
	Alert(ctx context.Context, text string) error
}

// MetricsRecorder записывает метрики расчётов. nil — метрики выключены
type MetricsRecorder interface {
	RecordWebhookEvent(eventType, result string)
	RecordRefund(result string)
}
