package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shestoi/marketsettle/internal/service"
)

const (
	tracerName = "stripe-client"
	// metadataProductID кладётся в product_data позиции, чтобы вебхук сопоставил суммы
	metadataProductID = "product_id"
	metadataSellerID  = "seller_id"
)

// Config настройки Stripe адаптера
type Config struct {
	SecretKey            string
	WebhookSecret        string
	Currency             string
	SuccessURL           string
	CancelURL            string
	OnboardingReturnURL  string
	OnboardingRefreshURL string
	Timeout              time.Duration
	// BaseURL переопределяет адрес API (для тестов); пусто = api.stripe.com
	BaseURL string
}

// GatewayAdapter адаптирует Stripe SDK к интерфейсу service.PaymentGateway.
// Сервисный слой не зависит от типов stripe-go
type GatewayAdapter struct {
	api    *client.API
	cfg    Config
	tracer trace.Tracer
}

// NewGatewayAdapter создаёт адаптер с собственным HTTP клиентом и таймаутом
func NewGatewayAdapter(cfg Config) *GatewayAdapter {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var backends *stripe.Backends
	if cfg.BaseURL != "" {
		backendCfg := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			URL:               stripe.String(cfg.BaseURL),
			MaxNetworkRetries: stripe.Int64(0),
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}
	} else {
		backends = stripe.NewBackends(httpClient)
	}

	return &GatewayAdapter{
		api:    client.New(cfg.SecretKey, backends),
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
	}
}

var _ service.PaymentGateway = (*GatewayAdapter)(nil)

// CreateCheckoutSession создаёт hosted checkout session в режиме payment
func (a *GatewayAdapter) CreateCheckoutSession(ctx context.Context, req service.CheckoutSessionRequest) (service.CheckoutSession, error) {
	ctx, span := a.startSpan(ctx, "CreateCheckoutSession", attribute.Int("checkout.lines", len(req.Lines)))
	defer span.End()

	currency := req.Currency
	if currency == "" {
		currency = a.cfg.Currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(a.cfg.SuccessURL),
		CancelURL:  stripe.String(a.cfg.CancelURL),
	}
	params.Context = ctx
	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(line.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(line.Title),
					Metadata: map[string]string{metadataProductID: line.ProductID},
				},
			},
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intentData := &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: req.Metadata,
	}
	if req.DestinationAccountID != "" {
		intentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(req.DestinationAccountID),
		}
		if req.ApplicationFeeAmount > 0 {
			intentData.ApplicationFeeAmount = stripe.Int64(req.ApplicationFeeAmount)
		}
	}
	if req.TransferGroup != "" {
		intentData.TransferGroup = stripe.String(req.TransferGroup)
	}
	params.PaymentIntentData = intentData

	sess, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		return service.CheckoutSession{}, recordError(span, err)
	}
	span.SetAttributes(attribute.String("checkout.session_id", sess.ID))
	return toCheckoutSession(sess), nil
}

// GetCheckoutSession читает сессию с позициями и payment intent
func (a *GatewayAdapter) GetCheckoutSession(ctx context.Context, sessionID string) (service.CheckoutSession, error) {
	ctx, span := a.startSpan(ctx, "GetCheckoutSession", attribute.String("checkout.session_id", sessionID))
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	params.AddExpand("payment_intent")

	sess, err := a.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return service.CheckoutSession{}, recordError(span, err)
	}
	return toCheckoutSession(sess), nil
}

// CreateRefund создаёт возврат на сумму покупки.
// Idempotency key защищает от двойного возврата при повторе после таймаута
func (a *GatewayAdapter) CreateRefund(ctx context.Context, req service.RefundRequest) (service.Refund, error) {
	ctx, span := a.startSpan(ctx, "CreateRefund",
		attribute.String("refund.purchase_id", req.PurchaseID),
		attribute.Int64("refund.amount", req.Amount),
	)
	defer span.End()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	if req.ReverseTransfer {
		params.ReverseTransfer = stripe.Bool(true)
		params.RefundApplicationFee = stripe.Bool(true)
	}
	params.AddMetadata("purchase_id", req.PurchaseID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := a.api.Refunds.New(params)
	if err != nil {
		return service.Refund{}, recordError(span, err)
	}
	span.SetAttributes(attribute.String("refund.id", r.ID), attribute.String("refund.status", string(r.Status)))
	return service.Refund{ID: r.ID, Status: string(r.Status)}, nil
}

// GetAccount читает connected account
func (a *GatewayAdapter) GetAccount(ctx context.Context, accountID string) (service.ConnectedAccount, error) {
	ctx, span := a.startSpan(ctx, "GetAccount", attribute.String("account.id", accountID))
	defer span.End()

	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := a.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return service.ConnectedAccount{}, recordError(span, err)
	}
	return toConnectedAccount(acct), nil
}

// GetBalance читает баланс от имени connected account и берёт расчётную валюту
func (a *GatewayAdapter) GetBalance(ctx context.Context, accountID string) (service.AccountBalance, error) {
	ctx, span := a.startSpan(ctx, "GetBalance", attribute.String("account.id", accountID))
	defer span.End()

	params := &stripe.BalanceParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	b, err := a.api.Balance.Get(params)
	if err != nil {
		return service.AccountBalance{}, recordError(span, err)
	}

	out := service.AccountBalance{Currency: a.cfg.Currency}
	out.Available = sumAmounts(b.Available, a.cfg.Currency)
	out.Pending = sumAmounts(b.Pending, a.cfg.Currency)
	return out, nil
}

// CreateConnectedAccount создаёт Express аккаунт; seller_id в metadata связывает его с продавцом
func (a *GatewayAdapter) CreateConnectedAccount(ctx context.Context, sellerID string) (service.ConnectedAccount, error) {
	ctx, span := a.startSpan(ctx, "CreateConnectedAccount", attribute.String("seller.id", sellerID))
	defer span.End()

	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
	}
	params.Context = ctx
	params.AddMetadata(metadataSellerID, sellerID)
	params.SetIdempotencyKey("connect-account-" + sellerID)

	acct, err := a.api.Accounts.New(params)
	if err != nil {
		return service.ConnectedAccount{}, recordError(span, err)
	}
	return toConnectedAccount(acct), nil
}

// CreateAccountLink возвращает одноразовую ссылку на hosted онбординг
func (a *GatewayAdapter) CreateAccountLink(ctx context.Context, accountID string) (string, error) {
	ctx, span := a.startSpan(ctx, "CreateAccountLink", attribute.String("account.id", accountID))
	defer span.End()

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		ReturnURL:  stripe.String(a.cfg.OnboardingReturnURL),
		RefreshURL: stripe.String(a.cfg.OnboardingRefreshURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := a.api.AccountLinks.New(params)
	if err != nil {
		return "", recordError(span, err)
	}
	return link.URL, nil
}

// ParseWebhookEvent проверяет подпись Stripe-Signature и разбирает объект события.
// Расхождение версии API не считается ошибкой: нужные поля стабильны
func (a *GatewayAdapter) ParseWebhookEvent(payload []byte, signatureHeader string) (service.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return service.WebhookEvent{}, err
	}

	out := service.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return service.WebhookEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		cs := toCheckoutSession(&sess)
		out.CheckoutSession = &cs
	case strings.HasPrefix(out.Type, "account."):
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return service.WebhookEvent{}, fmt.Errorf("decode account: %w", err)
		}
		ca := toConnectedAccount(&acct)
		out.Account = &ca
	}
	return out, nil
}

func (a *GatewayAdapter) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, "stripe."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func toCheckoutSession(sess *stripe.CheckoutSession) service.CheckoutSession {
	out := service.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		Currency:      string(sess.Currency),
		AmountTotal:   sess.AmountTotal,
		Metadata:      sess.Metadata,
	}
	if pi := sess.PaymentIntent; pi != nil {
		out.PaymentIntentID = pi.ID
		if pi.TransferData != nil && pi.TransferData.Destination != nil {
			out.DestinationAccountID = pi.TransferData.Destination.ID
		}
	}
	if sess.LineItems != nil {
		for _, item := range sess.LineItems.Data {
			line := service.SessionLine{AmountTotal: item.AmountTotal}
			if item.Price != nil && item.Price.Product != nil {
				line.ProductID = item.Price.Product.Metadata[metadataProductID]
			}
			out.Lines = append(out.Lines, line)
		}
	}
	return out
}

func toConnectedAccount(acct *stripe.Account) service.ConnectedAccount {
	return service.ConnectedAccount{
		ID:               acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
		Metadata:         acct.Metadata,
	}
}

func sumAmounts(amounts []*stripe.Amount, currency string) int64 {
	var total int64
	for _, am := range amounts {
		if am != nil && strings.EqualFold(string(am.Currency), currency) {
			total += am.Amount
		}
	}
	return total
}
