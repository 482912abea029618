package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/authctx"
	"github.com/shestoi/marketsettle/internal/repository"
	"github.com/shestoi/marketsettle/internal/service"
	"github.com/shestoi/marketsettle/platform/observability"
)

// Stripe не присылает события больше нескольких сотен килобайт
const maxWebhookBodyBytes = 1 << 20

const defaultListLimit = 100

// Handler содержит HTTP-обработчики Settlement Service.
// Зависит от service слоя, не знает о Stripe и БД
type Handler struct {
	logger     *zap.Logger
	checkout   *service.CheckoutService
	webhooks   *service.WebhookService
	balances   *service.BalanceService
	onboarding *service.OnboardingService
	refunds    *service.RefundService
}

// NewHandler создаёт новый HTTP handler
func NewHandler(
	logger *zap.Logger,
	checkout *service.CheckoutService,
	webhooks *service.WebhookService,
	balances *service.BalanceService,
	onboarding *service.OnboardingService,
	refunds *service.RefundService,
) *Handler {
	return &Handler{
		logger:     logger,
		checkout:   checkout,
		webhooks:   webhooks,
		balances:   balances,
		onboarding: onboarding,
		refunds:    refunds,
	}
}

// CheckoutItem позиция корзины в HTTP запросе
type CheckoutItem struct {
	ProductID string `json:"productId"`
}

// CheckoutRequest — либо корзина items, либо один productId
type CheckoutRequest struct {
	Items     []CheckoutItem `json:"items"`
	ProductID string         `json:"productId"`
}

// CheckoutResponse ответ на создание checkout
type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// BalanceResponse баланс продавца; суммы строками с двумя знаками
type BalanceResponse struct {
	Status    string `json:"status"`
	Available string `json:"available"`
	Pending   string `json:"pending"`
	Currency  string `json:"currency"`
}

// RefundActionRequest тело admin-действий над возвратом
type RefundActionRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// RefundActionResponse результат admin-действия
type RefundActionResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	RefundID string `json:"refundId,omitempty"`
}

// PurchaseResponse покупка в admin-списке
type PurchaseResponse struct {
	ID                string     `json:"id"`
	ProductID         string     `json:"productId"`
	BuyerID           string     `json:"buyerId"`
	SellerID          string     `json:"sellerId"`
	Amount            string     `json:"amount"`
	CheckoutSessionID string     `json:"checkoutSessionId"`
	RefundStatus      string     `json:"refundStatus"`
	RefundReason      string     `json:"refundReason,omitempty"`
	RefundNote        string     `json:"refundNote,omitempty"`
	RefundID          string     `json:"refundId,omitempty"`
	RefundAttempts    int        `json:"refundAttempts"`
	RefundedAt        *time.Time `json:"refundedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// PostCheckout обрабатывает POST /checkout
func (h *Handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	s, _ := authctx.SessionFromContext(r.Context())

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	input := service.CreateCheckoutInput{BuyerID: s.UserID, Kind: service.CheckoutKindCart}
	if req.ProductID != "" {
		input.Kind = service.CheckoutKindSingle
		input.ProductIDs = []string{req.ProductID}
	}
	for _, item := range req.Items {
		input.ProductIDs = append(input.ProductIDs, item.ProductID)
	}

	out, err := h.checkout.CreateCheckoutSession(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResponse{SessionID: out.SessionID, RedirectURL: out.RedirectURL})
}

// PostStripeWebhook обрабатывает POST /webhooks/stripe.
// Тело читается как есть: подпись считается по сырым байтам
func (h *Handler) PostStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read body")
		return
	}

	err = h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, service.ErrSignatureVerification):
		writeMessage(w, http.StatusBadRequest, "invalid signature")
	default:
		// 5xx: процессор повторит доставку
		writeMessage(w, http.StatusInternalServerError, "webhook processing failed")
	}
}

// GetMyBalance обрабатывает GET /sellers/me/balance. Всегда 200
func (h *Handler) GetMyBalance(w http.ResponseWriter, r *http.Request) {
	s, _ := authctx.SessionFromContext(r.Context())

	b := h.balances.GetSellerBalance(r.Context(), s.UserID)
	writeJSON(w, http.StatusOK, BalanceResponse{
		Status:    string(b.Status),
		Available: b.Available.StringFixed(2),
		Pending:   b.Pending.StringFixed(2),
		Currency:  b.Currency,
	})
}

// PostMyOnboarding обрабатывает POST /sellers/me/onboarding
func (h *Handler) PostMyOnboarding(w http.ResponseWriter, r *http.Request) {
	s, _ := authctx.SessionFromContext(r.Context())

	url, err := h.onboarding.StartOnboarding(r.Context(), s.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// PostRefundRequest обрабатывает POST /admin/purchases/{id}/refund-request
func (h *Handler) PostRefundRequest(w http.ResponseWriter, r *http.Request, purchaseID string) {
	req, ok := decodeOptionalBody(w, r)
	if !ok {
		return
	}
	p, err := h.refunds.RequestRefund(r.Context(), purchaseID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RefundActionResponse{Success: true, Status: string(p.RefundStatus)})
}

// PostRefund обрабатывает POST /admin/purchases/{id}/refund
func (h *Handler) PostRefund(w http.ResponseWriter, r *http.Request, purchaseID string) {
	req, ok := decodeOptionalBody(w, r)
	if !ok {
		return
	}
	p, err := h.refunds.ProcessRefund(r.Context(), purchaseID, req.Note)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RefundActionResponse{Success: true, Status: string(p.RefundStatus), RefundID: p.RefundID})
}

// PostRefundReject обрабатывает POST /admin/purchases/{id}/refund-reject
func (h *Handler) PostRefundReject(w http.ResponseWriter, r *http.Request, purchaseID string) {
	req, ok := decodeOptionalBody(w, r)
	if !ok {
		return
	}
	p, err := h.refunds.RejectRefund(r.Context(), purchaseID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RefundActionResponse{Success: true, Status: string(p.RefundStatus)})
}

// GetPurchases обрабатывает GET /admin/purchases?refund_status=&limit=
func (h *Handler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	status := repository.RefundStatus(r.URL.Query().Get("refund_status"))
	if status == "" {
		status = repository.RefundStatusPending
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	purchases, err := h.refunds.ListByRefundStatus(r.Context(), status, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]PurchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		resp = append(resp, PurchaseResponse{
			ID:                p.ID,
			ProductID:         p.ProductID,
			BuyerID:           p.BuyerID,
			SellerID:          p.SellerID,
			Amount:            p.Amount.StringFixed(2),
			CheckoutSessionID: p.CheckoutSessionID,
			RefundStatus:      string(p.RefundStatus),
			RefundReason:      p.RefundReason,
			RefundNote:        p.RefundNote,
			RefundID:          p.RefundID,
			RefundAttempts:    p.RefundAttempts,
			RefundedAt:        p.RefundedAt,
			CreatedAt:         p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError переводит типизированные ошибки сервиса в HTTP статус.
// Детали ошибок процессора остаются в логах
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.L(r.Context(), h.logger)

	var (
		validationErr *service.ValidationError
		conflictErr   *service.StateConflictError
		externalErr   *service.ExternalServiceError
	)
	switch {
	case errors.As(err, &validationErr):
		writeMessage(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &conflictErr):
		writeMessage(w, http.StatusConflict, conflictErr.Error())
	case errors.Is(err, service.ErrPurchaseNotFound):
		writeMessage(w, http.StatusNotFound, "purchase not found")
	case errors.As(err, &externalErr):
		logger.Error("payment gateway error", zap.Error(err), zap.String("path", r.URL.Path))
		writeMessage(w, http.StatusServiceUnavailable, "payment temporarily unavailable, please try again")
	default:
		logger.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeOptionalBody разрешает пустое тело
func decodeOptionalBody(w http.ResponseWriter, r *http.Request) (RefundActionRequest, bool) {
	var req RefundActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
