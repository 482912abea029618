package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/shestoi/marketsettle/internal/service"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func eventJSON(t *testing.T, id, eventType string, object any) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	body := fmt.Sprintf(`{"id":%q,"object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		id, stripe.APIVersion, eventType, raw)
	return []byte(body)
}

func TestGatewayAdapter_ParseWebhookEvent(t *testing.T) {
	adapter := NewGatewayAdapter(Config{WebhookSecret: testWebhookSecret, Currency: "usd", Timeout: time.Second})

	t.Run("checkout session completed", func(t *testing.T) {
		payload := eventJSON(t, "evt_1", "checkout.session.completed", map[string]any{
			"id":             "cs_1",
			"object":         "checkout.session",
			"payment_status": "paid",
			"amount_total":   2750,
			"currency":       "usd",
			"metadata":       map[string]string{"buyer_id": "buyer-1", "product_ids": `["p1","p2"]`},
			"payment_intent": "pi_1",
		})

		event, err := adapter.ParseWebhookEvent(payload, signedPayload(t, payload, testWebhookSecret))
		require.NoError(t, err)
		require.Equal(t, "evt_1", event.ID)
		require.Equal(t, service.EventCheckoutSessionCompleted, event.Type)
		require.NotNil(t, event.CheckoutSession)
		assert.Equal(t, "cs_1", event.CheckoutSession.ID)
		assert.Equal(t, "paid", event.CheckoutSession.PaymentStatus)
		assert.Equal(t, int64(2750), event.CheckoutSession.AmountTotal)
		assert.Equal(t, "pi_1", event.CheckoutSession.PaymentIntentID)
		assert.Equal(t, "buyer-1", event.CheckoutSession.Metadata["buyer_id"])
	})

	t.Run("account updated", func(t *testing.T) {
		payload := eventJSON(t, "evt_2", "account.updated", map[string]any{
			"id":                "acct_1",
			"object":            "account",
			"charges_enabled":   true,
			"details_submitted": true,
			"metadata":          map[string]string{"seller_id": "s1"},
		})

		event, err := adapter.ParseWebhookEvent(payload, signedPayload(t, payload, testWebhookSecret))
		require.NoError(t, err)
		require.NotNil(t, event.Account)
		assert.Equal(t, "acct_1", event.Account.ID)
		assert.True(t, event.Account.ChargesEnabled)
		assert.Equal(t, "s1", event.Account.Metadata["seller_id"])
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		payload := eventJSON(t, "evt_3", "checkout.session.completed", map[string]any{"id": "cs_3", "object": "checkout.session"})

		_, err := adapter.ParseWebhookEvent(payload, signedPayload(t, payload, "whsec_other"))
		require.Error(t, err)
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		payload := eventJSON(t, "evt_4", "checkout.session.completed", map[string]any{"id": "cs_4", "object": "checkout.session"})
		header := signedPayload(t, payload, testWebhookSecret)

		tampered := eventJSON(t, "evt_4", "checkout.session.completed", map[string]any{"id": "cs_evil", "object": "checkout.session"})
		_, err := adapter.ParseWebhookEvent(tampered, header)
		require.Error(t, err)
	})
}

func TestGatewayAdapter_CreateRefund(t *testing.T) {
	var gotIdempotencyKey string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","status":"succeeded","amount":750}`))
	}))
	defer srv.Close()

	adapter := NewGatewayAdapter(Config{SecretKey: "sk_test_123", Currency: "usd", Timeout: 5 * time.Second, BaseURL: srv.URL})

	refund, err := adapter.CreateRefund(context.Background(), service.RefundRequest{
		PaymentIntentID: "pi_1",
		Amount:          750,
		PurchaseID:      "purchase-1",
		ReverseTransfer: true,
		IdempotencyKey:  "refund-purchase-1-1",
	})
	require.NoError(t, err)
	require.Equal(t, "re_1", refund.ID)
	require.Equal(t, "succeeded", refund.Status)

	require.Equal(t, "refund-purchase-1-1", gotIdempotencyKey)
	require.Equal(t, []string{"pi_1"}, gotForm["payment_intent"])
	require.Equal(t, []string{"750"}, gotForm["amount"])
	require.Equal(t, []string{"true"}, gotForm["reverse_transfer"])
	require.Equal(t, []string{"purchase-1"}, gotForm["metadata[purchase_id]"])
}

func TestGatewayAdapter_GetBalance(t *testing.T) {
	var gotAccount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = r.Header.Get("Stripe-Account")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"balance",
			"available":[{"amount":12000,"currency":"usd"},{"amount":500,"currency":"eur"}],
			"pending":[{"amount":345,"currency":"usd"}]}`))
	}))
	defer srv.Close()

	adapter := NewGatewayAdapter(Config{SecretKey: "sk_test_123", Currency: "usd", Timeout: 5 * time.Second, BaseURL: srv.URL})

	balance, err := adapter.GetBalance(context.Background(), "acct_1")
	require.NoError(t, err)
	require.Equal(t, "acct_1", gotAccount)
	require.Equal(t, int64(12000), balance.Available)
	require.Equal(t, int64(345), balance.Pending)
	require.Equal(t, "usd", balance.Currency)
}

func TestGatewayAdapter_ErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session: cs_missing"}}`))
	}))
	defer srv.Close()

	adapter := NewGatewayAdapter(Config{SecretKey: "sk_test_123", Currency: "usd", Timeout: 5 * time.Second, BaseURL: srv.URL})

	_, err := adapter.GetCheckoutSession(context.Background(), "cs_missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "No such checkout.session")
}
