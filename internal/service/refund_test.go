package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
	"github.com/shestoi/marketsettle/internal/repository/memory"
	"github.com/shestoi/marketsettle/internal/service"
	"github.com/shestoi/marketsettle/internal/service/mocks"
)

type refundFixture struct {
	svc      *service.RefundService
	repo     *memory.MemoryRepository
	gateway  *mocks.PaymentGateway
	notifier *mocks.Notifier
	alerter  *mocks.OpsAlerter
}

func newRefundFixture(t *testing.T, status repository.RefundStatus) refundFixture {
	repo := memory.NewMemoryRepository()
	_, err := repo.InsertPurchaseIfAbsent(context.Background(), repository.Purchase{
		ID:                "purchase-1",
		ProductID:         "p2",
		BuyerID:           "buyer-1",
		SellerID:          "s2",
		Amount:            decimal.RequireFromString("7.50"),
		CheckoutSessionID: "cs_1",
		RefundStatus:      status,
	})
	require.NoError(t, err)

	f := refundFixture{
		repo:     repo,
		gateway:  mocks.NewPaymentGateway(t),
		notifier: mocks.NewNotifier(t),
		alerter:  mocks.NewOpsAlerter(t),
	}
	f.svc = service.NewRefundService(zap.NewNop(), repo, f.gateway, f.notifier, f.alerter)
	return f
}

func (f refundFixture) expectSession() {
	f.gateway.On("GetCheckoutSession", mock.Anything, "cs_1").Return(service.CheckoutSession{
		ID:                   "cs_1",
		PaymentIntentID:      "pi_1",
		DestinationAccountID: "acct_2",
	}, nil).Once()
}

func TestRefundService_RequestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("none to pending stores reason", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusNone)

		p, err := f.svc.RequestRefund(ctx, "purchase-1", "  file is corrupted ")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusPending, p.RefundStatus)
		require.Equal(t, "file is corrupted", p.RefundReason)
	})

	t.Run("second request conflicts", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)

		_, err := f.svc.RequestRefund(ctx, "purchase-1", "again")
		var conflict *service.StateConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, repository.RefundStatusPending, conflict.Status)
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusNone)

		_, err := f.svc.RequestRefund(ctx, "missing", "reason")
		require.ErrorIs(t, err, service.ErrPurchaseNotFound)
	})
}

func TestRefundService_RejectRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("pending to rejected", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)

		p, err := f.svc.RejectRefund(ctx, "purchase-1", "download logs show success")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusRejected, p.RefundStatus)
		require.Equal(t, "download logs show success", p.RefundReason)
	})

	t.Run("reason is required", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)

		_, err := f.svc.RejectRefund(ctx, "purchase-1", " ")
		var vErr *service.ValidationError
		require.ErrorAs(t, err, &vErr)

		p, err := f.repo.GetPurchase(ctx, "purchase-1")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusPending, p.RefundStatus)
	})

	t.Run("cannot reject without request", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusNone)

		_, err := f.svc.RejectRefund(ctx, "purchase-1", "no")
		var conflict *service.StateConflictError
		require.ErrorAs(t, err, &conflict)
	})
}

func TestRefundService_ProcessRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("success: pending to completed with reversal and notifications", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)
		f.expectSession()
		f.gateway.On("CreateRefund", mock.Anything, service.RefundRequest{
			PaymentIntentID: "pi_1",
			Amount:          750,
			PurchaseID:      "purchase-1",
			ReverseTransfer: true,
			IdempotencyKey:  "refund-purchase-1-1",
		}).Return(service.Refund{ID: "re_1", Status: "succeeded"}, nil).Once()
		f.notifier.On("Notify", mock.Anything, "buyer-1", service.NotificationPurchaseRefunded, mock.MatchedBy(func(payload map[string]string) bool {
			return payload["refund_id"] == "re_1" && payload["amount"] == "7.50"
		})).Return(nil).Once()
		f.notifier.On("Notify", mock.Anything, "s2", service.NotificationSaleReversed, mock.Anything).
			Return(errors.New("kafka unavailable")).Once()

		p, err := f.svc.ProcessRefund(ctx, "purchase-1", "approved by support")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusCompleted, p.RefundStatus)
		require.Equal(t, "re_1", p.RefundID)
		require.NotNil(t, p.RefundedAt)
		require.Equal(t, "approved by support", p.RefundNote)
		require.Equal(t, 1, p.RefundAttempts)
	})

	t.Run("completed purchase never reaches the gateway", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusCompleted)

		_, err := f.svc.ProcessRefund(ctx, "purchase-1", "")
		var conflict *service.StateConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, repository.RefundStatusCompleted, conflict.Status)
		f.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})

	t.Run("cannot process a refund that was never requested", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusNone)

		_, err := f.svc.ProcessRefund(ctx, "purchase-1", "")
		var conflict *service.StateConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("gateway failure marks failed, retry succeeds with new idempotency key", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)
		f.expectSession()
		f.gateway.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req service.RefundRequest) bool {
			return req.IdempotencyKey == "refund-purchase-1-1"
		})).Return(service.Refund{}, errors.New("context deadline exceeded")).Once()
		f.alerter.On("Alert", mock.Anything, mock.MatchedBy(func(text string) bool {
			return text != ""
		})).Return(nil).Once()

		_, err := f.svc.ProcessRefund(ctx, "purchase-1", "")
		var extErr *service.ExternalServiceError
		require.ErrorAs(t, err, &extErr)

		p, err := f.repo.GetPurchase(ctx, "purchase-1")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusFailed, p.RefundStatus)
		require.Contains(t, p.RefundNote, "context deadline exceeded")

		f.expectSession()
		f.gateway.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req service.RefundRequest) bool {
			return req.IdempotencyKey == "refund-purchase-1-2"
		})).Return(service.Refund{ID: "re_2", Status: "pending"}, nil).Once()
		f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

		p, err = f.svc.ProcessRefund(ctx, "purchase-1", "retry")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusCompleted, p.RefundStatus)
		require.Equal(t, "re_2", p.RefundID)
		require.Equal(t, 2, p.RefundAttempts)
	})

	t.Run("refund reported as failed by gateway keeps refund id", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)
		f.expectSession()
		f.gateway.On("CreateRefund", mock.Anything, mock.Anything).
			Return(service.Refund{ID: "re_bad", Status: "failed"}, nil).Once()
		f.alerter.On("Alert", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.svc.ProcessRefund(ctx, "purchase-1", "")
		require.Error(t, err)

		p, err := f.repo.GetPurchase(ctx, "purchase-1")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusFailed, p.RefundStatus)
		require.Equal(t, "re_bad", p.RefundID)
	})

	t.Run("session lookup failure marks failed", func(t *testing.T) {
		f := newRefundFixture(t, repository.RefundStatusPending)
		f.gateway.On("GetCheckoutSession", mock.Anything, "cs_1").
			Return(service.CheckoutSession{}, errors.New("gateway 503")).Once()
		f.alerter.On("Alert", mock.Anything, mock.Anything).Return(errors.New("telegram down")).Once()

		_, err := f.svc.ProcessRefund(ctx, "purchase-1", "")
		var extErr *service.ExternalServiceError
		require.ErrorAs(t, err, &extErr)
		f.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)

		p, err := f.repo.GetPurchase(ctx, "purchase-1")
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusFailed, p.RefundStatus)
	})
}

func TestRefundService_ListByRefundStatus(t *testing.T) {
	ctx := context.Background()
	f := newRefundFixture(t, repository.RefundStatusPending)

	purchases, err := f.svc.ListByRefundStatus(ctx, repository.RefundStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, purchases, 1)

	_, err = f.svc.ListByRefundStatus(ctx, "bogus", 10)
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
}
