package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/marketsettle/internal/repository"
)

func TestMemoryRepository_InsertPurchaseIfAbsent_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	// Имитируем параллельную доставку одного и того же вебхука
	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.InsertPurchaseIfAbsent(ctx, repository.Purchase{
				ID:                fmt.Sprintf("purchase-%d", i),
				ProductID:         "p1",
				BuyerID:           "buyer-1",
				SellerID:          "s1",
				Amount:            decimal.RequireFromString("20.00"),
				CheckoutSessionID: "cs_1",
			})
			require.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, inserted)
	purchases := repo.PurchasesBySession("cs_1")
	require.Len(t, purchases, 1)
	require.Equal(t, repository.RefundStatusNone, purchases[0].RefundStatus)
}

func TestMemoryRepository_UpdateRefund(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.InsertPurchaseIfAbsent(ctx, repository.Purchase{
		ID:                "purchase-1",
		ProductID:         "p1",
		CheckoutSessionID: "cs_1",
		Amount:            decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)

	t.Run("transition from allowed status", func(t *testing.T) {
		reason := "broken file"
		p, err := repo.UpdateRefund(ctx, "purchase-1",
			[]repository.RefundStatus{repository.RefundStatusNone},
			repository.RefundUpdate{Status: repository.RefundStatusPending, Reason: &reason})
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusPending, p.RefundStatus)
		require.Equal(t, "broken file", p.RefundReason)
	})

	t.Run("conflict when status already moved", func(t *testing.T) {
		_, err := repo.UpdateRefund(ctx, "purchase-1",
			[]repository.RefundStatus{repository.RefundStatusNone},
			repository.RefundUpdate{Status: repository.RefundStatusPending})
		require.ErrorIs(t, err, repository.ErrStatusConflict)
	})

	t.Run("increment attempt", func(t *testing.T) {
		p, err := repo.UpdateRefund(ctx, "purchase-1",
			[]repository.RefundStatus{repository.RefundStatusPending},
			repository.RefundUpdate{Status: repository.RefundStatusApproved, IncrementAttempt: true})
		require.NoError(t, err)
		require.Equal(t, 1, p.RefundAttempts)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.UpdateRefund(ctx, "missing", nil, repository.RefundUpdate{})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestMemoryRepository_WebhookInbox(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	res, err := repo.BeginWebhookEvent(ctx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	require.True(t, res.CanProcess)

	// Повтор до успешной обработки снова разрешён
	require.NoError(t, repo.MarkWebhookEventFailed(ctx, "evt_1", "db down"))
	res, err = repo.BeginWebhookEvent(ctx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	require.True(t, res.CanProcess)

	require.NoError(t, repo.MarkWebhookEventProcessed(ctx, "evt_1"))
	res, err = repo.BeginWebhookEvent(ctx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	require.True(t, res.AlreadyProcessed)
	require.False(t, res.CanProcess)
}

func TestMemoryRepository_SetOnboardingComplete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.SetConnectedAccount(ctx, "s1", "acct_1"))
	require.NoError(t, repo.SetOnboardingComplete(ctx, "acct_1", true))

	a, err := repo.GetSellerAccount(ctx, "s1")
	require.NoError(t, err)
	require.True(t, a.OnboardingComplete)

	require.ErrorIs(t, repo.SetOnboardingComplete(ctx, "acct_unknown", true), repository.ErrNotFound)
}
