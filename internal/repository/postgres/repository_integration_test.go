//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shestoi/marketsettle/internal/repository"
	"github.com/shestoi/marketsettle/migrations"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	// Поднимаем PostgreSQL контейнер через testcontainers
	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("settlement"),
		postgres.WithUsername("settlement_user"),
		postgres.WithPassword("settlement_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, postgresContainer.Terminate(ctx))
	}()

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Накатываем миграции из встроенной FS через goose, как при старте сервиса
	require.NoError(t, migrations.Up(ctx, dsn), "Failed to run migrations")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewRepository(pool)

	_, err = pool.Exec(ctx,
		`INSERT INTO products (id, title, price, seller_id) VALUES ('p1', 'Preset pack', 20.00, 's1'), ('p2', 'Font', 7.50, 's2')`)
	require.NoError(t, err)

	t.Run("GetProductsByIDs skips missing", func(t *testing.T) {
		products, err := repo.GetProductsByIDs(ctx, []string{"p1", "p2", "missing"})
		require.NoError(t, err)
		require.Len(t, products, 2)
	})

	t.Run("GetProduct keeps decimal price", func(t *testing.T) {
		p, err := repo.GetProduct(ctx, "p2")
		require.NoError(t, err)
		require.True(t, decimal.RequireFromString("7.50").Equal(p.Price))
		require.Equal(t, "s2", p.SellerID)
	})

	t.Run("seller accounts", func(t *testing.T) {
		require.NoError(t, repo.SetConnectedAccount(ctx, "s1", "acct_1"))
		require.NoError(t, repo.SetOnboardingComplete(ctx, "acct_1", true))

		accounts, err := repo.GetSellerAccounts(ctx, []string{"s1", "s2"})
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		require.Equal(t, "acct_1", accounts[0].ConnectedAccountID)
		require.True(t, accounts[0].OnboardingComplete)

		require.ErrorIs(t, repo.SetOnboardingComplete(ctx, "acct_missing", true), repository.ErrNotFound)
	})

	t.Run("concurrent insert-or-ignore keeps one purchase", func(t *testing.T) {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			inserted int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := repo.InsertPurchaseIfAbsent(ctx, repository.Purchase{
					ID:                fmt.Sprintf("purchase-%d", i),
					ProductID:         "p1",
					BuyerID:           "buyer-1",
					SellerID:          "s1",
					Amount:            decimal.RequireFromString("20.00"),
					CheckoutSessionID: "cs_concurrent",
				})
				if err != nil {
					t.Errorf("insert: %v", err)
					return
				}
				if ok {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		require.Equal(t, 1, inserted)
	})

	t.Run("refund compare-and-swap", func(t *testing.T) {
		ok, err := repo.InsertPurchaseIfAbsent(ctx, repository.Purchase{
			ID:                "purchase-refund",
			ProductID:         "p2",
			BuyerID:           "buyer-1",
			SellerID:          "s2",
			Amount:            decimal.RequireFromString("7.50"),
			CheckoutSessionID: "cs_refund",
		})
		require.NoError(t, err)
		require.True(t, ok)

		reason := "wrong file"
		p, err := repo.UpdateRefund(ctx, "purchase-refund",
			[]repository.RefundStatus{repository.RefundStatusNone},
			repository.RefundUpdate{Status: repository.RefundStatusPending, Reason: &reason})
		require.NoError(t, err)
		require.Equal(t, repository.RefundStatusPending, p.RefundStatus)
		require.Equal(t, "wrong file", p.RefundReason)

		_, err = repo.UpdateRefund(ctx, "purchase-refund",
			[]repository.RefundStatus{repository.RefundStatusNone},
			repository.RefundUpdate{Status: repository.RefundStatusPending})
		require.ErrorIs(t, err, repository.ErrStatusConflict)

		now := time.Now().UTC()
		refundID := "re_1"
		p, err = repo.UpdateRefund(ctx, "purchase-refund",
			[]repository.RefundStatus{repository.RefundStatusPending},
			repository.RefundUpdate{Status: repository.RefundStatusCompleted, RefundID: &refundID, RefundedAt: &now, IncrementAttempt: true})
		require.NoError(t, err)
		require.Equal(t, "re_1", p.RefundID)
		require.NotNil(t, p.RefundedAt)
		require.Equal(t, 1, p.RefundAttempts)
		require.Equal(t, "wrong file", p.RefundReason)

		completed, err := repo.ListPurchasesByRefundStatus(ctx, repository.RefundStatusCompleted, 10)
		require.NoError(t, err)
		require.Len(t, completed, 1)

		_, err = repo.UpdateRefund(ctx, "missing", []repository.RefundStatus{repository.RefundStatusNone}, repository.RefundUpdate{})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("webhook inbox", func(t *testing.T) {
		res, err := repo.BeginWebhookEvent(ctx, "evt_1", "checkout.session.completed")
		require.NoError(t, err)
		require.True(t, res.CanProcess)

		require.NoError(t, repo.MarkWebhookEventFailed(ctx, "evt_1", "boom"))
		res, err = repo.BeginWebhookEvent(ctx, "evt_1", "checkout.session.completed")
		require.NoError(t, err)
		require.True(t, res.CanProcess)

		require.NoError(t, repo.MarkWebhookEventProcessed(ctx, "evt_1"))
		res, err = repo.BeginWebhookEvent(ctx, "evt_1", "checkout.session.completed")
		require.NoError(t, err)
		require.True(t, res.AlreadyProcessed)
	})
}
