package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shestoi/marketsettle/internal/repository"
)

// Суммы храним в NUMERIC, а через pgx гоняем как text, чтобы не терять точность
const purchaseColumns = `id, product_id, buyer_id, seller_id, amount::text, checkout_session_id,
	refund_status, refund_reason, refund_note, refunded_at, refund_id, refund_attempts, created_at`

// Repository реализует repository.Ledger используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// InsertPurchaseIfAbsent — insert-or-ignore по уникальному ключу (checkout_session_id, product_id).
// Две параллельные доставки одного события не могут создать две записи
func (r *Repository) InsertPurchaseIfAbsent(ctx context.Context, p repository.Purchase) (bool, error) {
	status := p.RefundStatus
	if status == "" {
		status = repository.RefundStatusNone
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO purchases (id, product_id, buyer_id, seller_id, amount, checkout_session_id, refund_status)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		 ON CONFLICT (checkout_session_id, product_id) DO NOTHING`,
		p.ID, p.ProductID, p.BuyerID, p.SellerID, p.Amount.StringFixed(2), p.CheckoutSessionID, string(status))
	if err != nil {
		return false, fmt.Errorf("insert purchase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetPurchase получает покупку по ID
func (r *Repository) GetPurchase(ctx context.Context, id string) (repository.Purchase, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)

	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Purchase{}, repository.ErrNotFound
		}
		return repository.Purchase{}, err
	}
	return p, nil
}

// UpdateRefund — условный UPDATE по текущему статусу (compare-and-swap).
// Если ни одна строка не обновилась, различаем "нет покупки" и "статус уже другой"
func (r *Repository) UpdateRefund(ctx context.Context, id string, from []repository.RefundStatus, upd repository.RefundUpdate) (repository.Purchase, error) {
	fromStrings := make([]string, 0, len(from))
	for _, s := range from {
		fromStrings = append(fromStrings, string(s))
	}

	increment := 0
	if upd.IncrementAttempt {
		increment = 1
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE purchases SET
		   refund_status   = $2,
		   refund_reason   = COALESCE($3::text, refund_reason),
		   refund_note     = COALESCE($4::text, refund_note),
		   refund_id       = COALESCE($5::text, refund_id),
		   refunded_at     = COALESCE($6::timestamptz, refunded_at),
		   refund_attempts = refund_attempts + $7
		 WHERE id = $1 AND refund_status = ANY($8::text[])
		 RETURNING `+purchaseColumns,
		id, string(upd.Status), upd.Reason, upd.Note, upd.RefundID, upd.RefundedAt, increment, fromStrings)

	p, err := scanPurchase(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return repository.Purchase{}, fmt.Errorf("update refund: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE id = $1)`, id).Scan(&exists); err != nil {
		return repository.Purchase{}, fmt.Errorf("check purchase: %w", err)
	}
	if !exists {
		return repository.Purchase{}, repository.ErrNotFound
	}
	return repository.Purchase{}, repository.ErrStatusConflict
}

// ListPurchasesByRefundStatus возвращает покупки в статусе, старые первыми
func (r *Repository) ListPurchasesByRefundStatus(ctx context.Context, status repository.RefundStatus, limit int) ([]repository.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+`
		 FROM purchases
		 WHERE refund_status = $1
		 ORDER BY created_at
		 LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.Purchase, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct получает товар каталога
func (r *Repository) GetProduct(ctx context.Context, id string) (repository.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, description, price::text, seller_id, file_ref FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Product{}, repository.ErrNotFound
		}
		return repository.Product{}, err
	}
	return p, nil
}

// GetProductsByIDs — один запрос на весь список
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []string) ([]repository.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, price::text, seller_id, file_ref
		 FROM products
		 WHERE id = ANY($1::text[])`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSellerAccount получает аккаунт продавца
func (r *Repository) GetSellerAccount(ctx context.Context, sellerID string) (repository.SellerAccount, error) {
	var (
		a         repository.SellerAccount
		accountID *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT seller_id, connected_account_id, onboarding_complete
		 FROM seller_accounts WHERE seller_id = $1`,
		sellerID).Scan(&a.SellerID, &accountID, &a.OnboardingComplete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.SellerAccount{}, repository.ErrNotFound
		}
		return repository.SellerAccount{}, err
	}
	if accountID != nil {
		a.ConnectedAccountID = *accountID
	}
	return a, nil
}

// GetSellerAccounts — пакетная загрузка по списку продавцов
func (r *Repository) GetSellerAccounts(ctx context.Context, sellerIDs []string) ([]repository.SellerAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT seller_id, connected_account_id, onboarding_complete
		 FROM seller_accounts WHERE seller_id = ANY($1::text[])`,
		sellerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.SellerAccount, 0, len(sellerIDs))
	for rows.Next() {
		var (
			a         repository.SellerAccount
			accountID *string
		)
		if err := rows.Scan(&a.SellerID, &accountID, &a.OnboardingComplete); err != nil {
			return nil, err
		}
		if accountID != nil {
			a.ConnectedAccountID = *accountID
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetConnectedAccount привязывает connected account к продавцу (создаёт запись при необходимости)
func (r *Repository) SetConnectedAccount(ctx context.Context, sellerID, accountID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO seller_accounts (seller_id, connected_account_id)
		 VALUES ($1, $2)
		 ON CONFLICT (seller_id) DO UPDATE SET
		   connected_account_id = EXCLUDED.connected_account_id,
		   updated_at = now()`,
		sellerID, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("connected account %s already belongs to another seller: %w", accountID, err)
		}
		return err
	}
	return nil
}

// SetOnboardingComplete обновляет флаг по connected account id
func (r *Repository) SetOnboardingComplete(ctx context.Context, accountID string, complete bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE seller_accounts SET onboarding_complete = $2, updated_at = now()
		 WHERE connected_account_id = $1`,
		accountID, complete)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// BeginWebhookEvent создаёт запись pending, если её нет; processed означает, что событие уже применено
func (r *Repository) BeginWebhookEvent(ctx context.Context, eventID, eventType string) (repository.InboxResult, error) {
	var status string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO webhook_events (event_id, event_type)
		 VALUES ($1, $2)
		 ON CONFLICT (event_id) DO UPDATE SET event_type = EXCLUDED.event_type
		 RETURNING status`,
		eventID, eventType).Scan(&status)
	if err != nil {
		return repository.InboxResult{}, fmt.Errorf("upsert webhook event: %w", err)
	}

	if status == "processed" {
		return repository.InboxResult{AlreadyProcessed: true}, nil
	}
	return repository.InboxResult{CanProcess: true}, nil
}

// MarkWebhookEventProcessed переводит событие в processed
func (r *Repository) MarkWebhookEventProcessed(ctx context.Context, eventID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE webhook_events SET status = 'processed', last_error = '', processed_at = now()
		 WHERE event_id = $1`,
		eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkWebhookEventFailed сохраняет last_error, событие остаётся pending для повторной доставки
func (r *Repository) MarkWebhookEventFailed(ctx context.Context, eventID string, errString string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE webhook_events SET last_error = $2 WHERE event_id = $1`,
		eventID, errString)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanPurchase(row pgx.Row) (repository.Purchase, error) {
	var (
		p          repository.Purchase
		amount     string
		status     string
		refundedAt *time.Time
	)
	err := row.Scan(&p.ID, &p.ProductID, &p.BuyerID, &p.SellerID, &amount, &p.CheckoutSessionID,
		&status, &p.RefundReason, &p.RefundNote, &refundedAt, &p.RefundID, &p.RefundAttempts, &p.CreatedAt)
	if err != nil {
		return repository.Purchase{}, err
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return repository.Purchase{}, fmt.Errorf("parse purchase amount %q: %w", amount, err)
	}
	p.RefundStatus = repository.RefundStatus(status)
	p.RefundedAt = refundedAt
	return p, nil
}

func scanProduct(row pgx.Row) (repository.Product, error) {
	var (
		p     repository.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &price, &p.SellerID, &p.FileRef); err != nil {
		return repository.Product{}, err
	}

	var err error
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return repository.Product{}, fmt.Errorf("parse product price %q: %w", price, err)
	}
	return p, nil
}
