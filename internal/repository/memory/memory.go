package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/marketsettle/internal/repository"
)

type purchaseKey struct {
	sessionID string
	productID string
}

type inboxEntry struct {
	eventType string
	processed bool
	lastError string
}

// MemoryRepository реализует repository.Ledger в памяти.
// Используется для локального запуска и тестов сервисного слоя
type MemoryRepository struct {
	mu        sync.RWMutex
	products  map[string]repository.Product
	sellers   map[string]repository.SellerAccount
	purchases map[string]repository.Purchase
	bySession map[purchaseKey]string
	inbox     map[string]*inboxEntry
}

// NewMemoryRepository создаёт пустое хранилище
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products:  make(map[string]repository.Product),
		sellers:   make(map[string]repository.SellerAccount),
		purchases: make(map[string]repository.Purchase),
		bySession: make(map[purchaseKey]string),
		inbox:     make(map[string]*inboxEntry),
	}
}

// PutProduct добавляет или заменяет товар (каталог в проде наполняет другая подсистема)
func (r *MemoryRepository) PutProduct(p repository.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

// PutSellerAccount добавляет или заменяет аккаунт продавца
func (r *MemoryRepository) PutSellerAccount(a repository.SellerAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sellers[a.SellerID] = a
}

// PurchasesBySession возвращает покупки одной checkout session (для тестов и отладки)
func (r *MemoryRepository) PurchasesBySession(sessionID string) []repository.Purchase {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Purchase, 0)
	for key, id := range r.bySession {
		if key.sessionID == sessionID {
			out = append(out, r.purchases[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// InsertPurchaseIfAbsent проверяет ключ и вставляет под одним lock, поэтому гонки нет
func (r *MemoryRepository) InsertPurchaseIfAbsent(ctx context.Context, p repository.Purchase) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := purchaseKey{sessionID: p.CheckoutSessionID, productID: p.ProductID}
	if _, exists := r.bySession[key]; exists {
		return false, nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.RefundStatus == "" {
		p.RefundStatus = repository.RefundStatusNone
	}
	r.purchases[p.ID] = p
	r.bySession[key] = p.ID
	return true, nil
}

func (r *MemoryRepository) GetPurchase(ctx context.Context, id string) (repository.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.purchases[id]
	if !ok {
		return repository.Purchase{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) UpdateRefund(ctx context.Context, id string, from []repository.RefundStatus, upd repository.RefundUpdate) (repository.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.purchases[id]
	if !ok {
		return repository.Purchase{}, repository.ErrNotFound
	}
	if !slices.Contains(from, p.RefundStatus) {
		return repository.Purchase{}, repository.ErrStatusConflict
	}

	p.RefundStatus = upd.Status
	if upd.Reason != nil {
		p.RefundReason = *upd.Reason
	}
	if upd.Note != nil {
		p.RefundNote = *upd.Note
	}
	if upd.RefundID != nil {
		p.RefundID = *upd.RefundID
	}
	if upd.RefundedAt != nil {
		at := *upd.RefundedAt
		p.RefundedAt = &at
	}
	if upd.IncrementAttempt {
		p.RefundAttempts++
	}
	r.purchases[id] = p
	return p, nil
}

func (r *MemoryRepository) ListPurchasesByRefundStatus(ctx context.Context, status repository.RefundStatus, limit int) ([]repository.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Purchase, 0)
	for _, p := range r.purchases {
		if p.RefundStatus == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetProduct(ctx context.Context, id string) (repository.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return repository.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) GetProductsByIDs(ctx context.Context, ids []string) ([]repository.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetSellerAccount(ctx context.Context, sellerID string) (repository.SellerAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.sellers[sellerID]
	if !ok {
		return repository.SellerAccount{}, repository.ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepository) GetSellerAccounts(ctx context.Context, sellerIDs []string) ([]repository.SellerAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.SellerAccount, 0, len(sellerIDs))
	for _, id := range sellerIDs {
		if a, ok := r.sellers[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) SetConnectedAccount(ctx context.Context, sellerID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.sellers[sellerID]
	if !ok {
		a = repository.SellerAccount{SellerID: sellerID}
	}
	a.ConnectedAccountID = accountID
	r.sellers[sellerID] = a
	return nil
}

func (r *MemoryRepository) SetOnboardingComplete(ctx context.Context, accountID string, complete bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range r.sellers {
		if a.ConnectedAccountID == accountID {
			a.OnboardingComplete = complete
			r.sellers[id] = a
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *MemoryRepository) BeginWebhookEvent(ctx context.Context, eventID, eventType string) (repository.InboxResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.inbox[eventID]
	if !ok {
		r.inbox[eventID] = &inboxEntry{eventType: eventType}
		return repository.InboxResult{CanProcess: true}, nil
	}
	if entry.processed {
		return repository.InboxResult{AlreadyProcessed: true}, nil
	}
	return repository.InboxResult{CanProcess: true}, nil
}

func (r *MemoryRepository) MarkWebhookEventProcessed(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.inbox[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	entry.processed = true
	entry.lastError = ""
	return nil
}

func (r *MemoryRepository) MarkWebhookEventFailed(ctx context.Context, eventID string, errString string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.inbox[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	entry.lastError = errString
	return nil
}
