package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
	"github.com/shestoi/marketsettle/platform/observability"
)

// BalanceStatus — итог запроса баланса продавца
type BalanceStatus string

const (
	BalanceStatusOK            BalanceStatus = "ok"
	BalanceStatusNotConfigured BalanceStatus = "not_configured"
	BalanceStatusUnavailable   BalanceStatus = "unavailable"
)

// SellerBalance — баланс для дашборда продавца
type SellerBalance struct {
	Status    BalanceStatus
	Available decimal.Decimal
	Pending   decimal.Decimal
	Currency  string
}

// BalanceService читает баланс connected account продавца
type BalanceService struct {
	logger   *zap.Logger
	sellers  repository.SellerRepository
	gateway  PaymentGateway
	currency string
}

// NewBalanceService создаёт новый экземпляр BalanceService
func NewBalanceService(logger *zap.Logger, sellers repository.SellerRepository, gateway PaymentGateway, currency string) *BalanceService {
	return &BalanceService{
		logger:   logger,
		sellers:  sellers,
		gateway:  gateway,
		currency: currency,
	}
}

// GetSellerBalance никогда не возвращает ошибку: дашборд должен отрисоваться всегда.
// Любая проблема превращается в нулевой баланс со статусом
func (s *BalanceService) GetSellerBalance(ctx context.Context, sellerID string) SellerBalance {
	logger := observability.L(ctx, s.logger)

	acct, err := s.sellers.GetSellerAccount(ctx, sellerID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !acct.PaymentReady()) {
		return s.zero(BalanceStatusNotConfigured)
	}
	if err != nil {
		logger.Error("failed to load seller account", zap.Error(err), zap.String("seller_id", sellerID))
		return s.zero(BalanceStatusUnavailable)
	}

	account, err := s.gateway.GetAccount(ctx, acct.ConnectedAccountID)
	if err != nil {
		logger.Warn("failed to retrieve connected account",
			zap.Error(err),
			zap.String("seller_id", sellerID),
			zap.String("account_id", acct.ConnectedAccountID),
		)
		return s.zero(BalanceStatusUnavailable)
	}
	if !account.DetailsSubmitted {
		return s.zero(BalanceStatusNotConfigured)
	}

	balance, err := s.gateway.GetBalance(ctx, acct.ConnectedAccountID)
	if err != nil {
		logger.Warn("failed to retrieve seller balance",
			zap.Error(err),
			zap.String("seller_id", sellerID),
			zap.String("account_id", acct.ConnectedAccountID),
		)
		return s.zero(BalanceStatusUnavailable)
	}

	currency := balance.Currency
	if currency == "" {
		currency = s.currency
	}
	return SellerBalance{
		Status:    BalanceStatusOK,
		Available: FromMinorUnits(balance.Available),
		Pending:   FromMinorUnits(balance.Pending),
		Currency:  currency,
	}
}

func (s *BalanceService) zero(status BalanceStatus) SellerBalance {
	return SellerBalance{
		Status:    status,
		Available: decimal.Zero,
		Pending:   decimal.Zero,
		Currency:  s.currency,
	}
}
