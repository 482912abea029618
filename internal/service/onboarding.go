package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
)

// OnboardingService подключает продавца к процессору (connected account + hosted онбординг)
type OnboardingService struct {
	logger  *zap.Logger
	sellers repository.SellerRepository
	gateway PaymentGateway
}

// NewOnboardingService создаёт новый экземпляр OnboardingService
func NewOnboardingService(logger *zap.Logger, sellers repository.SellerRepository, gateway PaymentGateway) *OnboardingService {
	return &OnboardingService{logger: logger, sellers: sellers, gateway: gateway}
}

// StartOnboarding создаёт connected account при первом вызове и возвращает ссылку на онбординг.
// Повторный вызов переиспользует существующий аккаунт
func (s *OnboardingService) StartOnboarding(ctx context.Context, sellerID string) (string, error) {
	if sellerID == "" {
		return "", validationf("seller id is required")
	}

	acct, err := s.sellers.GetSellerAccount(ctx, sellerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to load seller account: %w", err)
	}

	accountID := acct.ConnectedAccountID
	if accountID == "" {
		created, err := s.gateway.CreateConnectedAccount(ctx, sellerID)
		if err != nil {
			s.logger.Error("failed to create connected account", zap.Error(err), zap.String("seller_id", sellerID))
			return "", &ExternalServiceError{Op: "create connected account", Err: err}
		}
		if err := s.sellers.SetConnectedAccount(ctx, sellerID, created.ID); err != nil {
			return "", fmt.Errorf("failed to save connected account: %w", err)
		}
		accountID = created.ID
		s.logger.Info("connected account created",
			zap.String("seller_id", sellerID),
			zap.String("account_id", accountID),
		)
	}

	url, err := s.gateway.CreateAccountLink(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to create onboarding link", zap.Error(err), zap.String("account_id", accountID))
		return "", &ExternalServiceError{Op: "create account link", Err: err}
	}
	return url, nil
}
