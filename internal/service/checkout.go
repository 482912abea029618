package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/repository"
)

// CheckoutKind — корзина или покупка одного товара
type CheckoutKind string

const (
	CheckoutKindCart   CheckoutKind = "cart"
	CheckoutKindSingle CheckoutKind = "single"
)

// Ключи metadata checkout session. Их же читает обработчик вебхука
const (
	metadataBuyerID      = "buyer_id"
	metadataProductIDs   = "product_ids"
	metadataCheckoutKind = "checkout_type"
	metadataSellerID     = "seller_id"
)

// CheckoutConfig — настройки денег для checkout
type CheckoutConfig struct {
	Currency   string
	FeePercent decimal.Decimal
	// RequireOnboarding запрещает checkout, пока продавец не закончил онбординг
	RequireOnboarding bool
}

// CheckoutService строит hosted checkout session у процессора
type CheckoutService struct {
	logger  *zap.Logger
	catalog repository.CatalogRepository
	sellers repository.SellerRepository
	gateway PaymentGateway
	cfg     CheckoutConfig
}

// NewCheckoutService создаёт новый экземпляр CheckoutService
func NewCheckoutService(
	logger *zap.Logger,
	catalog repository.CatalogRepository,
	sellers repository.SellerRepository,
	gateway PaymentGateway,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		logger:  logger,
		catalog: catalog,
		sellers: sellers,
		gateway: gateway,
		cfg:     cfg,
	}
}

// CreateCheckoutInput содержит входные данные для checkout
type CreateCheckoutInput struct {
	BuyerID    string
	ProductIDs []string
	Kind       CheckoutKind
}

// CreateCheckoutOutput содержит результат создания checkout session
type CreateCheckoutOutput struct {
	SessionID   string
	RedirectURL string
}

// CreateCheckoutSession проверяет корзину и создаёт checkout session.
// Ничего не пишет в леджер: покупки появляются только после вебхука
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, input CreateCheckoutInput) (*CreateCheckoutOutput, error) {
	if input.Kind == "" {
		input.Kind = CheckoutKindCart
	}
	if err := validateCheckoutInput(input); err != nil {
		return nil, err
	}

	products, err := s.catalog.GetProductsByIDs(ctx, input.ProductIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[string]repository.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	var missing []string
	for _, id := range input.ProductIDs {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, validationf("products not found: %s", strings.Join(missing, ", "))
	}

	// Порядок позиций совпадает с порядком товаров во входе
	lines := make([]CheckoutLine, 0, len(input.ProductIDs))
	sellerSet := make(map[string]struct{})
	var total int64
	for _, id := range input.ProductIDs {
		p := byID[id]
		if p.SellerID == input.BuyerID {
			return nil, validationf("product %s belongs to the buyer", id)
		}
		amount := ToMinorUnits(p.Price)
		if amount <= 0 {
			return nil, validationf("product %s has no positive price", id)
		}
		lines = append(lines, CheckoutLine{ProductID: id, Title: p.Title, UnitAmount: amount})
		sellerSet[p.SellerID] = struct{}{}
		total += amount
	}

	sellerIDs := make([]string, 0, len(sellerSet))
	for id := range sellerSet {
		sellerIDs = append(sellerIDs, id)
	}
	sort.Strings(sellerIDs)

	accounts, err := s.sellers.GetSellerAccounts(ctx, sellerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load seller accounts: %w", err)
	}
	accountBySeller := make(map[string]repository.SellerAccount, len(accounts))
	for _, a := range accounts {
		accountBySeller[a.SellerID] = a
	}
	for _, sellerID := range sellerIDs {
		acct, ok := accountBySeller[sellerID]
		if !ok || !acct.PaymentReady() {
			return nil, validationf("seller %s is not ready to accept payments", sellerID)
		}
		if s.cfg.RequireOnboarding && !acct.OnboardingComplete {
			return nil, validationf("seller %s has not completed payment onboarding", sellerID)
		}
	}

	productIDsJSON, err := json.Marshal(input.ProductIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product ids: %w", err)
	}

	req := CheckoutSessionRequest{
		Lines:    lines,
		Currency: s.cfg.Currency,
		Metadata: map[string]string{
			metadataBuyerID:      input.BuyerID,
			metadataProductIDs:   string(productIDsJSON),
			metadataCheckoutKind: string(input.Kind),
		},
	}
	if len(sellerIDs) == 1 {
		// Один продавец: destination charge, комиссия площадки как application fee
		req.DestinationAccountID = accountBySeller[sellerIDs[0]].ConnectedAccountID
		req.ApplicationFeeAmount = PlatformFee(total, s.cfg.FeePercent)
	} else {
		req.TransferGroup = "checkout_" + uuid.NewString()
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("failed to create checkout session",
			zap.Error(err),
			zap.String("buyer_id", input.BuyerID),
			zap.Int("products", len(input.ProductIDs)),
		)
		return nil, &ExternalServiceError{Op: "create checkout session", Err: err}
	}

	s.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("buyer_id", input.BuyerID),
		zap.Int("products", len(input.ProductIDs)),
		zap.Int("sellers", len(sellerIDs)),
		zap.Int64("amount_total", total),
	)

	return &CreateCheckoutOutput{SessionID: session.ID, RedirectURL: session.URL}, nil
}

func validateCheckoutInput(input CreateCheckoutInput) error {
	if input.BuyerID == "" {
		return validationf("buyer id is required")
	}
	if input.Kind != CheckoutKindCart && input.Kind != CheckoutKindSingle {
		return validationf("unknown checkout type %q", input.Kind)
	}
	if len(input.ProductIDs) == 0 {
		return validationf("checkout must contain at least one product")
	}
	if input.Kind == CheckoutKindSingle && len(input.ProductIDs) != 1 {
		return validationf("single checkout must contain exactly one product")
	}
	for i, id := range input.ProductIDs {
		if strings.TrimSpace(id) == "" {
			return validationf("product id must not be empty")
		}
		// Цифровой товар покупается один раз: дубли в корзине схлопнулись бы в одну покупку
		if slices.Contains(input.ProductIDs[:i], id) {
			return validationf("product %s appears more than once", id)
		}
	}
	return nil
}
