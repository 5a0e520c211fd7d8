package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mirrorexhibit/storefront/internal/domain/cart"
	"github.com/mirrorexhibit/storefront/internal/domain/catalog"
	"github.com/mirrorexhibit/storefront/internal/domain/coupon"
	"github.com/mirrorexhibit/storefront/internal/domain/shipping"
	"github.com/mirrorexhibit/storefront/internal/payment"
)

// ProductNotFoundError indicates a cart line references a missing product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// CouponRejectedError carries the shopper-facing reason a coupon was refused
// at checkout.
type CouponRejectedError struct {
	Reason string
}

func (e *CouponRejectedError) Error() string {
	return e.Reason
}

// Service orchestrates checkout staging and order finalization.
type Service struct {
	orders   Repository
	pending  PendingRepository
	carts    cart.Repository
	catalog  catalog.Repository
	coupons  *coupon.Validator
	rules    coupon.Repository
	shipping *shipping.Resolver
	payments payment.Provider
	lg       *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service with the required dependencies.
func NewService(
	orders Repository,
	pending PendingRepository,
	carts cart.Repository,
	cat catalog.Repository,
	coupons *coupon.Validator,
	rules coupon.Repository,
	shippingResolver *shipping.Resolver,
	payments payment.Provider,
	lg *zap.Logger,
) *Service {
	return &Service{
		orders:   orders,
		pending:  pending,
		carts:    carts,
		catalog:  cat,
		coupons:  coupons,
		rules:    rules,
		shipping: shippingResolver,
		payments: payments,
		lg:       lg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CheckoutRequest holds the input for initiating a checkout.
type CheckoutRequest struct {
	UserID     string
	GuestToken string
	GuestEmail string
	CouponCode string
	Address    shipping.Address
	SuccessURL string
	CancelURL  string
}

// CheckoutResult is the provider session the shopper is redirected to.
type CheckoutResult struct {
	SessionID   string
	CheckoutURL string
}

// Checkout prices the caller's cart against the catalog, applies the coupon
// and shipping rules, creates a payment provider session, and stages a
// pending order keyed by the session id.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	owner := cart.Owner{UserID: req.UserID, GuestToken: req.GuestToken}
	lines, err := s.carts.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, cart.ErrEmptyCart
	}

	items, products, subtotal, err := s.priceLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		validation, err := s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, fmt.Errorf("validate coupon: %w", err)
		}
		if !validation.Valid {
			return nil, &CouponRejectedError{Reason: validation.Reason}
		}
		discount = validation.Discount
		couponCode = validation.Rule.Code
	}

	quote, err := s.shipping.Resolve(ctx, req.Address, rateItems(items))
	if err != nil {
		return nil, fmt.Errorf("resolve shipping: %w", err)
	}
	shippingCost := decimal.Zero
	if len(quote.Options) > 0 {
		shippingCost = quote.Options[0].Price
	}

	total := subtotal.Sub(discount).Add(shippingCost)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	session, err := s.payments.CreateCheckout(ctx, payment.CheckoutParams{
		Items:      paymentLines(items, products),
		CustomerID: req.UserID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	p := &Pending{
		CheckoutSessionID: session.ID,
		UserID:            req.UserID,
		GuestToken:        req.GuestToken,
		GuestEmail:        req.GuestEmail,
		CouponCode:        couponCode,
		Subtotal:          subtotal.Round(2),
		Tax:               decimal.Zero,
		ShippingCost:      shippingCost.Round(2),
		DiscountAmount:    discount,
		Total:             total,
		Items:             items,
		CreatedAt:         s.now(),
	}
	if err := s.pending.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("stage pending order: %w", err)
	}

	s.lg.Info("Checkout staged",
		zap.String("session_id", session.ID),
		zap.String("total", total.StringFixed(2)),
		zap.Int("items", len(items)),
	)

	return &CheckoutResult{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// priceLines resolves catalog prices for cart lines and returns order items
// with per-line totals, the fetched products by id, and the cart subtotal.
func (s *Service) priceLines(ctx context.Context, lines []cart.Item) ([]Item, map[string]catalog.Product, decimal.Decimal, error) {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("get products: %w", err)
	}
	products := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		products[p.ID] = p
	}

	items := make([]Item, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, nil, decimal.Zero, &ProductNotFoundError{ProductID: line.ProductID}
		}

		// Lines carry a price snapshot when added to the cart; fall back to
		// the current catalog price when the snapshot is missing.
		price := line.UnitPrice
		if price.IsZero() {
			price = p.Price
		}

		lineTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		items[i] = Item{
			ProductID:   line.ProductID,
			VariationID: line.VariationID,
			Quantity:    line.Quantity,
			UnitPrice:   price,
			TotalPrice:  lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}
	return items, products, subtotal, nil
}

func rateItems(items []Item) []shipping.RateItem {
	out := make([]shipping.RateItem, len(items))
	for i, item := range items {
		out[i] = shipping.RateItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

func paymentLines(items []Item, products map[string]catalog.Product) []payment.LineItem {
	out := make([]payment.LineItem, len(items))
	for i, item := range items {
		out[i] = payment.LineItem{
			ProductID: item.ProductID,
			Name:      products[item.ProductID].Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return out
}
