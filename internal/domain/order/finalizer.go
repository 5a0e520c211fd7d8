package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mirrorexhibit/storefront/internal/domain/cart"
	"github.com/mirrorexhibit/storefront/internal/payment"
)

var (
	// ErrSessionNotFound is returned when neither an order nor a pending
	// order exists for the checkout session.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrPaymentPending is returned when the provider has not confirmed
	// payment yet; the caller should retry shortly.
	ErrPaymentPending = errors.New("payment not completed yet")
	// ErrPaymentFailed is returned when the provider reports the session as
	// expired or otherwise unpayable. No order is created.
	ErrPaymentFailed = errors.New("payment did not complete")
)

// FinalizeSession converts the pending order staged for sessionID into a
// permanent order once the payment provider confirms the session as paid.
// The operation is idempotent per session: duplicate webhook deliveries and
// client polls return the already-created order. The unique constraint on the
// session id is the arbiter, not the preceding read.
func (s *Service) FinalizeSession(ctx context.Context, sessionID string) (*Order, error) {
	if existing, err := s.orders.GetBySession(ctx, sessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup order by session: %w", err)
	}

	session, err := s.payments.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	switch session.Status {
	case payment.StatusPaid:
	case payment.StatusPending:
		return nil, ErrPaymentPending
	default:
		return nil, ErrPaymentFailed
	}

	p, err := s.pending.GetBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get pending order: %w", err)
	}

	paidAt := s.now()
	o := &Order{
		ID:                s.newID(),
		CheckoutSessionID: sessionID,
		UserID:            p.UserID,
		GuestEmail:        guestEmail(p, session),
		Status:            StatusPaid,
		CouponCode:        p.CouponCode,
		Subtotal:          p.Subtotal,
		Tax:               p.Tax,
		ShippingCost:      p.ShippingCost,
		DiscountAmount:    p.DiscountAmount,
		Total:             p.Total,
		PaidAt:            &paidAt,
		CreatedAt:         paidAt,
		Items:             snapshotItems(p.Items),
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateSession) {
			// Lost the race against a concurrent finalization; the other
			// writer's order is the one.
			return s.orders.GetBySession(ctx, sessionID)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.orders.InsertItems(ctx, o.ID, o.Items); err != nil {
		// Compensate: remove the half-created order. The pending row is kept
		// so the next webhook delivery or poll can retry.
		if delErr := s.orders.Delete(ctx, o.ID); delErr != nil {
			s.lg.Error("Failed to roll back order after item insert failure",
				zap.String("order_id", o.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("insert order items: %w", err)
	}

	if err := s.pending.Delete(ctx, sessionID); err != nil {
		// Not fatal: the idempotency check guards against re-finalization.
		s.lg.Warn("Failed to delete pending order",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	// The order is placed at this point; coupon accounting and cart cleanup
	// must not undo it.
	if o.CouponCode != "" {
		if err := s.rules.Redeem(ctx, o.CouponCode); err != nil {
			s.lg.Warn("Failed to redeem coupon for paid order",
				zap.String("order_id", o.ID),
				zap.String("coupon", o.CouponCode),
				zap.Error(err),
			)
		}
	}
	owner := cart.Owner{UserID: p.UserID, GuestToken: p.GuestToken}
	if !owner.IsZero() {
		if err := s.carts.Clear(ctx, owner); err != nil {
			s.lg.Warn("Failed to clear cart after checkout",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}

	s.lg.Info("Order finalized",
		zap.String("order_id", o.ID),
		zap.String("session_id", sessionID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// GetBySession returns the order finalized for sessionID, attempting
// finalization when the provider already reports the session as paid. It
// reports a pending outcome, not an error, when the webhook simply has not
// run yet.
func (s *Service) GetBySession(ctx context.Context, sessionID string) (*Order, bool, error) {
	o, err := s.FinalizeSession(ctx, sessionID)
	switch {
	case err == nil:
		return o, true, nil
	case errors.Is(err, ErrPaymentPending):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// UpdateShipment applies a carrier tracking update. Transitions out of a
// terminal status are rejected.
func (s *Service) UpdateShipment(ctx context.Context, orderID string, status Status, trackingNumber, carrier string) error {
	if !status.Valid() {
		return errors.Wrapf(ErrInvalidStatus, "%q", status)
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return errors.Wrapf(ErrTerminalStatus, "order %s is %s", orderID, o.Status)
	}

	return s.orders.UpdateTracking(ctx, orderID, status, trackingNumber, carrier)
}

func guestEmail(p *Pending, session *payment.Session) string {
	if p.GuestEmail != "" {
		return p.GuestEmail
	}
	return session.CustomerEmail
}

// snapshotItems recomputes per-line totals so stored snapshots are always
// unit_price x quantity regardless of what checkout staged.
func snapshotItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		out[i] = item
	}
	return out
}
