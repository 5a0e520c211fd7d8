package cart

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Service wraps cart persistence with the consolidation flow that runs when a
// guest shopper signs in.
type Service struct {
	repo Repository
	lg   *zap.Logger
}

// NewService creates a cart Service.
func NewService(repo Repository, lg *zap.Logger) *Service {
	return &Service{repo: repo, lg: lg}
}

// List returns the cart lines for the given owner.
func (s *Service) List(ctx context.Context, owner Owner) ([]Item, error) {
	return s.repo.List(ctx, owner)
}

// Consolidate merges the guest cart identified by guestToken into the cart of
// the signed-in user. Lines already present in both carts sum quantities.
func (s *Service) Consolidate(ctx context.Context, guestToken, userID string) error {
	if guestToken == "" {
		return errors.New("guest token required")
	}
	if userID == "" {
		return errors.New("user id required")
	}

	merged, err := s.repo.Merge(ctx, guestToken, userID)
	if err != nil {
		return errors.Wrap(err, "merge guest cart")
	}

	s.lg.Info("Guest cart consolidated",
		zap.String("user_id", userID),
		zap.Int("lines", merged),
	)
	return nil
}
