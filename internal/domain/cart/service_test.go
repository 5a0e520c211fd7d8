package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCartRepo struct {
	items      []Item
	mergeCount int
	mergeErr   error
	mergedFrom string
	mergedInto string
}

func (m *mockCartRepo) List(_ context.Context, _ Owner) ([]Item, error) {
	return m.items, nil
}

func (m *mockCartRepo) Merge(_ context.Context, guestToken, userID string) (int, error) {
	m.mergedFrom = guestToken
	m.mergedInto = userID
	return m.mergeCount, m.mergeErr
}

func (m *mockCartRepo) Clear(_ context.Context, _ Owner) error {
	return nil
}

func TestSubtotal(t *testing.T) {
	items := []Item{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("25.00")},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("30.00")},
	}
	assert.True(t, decimal.NewFromInt(80).Equal(Subtotal(items)))
	assert.True(t, decimal.Zero.Equal(Subtotal(nil)))
}

func TestService_Consolidate(t *testing.T) {
	repo := &mockCartRepo{mergeCount: 3}
	svc := NewService(repo, zap.NewNop())

	err := svc.Consolidate(context.Background(), "guest-abc", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "guest-abc", repo.mergedFrom)
	assert.Equal(t, "user-1", repo.mergedInto)
}

func TestService_Consolidate_Validation(t *testing.T) {
	svc := NewService(&mockCartRepo{}, zap.NewNop())

	err := svc.Consolidate(context.Background(), "", "user-1")
	require.Error(t, err)

	err = svc.Consolidate(context.Background(), "guest-abc", "")
	require.Error(t, err)
}

func TestService_Consolidate_RepoError(t *testing.T) {
	repo := &mockCartRepo{mergeErr: errors.New("deadlock")}
	svc := NewService(repo, zap.NewNop())

	err := svc.Consolidate(context.Background(), "guest-abc", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge guest cart")
}
