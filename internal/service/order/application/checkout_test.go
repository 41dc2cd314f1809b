package application

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
)

func TestCheckout_CreatesPendingOrderWithoutTouchingStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Checkout(ctx, &CheckoutRequest{Items: []CheckoutItem{
		teeItem(2),
		{ProductID: "GC", Name: "Gift card", Price: 1000, Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_0001", resp.SessionID)
	assert.Equal(t, "https://pay.example/cs_test_0001", resp.URL)

	order, err := f.repo.FindByID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, order.Status)
	assert.Equal(t, resp.SessionID, order.SessionID)
	assert.Equal(t, int64(6000), order.Total)
	assert.Len(t, order.Items, 2)

	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))
	assert.Zero(t, f.notifier.count())
}

func TestCheckout_InsufficientStockAbortsEverything(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{
		teeItem(1),
		{ProductID: "P2", Name: "Hoodie", Price: 6000, Quantity: 2, Size: "L", Color: "white"},
	}})
	require.ErrorIs(t, err, domain.ErrItemUnavailable)
	assert.Contains(t, err.Error(), "Hoodie (L, white)")
	assert.Contains(t, err.Error(), "Only 1 units left")

	assert.Zero(t, f.payments.created)
	orders, err := f.repo.List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckout_SameVariantLinesAreCheckedTogether(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{teeItem(3), teeItem(3)}})
	require.ErrorIs(t, err, domain.ErrItemUnavailable)
	assert.Contains(t, err.Error(), "Only 5 units left")
	assert.Zero(t, f.payments.created)

	sessionID := f.checkout(t, teeItem(2), teeItem(3))
	assert.NotEmpty(t, sessionID)
}

func TestCheckout_BlankVariantFieldsAreRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{
		{ProductID: "P1", Name: "Tee", Price: 2500, Quantity: 1, Size: " ", Color: "black"},
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NotErrorIs(t, err, apperr.ErrUpstream)

	// 账本拒绝的输入同样按校验错误返回
	f.inventory.checkErr = apperr.Invalid("size", "must be a non-empty string")
	_, err = f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{teeItem(1)}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NotErrorIs(t, err, apperr.ErrUpstream)
	assert.Zero(t, f.payments.created)
}

func TestCheckout_UnknownVariantIsUnavailable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{
		{ProductID: "P1", Name: "Tee", Price: 2500, Quantity: 1, Size: "XXL", Color: "black"},
	}})
	assert.ErrorIs(t, err, domain.ErrItemUnavailable)
	assert.Zero(t, f.payments.created)
}

func TestCheckout_StoreFailureDuringCheckAborts(t *testing.T) {
	f := newFixture(t)
	f.inventory.checkErr = errors.New("connection refused")

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{teeItem(1)}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Zero(t, f.payments.created)
}

func TestCheckout_UntrackedItemsSkipTheCheck(t *testing.T) {
	f := newFixture(t)
	f.inventory.checkErr = errors.New("should not be called")

	sessionID := f.checkout(t, CheckoutItem{ProductID: "GC", Name: "Gift card", Price: 1000, Quantity: 3})
	assert.NotEmpty(t, sessionID)
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]*CheckoutRequest{
		"nil request":  nil,
		"empty cart":   {},
		"too many":     {Items: []CheckoutItem{teeItem(1), teeItem(1), teeItem(1), teeItem(1)}},
		"zero qty":     {Items: []CheckoutItem{teeItem(0)}},
		"no price":     {Items: []CheckoutItem{{ProductID: "P1", Name: "Tee", Quantity: 1, Size: "M", Color: "black"}}},
		"size only":    {Items: []CheckoutItem{{ProductID: "P1", Name: "Tee", Price: 1, Quantity: 1, Size: "M"}}},
		"missing name": {Items: []CheckoutItem{{ProductID: "P1", Price: 1, Quantity: 1}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Checkout(context.Background(), req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Zero(t, f.payments.created)
}

func TestCheckout_PaymentProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.createErr = errors.New("stripe unavailable")

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{teeItem(1)}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	orders, _ := f.repo.List(context.Background(), domain.ListFilter{})
	assert.Empty(t, orders)
}

func TestCheckout_OrderStoreFailureAfterSession(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("disk full")

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{teeItem(1)}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	// 会话已创建且不撤销
	assert.Equal(t, 1, f.payments.created)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))
}

type denyAll struct{}

func (denyAll) Evaluate(index int, _ domain.LineItem) error {
	return apperr.Invalid("items", "denied")
}

func TestCheckout_PolicyRunsBeforeAvailability(t *testing.T) {
	f := newFixture(t)
	f.svc.policy = denyAll{}
	f.inventory.checkErr = errors.New("should not be called")

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: []CheckoutItem{teeItem(1)}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
