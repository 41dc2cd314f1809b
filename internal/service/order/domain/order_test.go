package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/apperr"
)

func sampleItems() []LineItem {
	return []LineItem{
		{ProductID: "P1", Name: "Tee", Price: 2500, Quantity: 2, Size: "M", Color: "black"},
		{ProductID: "P2", Name: "Sticker", Price: 300, Quantity: 3},
	}
}

func TestNewPendingOrder(t *testing.T) {
	items := sampleItems()
	items[0].StockCommitted = true

	o, err := NewPendingOrder("cs_123", items)
	require.NoError(t, err)

	assert.Equal(t, "cs_123", o.OrderID)
	assert.Equal(t, "cs_123", o.SessionID)
	assert.Equal(t, StatePending, o.Status)
	assert.Equal(t, int64(2*2500+3*300), o.Total)
	assert.False(t, o.Items[0].StockCommitted)

	_, err = NewPendingOrder("", items)
	assert.Error(t, err)
	_, err = NewPendingOrder("cs_1", nil)
	assert.Error(t, err)
}

func TestLineItemValidate(t *testing.T) {
	valid := LineItem{ProductID: "P1", Name: "Tee", Price: 100, Quantity: 1, Size: "M", Color: "black"}
	require.NoError(t, valid.Validate(0))

	cases := map[string]func(li *LineItem){
		"missing product": func(li *LineItem) { li.ProductID = "" },
		"missing name":    func(li *LineItem) { li.Name = " " },
		"zero price":      func(li *LineItem) { li.Price = 0 },
		"zero quantity":   func(li *LineItem) { li.Quantity = 0 },
		"size only":       func(li *LineItem) { li.Color = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			li := valid
			mutate(&li)
			assert.ErrorIs(t, li.Validate(0), apperr.ErrValidation)
		})
	}
}

func TestStateTransitions(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StatePending, StatePaid},
		{StatePaid, StateShipped},
		{StateShipped, StateDelivered},
		{StatePaid, StateStockError},
		{StateStockError, StatePaid},
		{StatePending, StateCancelled},
		{StatePaid, StateCancelled},
		{StateShipped, StateCancelled},
		{StateStockError, StateCancelled},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	denied := []struct{ from, to State }{
		{StatePending, StateShipped},
		{StatePaid, StatePending},
		{StateShipped, StatePaid},
		{StateDelivered, StateCancelled},
		{StateCancelled, StatePaid},
		{StatePending, StateStockError},
	}
	for _, tt := range denied {
		assert.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrderLifecycle(t *testing.T) {
	o, err := NewPendingOrder("cs_1", sampleItems())
	require.NoError(t, err)

	addr := &ShippingAddress{Name: "Ana", Line1: "1 Main", City: "Toronto", State: "ON", PostalCode: "M5V", Country: "CA"}
	require.NoError(t, o.MarkPaid("ana@example.com", addr))
	assert.Equal(t, StatePaid, o.Status)
	assert.Equal(t, "ana@example.com", o.CustomerEmail)

	assert.ErrorIs(t, o.MarkPaid("x@example.com", nil), ErrInvalidTransition)

	require.NoError(t, o.TransitionTo(StateShipped))
	assert.ErrorIs(t, o.TransitionTo(StatePending), ErrInvalidTransition)
	assert.ErrorIs(t, o.TransitionTo("lost"), apperr.ErrValidation)

	require.NoError(t, o.Cancel([]string{"rollback failed"}))
	assert.Equal(t, StateCancelled, o.Status)
	assert.Equal(t, []string{"rollback failed"}, o.StockRollbackErrors)
	assert.ErrorIs(t, o.Cancel(nil), ErrInvalidTransition)
}

func TestMarkStockError(t *testing.T) {
	o, err := NewPendingOrder("cs_1", sampleItems())
	require.NoError(t, err)
	assert.ErrorIs(t, o.MarkStockError([]string{"x"}), ErrInvalidTransition)

	require.NoError(t, o.MarkPaid("", nil))
	require.NoError(t, o.MarkStockError([]string{"Tee (M, black): insufficient stock"}))
	assert.Equal(t, StateStockError, o.Status)
	assert.Len(t, o.StockReductionErrors, 1)
}

func TestStockPendingMarker(t *testing.T) {
	o, err := NewPendingOrder("cs_1", sampleItems())
	require.NoError(t, err)
	require.NoError(t, o.MarkPaid("ana@example.com", nil))
	assert.True(t, o.StockPending)
	o.ConfirmStock()
	assert.False(t, o.StockPending)

	o, err = NewPendingOrder("cs_2", sampleItems())
	require.NoError(t, err)
	require.NoError(t, o.MarkPaid("", nil))
	require.NoError(t, o.MarkStockError([]string{"Tee (M, black): insufficient stock"}))
	assert.False(t, o.StockPending)

	o, err = NewPendingOrder("cs_3", sampleItems())
	require.NoError(t, err)
	require.NoError(t, o.MarkPaid("", nil))
	require.NoError(t, o.Cancel(nil))
	assert.False(t, o.StockPending)

	// 没有受跟踪的行时不需要扣库存
	o, err = NewPendingOrder("cs_4", sampleItems()[1:])
	require.NoError(t, err)
	require.NoError(t, o.MarkPaid("", nil))
	assert.False(t, o.StockPending)
}

func TestCommittedItems(t *testing.T) {
	o, err := NewPendingOrder("cs_1", sampleItems())
	require.NoError(t, err)
	assert.Empty(t, o.CommittedItems())

	o.Items[0].StockCommitted = true
	o.Items[1].StockCommitted = true // 无规格的行即使被标记也不参与回补
	assert.Equal(t, []int{0}, o.CommittedItems())
}

func TestListFilterNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ListFilter{}.NormalizeLimit())
	assert.Equal(t, 10, ListFilter{Limit: 10}.NormalizeLimit())
	assert.Equal(t, MaxListLimit, ListFilter{Limit: 1000}.NormalizeLimit())
}
