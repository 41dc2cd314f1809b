package application

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

func TestHandlePaymentEvent_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2), CheckoutItem{ProductID: "GC", Name: "Gift card", Price: 1000, Quantity: 1})

	res, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)
	assert.True(t, res.Received)
	assert.Equal(t, OutcomePaid, res.Outcome)

	assert.Equal(t, 3, f.inventory.get("P1", "M", "black"))
	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaid, order.Status)
	assert.Equal(t, "ana@example.com", order.CustomerEmail)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "Toronto", order.ShippingAddress.City)
	assert.True(t, order.Items[0].StockCommitted)
	assert.False(t, order.Items[1].StockCommitted)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, sessionID, f.notifier.sent[0].OrderID)
	assert.Equal(t, int64(6000), f.notifier.sent[0].Total)
}

func TestHandlePaymentEvent_ReplayIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2))

	_, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)
	res, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, 3, f.inventory.get("P1", "M", "black"))
	assert.Equal(t, 1, f.notifier.count())
}

func TestCompletePayment_ConcurrentDeliveriesDecrementOnce(t *testing.T) {
	f := newFixture(t)
	sessionID := f.checkout(t, teeItem(2))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.CompletePayment(context.Background(), sessionID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, f.inventory.get("P1", "M", "black"))
	assert.Equal(t, 1, f.notifier.count())
}

func TestHandlePaymentEvent_UnknownSession(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.HandlePaymentEvent(context.Background(), completedEvent(t, "cs_missing"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownSession, res.Outcome)
	assert.Zero(t, f.inventory.adjusts)
}

func TestHandlePaymentEvent_BadSignature(t *testing.T) {
	f := newFixture(t)
	sessionID := f.checkout(t, teeItem(1))

	_, err := f.svc.HandlePaymentEvent(context.Background(), completedEvent(t, sessionID), "t=1,v1=forged")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	order, err := f.repo.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, order.Status)
}

func TestHandlePaymentEvent_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.HandlePaymentEvent(context.Background(), []byte(`{"ID":"evt_1","Type":"charge.refunded"}`), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
}

func TestHandlePaymentEvent_UndecodableEventIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	sessionID := f.checkout(t, teeItem(1))

	res, err := f.svc.HandlePaymentEvent(context.Background(), []byte(`{"ID":"evt_1","Type":`), goodSignature)
	require.NoError(t, err)
	assert.True(t, res.Received)
	assert.Equal(t, OutcomeMalformed, res.Outcome)

	res, err = f.svc.HandlePaymentEvent(context.Background(), []byte(`{"ID":"evt_2","Type":"checkout.session.completed"}`), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, res.Outcome)

	assert.Zero(t, f.inventory.adjusts)
	order, err := f.repo.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, order.Status)
}

func TestHandlePaymentEvent_PartialStockFailureNeedsReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2), CheckoutItem{ProductID: "P2", Name: "Hoodie", Price: 6000, Quantity: 1, Size: "L", Color: "white"})
	// 结账后库存被别的订单买走
	f.inventory.set("P2", "L", "white", 0)

	res, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStockError, res.Outcome)
	require.Len(t, res.StockErrors, 1)
	assert.Contains(t, res.StockErrors[0], "Hoodie (L, white)")

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateStockError, order.Status)
	assert.Equal(t, res.StockErrors, order.StockReductionErrors)
	// 已成功扣减的行不自动回补
	assert.Equal(t, 3, f.inventory.get("P1", "M", "black"))
	assert.True(t, order.Items[0].StockCommitted)
	assert.Zero(t, f.notifier.count())
}

func TestHandlePaymentEvent_EmailFailureKeepsOrderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("mail provider down")
	sessionID := f.checkout(t, teeItem(1))

	res, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaid, order.Status)
	assert.Contains(t, order.EmailError, "mail provider down")
	assert.Equal(t, 4, f.inventory.get("P1", "M", "black"))
}

func TestHandlePaymentEvent_NoEmailSkipsNotification(t *testing.T) {
	f := newFixture(t)
	f.payments.details = &port.SessionDetails{}
	sessionID := f.checkout(t, teeItem(1))

	res, err := f.svc.HandlePaymentEvent(context.Background(), completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Zero(t, f.notifier.count())
}

func TestHandlePaymentEvent_RetrieveFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(1))
	f.payments.retrieveErr = errors.New("timeout")

	_, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, order.Status)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))

	// 支付方重发后正常完成
	f.payments.retrieveErr = nil
	res, err := f.svc.HandlePaymentEvent(ctx, completedEvent(t, sessionID), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Equal(t, 4, f.inventory.get("P1", "M", "black"))
}

func TestHandlePaymentEvent_StoreFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	sessionID := f.checkout(t, teeItem(1))
	f.repo.findErr = errors.New("db down")

	_, err := f.svc.HandlePaymentEvent(context.Background(), completedEvent(t, sessionID), goodSignature)
	assert.Error(t, err)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))
}

func TestCompletePayment_CancelledDuringStockReduction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2))

	f.inventory.onDecrease = func() {
		_, err := f.svc.CancelOrder(ctx, sessionID)
		require.NoError(t, err)
	}

	res, err := f.svc.CompletePayment(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuperseded, res.Outcome)

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, order.Status)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))
	assert.Zero(t, f.notifier.count())
}

func TestCompletePayment_RetriesResultWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2))
	// 第 1 次写入是 pending -> paid，第 2 次是扣减结果
	f.repo.setFailUpdate(func(call int) bool { return call == 2 })

	res, err := f.svc.CompletePayment(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, order.Items[0].StockCommitted)
	assert.False(t, order.StockPending)

	f.repo.setFailUpdate(nil)
	_, err = f.svc.CancelOrder(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))
}

func TestCompletePayment_UnsavedResultReversesReductions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2))
	f.repo.setFailUpdate(func(call int) bool { return call >= 2 })

	res, err := f.svc.CompletePayment(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnrecorded, res.Outcome)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))
	assert.Zero(t, f.notifier.count())

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaid, order.Status)
	assert.True(t, order.StockPending)
	assert.Empty(t, order.CommittedItems())

	// 重发的回调不会再次扣减
	res, err = f.svc.CompletePayment(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))

	f.repo.setFailUpdate(nil)
	resp, err := f.svc.CancelOrder(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, resp.RollbackErrors)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))

	order, err = f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, order.Status)
	assert.False(t, order.StockPending)
}

func TestCompletePayment_UnsavedStockErrorReversesReductions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2), CheckoutItem{ProductID: "P2", Name: "Hoodie", Price: 6000, Quantity: 1, Size: "L", Color: "white"})
	f.inventory.set("P2", "L", "white", 0)
	f.repo.setFailUpdate(func(call int) bool { return call >= 2 })

	res, err := f.svc.CompletePayment(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnrecorded, res.Outcome)
	require.Len(t, res.StockErrors, 1)
	assert.Equal(t, 5, f.inventory.get("P1", "M", "black"))

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaid, order.Status)
	assert.True(t, order.StockPending)
}

func TestCompletePayment_SaveErrorAfterCommitIsNotReversed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := f.checkout(t, teeItem(2))
	f.repo.setFailUpdate(func(call int) bool { return call >= 2 })
	// 写入已生效但调用方收到错误
	f.repo.afterFailedUpdate = func(o *domain.Order, expected domain.State) {
		require.NoError(t, f.repo.OrderRepository.UpdateIfStatus(ctx, o, expected))
	}

	res, err := f.svc.CompletePayment(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Equal(t, 3, f.inventory.get("P1", "M", "black"))

	order, err := f.repo.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, order.Items[0].StockCommitted)
	assert.False(t, order.StockPending)
}
