package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
	"storefront/internal/service/order/infrastructure"
)

func variant(productID, size, color string) string {
	return productID + "/" + size + "/" + color
}

// fakeInventory 是带故障注入的库存账本。
type fakeInventory struct {
	mu         sync.Mutex
	stock      map[string]int
	checkErr   error
	adjustErr  map[string]error
	onDecrease func()
	adjusts    int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{stock: map[string]int{}, adjustErr: map[string]error{}}
}

func (f *fakeInventory) set(productID, size, color string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[variant(productID, size, color)] = n
}

func (f *fakeInventory) get(productID, size, color string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[variant(productID, size, color)]
}

func (f *fakeInventory) CheckAvailability(_ context.Context, productID, size, color string, quantity int) (*port.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	n, ok := f.stock[variant(productID, size, color)]
	if !ok {
		return &port.Availability{Message: "Variant not available"}, nil
	}
	if n < quantity {
		return &port.Availability{Stock: n, Message: fmt.Sprintf("Only %d units left", n)}, nil
	}
	return &port.Availability{Available: true, Stock: n, Message: "Stock available"}, nil
}

func (f *fakeInventory) AdjustStock(_ context.Context, productID, size, color string, delta int) (int, error) {
	f.mu.Lock()
	hook := f.onDecrease
	if delta < 0 {
		f.onDecrease = nil
	}
	f.mu.Unlock()
	if delta < 0 && hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjusts++
	key := variant(productID, size, color)
	if err := f.adjustErr[key]; err != nil {
		return 0, err
	}
	n, ok := f.stock[key]
	if !ok {
		return 0, errors.New("variant not found")
	}
	if n+delta < 0 {
		return n, errors.New("insufficient stock")
	}
	f.stock[key] = n + delta
	return n + delta, nil
}

type fakePayments struct {
	mu          sync.Mutex
	created     int
	createErr   error
	retrieveErr error
	details     *port.SessionDetails
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, items []domain.LineItem) (*port.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	id := fmt.Sprintf("cs_test_%04d", f.created)
	return &port.CheckoutSession{ID: id, URL: "https://pay.example/" + id}, nil
}

func (f *fakePayments) RetrieveSession(_ context.Context, _ string) (*port.SessionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	if f.details != nil {
		return f.details, nil
	}
	return &port.SessionDetails{
		CustomerEmail:   "ana@example.com",
		ShippingAddress: &domain.ShippingAddress{Name: "Ana", Line1: "1 Main St", City: "Toronto", State: "ON", PostalCode: "M5V", Country: "CA"},
	}, nil
}

const goodSignature = "t=1,v1=good"

func (f *fakePayments) ParseEvent(payload []byte, signature string) (*port.PaymentEvent, error) {
	if signature != goodSignature {
		return nil, errors.Wrap(apperr.ErrAuthentication, "invalid signature")
	}
	var e port.PaymentEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, apperr.Invalid("data.object", "not a checkout session")
	}
	return &e, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*port.OrderNotification
	err  error
}

func (f *fakeNotifier) NotifyOrderPaid(_ context.Context, n *port.OrderNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// failingRepo 按需注入写入和查询故障，其余委托给内存仓储。
type failingRepo struct {
	domain.OrderRepository
	createErr error
	findErr   error

	mu      sync.Mutex
	updates int
	// failUpdate 按调用序号（从 1 开始）决定 UpdateIfStatus 是否失败。
	failUpdate func(call int) bool
	// afterFailedUpdate 在返回注入的错误前调用，用来模拟写入已生效但响应丢失。
	afterFailedUpdate func(o *domain.Order, expected domain.State)
}

func (r *failingRepo) UpdateIfStatus(ctx context.Context, o *domain.Order, expected domain.State) error {
	r.mu.Lock()
	r.updates++
	fail := r.failUpdate != nil && r.failUpdate(r.updates)
	after := r.afterFailedUpdate
	r.mu.Unlock()
	if fail {
		if after != nil {
			after(o, expected)
		}
		return errors.New("connection reset")
	}
	return r.OrderRepository.UpdateIfStatus(ctx, o, expected)
}

func (r *failingRepo) setFailUpdate(fn func(call int) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = 0
	r.failUpdate = fn
}

func (r *failingRepo) Create(ctx context.Context, o *domain.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.OrderRepository.Create(ctx, o)
}

func (r *failingRepo) FindBySessionID(ctx context.Context, id string) (*domain.Order, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.OrderRepository.FindBySessionID(ctx, id)
}

type fixture struct {
	svc       *OrderApplicationService
	repo      *failingRepo
	inventory *fakeInventory
	payments  *fakePayments
	notifier  *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      &failingRepo{OrderRepository: infrastructure.NewMemoryOrderRepository()},
		inventory: newFakeInventory(),
		payments:  &fakePayments{},
		notifier:  &fakeNotifier{},
	}
	f.inventory.set("P1", "M", "black", 5)
	f.inventory.set("P2", "L", "white", 1)
	f.svc = NewOrderApplicationService(f.repo, noop.NewTracerProvider().Tracer("test"), Options{MaxItems: 3, SaveRetryInterval: time.Millisecond},
		f.inventory, f.payments, f.notifier, nil, nil)
	return f
}

func teeItem(qty int) CheckoutItem {
	return CheckoutItem{ProductID: "P1", Name: "Tee", Price: 2500, Quantity: qty, Size: "M", Color: "black"}
}

func (f *fixture) checkout(t *testing.T, items ...CheckoutItem) string {
	t.Helper()
	resp, err := f.svc.Checkout(context.Background(), &CheckoutRequest{Items: items})
	require.NoError(t, err)
	return resp.SessionID
}

func completedEvent(t *testing.T, sessionID string) []byte {
	t.Helper()
	b, err := json.Marshal(port.PaymentEvent{ID: "evt_" + sessionID, Type: port.EventCheckoutSessionCompleted, SessionID: sessionID})
	require.NoError(t, err)
	return b
}
