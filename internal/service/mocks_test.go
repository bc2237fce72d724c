package service

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/models"
)

// fakeStore is an in-memory OrderStore with the same compare-and-swap
// semantics the Postgres store provides.
type fakeStore struct {
	mu          sync.Mutex
	products    map[string]models.Product
	orders      map[string]*models.Order
	ordersByRef map[string]string
	items       map[string][]models.OrderLineItem
	events      []models.PaymentEvent
	lookups     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:    make(map[string]models.Product),
		orders:      make(map[string]*models.Order),
		ordersByRef: make(map[string]string),
		items:       make(map[string][]models.OrderLineItem),
	}
}

func (f *fakeStore) addProduct(p models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

func (f *fakeStore) addOrder(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	f.ordersByRef[o.Reference] = o.ID
}

func (f *fakeStore) orderByID(id string) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeStore) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventType
	}
	return out
}

func (f *fakeStore) ListProductsByCollection(_ context.Context, _ string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetActiveProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := f.products[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrderWithItems(_ context.Context, order *models.Order, items []models.OrderLineItem, initial *models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	cp := *order
	f.orders[order.ID] = &cp
	f.ordersByRef[order.Reference] = order.ID
	for i := range items {
		items[i].OrderID = order.ID
	}
	f.items[order.ID] = append([]models.OrderLineItem(nil), items...)
	if initial != nil {
		ev := *initial
		ev.OrderID = order.ID
		f.events = append(f.events, ev)
	}
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrderByReference(_ context.Context, reference string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	id, ok := f.ordersByRef[reference]
	if !ok {
		return nil, nil
	}
	cp := *f.orders[id]
	return &cp, nil
}

func (f *fakeStore) GetLineItemsByOrderID(_ context.Context, orderID string) ([]models.OrderLineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderLineItem(nil), f.items[orderID]...), nil
}

func (f *fakeStore) MarkOrderPaid(_ context.Context, orderID, transactionID string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = models.OrderStatusPaid
	o.TransactionID.Valid = true
	o.TransactionID.String = transactionID
	o.PaidAt.Valid = true
	o.PaidAt.Time = paidAt
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) MarkOrderFailed(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = models.OrderStatusFailed
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) AppendPaymentEvent(_ context.Context, event *models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = int64(len(f.events) + 1)
	event.CreatedAt = time.Now().UTC()
	f.events = append(f.events, *event)
	return nil
}

// recordingPublisher captures published domain events.
type recordingPublisher struct {
	mu      sync.Mutex
	created []*models.OrderCreatedEvent
	paid    []*models.OrderPaidEvent
	failed  []*models.OrderFailedEvent
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return nil
}

func (p *recordingPublisher) PublishOrderPaid(_ context.Context, event *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, event)
	return nil
}

func (p *recordingPublisher) PublishOrderFailed(_ context.Context, event *models.OrderFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
	return nil
}

func (p *recordingPublisher) paidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paid)
}
