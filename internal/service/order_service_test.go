package service

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"storefront-service/internal/models"
	"storefront-service/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress() models.Address {
	return models.Address{
		FullName: "Ada Obi",
		Address1: "12 Marina Road",
		City:     "Lagos",
		State:    "Lagos",
		Country:  "NG",
	}
}

func catalogProduct(id string, price money.Amount, qty int) models.Product {
	return models.Product{
		ID:           id,
		Slug:         id,
		Title:        "Product " + id,
		Category:     "men",
		Price:        price,
		Currency:     money.DefaultCurrency,
		InventoryQty: qty,
		Active:       true,
	}
}

var orderNumberShape = regexp.MustCompile(`^ST-\d{8}-[A-Z2-9]{6}$`)

func TestCreateOrderComputesServerTotals(t *testing.T) {
	fs := newFakeStore()
	fs.addProduct(catalogProduct("p1", 1_800_000, 10))
	fs.addProduct(catalogProduct("p2", 4_200_000, 10))
	pub := &recordingPublisher{}
	svc := NewOrderService(fs, pub)

	resp, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Email: "buyer@example.com",
		Items: []CheckoutItem{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 2},
		},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.OrderID)
	assert.True(t, orderNumberShape.MatchString(resp.OrderNumber), "order number %q", resp.OrderNumber)

	order := fs.orderByID(resp.OrderID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, money.Amount(10_200_000), order.Subtotal)
	assert.Equal(t, money.Amount(0), order.Shipping)
	assert.Equal(t, money.Amount(10_200_000), order.Total)
	assert.Equal(t, money.DefaultCurrency, order.Currency)
	assert.True(t, strings.HasPrefix(order.Reference, "ST_"))

	items, err := fs.GetLineItemsByOrderID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// The trail starts at creation.
	assert.Equal(t, []string{models.PaymentEventOrderInitialized}, fs.eventTypes())
	assert.Len(t, pub.created, 1)
	assert.Equal(t, order.Total, pub.created[0].Total)
}

func TestCreateOrderSnapshotsCatalogPrice(t *testing.T) {
	fs := newFakeStore()
	fs.addProduct(catalogProduct("p1", 250_000, 5))
	svc := NewOrderService(fs, &recordingPublisher{})

	resp, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Email:           "buyer@example.com",
		Items:           []CheckoutItem{{ProductID: "p1", Quantity: 3}},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)

	items, err := fs.GetLineItemsByOrderID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Product p1", items[0].TitleSnapshot)
	assert.Equal(t, money.Amount(250_000), items[0].UnitPrice)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, money.Amount(750_000), items[0].LineTotal)
}

func TestCreateOrderValidation(t *testing.T) {
	fs := newFakeStore()
	fs.addProduct(catalogProduct("p1", 1000, 5))
	svc := NewOrderService(fs, &recordingPublisher{})

	base := func() *CreateOrderRequest {
		return &CreateOrderRequest{
			Email:           "buyer@example.com",
			Items:           []CheckoutItem{{ProductID: "p1", Quantity: 1}},
			ShippingAddress: testAddress(),
		}
	}

	cases := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"bad email", func(r *CreateOrderRequest) { r.Email = "not-an-email" }},
		{"no items", func(r *CreateOrderRequest) { r.Items = nil }},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"quantity above cap", func(r *CreateOrderRequest) { r.Items[0].Quantity = 21 }},
		{"missing product id", func(r *CreateOrderRequest) { r.Items[0].ProductID = "" }},
		{"short name", func(r *CreateOrderRequest) { r.ShippingAddress.FullName = "A" }},
		{"short address", func(r *CreateOrderRequest) { r.ShippingAddress.Address1 = "x" }},
		{"short city", func(r *CreateOrderRequest) { r.ShippingAddress.City = "L" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base()
			tc.mutate(req)
			_, err := svc.CreateOrder(context.Background(), req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	// Nothing was persisted or published for any rejected request.
	assert.Equal(t, 0, fs.eventCount())
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	fs := newFakeStore()
	svc := NewOrderService(fs, &recordingPublisher{})

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Email:           "buyer@example.com",
		Items:           []CheckoutItem{{ProductID: "ghost", Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), "ghost")
}

func TestCreateOrderInactiveProductRejected(t *testing.T) {
	fs := newFakeStore()
	p := catalogProduct("p1", 1000, 5)
	p.Active = false
	fs.addProduct(p)
	svc := NewOrderService(fs, &recordingPublisher{})

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Email:           "buyer@example.com",
		Items:           []CheckoutItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
}

func TestCreateOrderSoldOut(t *testing.T) {
	fs := newFakeStore()
	fs.addProduct(catalogProduct("p1", 1000, 0))
	svc := NewOrderService(fs, &recordingPublisher{})

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Email:           "buyer@example.com",
		Items:           []CheckoutItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), "sold out")
}

func TestCreateOrderTotalCeiling(t *testing.T) {
	fs := newFakeStore()
	fs.addProduct(catalogProduct("p1", money.MaxOrderTotal, 5))
	svc := NewOrderService(fs, &recordingPublisher{})

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Email:           "buyer@example.com",
		Items:           []CheckoutItem{{ProductID: "p1", Quantity: 2}},
		ShippingAddress: testAddress(),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, fs.eventCount())
}

func TestGetOrderNotFound(t *testing.T) {
	svc := NewOrderService(newFakeStore(), &recordingPublisher{})
	_, _, err := svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
