package service

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/money"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

const (
	maxItemQuantity = 20
	maxItemCount    = 50
)

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// OrderService handles order creation and catalog reads
type OrderService struct {
	store     OrderStore
	publisher Publisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, publisher Publisher) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CheckoutItem is one requested line in a create-order request
type CheckoutItem struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required"`
	Variant   json.RawMessage `json:"variant,omitempty"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Email           string         `json:"email" binding:"required"`
	Phone           string         `json:"phone,omitempty"`
	Items           []CheckoutItem `json:"items" binding:"required"`
	ShippingAddress models.Address `json:"shippingAddress" binding:"required"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// CreateOrder validates the cart, recomputes totals from authoritative
// catalog prices, and persists order + line items + the initial audit event
// atomically. Client-supplied prices are never consulted.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateCreateOrder(req); err != nil {
		util.OrdersCreateFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	productIDs := make([]string, len(req.Items))
	for i, item := range req.Items {
		productIDs[i] = item.ProductID
	}

	products, err := s.store.GetActiveProductsByIDs(ctx, productIDs)
	if err != nil {
		util.OrdersCreateFailedTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	productMap := make(map[string]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	var subtotal money.Amount
	lineItems := make([]models.OrderLineItem, 0, len(req.Items))
	eventItems := make([]models.OrderItemData, 0, len(req.Items))

	for _, item := range req.Items {
		product, ok := productMap[item.ProductID]
		if !ok {
			util.OrdersCreateFailedTotal.WithLabelValues("unknown_product").Inc()
			return nil, domainErrorf("unknown or inactive product: %s", item.ProductID)
		}
		if product.InventoryQty <= 0 {
			util.OrdersCreateFailedTotal.WithLabelValues("sold_out").Inc()
			return nil, domainErrorf("sold out: %s", product.Title)
		}

		lineTotal, err := money.Line(product.Price, item.Quantity)
		if err != nil {
			util.OrdersCreateFailedTotal.WithLabelValues("amount_out_of_range").Inc()
			return nil, validationErrorf("invalid line amount for product %s", item.ProductID)
		}
		subtotal, err = money.Add(subtotal, lineTotal)
		if err != nil {
			util.OrdersCreateFailedTotal.WithLabelValues("amount_out_of_range").Inc()
			return nil, validationErrorf("order total out of range")
		}

		variant := types.JSONText(item.Variant)
		if len(variant) == 0 {
			variant = types.JSONText("{}")
		}

		lineItems = append(lineItems, models.OrderLineItem{
			ID:            uuid.New().String(),
			ProductID:     product.ID,
			TitleSnapshot: product.Title,
			UnitPrice:     product.Price,
			Quantity:      item.Quantity,
			Variant:       variant,
			LineTotal:     lineTotal,
		})
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	// Flat zero shipping until a zone-based rate table exists.
	var shipping money.Amount
	total, err := money.Add(subtotal, shipping)
	if err != nil || !money.WithinCeiling(total) {
		util.OrdersCreateFailedTotal.WithLabelValues("amount_out_of_range").Inc()
		return nil, validationErrorf("order total out of range")
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   newOrderNumber(now),
		Status:        models.OrderStatusPending,
		Currency:      money.DefaultCurrency,
		Subtotal:      subtotal,
		Shipping:      shipping,
		Total:         total,
		CustomerEmail: req.Email,
		CustomerPhone: req.Phone,
		Address:       req.ShippingAddress,
		Reference:     newReference(),
	}

	initial := &models.PaymentEvent{
		Reference: order.Reference,
		EventType: models.PaymentEventOrderInitialized,
		Payload:   types.JSONText(`{"source":"checkout/create-order"}`),
	}

	if err := s.store.CreateOrderWithItems(ctx, order, lineItems, initial); err != nil {
		util.OrdersCreateFailedTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total_kobo", int64(order.Total)))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: now,
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reference:   order.Reference,
		Total:       order.Total,
		Currency:    order.Currency,
		Items:       eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

// GetOrder retrieves an order with its line items
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderLineItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}

	items, err := s.store.GetLineItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListProducts retrieves active catalog products for a collection value
func (s *OrderService) ListProducts(ctx context.Context, collection string) ([]models.Product, error) {
	return s.store.ListProductsByCollection(ctx, collection)
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if !emailShape.MatchString(req.Email) {
		return validationErrorf("invalid email address")
	}
	if len(req.Items) == 0 {
		return validationErrorf("items must not be empty")
	}
	if len(req.Items) > maxItemCount {
		return validationErrorf("too many items: max %d", maxItemCount)
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return validationErrorf("productId is required")
		}
		if item.Quantity < 1 || item.Quantity > maxItemQuantity {
			return validationErrorf("quantity must be between 1 and %d", maxItemQuantity)
		}
	}

	addr := req.ShippingAddress
	switch {
	case len(addr.FullName) < 2:
		return validationErrorf("fullName is required")
	case len(addr.Address1) < 3:
		return validationErrorf("address1 is required")
	case len(addr.City) < 2:
		return validationErrorf("city is required")
	case len(addr.State) < 2:
		return validationErrorf("state is required")
	case len(addr.Country) < 2:
		return validationErrorf("country is required")
	}

	return nil
}
