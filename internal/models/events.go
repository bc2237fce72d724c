package models

import (
	"time"

	"storefront-service/internal/money"
)

// Event types
const (
	EventTypeOrderCreated = "ORDER_CREATED"
	EventTypeOrderPaid    = "ORDER_PAID"
	EventTypeOrderFailed  = "ORDER_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is persisted in PENDING
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Reference   string          `json:"reference"`
	Total       money.Amount    `json:"total_kobo"`
	Currency    string          `json:"currency"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent published when reconciliation transitions an order to PAID
type OrderPaidEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id"`
	Total         money.Amount    `json:"total_kobo"`
	Currency      string          `json:"currency"`
	Items         []OrderItemData `json:"items"`
}

// OrderFailedEvent published when reconciliation transitions an order to FAILED
type OrderFailedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice money.Amount `json:"unit_price_kobo"`
}
