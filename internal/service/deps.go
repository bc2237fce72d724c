package service

import (
	"context"
	"encoding/json"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
)

// OrderStore is the persistence surface the services depend on. *store.Store
// satisfies it; tests substitute an in-memory fake.
type OrderStore interface {
	ListProductsByCollection(ctx context.Context, collection string) ([]models.Product, error)
	GetActiveProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderLineItem, initial *models.PaymentEvent) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByReference(ctx context.Context, reference string) (*models.Order, error)
	GetLineItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderLineItem, error)
	MarkOrderPaid(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error)
	MarkOrderFailed(ctx context.Context, orderID string) (bool, error)
	AppendPaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}

// GatewayClient is the external payment provider surface.
type GatewayClient interface {
	Initialize(ctx context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResponse, json.RawMessage, error)
	Verify(ctx context.Context, reference string) (*gateway.VerifyResponse, json.RawMessage, error)
}

// Publisher emits domain events for downstream consumers.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error
}

// FailureRecorder feeds failed reconciliations back into fraud scoring.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, email string)
}
