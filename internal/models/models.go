package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"storefront-service/internal/money"
)

// Product represents a catalog product
type Product struct {
	ID           string         `db:"id" json:"id"`
	Slug         string         `db:"slug" json:"slug"`
	Title        string         `db:"title" json:"title"`
	Category     string         `db:"category" json:"category"`
	Price        money.Amount   `db:"price_kobo" json:"price_kobo"`
	Currency     string         `db:"currency" json:"currency"`
	InventoryQty int            `db:"inventory_qty" json:"inventory_qty"`
	Active       bool           `db:"active" json:"active"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Address is the structured shipping address stored as JSON on the order.
type Address struct {
	FullName   string `json:"fullName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Value implements driver.Valuer so Address persists as jsonb.
func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb columns.
func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Address", src)
	}
}

// Order represents one purchase intent
type Order struct {
	ID            string       `db:"id" json:"id"`
	OrderNumber   string       `db:"order_number" json:"order_number"`
	Status        string       `db:"status" json:"status"`
	Currency      string       `db:"currency" json:"currency"`
	Subtotal      money.Amount `db:"subtotal_kobo" json:"subtotal_kobo"`
	Shipping      money.Amount `db:"shipping_kobo" json:"shipping_kobo"`
	Total         money.Amount `db:"total_kobo" json:"total_kobo"`
	CustomerEmail string       `db:"customer_email" json:"customer_email"`
	CustomerPhone string       `db:"customer_phone" json:"customer_phone,omitempty"`
	Address       Address      `db:"shipping_address" json:"shipping_address"`
	// Reference correlates gateway signals back to this order. Unique,
	// immutable once assigned.
	Reference     string         `db:"gateway_reference" json:"gateway_reference"`
	TransactionID sql.NullString `db:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`
	PaidAt        sql.NullTime   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// OrderLineItem is a snapshot of one purchased SKU at order time. Title and
// unit price are frozen here; later catalog edits never touch them.
type OrderLineItem struct {
	ID            string         `db:"id" json:"id"`
	OrderID       string         `db:"order_id" json:"order_id"`
	ProductID     string         `db:"product_id" json:"product_id"`
	TitleSnapshot string         `db:"title_snapshot" json:"title_snapshot"`
	UnitPrice     money.Amount   `db:"unit_price_kobo" json:"unit_price_kobo"`
	Quantity      int            `db:"quantity" json:"quantity"`
	Variant       types.JSONText `db:"variant" json:"variant,omitempty"`
	LineTotal     money.Amount   `db:"line_total_kobo" json:"line_total_kobo"`
}

// PaymentEvent is an append-only audit record of a state-relevant signal.
// Rows are never updated or deleted.
type PaymentEvent struct {
	ID        int64          `db:"id" json:"id"`
	OrderID   string         `db:"order_id" json:"order_id"`
	Reference string         `db:"reference" json:"reference"`
	EventType string         `db:"event_type" json:"event_type"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Order statuses. Forward-only: PENDING is the only state that transitions,
// and only the reconciliation engine moves it.
const (
	OrderStatusPending = "PENDING"
	OrderStatusPaid    = "PAID"
	OrderStatusFailed  = "FAILED"
)

// Payment event types (audit trail tags)
const (
	PaymentEventOrderInitialized = "order.initialized"
	PaymentEventInitOK           = "gateway.init_ok"
	PaymentEventInitFailed       = "gateway.init_failed"
	PaymentEventVerifyCallback   = "gateway.verify_callback"
	PaymentEventWebhook          = "gateway.webhook"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
