package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"
)

// CreateOrderWithItems persists the order, its line items, and the initial
// payment event in a single transaction. Nothing partial ever survives a
// failed creation.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderLineItem, initial *models.PaymentEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, order_number, status, currency, subtotal_kobo, shipping_kobo, total_kobo,
			customer_email, customer_phone, shipping_address, gateway_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.ID, order.OrderNumber, order.Status, order.Currency,
		order.Subtotal, order.Shipping, order.Total,
		order.CustomerEmail, order.CustomerPhone, order.Address, order.Reference,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_line_items (id, order_id, product_id, title_snapshot, unit_price_kobo, quantity, variant, line_total_kobo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i := range items {
		items[i].OrderID = order.ID
		if _, err := tx.ExecContext(ctx, itemQuery,
			items[i].ID, items[i].OrderID, items[i].ProductID, items[i].TitleSnapshot,
			items[i].UnitPrice, items[i].Quantity, items[i].Variant, items[i].LineTotal,
		); err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}
	}

	if initial != nil {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO payment_events (order_id, reference, event_type, payload) VALUES ($1, $2, $3, $4)",
			order.ID, initial.Reference, initial.EventType, initial.Payload,
		); err != nil {
			return fmt.Errorf("failed to insert initial payment event: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByReference retrieves an order by its gateway correlation reference.
// Returns (nil, nil) when no order matches.
func (s *Store) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE gateway_reference = $1", reference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetLineItemsByOrderID retrieves all line items for an order
func (s *Store) GetLineItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_line_items WHERE order_id = $1", orderID)
	return items, err
}

// MarkOrderPaid performs the PENDING->PAID transition as a conditional
// update. Returns false when the order was no longer PENDING, which callers
// treat as an idempotent duplicate, never an error.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, gateway_transaction_id = $2, paid_at = $3, updated_at = NOW()
		 WHERE id = $4 AND status = $5`,
		models.OrderStatusPaid, transactionID, paidAt, orderID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkOrderFailed performs the PENDING->FAILED transition with the same
// compare-and-swap discipline. PAID and FAILED are never overwritten.
func (s *Store) MarkOrderFailed(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusFailed, orderID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AppendPaymentEvent appends to the audit trail. Insert only; there is no
// update or delete path for payment_events.
func (s *Store) AppendPaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (order_id, reference, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		event.OrderID, event.Reference, event.EventType, event.Payload,
	).Scan(&event.ID, &event.CreatedAt)
}

// GetPaymentEventsByOrderID retrieves the audit trail for an order
func (s *Store) GetPaymentEventsByOrderID(ctx context.Context, orderID string) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM payment_events WHERE order_id = $1 ORDER BY id", orderID)
	return events, err
}

// IsEventProcessed checks if a broker event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a broker event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
