package worker

import (
	"context"
	"fmt"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// SettlementStore is the persistence surface the worker needs
type SettlementStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	DecrementInventory(ctx context.Context, productID string, quantity int) error
}

// SettlementWorker consumes order events and settles inventory counts after
// payment. Orders never reserve stock up front; availability is a
// point-in-time check at creation, and this worker applies the actual
// deduction once money has moved.
type SettlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        SettlementStore
	logger       *zap.Logger
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(consumer *broker.Consumer, store SettlementStore) *SettlementWorker {
	w := &SettlementWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *SettlementWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting settlement worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	w.logger.Info("Stopping settlement worker")
	return w.consumer.Close()
}

// handleOrderPaid deducts inventory for each paid line item. Kafka retries
// redeliver events, so processing is keyed by event ID and applied once.
func (w *SettlementWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		if err := w.store.DecrementInventory(ctx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("failed to settle inventory for product %s: %w", item.ProductID, err)
		}
		util.InventorySettledTotal.Inc()
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	w.logger.Info("Inventory settled",
		zap.String("order_id", event.OrderID),
		zap.Int("items", len(event.Items)))
	return nil
}
