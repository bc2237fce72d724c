package service

import (
	"context"
	"encoding/json"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/money"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

// Outcome classifies a reconciliation decision. Callers acknowledge the
// external party regardless of which one they get.
type Outcome string

const (
	// OutcomePaid: this signal won the PENDING->PAID transition.
	OutcomePaid Outcome = "paid"
	// OutcomeAlreadyPaid: valid success for an order someone else already
	// settled. Idempotent duplicate, not an error.
	OutcomeAlreadyPaid Outcome = "already_paid"
	// OutcomeFailed: this signal moved the order PENDING->FAILED.
	OutcomeFailed Outcome = "failed"
	// OutcomeAlreadySettled: failed verification against an already
	// non-PENDING order. Nothing to do.
	OutcomeAlreadySettled Outcome = "already_settled"
	// OutcomeStaleSuccess: a valid success arrived after the order went
	// FAILED. Dropped and logged for manual review.
	OutcomeStaleSuccess Outcome = "stale_success"
	// OutcomeUnknownReference: no order matches; acknowledged without any
	// write so replayed or foreign signals learn nothing.
	OutcomeUnknownReference Outcome = "unknown_reference"
)

// Signal is one normalized payment signal. Both entry points, the webhook
// and the redirect-triggered verify, reduce to this before reconciliation.
type Signal struct {
	Reference     string
	EventType     string
	Succeeded     bool
	Amount        money.Amount
	Currency      string
	TransactionID string
	Raw           json.RawMessage
}

// Reconcile decides the final payment outcome for a reference. It is the
// only code that transitions order status, and every transition is a
// compare-and-swap on the current stored status, so any interleaving of
// duplicate webhooks and a concurrent redirect verify credits the order at
// most once. The audit event is written before the decision is evaluated.
func (ps *PaymentService) Reconcile(ctx context.Context, sig Signal) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Reconcile")
	defer span.End()

	order, err := ps.store.GetOrderByReference(ctx, sig.Reference)
	if err != nil {
		return "", err
	}
	if order == nil {
		util.ReconcileOutcomesTotal.WithLabelValues(string(OutcomeUnknownReference)).Inc()
		return OutcomeUnknownReference, nil
	}

	payload := sig.Raw
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	event := &models.PaymentEvent{
		OrderID:   order.ID,
		Reference: sig.Reference,
		EventType: sig.EventType,
		Payload:   types.JSONText(payload),
	}
	// The trail must exist before any decision; a crash past this point
	// leaves a recoverable record instead of a silent gap.
	if err := ps.store.AppendPaymentEvent(ctx, event); err != nil {
		return "", err
	}

	verified := sig.Succeeded &&
		sig.Amount == order.Total &&
		sig.Currency == order.Currency

	if verified {
		return ps.settleSuccess(ctx, order, sig)
	}
	return ps.settleFailure(ctx, order, sig)
}

func (ps *PaymentService) settleSuccess(ctx context.Context, order *models.Order, sig Signal) (Outcome, error) {
	applied, err := ps.store.MarkOrderPaid(ctx, order.ID, sig.TransactionID, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if applied {
		util.OrdersPaidTotal.Inc()
		util.ReconcileOutcomesTotal.WithLabelValues(string(OutcomePaid)).Inc()
		ps.logger.Info("Order paid",
			zap.String("order_id", order.ID),
			zap.String("reference", order.Reference),
			zap.String("transaction_id", sig.TransactionID))
		ps.publishPaid(ctx, order, sig)
		return OutcomePaid, nil
	}

	// Lost the CAS: someone settled this order first.
	current, err := ps.store.GetOrderByID(ctx, order.ID)
	if err == nil && current != nil && current.Status == models.OrderStatusPaid {
		util.ReconcileOutcomesTotal.WithLabelValues(string(OutcomeAlreadyPaid)).Inc()
		return OutcomeAlreadyPaid, nil
	}

	// Success after FAILED stays dropped; reviving stale attempts needs a
	// human decision, not an automatic transition.
	util.ReconcileOutcomesTotal.WithLabelValues(string(OutcomeStaleSuccess)).Inc()
	ps.logger.Warn("Dropping success signal for settled order",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("transaction_id", sig.TransactionID),
		zap.String("event_type", sig.EventType))
	return OutcomeStaleSuccess, nil
}

func (ps *PaymentService) settleFailure(ctx context.Context, order *models.Order, sig Signal) (Outcome, error) {
	// Mismatch detail is for operators only; external callers get a
	// generic acknowledgement either way.
	ps.logger.Warn("Reconciliation verification failed",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("event_type", sig.EventType),
		zap.Bool("gateway_success", sig.Succeeded),
		zap.Int64("reported_amount", int64(sig.Amount)),
		zap.Int64("expected_amount", int64(order.Total)),
		zap.String("reported_currency", sig.Currency),
		zap.String("expected_currency", order.Currency))

	applied, err := ps.store.MarkOrderFailed(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if !applied {
		util.ReconcileOutcomesTotal.WithLabelValues(string(OutcomeAlreadySettled)).Inc()
		return OutcomeAlreadySettled, nil
	}

	util.OrdersFailedTotal.Inc()
	util.ReconcileOutcomesTotal.WithLabelValues(string(OutcomeFailed)).Inc()

	if ps.failures != nil {
		ps.failures.RecordFailure(ctx, order.CustomerEmail)
	}

	failedEvent := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now().UTC(),
		},
		OrderID:   order.ID,
		Reference: order.Reference,
		Reason:    "verification_mismatch",
	}
	if err := ps.publisher.PublishOrderFailed(ctx, failedEvent); err != nil {
		ps.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}

	return OutcomeFailed, nil
}

func (ps *PaymentService) publishPaid(ctx context.Context, order *models.Order, sig Signal) {
	items, err := ps.store.GetLineItemsByOrderID(ctx, order.ID)
	if err != nil {
		ps.logger.Error("Failed to load line items for OrderPaid event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	paidEvent := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now().UTC(),
		},
		OrderID:       order.ID,
		Reference:     order.Reference,
		TransactionID: sig.TransactionID,
		Total:         order.Total,
		Currency:      order.Currency,
		Items:         eventItems,
	}
	if err := ps.publisher.PublishOrderPaid(ctx, paidEvent); err != nil {
		ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
}
