package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/money"
	"storefront-service/internal/util"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

// PaymentService drives payment initialization and reconciliation. The
// secret key lives here for webhook signature checks; it is never exposed
// through any response.
type PaymentService struct {
	store      OrderStore
	gateway    GatewayClient
	publisher  Publisher
	failures   FailureRecorder
	secretKey  string
	appBaseURL string
	logger     *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store OrderStore, gw GatewayClient, publisher Publisher, failures FailureRecorder, secretKey, appBaseURL string) *PaymentService {
	return &PaymentService{
		store:      store,
		gateway:    gw,
		publisher:  publisher,
		failures:   failures,
		secretKey:  secretKey,
		appBaseURL: appBaseURL,
		logger:     util.GetLogger(),
	}
}

// Configured reports whether the gateway secret and public base URL are both
// present. Payment routes hard-fail without them instead of running with
// partial configuration.
func (ps *PaymentService) Configured() bool {
	return ps.secretKey != "" && ps.appBaseURL != ""
}

// AppBaseURL returns the public application base URL
func (ps *PaymentService) AppBaseURL() string {
	return ps.appBaseURL
}

// InitializePayment creates a hosted checkout session for a PENDING order
// and returns the URL to redirect the customer to.
func (ps *PaymentService) InitializePayment(ctx context.Context, orderID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitializePayment")
	defer span.End()

	if !ps.Configured() {
		return "", ErrGatewayNotConfigured
	}

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	if order.Status != models.OrderStatusPending {
		return "", ErrOrderNotPayable
	}

	util.PaymentInitTotal.Inc()
	start := time.Now()

	resp, raw, err := ps.gateway.Initialize(ctx, &gateway.InitializeRequest{
		Email:       order.CustomerEmail,
		Amount:      order.Total,
		Reference:   order.Reference,
		CallbackURL: ps.appBaseURL + "/payments/callback",
		Metadata: gateway.Metadata{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
		},
	})
	util.GatewayRequestLatency.WithLabelValues("initialize").Observe(time.Since(start).Seconds())

	if err != nil {
		ps.appendEvent(ctx, order, models.PaymentEventInitFailed, errorPayload(err))
		util.PaymentInitFailedTotal.Inc()
		ps.logger.Error("Gateway initialize failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return "", fmt.Errorf("%w: gateway unreachable", ErrGatewayInit)
	}

	if !resp.Status || resp.Data.AuthorizationURL == "" {
		ps.appendEvent(ctx, order, models.PaymentEventInitFailed, raw)
		util.PaymentInitFailedTotal.Inc()
		ps.logger.Warn("Gateway declined initialization",
			zap.String("order_id", order.ID),
			zap.String("message", resp.Message))
		return "", ErrGatewayInit
	}

	ps.appendEvent(ctx, order, models.PaymentEventInitOK, raw)
	return resp.Data.AuthorizationURL, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 signature over the exact raw
// request body. The comparison is constant-time. Runs before any parsing or
// lookup; a bad signature never touches the store.
func (ps *PaymentService) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if ps.secretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(ps.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// webhookEnvelope is the provider's signed webhook shape
type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number  `json:"id"`
		Reference string       `json:"reference"`
		Status    string       `json:"status"`
		Amount    money.Amount `json:"amount"`
		Currency  string       `json:"currency"`
	} `json:"data"`
}

// HandleWebhook reconciles a signature-verified webhook body. Callers must
// have checked the signature already; this function trusts the payload the
// way the redirect path trusts a fresh verify call.
func (ps *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	var env webhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return OutcomeUnknownReference, fmt.Errorf("malformed webhook body: %w", err)
	}
	if env.Data.Reference == "" {
		return OutcomeUnknownReference, nil
	}

	eventType := models.PaymentEventWebhook + ".unknown"
	if env.Event != "" {
		eventType = models.PaymentEventWebhook + "." + env.Event
	}

	succeeded := env.Event == "charge.success" || env.Event == "transaction.success"

	return ps.Reconcile(ctx, Signal{
		Reference:     env.Data.Reference,
		EventType:     eventType,
		Succeeded:     succeeded,
		Amount:        env.Data.Amount,
		Currency:      currencyOrDefault(env.Data.Currency),
		TransactionID: env.Data.ID.String(),
		Raw:           rawBody,
	})
}

// ConfirmCallback reconciles a redirect callback. The redirect's own query
// parameters are advisory only; the outcome comes from a direct verify call
// against the provider.
func (ps *PaymentService) ConfirmCallback(ctx context.Context, reference string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmCallback")
	defer span.End()

	if !ps.Configured() {
		return "", ErrGatewayNotConfigured
	}

	start := time.Now()
	resp, raw, err := ps.gateway.Verify(ctx, reference)
	util.GatewayRequestLatency.WithLabelValues("verify").Observe(time.Since(start).Seconds())

	if err != nil {
		// Transport failure counts as a failed predicate: the order stays
		// reconcilable only through the webhook path after this.
		ps.logger.Error("Gateway verify failed",
			zap.String("reference", reference),
			zap.Error(err))
		return ps.Reconcile(ctx, Signal{
			Reference: reference,
			EventType: models.PaymentEventVerifyCallback,
			Raw:       errorPayload(err),
		})
	}

	succeeded := resp.Status && resp.Data.Status == "success"

	return ps.Reconcile(ctx, Signal{
		Reference:     reference,
		EventType:     models.PaymentEventVerifyCallback,
		Succeeded:     succeeded,
		Amount:        resp.Data.Amount,
		Currency:      currencyOrDefault(resp.Data.Currency),
		TransactionID: resp.Data.ID.String(),
		Raw:           raw,
	})
}

func (ps *PaymentService) appendEvent(ctx context.Context, order *models.Order, eventType string, payload json.RawMessage) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	event := &models.PaymentEvent{
		OrderID:   order.ID,
		Reference: order.Reference,
		EventType: eventType,
		Payload:   types.JSONText(payload),
	}
	if err := ps.store.AppendPaymentEvent(ctx, event); err != nil {
		ps.logger.Error("Failed to append payment event",
			zap.String("order_id", order.ID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return money.DefaultCurrency
	}
	return currency
}

func errorPayload(err error) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return b
}
