package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGateway fails every call and records how many were made.
type countingGateway struct {
	calls int
}

func (g *countingGateway) Initialize(context.Context, *gateway.InitializeRequest) (*gateway.InitializeResponse, json.RawMessage, error) {
	g.calls++
	return nil, nil, fmt.Errorf("unexpected gateway call")
}

func (g *countingGateway) Verify(context.Context, string) (*gateway.VerifyResponse, json.RawMessage, error) {
	g.calls++
	return nil, nil, fmt.Errorf("unexpected gateway call")
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestInitializePaymentRejectsSettledOrder(t *testing.T) {
	fs := newFakeStore()
	order := pendingOrder(5000)
	order.Status = models.OrderStatusPaid
	fs.addOrder(order)

	gw := &countingGateway{}
	ps := NewPaymentService(fs, gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	_, err := ps.InitializePayment(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrOrderNotPayable)
	assert.Equal(t, 0, gw.calls)
	assert.Equal(t, 0, fs.eventCount())
}

func TestInitializePaymentUnknownOrder(t *testing.T) {
	gw := &countingGateway{}
	ps := NewPaymentService(newFakeStore(), gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	_, err := ps.InitializePayment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 0, gw.calls)
}

func TestInitializePaymentNotConfigured(t *testing.T) {
	ps := NewPaymentService(newFakeStore(), &countingGateway{}, &recordingPublisher{}, nil, "", "")
	_, err := ps.InitializePayment(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
}

func TestInitializePaymentSuccess(t *testing.T) {
	var gotAuth string
	var gotReq gateway.InitializeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.example.com/abc","access_code":"abc","reference":"ST_ref1"}}`)
	}))
	defer srv.Close()

	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	gw := gateway.NewClient(srv.URL, "sk_test_secret")
	ps := NewPaymentService(fs, gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	authURL, err := ps.InitializePayment(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/abc", authURL)

	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	assert.Equal(t, "buyer@example.com", gotReq.Email)
	assert.Equal(t, money.Amount(5000), gotReq.Amount)
	assert.Equal(t, "ST_ref1", gotReq.Reference)
	assert.Equal(t, "https://shop.example.com/payments/callback", gotReq.CallbackURL)
	assert.Equal(t, []string{models.PaymentEventInitOK}, fs.eventTypes())
}

func TestInitializePaymentGatewayDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":false,"message":"Invalid amount"}`)
	}))
	defer srv.Close()

	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	gw := gateway.NewClient(srv.URL, "sk_test_secret")
	ps := NewPaymentService(fs, gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	_, err := ps.InitializePayment(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrGatewayInit)
	assert.Equal(t, []string{models.PaymentEventInitFailed}, fs.eventTypes())
}

func TestInitializePaymentGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	gw := gateway.NewClient(srv.URL, "sk_test_secret")
	ps := NewPaymentService(fs, gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	_, err := ps.InitializePayment(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrGatewayInit)
	assert.Equal(t, []string{models.PaymentEventInitFailed}, fs.eventTypes())
}

func TestVerifyWebhookSignature(t *testing.T) {
	ps := newPaymentService(newFakeStore(), &recordingPublisher{})
	body := []byte(`{"event":"charge.success"}`)

	assert.True(t, ps.VerifyWebhookSignature(body, signBody("sk_test_secret", body)))
	assert.False(t, ps.VerifyWebhookSignature(body, signBody("sk_wrong_secret", body)))
	assert.False(t, ps.VerifyWebhookSignature(body, ""))

	tampered := []byte(`{"event":"charge.success","data":{}}`)
	assert.False(t, ps.VerifyWebhookSignature(tampered, signBody("sk_test_secret", body)))
}

func TestHandleWebhookSuccessPaysOrder(t *testing.T) {
	fs := newFakeStore()
	fs.addOrder(pendingOrder(10_200_000))
	pub := &recordingPublisher{}
	ps := newPaymentService(fs, pub)

	body := []byte(`{"event":"charge.success","data":{"id":12345,"reference":"ST_ref1","status":"success","amount":10200000,"currency":"NGN"}}`)

	outcome, err := ps.HandleWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)

	got := fs.orderByID("order-1")
	assert.Equal(t, models.OrderStatusPaid, got.Status)
	assert.Equal(t, "12345", got.TransactionID.String)
	assert.Equal(t, []string{"gateway.webhook.charge.success"}, fs.eventTypes())
	assert.Equal(t, 1, pub.paidCount())
}

func TestHandleWebhookNonSuccessEventFails(t *testing.T) {
	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	ps := newPaymentService(fs, &recordingPublisher{})

	body := []byte(`{"event":"charge.failed","data":{"reference":"ST_ref1","status":"failed","amount":5000,"currency":"NGN"}}`)

	outcome, err := ps.HandleWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.OrderStatusFailed, fs.orderByID("order-1").Status)
	assert.Equal(t, []string{"gateway.webhook.charge.failed"}, fs.eventTypes())
}

func TestHandleWebhookMalformedBody(t *testing.T) {
	ps := newPaymentService(newFakeStore(), &recordingPublisher{})
	_, err := ps.HandleWebhook(context.Background(), []byte(`not json`))
	assert.Error(t, err)
}

func TestHandleWebhookMissingReference(t *testing.T) {
	fs := newFakeStore()
	ps := newPaymentService(fs, &recordingPublisher{})

	outcome, err := ps.HandleWebhook(context.Background(), []byte(`{"event":"charge.success","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownReference, outcome)
	assert.Equal(t, 0, fs.eventCount())
}

func TestConfirmCallbackVerifiesWithGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/transaction/verify/"))
		require.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"id":777,"status":"success","amount":5000,"currency":"NGN"}}`)
	}))
	defer srv.Close()

	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	pub := &recordingPublisher{}
	gw := gateway.NewClient(srv.URL, "sk_test_secret")
	ps := NewPaymentService(fs, gw, pub, nil, "sk_test_secret", "https://shop.example.com")

	outcome, err := ps.ConfirmCallback(context.Background(), "ST_ref1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)
	assert.Equal(t, "777", fs.orderByID("order-1").TransactionID.String)
	assert.Equal(t, []string{models.PaymentEventVerifyCallback}, fs.eventTypes())
}

func TestConfirmCallbackAmountMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":true,"data":{"id":777,"status":"success","amount":4999,"currency":"NGN"}}`)
	}))
	defer srv.Close()

	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	gw := gateway.NewClient(srv.URL, "sk_test_secret")
	ps := NewPaymentService(fs, gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	outcome, err := ps.ConfirmCallback(context.Background(), "ST_ref1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.OrderStatusFailed, fs.orderByID("order-1").Status)
}

func TestConfirmCallbackTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	fs := newFakeStore()
	fs.addOrder(pendingOrder(5000))
	gw := gateway.NewClient(srv.URL, "sk_test_secret")
	ps := NewPaymentService(fs, gw, &recordingPublisher{}, nil, "sk_test_secret", "https://shop.example.com")

	// An unverifiable callback is a failed verification, not an HTTP error.
	outcome, err := ps.ConfirmCallback(context.Background(), "ST_ref1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.OrderStatusFailed, fs.orderByID("order-1").Status)
}
