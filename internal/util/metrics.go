package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersCreateFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_create_failed_total",
		Help: "Total number of rejected order creation attempts",
	}, []string{"reason"})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders transitioned to PAID",
	})

	OrdersFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of orders transitioned to FAILED",
	})

	PaymentInitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_init_total",
		Help: "Total number of payment initialization attempts",
	})

	PaymentInitFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_init_failed_total",
		Help: "Total number of failed payment initializations",
	})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciliation outcomes by kind",
	}, []string{"outcome"})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of webhook requests rejected for bad signatures",
	})

	AdmissionRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_rejected_total",
		Help: "Total number of requests rejected by the admission gate",
	}, []string{"reason"})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of calls to the payment gateway",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	InventorySettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_settled_total",
		Help: "Total number of line items settled against inventory after payment",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
