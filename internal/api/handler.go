package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/admission"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const webhookSignatureHeader = "x-paystack-signature"

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	gate           *admission.Gate
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, paymentService *service.PaymentService, gate *admission.Gate) *Handler {
	return &Handler{
		orderService:   orderService,
		paymentService: paymentService,
		gate:           gate,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/products", h.listProducts)
	router.POST("/checkout/create-order", h.createOrder)
	router.POST("/payments/initialize", h.initializePayment)
	router.GET("/payments/callback", h.paymentCallback)
	router.POST("/payments/webhook", h.paymentWebhook)
	router.GET("/orders/:id", h.getOrder)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// listProducts handles the read-only catalog query. Unknown collection
// values return an empty list, never an error.
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.orderService.ListProducts(c.Request.Context(), c.Query("collection"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}

	c.Header("Cache-Control", "public, s-maxage=3600, stale-while-revalidate=86400")
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if d := h.gate.AllowCheckout(c.Request.Context(), c.ClientIP(), req.Email); !d.Allowed {
		h.rejectAdmission(c, d)
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// initializePayment creates a hosted checkout session for an order
func (h *Handler) initializePayment(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if d := h.gate.AllowPayment(c.Request.Context(), c.ClientIP()); !d.Allowed {
		h.rejectAdmission(c, d)
		return
	}

	authorizationURL, err := h.paymentService.InitializePayment(c.Request.Context(), req.OrderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorizationUrl": authorizationURL})
}

// paymentCallback handles the browser redirect from the hosted checkout.
// It always redirects; a browser never sees a JSON error here.
func (h *Handler) paymentCallback(c *gin.Context) {
	failedURL := h.paymentService.AppBaseURL() + "/order/failed"
	successURL := h.paymentService.AppBaseURL() + "/order/success"

	reference := c.Query("reference")
	if reference == "" || !h.paymentService.Configured() {
		c.Redirect(http.StatusSeeOther, failedURL)
		return
	}

	outcome, err := h.paymentService.ConfirmCallback(c.Request.Context(), reference)
	if err != nil {
		h.logger.Error("Callback reconciliation error",
			zap.String("reference", reference),
			zap.Error(err))
		c.Redirect(http.StatusSeeOther, failedURL)
		return
	}

	switch outcome {
	case service.OutcomePaid, service.OutcomeAlreadyPaid:
		c.Redirect(http.StatusSeeOther, successURL)
	default:
		c.Redirect(http.StatusSeeOther, failedURL)
	}
}

// paymentWebhook handles the provider's server-to-server event. The
// signature check runs on the exact raw bytes before anything else; after
// that the response is always 200 so provider retries are driven by
// delivery, not by our internal outcomes.
func (h *Handler) paymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	if !h.paymentService.VerifyWebhookSignature(rawBody, c.GetHeader(webhookSignatureHeader)) {
		util.WebhookSignatureFailures.Inc()
		h.logger.Warn("Webhook signature mismatch", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	outcome, err := h.paymentService.HandleWebhook(c.Request.Context(), rawBody)
	if err != nil {
		// Signal is durably logged where possible; never trigger provider
		// retries for internal failures.
		h.logger.Error("Webhook reconciliation error", zap.Error(err))
	} else {
		h.logger.Info("Webhook processed", zap.String("outcome", string(outcome)))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) rejectAdmission(c *gin.Context, d admission.Decision) {
	switch d.Reason {
	case admission.ReasonRateLimited:
		retryAfter := int(d.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Request rejected"})
	}
}

// respondError maps service errors to HTTP statuses without leaking
// internals or provider detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	var dErr *service.DomainError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.As(err, &dErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": dErr.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrOrderNotPayable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is not payable"})
	case errors.Is(err, service.ErrGatewayInit):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment could not be initialized"})
	case errors.Is(err, service.ErrGatewayNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payments are not configured"})
	default:
		h.logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed. Please try again."})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
