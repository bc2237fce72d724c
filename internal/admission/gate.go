// Package admission gates order creation and payment initialization with
// rate limiting and fraud-velocity scoring. The counters are best-effort,
// approximate, and deliberately outside the order state machine: a rejection
// aborts the request with an audit log entry and no other side effects.
package admission

import (
	"context"
	"strings"
	"time"

	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Rejection reasons
const (
	ReasonRateLimited = "rate_limited"
	ReasonHighRisk    = "high_risk"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Counters is the shared counter store behind the gate. Implementations are
// approximate fixed-window counters, not linearizable ledgers.
type Counters interface {
	// Incr bumps a windowed counter and returns the count in the current
	// window plus the time until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Count reads a windowed counter without bumping it.
	Count(ctx context.Context, key string) (int64, error)
}

// Config holds admission thresholds.
type Config struct {
	Requests           int
	Window             time.Duration
	IPVelocityLimit    int
	EmailVelocityLimit int
	FailureLimit       int
}

// Gate consults the counter store before the core's side-effecting
// operations. Counter errors fail open: the gate must never take the
// checkout path down with it.
type Gate struct {
	counters Counters
	cfg      Config
	logger   *zap.Logger
}

// NewGate creates an admission gate over a counter store
func NewGate(counters Counters, cfg Config) *Gate {
	return &Gate{
		counters: counters,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

// AllowCheckout admits or rejects an order-creation attempt keyed by client
// IP and customer email.
func (g *Gate) AllowCheckout(ctx context.Context, ip, email string) Decision {
	if d := g.checkRate(ctx, "rl:checkout:"+ip); !d.Allowed {
		return d
	}
	return g.checkFraud(ctx, ip, email)
}

// AllowPayment admits or rejects a payment-initialization attempt keyed by
// client IP.
func (g *Gate) AllowPayment(ctx context.Context, ip string) Decision {
	return g.checkRate(ctx, "rl:pay:"+ip)
}

// RecordFailure feeds the fraud failure counter after a failed
// reconciliation for the customer's email.
func (g *Gate) RecordFailure(ctx context.Context, email string) {
	key := "fv:fail:" + normalizeEmail(email)
	if _, _, err := g.counters.Incr(ctx, key, time.Hour); err != nil {
		g.logger.Warn("Failed to record payment failure signal", zap.Error(err))
	}
}

func (g *Gate) checkRate(ctx context.Context, key string) Decision {
	count, ttl, err := g.counters.Incr(ctx, key, g.cfg.Window)
	if err != nil {
		g.logger.Warn("Admission counter unavailable, failing open",
			zap.String("key", key), zap.Error(err))
		return Decision{Allowed: true}
	}

	if count > int64(g.cfg.Requests) {
		util.AdmissionRejectedTotal.WithLabelValues(ReasonRateLimited).Inc()
		g.logger.Info("Request rate limited",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Duration("retry_after", ttl))
		return Decision{Reason: ReasonRateLimited, RetryAfter: ttl}
	}

	return Decision{Allowed: true}
}

func (g *Gate) checkFraud(ctx context.Context, ip, email string) Decision {
	emailKey := normalizeEmail(email)

	ipVelocity, _, err := g.counters.Incr(ctx, "fv:ip:"+ip, time.Minute)
	if err != nil {
		g.logger.Warn("Fraud counter unavailable, failing open", zap.Error(err))
		return Decision{Allowed: true}
	}

	emailVelocity, _, err := g.counters.Incr(ctx, "fv:email:"+emailKey, time.Hour)
	if err != nil {
		g.logger.Warn("Fraud counter unavailable, failing open", zap.Error(err))
		return Decision{Allowed: true}
	}

	failures, err := g.counters.Count(ctx, "fv:fail:"+emailKey)
	if err != nil {
		failures = 0
	}

	highRisk := ipVelocity > int64(g.cfg.IPVelocityLimit) ||
		emailVelocity > int64(g.cfg.EmailVelocityLimit) ||
		failures > int64(g.cfg.FailureLimit)

	if highRisk {
		util.AdmissionRejectedTotal.WithLabelValues(ReasonHighRisk).Inc()
		// Full signal detail stays server-side; callers only see the reason.
		g.logger.Warn("High-risk checkout rejected",
			zap.String("ip", ip),
			zap.String("email_prefix", emailPrefix(emailKey)),
			zap.Int64("ip_velocity", ipVelocity),
			zap.Int64("email_velocity", emailVelocity),
			zap.Int64("failures", failures))
		return Decision{Reason: ReasonHighRisk}
	}

	return Decision{Allowed: true}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailPrefix(email string) string {
	if len(email) <= 5 {
		return email
	}
	return email[:5] + "***"
}
