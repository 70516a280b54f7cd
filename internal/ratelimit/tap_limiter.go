package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyTapUser = "tapcoin:tap:user:%d"

const ReasonTapRate = "tap-rate"

// Bucket is the subset of TokenBucket the tap limiter depends on.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

type TapLimiterParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Bucket  *TokenBucket     `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// TapLimiter throttles taps per user. It fails open: a Redis error never
// blocks a tap, it is only logged.
type TapLimiter struct {
	bucket  Bucket
	log     *zap.Logger
	metrics *metrics.Metrics
	rate    float64
	burst   int
}

func NewTapLimiter(p TapLimiterParams) *TapLimiter {
	var bucket Bucket
	if p.Bucket != nil {
		bucket = p.Bucket
	}
	return newTapLimiter(bucket, p.Cfg.Redis, p.Log, p.Metrics)
}

func newTapLimiter(bucket Bucket, cfg config.RedisConfig, log *zap.Logger, m *metrics.Metrics) *TapLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &TapLimiter{
		bucket:  bucket,
		log:     log.Named("ratelimit.tap"),
		metrics: m,
		rate:    cfg.TapRate,
		burst:   cfg.TapBurst,
	}
}

// NewTapLimiterWithBucket builds a limiter over any Bucket implementation.
func NewTapLimiterWithBucket(bucket Bucket, rate float64, burst int, log *zap.Logger, m *metrics.Metrics) *TapLimiter {
	return newTapLimiter(bucket, config.RedisConfig{TapRate: rate, TapBurst: burst}, log, m)
}

func (l *TapLimiter) Enabled() bool {
	return l != nil && l.bucket != nil && l.rate > 0 && l.burst > 0
}

// Allow reports whether userID may tap now and, when denied, how long to wait.
func (l *TapLimiter) Allow(ctx context.Context, userID int64) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyTapUser, userID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("tap rate limit check failed, allowing", zap.Int64("user_id", userID), zap.Error(err))
		return true, 0
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, "/api/tap", ReasonTapRate)
		return false, res.RetryAfter
	}
	return true, 0
}
