package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockBucket struct {
	mock.Mock
}

func (m *mockBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	args := m.Called(ctx, key, rate, burst)
	return args.Get(0).(Result), args.Error(1)
}

func TestTapLimiterAllows(t *testing.T) {
	bucket := &mockBucket{}
	bucket.On("Allow", mock.Anything, "tapcoin:tap:user:42", 20.0, 40).
		Return(Result{Allowed: true, Limit: 40, Remaining: 39}, nil).Once()

	limiter := NewTapLimiterWithBucket(bucket, 20, 40, zap.NewNop(), nil)
	allowed, wait := limiter.Allow(context.Background(), 42)
	assert.True(t, allowed)
	assert.Zero(t, wait)
	bucket.AssertExpectations(t)
}

func TestTapLimiterDenies(t *testing.T) {
	bucket := &mockBucket{}
	bucket.On("Allow", mock.Anything, "tapcoin:tap:user:7", 20.0, 40).
		Return(Result{Allowed: false, Limit: 40, RetryAfter: 50 * time.Millisecond}, nil)

	limiter := NewTapLimiterWithBucket(bucket, 20, 40, zap.NewNop(), nil)
	allowed, wait := limiter.Allow(context.Background(), 7)
	assert.False(t, allowed)
	assert.Equal(t, 50*time.Millisecond, wait)
}

func TestTapLimiterFailsOpen(t *testing.T) {
	bucket := &mockBucket{}
	bucket.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(Result{}, errors.New("connection refused"))

	limiter := NewTapLimiterWithBucket(bucket, 20, 40, zap.NewNop(), nil)
	allowed, _ := limiter.Allow(context.Background(), 1)
	assert.True(t, allowed)
}

func TestTapLimiterDisabled(t *testing.T) {
	var nilLimiter *TapLimiter
	allowed, _ := nilLimiter.Allow(context.Background(), 1)
	assert.True(t, allowed)

	noBucket := NewTapLimiterWithBucket(nil, 20, 40, zap.NewNop(), nil)
	assert.False(t, noBucket.Enabled())

	zeroRate := NewTapLimiterWithBucket(&mockBucket{}, 0, 40, zap.NewNop(), nil)
	assert.False(t, zeroRate.Enabled())
	allowed, _ = zeroRate.Allow(context.Background(), 1)
	assert.True(t, allowed)
}

func TestBucketResult(t *testing.T) {
	res := bucketResult(true, 12.7, 10, 40)
	assert.True(t, res.Allowed)
	assert.Equal(t, 12, res.Remaining)
	assert.Zero(t, res.RetryAfter)

	res = bucketResult(false, 0.5, 10, 40)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 50*time.Millisecond, res.RetryAfter)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 8*time.Second, defaultBucketTTL(10, 40))
	assert.Equal(t, time.Second, defaultBucketTTL(1000, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
}

func TestCasts(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(3), castToInt("3"))
	assert.Equal(t, int64(0), castToInt(nil))
	assert.InDelta(t, 2.5, castToFloat("2.5"), 1e-9)
	assert.InDelta(t, 4.0, castToFloat(int64(4)), 1e-9)
	assert.Zero(t, castToFloat("nan-ish"))
}

func TestUnconfiguredRedisHelpers(t *testing.T) {
	assert.Nil(t, NewTokenBucket(nil))

	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	require.ErrorIs(t, err, ErrBucketNotConfigured)
}
