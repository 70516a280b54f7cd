package server

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"github.com/smallbiznis/tapcoin/internal/observability/logger"
	"github.com/smallbiznis/tapcoin/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	contextUserIDKey  = logger.KeyUserID
	contextTapUserKey = "tap_user_id"
)

// TapRateLimit binds the tap body once and throttles per user before the
// ledger is touched.
func (s *Server) TapRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		if req.UserID <= 0 {
			AbortWithError(c, ledgerdomain.ErrInvalidUser)
			return
		}
		c.Set(contextTapUserKey, req.UserID)
		c.Set(contextUserIDKey, strconv.FormatInt(req.UserID, 10))

		allowed, retryAfter := s.tapLimiter.Allow(c.Request.Context(), req.UserID)
		if !allowed {
			logger.FromContext(c.Request.Context()).Debug("tap rate limit exceeded",
				zap.Int64("user_id", req.UserID),
				zap.Duration("retry_after", retryAfter),
			)
			c.Header("Retry-After", retryAfterHeader(retryAfter))
			c.Header("X-Rate-Limited-Reason", ratelimit.ReasonTapRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func retryAfterHeader(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
