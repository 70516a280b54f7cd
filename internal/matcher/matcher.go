// Package matcher finds the on-chain transfer that pays a pending invoice.
package matcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/chainfeed"
	claimdomain "github.com/smallbiznis/tapcoin/internal/claim/domain"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Match is the transfer selected for an invoice.
type Match struct {
	Transfer chainfeed.Transfer
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Feed    chainfeed.Feed
	Claims  claimdomain.Repository
	Policy  Policy           `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Matcher struct {
	db         *gorm.DB
	log        *zap.Logger
	feed       chainfeed.Feed
	claims     claimdomain.Repository
	policy     Policy
	metrics    *metrics.Metrics
	timeSlop   time.Duration
	maxOverpay decimal.Decimal
}

func New(p Params) *Matcher {
	policy := p.Policy
	if policy == nil {
		policy = NewestFirst{}
	}
	return &Matcher{
		db:         p.DB,
		log:        p.Log.Named("matcher"),
		feed:       p.Feed,
		claims:     p.Claims,
		policy:     policy,
		metrics:    p.Metrics,
		timeSlop:   p.Cfg.Tron.TimeSlop,
		maxOverpay: p.Cfg.Tron.MaxOverpay,
	}
}

// Find returns the first unclaimed transfer, in policy order, that could pay
// basePrice for an invoice created at createdAt. A transfer qualifies when it
// is no older than createdAt minus the time slop and its amount lies in
// [basePrice, basePrice+maxOverpay]. Feed failures are reported as no match.
func (m *Matcher) Find(ctx context.Context, basePrice decimal.Decimal, createdAt time.Time) (Match, bool, error) {
	transfers, err := m.feed.Recent(ctx)
	if err != nil {
		reason := chainfeed.Reason(err)
		m.metrics.RecordFeedError(ctx, reason)
		if reason == "not_configured" {
			m.log.Debug("chain feed not configured")
		} else {
			m.log.Warn("chain feed unavailable", zap.String("reason", reason), zap.Error(err))
		}
		return Match{}, false, nil
	}

	candidates := m.window(transfers, basePrice, createdAt)
	if len(candidates) == 0 {
		return Match{}, false, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.TxID)
	}
	claimed, err := m.claims.ClaimedAmong(ctx, m.db, ids)
	if err != nil {
		return Match{}, false, err
	}

	for _, candidate := range m.policy.Order(candidates) {
		if _, taken := claimed[candidate.TxID]; taken {
			continue
		}
		m.log.Info("transfer matched",
			zap.String("tx_id", candidate.TxID),
			zap.String("amount", candidate.Amount.String()),
			zap.Int64("block_timestamp", candidate.BlockTimestamp),
			zap.String("policy", m.policy.Name()),
		)
		return Match{Transfer: candidate}, true, nil
	}
	return Match{}, false, nil
}

func (m *Matcher) window(transfers []chainfeed.Transfer, basePrice decimal.Decimal, createdAt time.Time) []chainfeed.Transfer {
	minTime := createdAt.Add(-m.timeSlop).Unix()
	maxAmount := basePrice.Add(m.maxOverpay)

	out := make([]chainfeed.Transfer, 0, len(transfers))
	for _, t := range transfers {
		if t.BlockTimestamp < minTime {
			continue
		}
		if t.Amount.LessThan(basePrice) || t.Amount.GreaterThan(maxAmount) {
			continue
		}
		out = append(out, t)
	}
	return out
}
