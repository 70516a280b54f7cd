package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
)

func TestApplyTapReducedFinalIncrement(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	row := &domain.Ledger{
		PackageTapsRemaining: 5,
		TapReward:            decimal.RequireFromString("0.0003"),
		EarnCapRemaining:     decimal.RequireFromString("0.0001"),
		PackageExpiresAt:     &expires,
	}

	tier, earned, remaining := applyTap(row, decimal.RequireFromString("0.0001"), now)

	assert.Equal(t, domain.TierPackage, tier)
	assert.Equal(t, "0.0001", earned.String())
	assert.Equal(t, int64(4), remaining)
	assert.True(t, row.EarnCapRemaining.IsZero())
}

func TestApplyTapWithoutRateTrickles(t *testing.T) {
	row := &domain.Ledger{
		PackageTapsRemaining: 5,
		EarnCapRemaining:     decimal.NewFromInt(1),
	}
	tier, _, _ := applyTap(row, decimal.RequireFromString("0.0001"), time.Now())
	assert.Equal(t, domain.TierTrickle, tier)
	assert.Equal(t, int64(5), row.PackageTapsRemaining)
}

func TestApplyPackageExtendsFromLaterOfNowAndExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pkg := catalog.Package{ID: 2, TapsGranted: 10, RewardRate: decimal.RequireFromString("0.00025"), CapAmount: decimal.NewFromInt(125), Duration: 48 * time.Hour}

	lapsed := now.Add(-time.Hour)
	row := &domain.Ledger{PackageExpiresAt: &lapsed}
	applyPackage(row, pkg, now)
	assert.True(t, now.Add(48*time.Hour).Equal(*row.PackageExpiresAt))

	applyPackage(row, pkg, now)
	assert.True(t, now.Add(96*time.Hour).Equal(*row.PackageExpiresAt))
	assert.Equal(t, int64(20), row.PackageTapsRemaining)
	assert.Equal(t, "250", row.EarnCapRemaining.String())
}
