package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/ledger/domain"
)

// applyTap spends one tap from the first tier that can pay for it:
// welcome taps, then active package taps bounded by the cap pool, then the trickle rate.
// The row is mutated in place.
func applyTap(row *domain.Ledger, baseReward decimal.Decimal, now time.Time) (domain.Tier, decimal.Decimal, int64) {
	var (
		tier      domain.Tier
		earned    decimal.Decimal
		remaining int64
	)

	switch {
	case row.FreeTapsRemaining > 0:
		tier = domain.TierFree
		earned = baseReward
		row.FreeTapsRemaining--
		remaining = row.FreeTapsRemaining
	case packageTapAvailable(row, now):
		tier = domain.TierPackage
		earned = decimal.Min(row.TapReward, row.EarnCapRemaining)
		row.PackageTapsRemaining--
		row.EarnCapRemaining = row.EarnCapRemaining.Sub(earned)
		if row.EarnCapRemaining.IsNegative() {
			row.EarnCapRemaining = decimal.Zero
		}
		remaining = row.PackageTapsRemaining
	default:
		tier = domain.TierTrickle
		earned = baseReward
	}

	row.Balance = row.Balance.Add(earned)
	row.TapsTotal++
	return tier, earned, remaining
}

func packageTapAvailable(row *domain.Ledger, now time.Time) bool {
	return row.PackageTapsRemaining > 0 &&
		row.EarnCapRemaining.IsPositive() &&
		row.TapReward.IsPositive() &&
		row.PackageActive(now)
}

// applyPackage credits a purchased package. Expiry extends from the later of now and the current expiry.
func applyPackage(row *domain.Ledger, pkg catalog.Package, now time.Time) {
	row.PackageTapsRemaining += pkg.TapsGranted
	row.TapReward = pkg.RewardRate
	row.EarnCapRemaining = row.EarnCapRemaining.Add(pkg.CapAmount)

	id := pkg.ID
	row.PackageID = &id

	start := now
	if row.PackageExpiresAt != nil && row.PackageExpiresAt.After(now) {
		start = *row.PackageExpiresAt
	}
	expires := start.Add(pkg.Duration).UTC()
	row.PackageExpiresAt = &expires
}

// applyWelcome credits the one-time welcome allotment. The rate is only set when none exists yet.
func applyWelcome(row *domain.Ledger, taps int64, reward, capAmount decimal.Decimal) {
	row.FreeTapsRemaining += taps
	if row.TapReward.IsZero() {
		row.TapReward = reward
	}
	row.EarnCapRemaining = row.EarnCapRemaining.Add(capAmount)
}

func toSnapshot(row *domain.Ledger, now time.Time) domain.Snapshot {
	return domain.Snapshot{
		UserID:               row.UserID,
		Balance:              row.Balance,
		FreeTapsRemaining:    row.FreeTapsRemaining,
		PackageTapsRemaining: row.PackageTapsRemaining,
		TapReward:            row.TapReward,
		EarnCapRemaining:     row.EarnCapRemaining,
		TapsTotal:            row.TapsTotal,
		PackageID:            row.PackageID,
		PackageExpiresAt:     row.PackageExpiresAt,
		PackageActive:        row.PackageID != nil && row.PackageTapsRemaining > 0 && row.PackageActive(now),
		BonusGranted:         row.BonusGranted,
	}
}
