package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/clock"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"github.com/smallbiznis/tapcoin/internal/ledger/repository"
	"github.com/smallbiznis/tapcoin/internal/ledger/service"
	"github.com/smallbiznis/tapcoin/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rewards() config.RewardConfig {
	return config.RewardConfig{
		BaseTapReward: decimal.RequireFromString("0.0001"),
		WelcomeTaps:   10000,
		WelcomeReward: decimal.RequireFromString("0.0001"),
		WelcomeCap:    decimal.NewFromInt(1),
	}
}

func newService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	clk := clock.NewFakeClock(start)
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Cfg:   config.Config{Rewards: rewards()},
		Repo:  repository.Provide(),
	})
	return svc, db, clk
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestEnsureGrantsWelcomeBonusOnce(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Ensure(ctx, 42)
	require.NoError(t, err)
	second, err := svc.Ensure(ctx, 42)
	require.NoError(t, err)

	for _, snap := range []domain.Snapshot{first, second} {
		assert.True(t, snap.BonusGranted)
		assert.Equal(t, int64(10000), snap.FreeTapsRemaining)
		assertDecimal(t, "0.0001", snap.TapReward)
		assertDecimal(t, "1", snap.EarnCapRemaining)
		assertDecimal(t, "0", snap.Balance)
	}
}

func TestEnsureConcurrentCallsGrantWelcomeExactlyOnce(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Ensure(ctx, 7); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), snap.FreeTapsRemaining)
	assertDecimal(t, "1", snap.EarnCapRemaining)
}

func TestWelcomeKeepsExistingRate(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(
		`INSERT INTO ledgers (user_id, balance, free_taps_remaining, package_taps_remaining, tap_reward, earn_cap_remaining, taps_total, bonus_granted, created_at, updated_at)
		 VALUES (?, 0, 0, 5, ?, ?, 0, ?, ?, ?)`,
		9, "0.0003", "2", false, start, start,
	).Error)

	snap, err := svc.Ensure(ctx, 9)
	require.NoError(t, err)
	assertDecimal(t, "0.0003", snap.TapReward)
	assertDecimal(t, "3", snap.EarnCapRemaining)
	assert.Equal(t, int64(10000), snap.FreeTapsRemaining)
}

func TestTapSpendsFreeTapsFirst(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Tap(ctx, 100)
	require.NoError(t, err)

	assert.Equal(t, domain.TierFree, res.Tier)
	assertDecimal(t, "0.0001", res.Earned)
	assertDecimal(t, "0.0001", res.Balance)
	assert.Equal(t, int64(9999), res.FreeTaps)
	assert.Equal(t, int64(9999), res.TapsRemaining)
	assert.Equal(t, int64(1), res.TapsTotal)
}

func TestTapEnforcesEarnCap(t *testing.T) {
	svc, db, clk := newService(t)
	ctx := context.Background()

	_, err := svc.Ensure(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		`UPDATE ledgers SET free_taps_remaining = 0, package_taps_remaining = 10, tap_reward = ?, earn_cap_remaining = ?, package_expires_at = ? WHERE user_id = ?`,
		"0.0002", "0.0005", clk.Now().Add(24*time.Hour), 5,
	).Error)

	expected := []struct {
		tier   domain.Tier
		earned string
		cap    string
	}{
		{domain.TierPackage, "0.0002", "0.0003"},
		{domain.TierPackage, "0.0002", "0.0001"},
		{domain.TierPackage, "0.0001", "0"},
		{domain.TierTrickle, "0.0001", "0"},
	}

	for i, want := range expected {
		res, err := svc.Tap(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, want.tier, res.Tier, "tap %d", i+1)
		assertDecimal(t, want.earned, res.Earned)
		assertDecimal(t, want.cap, res.EarnCapRemaining)
	}

	snap, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assertDecimal(t, "0.0006", snap.Balance)
	assert.Equal(t, int64(7), snap.PackageTapsRemaining)
	assert.Equal(t, int64(4), snap.TapsTotal)
}

func TestTapBalanceIsMonotonic(t *testing.T) {
	svc, db, clk := newService(t)
	ctx := context.Background()

	_, err := svc.Ensure(ctx, 11)
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		`UPDATE ledgers SET free_taps_remaining = 3, package_taps_remaining = 3, tap_reward = ?, earn_cap_remaining = ?, package_expires_at = ? WHERE user_id = ?`,
		"0.0003", "0.0007", clk.Now().Add(time.Hour), 11,
	).Error)

	prev := decimal.Zero
	var total int64
	for i := 0; i < 12; i++ {
		res, err := svc.Tap(ctx, 11)
		require.NoError(t, err)
		assert.True(t, res.Balance.GreaterThanOrEqual(prev), "balance went down at tap %d", i+1)
		assert.True(t, res.Earned.IsPositive())
		assert.False(t, res.EarnCapRemaining.IsNegative())
		assert.GreaterOrEqual(t, res.FreeTaps, int64(0))
		assert.GreaterOrEqual(t, res.PackageTaps, int64(0))
		assert.Equal(t, total+1, res.TapsTotal)
		prev = res.Balance
		total = res.TapsTotal
	}
}

func TestCreditPackageStacksAndExtendsExpiry(t *testing.T) {
	svc, db, clk := newService(t)
	ctx := context.Background()
	pkg, ok := catalog.Default().Get(1)
	require.True(t, ok)

	_, err := svc.Ensure(ctx, 21)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := svc.CreditPackage(ctx, tx, 21, pkg)
			return err
		})
		require.NoError(t, err)
	}

	snap, err := svc.Get(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), snap.PackageTapsRemaining)
	assertDecimal(t, "0.0002", snap.TapReward)
	assertDecimal(t, "41", snap.EarnCapRemaining)
	require.NotNil(t, snap.PackageID)
	assert.Equal(t, int64(1), *snap.PackageID)
	require.NotNil(t, snap.PackageExpiresAt)
	assert.True(t, clk.Now().Add(60*24*time.Hour).Equal(*snap.PackageExpiresAt), "expires %s", snap.PackageExpiresAt)
	assertDecimal(t, "0", snap.Balance)
}

func TestExpiredPackageFallsBackToTrickle(t *testing.T) {
	svc, db, clk := newService(t)
	ctx := context.Background()
	pkg, _ := catalog.Default().Get(3)

	_, err := svc.Ensure(ctx, 31)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`UPDATE ledgers SET free_taps_remaining = 0 WHERE user_id = ?`, 31).Error)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.CreditPackage(ctx, tx, 31, pkg)
		return err
	}))

	res, err := svc.Tap(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPackage, res.Tier)
	assertDecimal(t, "0.0003", res.Earned)

	clk.Advance(31 * 24 * time.Hour)

	res, err = svc.Tap(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, domain.TierTrickle, res.Tier)
	assertDecimal(t, "0.0001", res.Earned)
	assert.Equal(t, pkg.TapsGranted-1, res.PackageTaps)
}

func TestInvalidUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Tap(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
	_, err = svc.Ensure(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestGetUnknownUser(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
