package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"gorm.io/gorm"
)

// Snapshot is the read model of a ledger row.
type Snapshot struct {
	UserID               int64           `json:"user_id"`
	Balance              decimal.Decimal `json:"balance"`
	FreeTapsRemaining    int64           `json:"free_taps_remaining"`
	PackageTapsRemaining int64           `json:"package_taps_remaining"`
	TapReward            decimal.Decimal `json:"tap_reward"`
	EarnCapRemaining     decimal.Decimal `json:"earn_cap_remaining"`
	TapsTotal            int64           `json:"taps_total"`
	PackageID            *int64          `json:"package_id,omitempty"`
	PackageExpiresAt     *time.Time      `json:"package_expires_at,omitempty"`
	PackageActive        bool            `json:"package_active"`
	BonusGranted         bool            `json:"bonus_granted"`
}

// TapResult describes one processed tap.
type TapResult struct {
	Balance          decimal.Decimal `json:"balance"`
	Earned           decimal.Decimal `json:"earned"`
	Tier             Tier            `json:"tier"`
	TapsRemaining    int64           `json:"taps_remaining"`
	RewardRate       decimal.Decimal `json:"reward_rate"`
	EarnCapRemaining decimal.Decimal `json:"earn_cap_remaining"`
	FreeTaps         int64           `json:"free_taps"`
	PackageTaps      int64           `json:"package_taps"`
	TapsTotal        int64           `json:"taps_total"`
}

type Service interface {
	// Ensure creates the ledger row on first contact and grants the welcome bonus exactly once.
	Ensure(ctx context.Context, userID int64) (Snapshot, error)
	Get(ctx context.Context, userID int64) (Snapshot, error)
	Tap(ctx context.Context, userID int64) (TapResult, error)
	// CreditPackage applies a purchased package inside the caller's transaction.
	CreditPackage(ctx context.Context, tx *gorm.DB, userID int64, pkg catalog.Package) (Snapshot, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrNotFound    = errors.New("ledger_not_found")
)
