package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the per-user reward row. Balance only grows, and only through taps.
type Ledger struct {
	UserID               int64           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Balance              decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"balance"`
	FreeTapsRemaining    int64           `gorm:"not null;default:0" json:"free_taps_remaining"`
	PackageTapsRemaining int64           `gorm:"not null;default:0" json:"package_taps_remaining"`
	TapReward            decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"tap_reward"`
	EarnCapRemaining     decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"earn_cap_remaining"`
	TapsTotal            int64           `gorm:"not null;default:0" json:"taps_total"`
	PackageID            *int64          `json:"package_id,omitempty"`
	PackageExpiresAt     *time.Time      `json:"package_expires_at,omitempty"`
	BonusGranted         bool            `gorm:"not null;default:false" json:"bonus_granted"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (Ledger) TableName() string { return "ledgers" }

// PackageActive reports whether purchased taps may still be spent at now.
// Rows without an expiry never lapse.
func (l Ledger) PackageActive(now time.Time) bool {
	if l.PackageExpiresAt == nil {
		return true
	}
	return now.Before(*l.PackageExpiresAt)
}

type Tier string

const (
	TierFree    Tier = "free"
	TierPackage Tier = "package"
	TierTrickle Tier = "trickle"
)
