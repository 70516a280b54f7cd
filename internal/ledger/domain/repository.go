package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// EnsureRow inserts a zeroed row when none exists. It reports whether this call created it.
	EnsureRow(ctx context.Context, db *gorm.DB, userID int64) (bool, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*Ledger, error)
	LockByUserID(ctx context.Context, db *gorm.DB, userID int64) (*Ledger, error)
	Update(ctx context.Context, db *gorm.DB, ledger *Ledger) error
	// ClaimBonus flips bonus_granted from false to true. Only one caller ever sees true.
	ClaimBonus(ctx context.Context, db *gorm.DB, userID int64) (bool, error)
}
