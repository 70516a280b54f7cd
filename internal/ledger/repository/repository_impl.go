package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureRow(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	now := db.NowFunc()
	row := domain.Ledger{
		UserID:           userID,
		Balance:          decimal.Zero,
		TapReward:        decimal.Zero,
		EarnCapRemaining: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.Ledger, error) {
	var row domain.Ledger
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LockByUserID reads the row with FOR UPDATE. SQLite drops the locking clause;
// its single writer connection gives the same exclusion.
func (r *repo) LockByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.Ledger, error) {
	var row domain.Ledger
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, ledger *domain.Ledger) error {
	ledger.UpdatedAt = db.NowFunc()
	return db.WithContext(ctx).Exec(
		`UPDATE ledgers
		 SET balance = ?, free_taps_remaining = ?, package_taps_remaining = ?, tap_reward = ?,
		     earn_cap_remaining = ?, taps_total = ?, package_id = ?, package_expires_at = ?, updated_at = ?
		 WHERE user_id = ?`,
		ledger.Balance,
		ledger.FreeTapsRemaining,
		ledger.PackageTapsRemaining,
		ledger.TapReward,
		ledger.EarnCapRemaining,
		ledger.TapsTotal,
		ledger.PackageID,
		ledger.PackageExpiresAt,
		ledger.UpdatedAt,
		ledger.UserID,
	).Error
}

func (r *repo) ClaimBonus(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE ledgers SET bonus_granted = ?, updated_at = ? WHERE user_id = ? AND bonus_granted = ?`,
		true,
		db.NowFunc(),
		userID,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
