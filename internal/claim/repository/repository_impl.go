package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/tapcoin/internal/claim/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, claim *domain.ClaimedTransaction) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(claim)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ClaimedAmong(ctx context.Context, db *gorm.DB, txIDs []string) (map[string]struct{}, error) {
	claimed := make(map[string]struct{}, len(txIDs))
	if len(txIDs) == 0 {
		return claimed, nil
	}

	var found []string
	err := db.WithContext(ctx).Raw(
		`SELECT tx_id FROM claimed_transactions WHERE tx_id IN ?`,
		txIDs,
	).Scan(&found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		claimed[id] = struct{}{}
	}
	return claimed, nil
}

func (r *repo) FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID int64) (*domain.ClaimedTransaction, error) {
	var row domain.ClaimedTransaction
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
