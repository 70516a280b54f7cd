package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Claim inserts the record unless the transfer or the invoice is already claimed.
	// It reports whether this call won the claim.
	Claim(ctx context.Context, db *gorm.DB, claim *ClaimedTransaction) (bool, error)
	// ClaimedAmong returns the subset of txIDs that are already claimed.
	ClaimedAmong(ctx context.Context, db *gorm.DB, txIDs []string) (map[string]struct{}, error)
	// FindByInvoiceID returns nil when the invoice has no claim.
	FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID int64) (*ClaimedTransaction, error)
}
