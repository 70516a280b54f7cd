package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Invoice, error)
	LockByID(ctx context.Context, db *gorm.DB, id int64) (*Invoice, error)
	// MarkPaid moves a pending invoice to paid. It reports false when the invoice was no longer pending.
	MarkPaid(ctx context.Context, db *gorm.DB, id int64, txID string, amount decimal.Decimal, paidAt time.Time) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID int64, limit int) ([]Invoice, error)
	// ListPending pages newest-first through pending invoices created at or
	// after createdAfter, starting strictly below before.
	ListPending(ctx context.Context, db *gorm.DB, createdAfter time.Time, before PendingCursor, limit int) ([]Invoice, error)
}
