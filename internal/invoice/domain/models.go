// Package domain contains the payment request model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states. pending -> paid is the only transition.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

const (
	Network  = "TRON (TRC20 USDT)"
	Currency = "USDT"
)

// Invoice is a request for one package purchase. Invoices are never deleted.
type Invoice struct {
	ID           snowflake.ID        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID       int64               `gorm:"not null;index:ix_invoices_user_created,priority:1" json:"user_id"`
	PackageID    int64               `gorm:"not null" json:"package_id"`
	BasePrice    decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"base_price"`
	UniqueAmount decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"unique_amount"`
	Status       InvoiceStatus       `gorm:"type:text;not null;default:'pending';index:ix_invoices_status_created,priority:1" json:"status"`
	TxID         *string             `gorm:"uniqueIndex:ux_invoices_tx_id" json:"tx_id,omitempty"`
	PaidAmount   decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"paid_amount"`
	PaidAt       *time.Time          `json:"paid_at,omitempty"`
	CreatedAt    time.Time           `gorm:"not null;index:ix_invoices_user_created,priority:2;index:ix_invoices_status_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

func (i Invoice) IsPaid() bool { return i.Status == InvoiceStatusPaid }

// PendingCursor is the position of the last invoice a sweep page returned.
// The zero value starts at the newest invoice.
type PendingCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

func (c PendingCursor) IsZero() bool { return c.ID == 0 && c.CreatedAt.IsZero() }

// CursorAfter returns the cursor that continues below invoice.
func CursorAfter(invoice Invoice) PendingCursor {
	return PendingCursor{CreatedAt: invoice.CreatedAt, ID: invoice.ID}
}
