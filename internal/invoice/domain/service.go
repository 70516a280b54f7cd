package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
)

type CreateInvoiceRequest struct {
	UserID    int64
	PackageID int64
}

type CreateInvoiceResponse struct {
	InvoiceID     snowflake.ID    `json:"invoice_id"`
	DisplayAmount decimal.Decimal `json:"display_amount"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	Address       string          `json:"address"`
	Package       catalog.Package `json:"package"`
	Network       string          `json:"network"`
	Currency      string          `json:"currency"`
	Instructions  string          `json:"instructions"`
	Status        InvoiceStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (CreateInvoiceResponse, error)
	// Get returns the invoice only when it belongs to userID.
	Get(ctx context.Context, invoiceID, userID int64) (Invoice, error)
	History(ctx context.Context, userID int64, limit int) ([]Invoice, error)
	ListPending(ctx context.Context, createdAfter time.Time, before PendingCursor, limit int) ([]Invoice, error)
}

const DefaultHistoryLimit = 20

var (
	ErrInvalidPackage   = errors.New("invalid_package")
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
	ErrNotFound         = errors.New("invoice_not_found")

	// ErrPackageUnavailable means a pending invoice names a package the catalog no longer carries.
	ErrPackageUnavailable = errors.New("package_unavailable")
)
