package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
)

const (
	StatusPaid    = "paid"
	StatusWaiting = "waiting"
)

// CheckResult is the outcome of reconciling one invoice.
type CheckResult struct {
	InvoiceID string           `json:"invoice_id"`
	Paid      bool             `json:"paid"`
	Status    string           `json:"status"`
	TxID      string           `json:"tx_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Package   *catalog.Package `json:"package,omitempty"`
	Message   string           `json:"message"`
}

type Service interface {
	// Check settles the invoice if a qualifying transfer has arrived. Calling it
	// again after settlement returns the stored result and touches nothing.
	Check(ctx context.Context, invoiceID, userID int64) (CheckResult, error)
}

type sourceKey struct{}

// WithSource labels who asked for the check, e.g. "client" or "sweep".
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func SourceFromContext(ctx context.Context) string {
	if source, ok := ctx.Value(sourceKey{}).(string); ok && source != "" {
		return source
	}
	return "client"
}
