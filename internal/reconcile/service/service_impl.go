package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/chainfeed"
	claimdomain "github.com/smallbiznis/tapcoin/internal/claim/domain"
	"github.com/smallbiznis/tapcoin/internal/clock"
	invoicedomain "github.com/smallbiznis/tapcoin/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"github.com/smallbiznis/tapcoin/internal/matcher"
	obscontext "github.com/smallbiznis/tapcoin/internal/observability/context"
	"github.com/smallbiznis/tapcoin/internal/observability/metrics"
	"github.com/smallbiznis/tapcoin/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errClaimLost rolls back a settlement whose transfer another invoice claimed first.
var errClaimLost = errors.New("claim_lost")

type Finder interface {
	Find(ctx context.Context, basePrice decimal.Decimal, createdAt time.Time) (matcher.Match, bool, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Catalog  *catalog.Catalog
	Matcher  Finder
	Invoices invoicedomain.Repository
	Claims   claimdomain.Repository
	Ledger   ledgerdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	catalog  *catalog.Catalog
	matcher  Finder
	invoices invoicedomain.Repository
	claims   claimdomain.Repository
	ledger   ledgerdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reconcile.service"),
		clock:    p.Clock,
		catalog:  p.Catalog,
		matcher:  p.Matcher,
		invoices: p.Invoices,
		claims:   p.Claims,
		ledger:   p.Ledger,
		metrics:  p.Metrics,
	}
}

func (s *Service) Check(ctx context.Context, invoiceID, userID int64) (domain.CheckResult, error) {
	if invoiceID <= 0 {
		return domain.CheckResult{}, invoicedomain.ErrInvalidInvoiceID
	}
	if userID <= 0 {
		return domain.CheckResult{}, invoicedomain.ErrInvalidUser
	}
	ctx = obscontext.WithUserID(ctx, strconv.FormatInt(userID, 10))
	ctx = obscontext.WithInvoiceID(ctx, strconv.FormatInt(invoiceID, 10))

	invoice, err := s.invoices.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.CheckResult{}, err
	}
	if invoice == nil || invoice.UserID != userID {
		return domain.CheckResult{}, invoicedomain.ErrNotFound
	}
	if invoice.IsPaid() {
		return s.storedResult(ctx, invoice), nil
	}

	pkg, ok := s.catalog.Get(invoice.PackageID)
	if !ok {
		s.log.Warn("pending invoice references a retired package",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Int64("package_id", invoice.PackageID),
		)
		return domain.CheckResult{}, invoicedomain.ErrPackageUnavailable
	}
	basePrice := invoice.BasePrice
	if basePrice.IsZero() {
		basePrice = pkg.Price
	}

	// The feed is read outside the transaction so no row lock is held across the network call.
	match, found, err := s.matcher.Find(ctx, basePrice, invoice.CreatedAt)
	if err != nil {
		return domain.CheckResult{}, err
	}
	if !found {
		return waiting(invoice), nil
	}

	var settled *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.invoices.LockByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if locked == nil {
			return invoicedomain.ErrNotFound
		}
		if locked.IsPaid() {
			settled = locked
			return nil
		}

		now := s.clock.Now()
		won, err := s.claims.Claim(ctx, tx, &claimdomain.ClaimedTransaction{
			TxID:           match.Transfer.TxID,
			InvoiceID:      locked.ID,
			Amount:         match.Transfer.Amount,
			BlockTimestamp: match.Transfer.BlockTimestamp,
			Payload:        payload(match.Transfer),
			ClaimedAt:      now,
		})
		if err != nil {
			return err
		}
		if !won {
			return errClaimLost
		}

		marked, err := s.invoices.MarkPaid(ctx, tx, int64(locked.ID), match.Transfer.TxID, match.Transfer.Amount, now)
		if err != nil {
			return err
		}
		if !marked {
			return errClaimLost
		}

		if _, err := s.ledger.CreditPackage(ctx, tx, locked.UserID, pkg); err != nil {
			return err
		}

		txID := match.Transfer.TxID
		locked.Status = invoicedomain.InvoiceStatusPaid
		locked.TxID = &txID
		locked.PaidAmount = decimal.NewNullDecimal(match.Transfer.Amount)
		locked.PaidAt = &now
		settled = locked
		return nil
	})
	if errors.Is(err, errClaimLost) {
		s.metrics.RecordClaimRace(ctx)
		s.log.Info("transfer already claimed by another invoice",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("tx_id", match.Transfer.TxID),
		)
		return waiting(invoice), nil
	}
	if err != nil {
		return domain.CheckResult{}, err
	}

	result := s.storedResult(ctx, settled)
	if settled.TxID != nil && *settled.TxID == match.Transfer.TxID {
		result.Message = "Package activated!"
		s.metrics.RecordPaymentCredited(ctx, pkg.ID, domain.SourceFromContext(ctx))
		s.log.Info("invoice paid",
			zap.String("invoice_id", settled.ID.String()),
			zap.Int64("user_id", settled.UserID),
			zap.Int64("package_id", pkg.ID),
			zap.String("tx_id", match.Transfer.TxID),
			zap.String("amount", match.Transfer.Amount.String()),
		)
	}
	return result, nil
}

// storedResult reports a settled invoice. Rows missing the transfer details
// are filled from the claim that settled them.
func (s *Service) storedResult(ctx context.Context, invoice *invoicedomain.Invoice) domain.CheckResult {
	if invoice.TxID == nil || !invoice.PaidAmount.Valid {
		s.fillFromClaim(ctx, invoice)
	}
	result := domain.CheckResult{
		InvoiceID: invoice.ID.String(),
		Paid:      true,
		Status:    domain.StatusPaid,
		Message:   "Payment confirmed",
	}
	if invoice.TxID != nil {
		result.TxID = *invoice.TxID
	}
	if invoice.PaidAmount.Valid {
		amount := invoice.PaidAmount.Decimal
		result.Amount = &amount
	}
	if pkg, ok := s.catalog.Get(invoice.PackageID); ok {
		result.Package = &pkg
	}
	return result
}

func (s *Service) fillFromClaim(ctx context.Context, invoice *invoicedomain.Invoice) {
	claim, err := s.claims.FindByInvoiceID(ctx, s.db, int64(invoice.ID))
	if err != nil {
		s.log.Warn("claim lookup failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
		return
	}
	if claim == nil {
		return
	}
	if invoice.TxID == nil {
		txID := claim.TxID
		invoice.TxID = &txID
	}
	if !invoice.PaidAmount.Valid {
		invoice.PaidAmount = decimal.NewNullDecimal(claim.Amount)
	}
}

func waiting(invoice *invoicedomain.Invoice) domain.CheckResult {
	return domain.CheckResult{
		InvoiceID: invoice.ID.String(),
		Paid:      false,
		Status:    domain.StatusWaiting,
		Message:   "Payment not received yet",
	}
}

func payload(t chainfeed.Transfer) datatypes.JSON {
	if len(t.Raw) > 0 && json.Valid(t.Raw) {
		return datatypes.JSON(t.Raw)
	}
	encoded, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	return datatypes.JSON(encoded)
}
