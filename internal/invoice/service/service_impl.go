package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/clock"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tapcoin/internal/ledger/domain"
	obscontext "github.com/smallbiznis/tapcoin/internal/observability/context"
	"github.com/smallbiznis/tapcoin/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxHistoryLimit = 100

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Catalog *catalog.Catalog
	Ledger  ledgerdomain.Service
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	address string
	catalog *catalog.Catalog
	ledger  ledgerdomain.Service
	repo    domain.Repository
	metrics *metrics.Metrics
	jitter  func() int64
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		address: p.Cfg.Tron.ReceiveAddress,
		catalog: p.Catalog,
		ledger:  p.Ledger,
		repo:    p.Repo,
		metrics: p.Metrics,
		jitter:  func() int64 { return rand.Int64N(999) + 1 },
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.CreateInvoiceResponse, error) {
	if req.UserID <= 0 {
		return domain.CreateInvoiceResponse{}, domain.ErrInvalidUser
	}
	pkg, ok := s.catalog.Get(req.PackageID)
	if !ok {
		return domain.CreateInvoiceResponse{}, domain.ErrInvalidPackage
	}
	ctx = obscontext.WithUserID(ctx, strconv.FormatInt(req.UserID, 10))

	if _, err := s.ledger.Ensure(ctx, req.UserID); err != nil {
		return domain.CreateInvoiceResponse{}, err
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:           s.genID.Generate(),
		UserID:       req.UserID,
		PackageID:    pkg.ID,
		BasePrice:    pkg.Price,
		UniqueAmount: UniqueAmount(pkg.Price, s.jitter()),
		Status:       domain.InvoiceStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
		return domain.CreateInvoiceResponse{}, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int64("user_id", invoice.UserID),
		zap.Int64("package_id", pkg.ID),
		zap.String("unique_amount", invoice.UniqueAmount.StringFixed(6)),
	)
	s.metrics.RecordInvoiceCreated(ctx, pkg.ID)

	return domain.CreateInvoiceResponse{
		InvoiceID:     invoice.ID,
		DisplayAmount: invoice.UniqueAmount,
		MinAmount:     invoice.BasePrice,
		Address:       s.address,
		Package:       pkg,
		Network:       domain.Network,
		Currency:      domain.Currency,
		Instructions:  fmt.Sprintf("Send exactly %s %s (TRC20)", invoice.UniqueAmount.StringFixed(6), domain.Currency),
		Status:        invoice.Status,
		CreatedAt:     invoice.CreatedAt,
	}, nil
}

// UniqueAmount adds fraction ten-thousandths to price so concurrent invoices for
// the same package are distinguishable by eye. Matching never depends on it.
func UniqueAmount(price decimal.Decimal, fraction int64) decimal.Decimal {
	return price.Add(decimal.New(fraction, -4)).Round(6)
}

func (s *Service) Get(ctx context.Context, invoiceID, userID int64) (domain.Invoice, error) {
	if invoiceID <= 0 {
		return domain.Invoice{}, domain.ErrInvalidInvoiceID
	}
	if userID <= 0 {
		return domain.Invoice{}, domain.ErrInvalidUser
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil || invoice.UserID != userID {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]domain.Invoice, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	invoices, err := s.repo.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	return invoices, nil
}

func (s *Service) ListPending(ctx context.Context, createdAfter time.Time, before domain.PendingCursor, limit int) ([]domain.Invoice, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	return s.repo.ListPending(ctx, s.db, createdAfter.UTC(), before, limit)
}
