package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/clock"
	"github.com/smallbiznis/tapcoin/internal/config"
	invoicedomain "github.com/smallbiznis/tapcoin/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"github.com/smallbiznis/tapcoin/internal/observability"
	obsmiddleware "github.com/smallbiznis/tapcoin/internal/observability/logger"
	obstracing "github.com/smallbiznis/tapcoin/internal/observability/tracing"
	"github.com/smallbiznis/tapcoin/internal/ratelimit"
	reconciledomain "github.com/smallbiznis/tapcoin/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	clock      clock.Clock
	catalog    *catalog.Catalog
	ledgerSvc  ledgerdomain.Service
	invoiceSvc invoicedomain.Service
	reconciler reconciledomain.Service
	tapLimiter *ratelimit.TapLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Clock      clock.Clock
	Catalog    *catalog.Catalog
	LedgerSvc  ledgerdomain.Service
	InvoiceSvc invoicedomain.Service
	Reconciler reconciledomain.Service
	TapLimiter *ratelimit.TapLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		clock:      p.Clock,
		catalog:    p.Catalog,
		ledgerSvc:  p.LedgerSvc,
		invoiceSvc: p.InvoiceSvc,
		reconciler: p.Reconciler,
		tapLimiter: p.TapLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	s.engine.GET("/health", s.Health)

	api := s.engine.Group("/api")

	api.GET("/health", s.Health)
	api.GET("/version", s.Version)
	api.GET("/packages", s.ListPackages)

	// -------- Ledger --------
	api.GET("/users/:user_id", s.GetUser)
	api.POST("/tap", s.TapRateLimit(), s.Tap)

	// -------- Invoices --------
	api.POST("/invoices", s.CreateInvoice)
	api.POST("/invoices/check", s.CheckInvoice)
	api.GET("/users/:user_id/invoices", s.ListUserInvoices)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
