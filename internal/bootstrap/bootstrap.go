// Package bootstrap groups the fx modules shared by every tapcoin binary.
package bootstrap

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tapcoin/internal/catalog"
	"github.com/smallbiznis/tapcoin/internal/chainfeed"
	"github.com/smallbiznis/tapcoin/internal/claim"
	"github.com/smallbiznis/tapcoin/internal/clock"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/invoice"
	"github.com/smallbiznis/tapcoin/internal/ledger"
	"github.com/smallbiznis/tapcoin/internal/matcher"
	"github.com/smallbiznis/tapcoin/internal/migration"
	"github.com/smallbiznis/tapcoin/internal/observability"
	"github.com/smallbiznis/tapcoin/internal/ratelimit"
	"github.com/smallbiznis/tapcoin/internal/reconcile"
	"github.com/smallbiznis/tapcoin/pkg/db"
	"go.uber.org/fx"
)

// Infrastructure is config, logging, tracing, metrics, ids, clock and the
// migrated database.
func Infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
	)
}

// Domain is the ledger, invoicing and payment reconciliation stack.
func Domain() fx.Option {
	return fx.Options(
		catalog.Module,
		ledger.Module,
		claim.Module,
		invoice.Module,
		chainfeed.Module,
		matcher.Module,
		reconcile.Module,
		ratelimit.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
