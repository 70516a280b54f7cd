package reconcile

import (
	"github.com/smallbiznis/tapcoin/internal/matcher"
	"github.com/smallbiznis/tapcoin/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile.service",
	fx.Provide(
		func(m *matcher.Matcher) service.Finder { return m },
		service.New,
	),
)
