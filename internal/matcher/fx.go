package matcher

import "go.uber.org/fx"

var Module = fx.Module("matcher",
	fx.Provide(New),
)
