package chainfeed

import "go.uber.org/fx"

var Module = fx.Module("chainfeed",
	fx.Provide(
		NewTronGrid,
		func(c *TronGrid) Feed { return c },
	),
)
