package main

import (
	"github.com/smallbiznis/tapcoin/internal/bootstrap"
	"github.com/smallbiznis/tapcoin/internal/scheduler"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		bootstrap.Infrastructure(),
		bootstrap.Domain(),

		// No server module!
		scheduler.Module,
		fx.Decorate(func(cfg scheduler.Config) scheduler.Config {
			cfg.Enabled = true
			return cfg
		}),
	)
	app.Run()
}
