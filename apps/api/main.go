package main

import (
	"github.com/smallbiznis/tapcoin/internal/bootstrap"
	"github.com/smallbiznis/tapcoin/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		bootstrap.Infrastructure(),
		bootstrap.Domain(),
		server.Module,
	)
	app.Run()
}
