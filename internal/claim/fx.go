package claim

import (
	"github.com/smallbiznis/tapcoin/internal/claim/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("claim.repository",
	fx.Provide(repository.Provide),
)
