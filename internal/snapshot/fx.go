package snapshot

import (
	"github.com/smallbiznis/delinquency/internal/snapshot/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("snapshot.store",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideSource),
)
