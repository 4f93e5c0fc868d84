package erp

import "go.uber.org/fx"

var Module = fx.Module("erp.client",
	fx.Provide(New),
)
