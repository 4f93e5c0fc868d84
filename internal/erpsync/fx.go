package erpsync

import (
	"context"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/erp"
	"github.com/smallbiznis/delinquency/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("erp.sync",
	fx.Provide(ProvideConfig),
	fx.Provide(
		func(c *erp.Client) Fetcher { return c },
		func(l *ratelimit.Locker) Locker { return l },
	),
	fx.Provide(NewService),
	fx.Provide(func(s *Service) domain.SyncTrigger { return s }),
	fx.Invoke(waitOnStop),
)

// waitOnStop lets background syncs started by Trigger finish their
// bookkeeping before the database closes.
func waitOnStop(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			svc.Wait()
			return nil
		},
	})
}

// WorkerModule runs the periodic refresh loop. Binaries that only serve
// reports leave it out.
var WorkerModule = fx.Module("erp.sync.worker",
	fx.Invoke(RegisterWorker),
)

func RegisterWorker(lc fx.Lifecycle, cfg Config, svc *Service) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go svc.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
