package sweeper

import (
	"context"

	"github.com/praxisware/praxis/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.sweeper",
	fx.Provide(configFromApp),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func configFromApp(cfg config.Config) Config {
	return Config{
		BatchSize:    cfg.SweeperBatchSize,
		PollInterval: cfg.SweeperPollInterval,
		LockTimeout:  cfg.SweeperLockTimeout,
	}
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
