package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewScheduler provides the shared cron instance. Components register their
// jobs in their constructors; the scheduler starts once every hook has run.
func NewScheduler(lc fx.Lifecycle, log *zap.Logger) *cron.Cron {
	c := cron.New()

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			log.Sugar().Info("Scheduler started")
			return nil
		},
		OnStop: func(context.Context) error {
			<-c.Stop().Done()
			return nil
		},
	})

	return c
}
