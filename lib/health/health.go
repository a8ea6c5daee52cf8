// Package health is the liveness watchdog: successful feed checks write a
// heartbeat into the state document, and a periodic check alerts when that
// heartbeat goes stale.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/models"
	"github.com/mattsayar/postnotify/lib/relay"
	"github.com/mattsayar/postnotify/lib/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Alerter interface {
	Alert(ctx context.Context, message string, priority relay.Priority)
}

type Monitor struct {
	log    *zap.Logger
	cfg    *config.Config
	store  *store.Store
	alerts Alerter
}

func NewMonitor(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, st *store.Store, alerts *relay.Alerts, crontab *cron.Cron) (*Monitor, error) {
	m := &Monitor{log, cfg, st, alerts}

	if _, err := crontab.AddFunc(fmt.Sprintf("@every %s", cfg.Health.CheckInterval), func() {
		m.Check(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule health check: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go m.Check(context.Background())
			return nil
		},
	})

	return m, nil
}

// Heartbeat records that a feed check completed successfully.
func (m *Monitor) Heartbeat(ctx context.Context) error {
	_, err := m.store.Update(func(state *models.State) error {
		state.Stats.LastHealthCheckPassed = time.Now().UTC()
		return nil
	})
	return err
}

// Check alerts when the heartbeat is older than the configured max age. A
// zero heartbeat means a fresh install: write one so future checks have a
// reference point.
func (m *Monitor) Check(ctx context.Context) {
	state, err := m.store.Load()
	if err != nil {
		m.log.Sugar().Errorw("Health check failed", "err", err)
		m.alerts.Alert(ctx, fmt.Sprintf("Health check failed: %v", err), relay.PriorityHigh)
		return
	}

	last := state.Stats.LastHealthCheckPassed
	if last.IsZero() {
		m.log.Sugar().Info("No previous health check found - assuming this is the first run")
		if err := m.Heartbeat(ctx); err != nil {
			m.log.Sugar().Errorw("Failed to write initial heartbeat", "err", err)
		}
		return
	}

	age := time.Since(last)
	m.log.Sugar().Infof("Time since last successful run: %s", age.Round(time.Second))
	if age > m.cfg.Health.MaxAge {
		m.alerts.Alert(ctx, fmt.Sprintf("Service hasn't run successfully in the last %s", m.cfg.Health.MaxAge), relay.PriorityHigh)
	}
}
