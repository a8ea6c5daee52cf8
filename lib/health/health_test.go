package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/models"
	"github.com/mattsayar/postnotify/lib/relay"
	"github.com/mattsayar/postnotify/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAlerter struct {
	messages   []string
	priorities []relay.Priority
}

func (f *fakeAlerter) Alert(ctx context.Context, message string, priority relay.Priority) {
	f.messages = append(f.messages, message)
	f.priorities = append(f.priorities, priority)
}

func newTestMonitor(t *testing.T) (*Monitor, *store.Store, *fakeAlerter) {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := &config.Config{DataDir: t.TempDir()}
	cfg.Health.MaxAge = 3 * time.Hour

	st, err := store.NewStore(log, cfg)
	require.NoError(t, err)

	alerter := &fakeAlerter{}
	return &Monitor{log: log, cfg: cfg, store: st, alerts: alerter}, st, alerter
}

func setHeartbeat(t *testing.T, st *store.Store, at time.Time) {
	t.Helper()
	_, err := st.Update(func(state *models.State) error {
		state.Stats.LastHealthCheckPassed = at
		return nil
	})
	require.NoError(t, err)
}

func TestHeartbeatRecordsTimestamp(t *testing.T) {
	m, st, _ := newTestMonitor(t)

	require.NoError(t, m.Heartbeat(context.Background()))

	state, err := st.Load()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), state.Stats.LastHealthCheckPassed, 5*time.Second)
}

func TestCheckFirstRunWritesHeartbeatWithoutAlert(t *testing.T) {
	m, st, alerter := newTestMonitor(t)

	m.Check(context.Background())

	assert.Empty(t, alerter.messages)
	state, err := st.Load()
	require.NoError(t, err)
	assert.False(t, state.Stats.LastHealthCheckPassed.IsZero())
}

func TestCheckFreshHeartbeatIsQuiet(t *testing.T) {
	m, st, alerter := newTestMonitor(t)
	setHeartbeat(t, st, time.Now().UTC().Add(-time.Hour))

	m.Check(context.Background())
	assert.Empty(t, alerter.messages)
}

func TestCheckStaleHeartbeatAlerts(t *testing.T) {
	m, st, alerter := newTestMonitor(t)
	setHeartbeat(t, st, time.Now().UTC().Add(-4*time.Hour))

	m.Check(context.Background())

	require.Len(t, alerter.messages, 1)
	assert.Contains(t, alerter.messages[0], "hasn't run successfully")
	assert.Equal(t, relay.PriorityHigh, alerter.priorities[0])
}

func TestCheckCorruptStoreAlerts(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &config.Config{DataDir: t.TempDir()}
	cfg.Health.MaxAge = 3 * time.Hour

	st, err := store.NewStore(log, cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "subscribers.json"), []byte("{broken"), 0o644))

	alerter := &fakeAlerter{}
	m := &Monitor{log: log, cfg: cfg, store: st, alerts: alerter}

	m.Check(context.Background())

	require.Len(t, alerter.messages, 1)
	assert.Contains(t, alerter.messages[0], "Health check failed")
	assert.Equal(t, relay.PriorityHigh, alerter.priorities[0])
}
