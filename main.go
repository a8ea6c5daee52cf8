// Command postnotify watches a single content feed for new posts and emails
// subscribers about them, taking subscribe/unsubscribe requests from an ntfy
// push relay.
package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mattsayar/postnotify/app"
	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/backup"
	"github.com/mattsayar/postnotify/lib/feed"
	"github.com/mattsayar/postnotify/lib/health"
	"github.com/mattsayar/postnotify/lib/relay"
	"github.com/mattsayar/postnotify/lib/store"
	"github.com/mattsayar/postnotify/lib/watcher"
	"github.com/mattsayar/postnotify/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/notifier.log"
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, err
	}

	switch os.Getenv("ENVIRONMENT") {
	default:
		logCfg := zap.NewDevelopmentConfig()
		logCfg.OutputPaths = []string{"stderr", logFile}
		return logCfg.Build()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.OutputPaths = []string{"stderr", logFile}
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(app.NewTransport),
		fx.Provide(app.NewScheduler),

		fx.Provide(store.NewStore),
		fx.Provide(store.NewRunLock),
		fx.Provide(feed.NewNormalizer),
		fx.Provide(senders.NewSenderRegistry),
		fx.Provide(relay.NewAlerts),
		fx.Provide(health.NewMonitor),
		fx.Provide(watcher.NewDispatcher),
		fx.Provide(watcher.NewWatcher),
		fx.Provide(relay.NewRelay),
		fx.Provide(backup.NewArchiver),
		fx.Provide(app.NewHTTPServer),

		fx.Invoke(func(*watcher.Watcher) {}),
		fx.Invoke(func(*relay.Relay) {}),
		fx.Invoke(func(*backup.Archiver) {}),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}
