// Package relay talks to the ntfy push relay: it publishes operational
// alerts and consumes the subscribe/unsubscribe topics as long-lived message
// streams.
package relay

import (
	"context"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/mattsayar/postnotify/config"
	"go.uber.org/zap"
)

type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
)

type Alerts struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}

func NewAlerts(log *zap.Logger, cfg *config.Config, transport http.RoundTripper) *Alerts {
	return &Alerts{log, cfg, transport}
}

// Alert publishes to the alert topic. Best effort: failures are logged,
// never propagated.
func (a *Alerts) Alert(ctx context.Context, message string, priority Priority) {
	err := requests.URL(a.cfg.Ntfy.BaseURL+"/"+a.cfg.Ntfy.AlertTopic).
		Transport(a.transport).
		BodyBytes([]byte(message)).
		Header("Title", "RSS Service Alert").
		Header("Priority", string(priority)).
		Fetch(ctx)
	if err != nil {
		a.log.Sugar().Errorw("Failed to send alert", "message", message, "err", err)
		return
	}
	a.log.Sugar().Infof("Alert sent: %s", message)
}
