package watcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/models"
	"github.com/mattsayar/postnotify/lib/relay"
	"github.com/mattsayar/postnotify/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Alerter interface {
	Alert(ctx context.Context, message string, priority relay.Priority)
}

// Outcome captures one subscriber's send result.
type Outcome struct {
	Email   string
	Success bool
	Err     error
}

type Dispatcher struct {
	log     *zap.Logger
	cfg     *config.Config
	senders senders.Registry
	alerts  Alerter
}

func NewDispatcher(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, registry senders.Registry, alerts *relay.Alerts) *Dispatcher {
	return &Dispatcher{log, cfg, registry, alerts}
}

// Send fans out one email per subscriber concurrently. The aggregate never
// fails as a whole: every outcome, including a panic inside an individual
// send, is captured per subscriber. More than half the sends failing raises
// one high-priority alert.
func (d *Dispatcher) Send(ctx context.Context, subscribers []models.Subscriber, post *models.Post) []Outcome {
	runID := uuid.NewString()
	d.log.Sugar().Infow("Dispatching new post notification",
		"run_id", runID, "post", post.ID, "recipients", len(subscribers))

	outcomes := make([]Outcome, len(subscribers))
	if sender, ok := d.senders["email"]; ok {
		var wg sync.WaitGroup
		for i, sub := range subscribers {
			wg.Add(1)
			go func(i int, sub models.Subscriber) {
				defer wg.Done()
				outcomes[i] = d.sendOne(ctx, sender, sub, post)
			}(i, sub)
		}
		wg.Wait()
	} else {
		// A misconfigured registry fails every send, so it flows through the
		// same failure accounting and alerting as delivery errors.
		for i, sub := range subscribers {
			outcomes[i] = Outcome{Email: sub.Email, Err: errors.New("no email sender configured")}
		}
	}

	failures := 0
	for _, outcome := range outcomes {
		if !outcome.Success {
			failures++
		}
	}
	if failures > 0 {
		d.log.Sugar().Errorw("Some notification emails failed",
			"run_id", runID, "failed", failures, "total", len(subscribers))
		if failures > len(subscribers)/2 {
			d.alerts.Alert(ctx, fmt.Sprintf("Failed to send emails to %d of %d subscribers", failures, len(subscribers)), relay.PriorityHigh)
		}
	}
	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, sender senders.Sender, sub models.Subscriber, post *models.Post) (out Outcome) {
	out = Outcome{Email: sub.Email}
	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Err = fmt.Errorf("send panicked: %v", r)
		}
	}()

	email := &senders.NewPostEmail{
		Post:           post,
		UnsubscribeURL: d.unsubscribeURL(sub.UnsubscribeToken),
	}
	if _, err := sender.Send(ctx, email.Subject(), email.Body(), sub.Email); err != nil {
		d.log.Sugar().Errorw("Failed to send email", "email", sub.Email, "err", err)
		out.Err = err
		return out
	}
	out.Success = true
	return out
}

func (d *Dispatcher) unsubscribeURL(token string) string {
	base := strings.TrimRight(d.cfg.PublicBaseURL, "/")
	return fmt.Sprintf("%s/unsubscribe/?token=%s", base, url.QueryEscape(token))
}
