package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SubscriberStore is the slice of the state store the listeners mutate.
type SubscriberStore interface {
	AddSubscriber(email string) (bool, error)
	RemoveSubscriber(token string) (bool, error)
}

type Alerter interface {
	Alert(ctx context.Context, message string, priority Priority)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Relay owns the two long-lived listeners. Each consumes one topic for the
// process lifetime, reconnecting after a fixed backoff whenever the stream
// drops.
type Relay struct {
	log         *zap.Logger
	subscribe   *listener
	unsubscribe *listener
	cancel      context.CancelFunc
}

func NewRelay(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper, alerts *Alerts, st *store.Store) *Relay {
	r := &Relay{
		log: log,
		subscribe: &listener{
			log:       log,
			name:      "subscription",
			streamURL: streamURL(cfg, cfg.Ntfy.SubscribeTopic),
			transport: transport,
			alerts:    alerts,
			backoff:   cfg.Ntfy.ReconnectWait,
			handle:    subscribeHandler(log, st),
		},
		unsubscribe: &listener{
			log:       log,
			name:      "unsubscribe",
			streamURL: streamURL(cfg, cfg.Ntfy.UnsubscribeTopic),
			transport: transport,
			alerts:    alerts,
			backoff:   cfg.Ntfy.ReconnectWait,
			handle:    unsubscribeHandler(log, st),
		},
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			r.cancel = cancel
			go r.subscribe.run(ctx)
			go r.unsubscribe.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			r.cancel()
			return nil
		},
	})

	return r
}

func streamURL(cfg *config.Config, topic string) string {
	return fmt.Sprintf("%s/%s/json", cfg.Ntfy.BaseURL, topic)
}

func subscribeHandler(log *zap.Logger, st SubscriberStore) func(string) {
	return func(payload string) {
		email := strings.TrimSpace(payload)
		if !emailPattern.MatchString(email) {
			log.Sugar().Warnf("Invalid email received: %s", email)
			return
		}

		added, err := st.AddSubscriber(email)
		switch {
		case err != nil:
			log.Sugar().Errorw("Failed to add subscriber", "email", email, "err", err)
		case added:
			log.Sugar().Infof("New subscriber added: %s", email)
		default:
			log.Sugar().Infof("Subscriber already exists: %s", email)
		}
	}
}

func unsubscribeHandler(log *zap.Logger, st SubscriberStore) func(string) {
	return func(payload string) {
		token := strings.TrimSpace(payload)

		removed, err := st.RemoveSubscriber(token)
		switch {
		case err != nil:
			log.Sugar().Errorw("Failed to remove subscriber", "err", err)
		case removed:
			log.Sugar().Infof("Removed subscriber with token: %s", token)
		default:
			log.Sugar().Warnf("No subscriber found with token: %s", token)
		}
	}
}

type listener struct {
	log       *zap.Logger
	name      string
	streamURL string
	transport http.RoundTripper
	alerts    Alerter
	backoff   time.Duration
	handle    func(payload string)
}

// run keeps the listener alive until ctx is cancelled. Each disconnect emits
// one alert before the reconnect wait.
func (l *listener) run(ctx context.Context) {
	for {
		err := l.consume(ctx)
		if ctx.Err() != nil {
			l.log.Sugar().Infof("%s listener stopped", l.name)
			return
		}

		l.log.Sugar().Errorw(fmt.Sprintf("%s listener disconnected", l.name), "err", err)
		l.alerts.Alert(ctx, fmt.Sprintf("%s listener disconnected. Reconnecting...", l.name), PriorityDefault)

		select {
		case <-time.After(l.backoff):
		case <-ctx.Done():
			return
		}
	}
}

// streamEvent is the wire contract with the relay: one JSON object per line.
// Only "message" events carry a payload; "open" and "keepalive" frames are
// skipped.
type streamEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func (l *listener) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.streamURL, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Transport: l.transport}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	l.log.Sugar().Infof("%s listener connected", l.name)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		evt := streamEvent{}
		if err := json.Unmarshal(line, &evt); err != nil {
			l.log.Sugar().Warnf("Dropping malformed %s message: %v", l.name, err)
			continue
		}
		if evt.Event != "message" {
			continue
		}
		if strings.TrimSpace(evt.Message) == "" {
			l.log.Sugar().Warnf("Dropping empty %s message", l.name)
			continue
		}

		l.handle(evt.Message)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}
