// Package watcher runs the scheduled feed check cycle: fetch the newest
// post, decide whether it is genuinely new, fan out notifications and
// advance the watermark.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/feed"
	"github.com/mattsayar/postnotify/lib/health"
	"github.com/mattsayar/postnotify/lib/models"
	"github.com/mattsayar/postnotify/lib/relay"
	"github.com/mattsayar/postnotify/lib/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// publishSkew absorbs clock and precision differences between feed formats:
// a post within this window of the recorded one counts as the same post even
// when the identifiers differ.
const publishSkew = 60 * time.Second

// FeedSource produces the current newest post.
type FeedSource interface {
	LatestPost(ctx context.Context) (*models.Post, error)
}

type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

type NotificationDispatcher interface {
	Send(ctx context.Context, subscribers []models.Subscriber, post *models.Post) []Outcome
}

type Watcher struct {
	log        *zap.Logger
	cfg        *config.Config
	store      *store.Store
	lock       *store.RunLock
	feed       FeedSource
	dispatcher NotificationDispatcher
	alerts     Alerter
	health     Heartbeater
}

func NewWatcher(
	lc fx.Lifecycle,
	log *zap.Logger,
	cfg *config.Config,
	st *store.Store,
	lock *store.RunLock,
	normalizer *feed.Normalizer,
	dispatcher *Dispatcher,
	alerts *relay.Alerts,
	monitor *health.Monitor,
	crontab *cron.Cron,
) (*Watcher, error) {
	w := &Watcher{
		log:        log,
		cfg:        cfg,
		store:      st,
		lock:       lock,
		feed:       normalizer,
		dispatcher: dispatcher,
		alerts:     alerts,
		health:     monitor,
	}

	if _, err := crontab.AddFunc(fmt.Sprintf("@every %s", cfg.Feed.CheckInterval), func() {
		w.CheckOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule feed check: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Sugar().Info("Running initial feed check")
			go w.CheckOnce(context.Background())
			return nil
		},
	})

	return w, nil
}

// CheckOnce runs one lock-guarded feed check cycle. A lock conflict skips
// the cycle silently; every other failure is alerted. The lock is released
// on all exits, including panics inside the cycle.
func (w *Watcher) CheckOnce(ctx context.Context) (err error) {
	acquired, err := w.lock.Acquire(time.Now().UTC())
	if err != nil {
		w.log.Sugar().Errorw("Failed to acquire run lock", "err", err)
		return err
	}
	if !acquired {
		w.log.Sugar().Info("Another check is already running, skipping this cycle")
		return nil
	}
	defer w.lock.Release()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check cycle panicked: %v", r)
		}
		if err != nil {
			w.log.Sugar().Errorw("Feed check failed", "err", err)
			w.alerts.Alert(ctx, fmt.Sprintf("RSS check process failed: %v", err), relay.PriorityHigh)
		}
	}()

	return w.runCycle(ctx)
}

func (w *Watcher) runCycle(ctx context.Context) error {
	w.log.Sugar().Info("Starting feed check")

	post, err := w.feed.LatestPost(ctx)
	if err != nil {
		return err
	}

	state, err := w.store.Load()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	switch {
	case state.LastPost == nil:
		// First run after install or store reset: record the baseline
		// without notifying anyone.
		if _, err := w.store.Update(func(s *models.State) error {
			s.LastPost = recordOf(post, now)
			s.Stats.LastRunAt = now
			return nil
		}); err != nil {
			return err
		}
		w.log.Sugar().Infof("Recorded baseline post without dispatch: %s", post.Title)

	case isNewer(post, state.LastPost):
		w.log.Sugar().Infof("New post detected: %s", post.Title)
		subscribers := state.Subscribers
		if len(subscribers) == 0 {
			w.log.Sugar().Info("No subscribers to send to")
		} else {
			w.log.Sugar().Infof("Sending emails to %d subscribers", len(subscribers))
			w.dispatcher.Send(ctx, subscribers, post)
		}

		// The watermark advances even when some sends failed: a missed post
		// is never retried on a later cycle.
		if _, err := w.store.Update(func(s *models.State) error {
			s.LastPost = recordOf(post, now)
			s.Stats.TotalEmailsSent += len(subscribers)
			s.Stats.LastRunAt = now
			return nil
		}); err != nil {
			return err
		}

	default:
		w.log.Sugar().Info("No new posts found")
		// Adopt a re-published id/title so it cannot re-trigger later, but
		// never regress the recorded publication time.
		if _, err := w.store.Update(func(s *models.State) error {
			if s.LastPost != nil {
				s.LastPost.ID = post.ID
				s.LastPost.Title = post.Title
			}
			s.Stats.LastRunAt = now
			return nil
		}); err != nil {
			return err
		}
	}

	if err := w.health.Heartbeat(ctx); err != nil {
		w.log.Sugar().Errorw("Failed to update health heartbeat", "err", err)
	}
	return nil
}

func isNewer(post *models.Post, last *models.LastPost) bool {
	return post.PublishedAt.After(last.PublishedAt.Add(publishSkew))
}

func recordOf(post *models.Post, now time.Time) *models.LastPost {
	return &models.LastPost{
		ID:          post.ID,
		Title:       post.Title,
		PublishedAt: post.PublishedAt,
		NotifiedAt:  now,
	}
}
