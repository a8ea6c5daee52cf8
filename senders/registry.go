package senders

import (
	"context"
	"net/http"

	"github.com/mattsayar/postnotify/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sender is the opaque notifier capability: it delivers one rendered message
// to one recipient.
type Sender interface {
	Send(ctx context.Context, subject, body, recipient string) (string, error)
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	return map[string]Sender{
		"email": &mailgunSender{base},
	}
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
