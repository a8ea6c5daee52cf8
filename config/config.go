package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"3000"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	DataDir        string `env:"DATA_DIR" envDefault:"data"`
	LogFile        string `env:"LOG_FILE" envDefault:"data/notifier.log"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL" envDefault:"https://mattsayar.com"`

	Feed struct {
		URL           string        `env:"RSS_FEED_URL"`
		CheckInterval time.Duration `env:"RSS_CHECK_INTERVAL" envDefault:"1h"`
		FallbackLink  string        `env:"RSS_FALLBACK_LINK" envDefault:"https://mattsayar.com"`
	}
	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"EMAIL_FROM"`
		SenderName  string `env:"EMAIL_FROM_NAME"`
		TimeoutSecs int    `env:"EMAIL_TIMEOUT_SECS" envDefault:"30"`
	}
	Ntfy struct {
		BaseURL          string        `env:"NTFY_BASE_URL" envDefault:"https://ntfy.sh"`
		AlertTopic       string        `env:"NTFY_ALERT_TOPIC"`
		SubscribeTopic   string        `env:"NTFY_SUBSCRIBE_TOPIC"`
		UnsubscribeTopic string        `env:"NTFY_UNSUBSCRIBE_TOPIC"`
		ReconnectWait    time.Duration `env:"NTFY_RECONNECT_WAIT" envDefault:"10s"`
	}
	Health struct {
		CheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"1h"`
		MaxAge        time.Duration `env:"HEALTH_MAX_AGE" envDefault:"3h"`
	}
	Backup struct {
		Enabled  bool          `env:"BACKUP_ENABLED"`
		Path     string        `env:"BACKUP_DB_PATH" envDefault:"data/backups.sqlite"`
		Interval time.Duration `env:"BACKUP_INTERVAL" envDefault:"24h"`
		Keep     int           `env:"BACKUP_KEEP" envDefault:"30"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panicf("failed to parse environment: %v", err)
	}

	if missing := cfg.missingRequired(); len(missing) > 0 {
		if cfg.Env == "development" {
			log.Sugar().Warnf("Missing configuration (tolerated in development): %s", strings.Join(missing, ", "))
		} else {
			log.Sugar().Panicf("missing required environment variables: %s", strings.Join(missing, ", "))
		}
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		log.Sugar().Panic(err)
	}
	cfg.creds = creds

	return cfg
}

func (cfg *Config) missingRequired() []string {
	required := []struct {
		name  string
		value string
	}{
		{"RSS_FEED_URL", cfg.Feed.URL},
		{"MAILGUN_DOMAIN", cfg.Mailgun.Domain},
		{"MAILGUN_API_KEY", cfg.Mailgun.APIKey},
		{"EMAIL_FROM", cfg.Mailgun.SenderFrom},
		{"EMAIL_FROM_NAME", cfg.Mailgun.SenderName},
		{"NTFY_ALERT_TOPIC", cfg.Ntfy.AlertTopic},
		{"NTFY_SUBSCRIBE_TOPIC", cfg.Ntfy.SubscribeTopic},
		{"NTFY_UNSUBSCRIBE_TOPIC", cfg.Ntfy.UnsubscribeTopic},
	}

	missing := make([]string, 0)
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

// parseCreds reads dashboard basic-auth credentials. An empty value disables
// auth; a malformed value is a startup error.
func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, nil
	}

	result := make(map[string]string)
	for _, cred := range strings.Split(cfg.BasicAuthCreds, ",") {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
