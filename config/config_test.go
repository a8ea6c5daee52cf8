package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredsEmptyDisablesAuth(t *testing.T) {
	cfg := &Config{}
	creds, err := cfg.parseCreds()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestParseCredsSinglePair(t *testing.T) {
	cfg := &Config{BasicAuthCreds: "admin:hunter2"}
	creds, err := cfg.parseCreds()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"admin": "hunter2"}, creds)
}

func TestParseCredsMultiplePairsWithSpaces(t *testing.T) {
	cfg := &Config{BasicAuthCreds: "admin:hunter2, viewer : readonly"}
	creds, err := cfg.parseCreds()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"admin": "hunter2", "viewer": "readonly"}, creds)
}

func TestParseCredsMalformedPair(t *testing.T) {
	cfg := &Config{BasicAuthCreds: "admin"}
	_, err := cfg.parseCreds()
	require.Error(t, err)
}

func TestMissingRequiredListsUnsetVariables(t *testing.T) {
	cfg := &Config{}
	cfg.Feed.URL = "https://example.com/rss.xml"
	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Mailgun.APIKey = "key"
	cfg.Mailgun.SenderFrom = "news@example.com"
	cfg.Mailgun.SenderName = "Example"
	cfg.Ntfy.AlertTopic = "alerts"
	cfg.Ntfy.SubscribeTopic = "subs"

	missing := cfg.missingRequired()
	assert.Equal(t, []string{"NTFY_UNSUBSCRIBE_TOPIC"}, missing)
}

func TestMissingRequiredAllSet(t *testing.T) {
	cfg := &Config{}
	cfg.Feed.URL = "https://example.com/rss.xml"
	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Mailgun.APIKey = "key"
	cfg.Mailgun.SenderFrom = "news@example.com"
	cfg.Mailgun.SenderName = "Example"
	cfg.Ntfy.AlertTopic = "alerts"
	cfg.Ntfy.SubscribeTopic = "subs"
	cfg.Ntfy.UnsubscribeTopic = "unsubs"

	assert.Empty(t, cfg.missingRequired())
}
