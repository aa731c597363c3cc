package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusIDs(t *testing.T) {
	ids, err := parseStatusIDs("chat_with_bot=101, high_engagement=102,active_user=103,chat_with_manager=104")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"chat_with_bot":     101,
		"high_engagement":   102,
		"active_user":       103,
		"chat_with_manager": 104,
	}, ids)

	_, err = parseStatusIDs("chat_with_bot")
	assert.Error(t, err)

	_, err = parseStatusIDs("chat_with_bot=abc")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("CRM_STATUS_IDS", "chat_with_manager=7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSecretToken, cfg.GetSecretToken())
	assert.Equal(t, 25*time.Second, cfg.GetOutboundTimeout())
	assert.Equal(t, 10, cfg.GetThresholdHigh())
	assert.Equal(t, 25, cfg.GetThresholdActive())
	assert.Equal(t, int64(7), cfg.GetCRMStatusIDs()["chat_with_manager"])
	assert.False(t, cfg.IsCRMEnabled())
	assert.False(t, cfg.IsAlertEnabled())
}

func TestLoadSecretOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_SECRET_TOKEN", "rotated")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rotated", cfg.GetSecretToken())
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}
