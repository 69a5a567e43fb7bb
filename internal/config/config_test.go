package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://nolofication.bynolo.ca/api", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, []string{"id", "username", "email"}, cfg.KeynScopes)
	assert.Equal(t, "http://localhost:8080/auth/callback", cfg.RedirectURL())
	assert.Equal(t, "http://localhost:8080/hooks/abc", cfg.HookURL("abc"))
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	require.NoError(t, os.Unsetenv("BOT_TOKEN"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsRelativeURL(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("PUBLIC_URL", "/relative")
	_, err := Load()
	assert.ErrorContains(t, err, "PUBLIC_URL")
}

func TestLoad_RejectsBadTimezone(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DEFAULT_TZ", "Nowhere/Special")
	_, err := Load()
	assert.ErrorContains(t, err, "DEFAULT_TZ")
}
