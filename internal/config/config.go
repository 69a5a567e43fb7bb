package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/byNolo/nolofication/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz, metrics, auth callback, hooks

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"https://nolofication.bynolo.ca/api"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`

	KeynBaseURL  string        `envconfig:"KEYN_BASE_URL" default:"https://auth-keyn.bynolo.ca"`
	KeynClientID string        `envconfig:"KEYN_CLIENT_ID" default:"nolofication"`
	KeynScopes   []string      `envconfig:"KEYN_SCOPES" default:"id,username,email"`
	PublicURL    string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080"` // where /auth/callback and /hooks are reachable
	AuthStateTTL time.Duration `envconfig:"AUTH_STATE_TTL" default:"10m"`

	DBPath    string `envconfig:"DB_PATH" default:"./data/nolofication.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"UTC"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"60s"` // inbox poller; 0 disables
	PollBatch    int           `envconfig:"POLL_BATCH" default:"50"`
	SendRate     float64       `envconfig:"SEND_RATE" default:"20"` // outgoing chat messages per second
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"API_BASE_URL":  c.APIBaseURL,
		"KEYN_BASE_URL": c.KeynBaseURL,
		"PUBLIC_URL":    c.PublicURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: expected an absolute http(s) URL, got %q", name, raw)
		}
	}
	if _, err := domain.ValidateTZ(c.DefaultTZ); err != nil {
		return fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	if c.PollBatch <= 0 {
		return fmt.Errorf("POLL_BATCH must be positive")
	}
	if c.SendRate <= 0 {
		return fmt.Errorf("SEND_RATE must be positive")
	}
	return nil
}

// RedirectURL is the OAuth redirect target served by this process.
func (c Config) RedirectURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/auth/callback"
}

// HookURL is the public webhook relay URL for a hook id.
func (c Config) HookURL(hookID string) string {
	return strings.TrimRight(c.PublicURL, "/") + "/hooks/" + hookID
}
