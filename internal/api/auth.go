package api

import (
	"context"
	"net/http"

	"github.com/byNolo/nolofication/internal/domain"
)

// LoginResult is the outcome of an OAuth code exchange.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// ExchangeCode trades an identity-provider authorization code for a backend
// access token. redirectURI must match the one used to obtain the code.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (LoginResult, error) {
	var out LoginResult
	if code == "" {
		return out, &Error{Message: "authorization code is required"}
	}
	in := map[string]string{"code": code, "redirect_uri": redirectURI}
	err := c.do(ctx, "auth.callback", http.MethodPost, "/auth/oauth/callback", NoAuth, in, &out)
	if err == nil && out.Token == "" {
		err = &Error{Message: "backend returned no token", Status: http.StatusOK}
	}
	return out, err
}

// Me returns the user owning the token.
func (c *Client) Me(ctx context.Context, ts TokenSource) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, "auth.me", http.MethodGet, "/auth/me", ts, nil, &out)
	return out, err
}

// DiscordAuthorizeURL returns the Discord OAuth URL for linking an account.
func (c *Client) DiscordAuthorizeURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, "auth.discord_authorize", http.MethodGet, "/auth/discord/authorize", NoAuth, nil, &out)
	return out.URL, err
}

// DiscordBotAuthorizeURL returns the URL that lets the Nolofication bot DM the user.
func (c *Client) DiscordBotAuthorizeURL(ctx context.Context) (string, error) {
	var out struct {
		AuthorizeURL string `json:"authorize_url"`
	}
	err := c.do(ctx, "auth.discord_bot_url", http.MethodGet, "/auth/discord/bot-authorize-url", NoAuth, nil, &out)
	return out.AuthorizeURL, err
}

// DiscordLink is the result of linking a Discord account.
type DiscordLink struct {
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	Message         string `json:"message"`
}

// LinkDiscord completes Discord linking with the code Discord returned.
func (c *Client) LinkDiscord(ctx context.Context, ts TokenSource, code string) (DiscordLink, error) {
	var out DiscordLink
	if code == "" {
		return out, &Error{Message: "discord code is required"}
	}
	err := c.do(ctx, "auth.discord_callback", http.MethodPost, "/auth/discord/callback", ts, map[string]string{"code": code}, &out)
	return out, err
}
