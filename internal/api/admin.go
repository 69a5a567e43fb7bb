package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/byNolo/nolofication/internal/domain"
)

// Admin endpoints. The backend enforces the role; callers only hide the UI.

func (c *Client) AdminDashboard(ctx context.Context, ts TokenSource) (domain.Dashboard, error) {
	var out domain.Dashboard
	err := c.do(ctx, "admin.dashboard", http.MethodGet, "/admin/dashboard", ts, nil, &out)
	return out, err
}

func (c *Client) AdminSites(ctx context.Context, ts TokenSource) ([]domain.AdminSite, error) {
	var out struct {
		Sites []domain.AdminSite `json:"sites"`
	}
	err := c.do(ctx, "admin.sites", http.MethodGet, "/admin/sites", ts, nil, &out)
	return out.Sites, err
}

// NewSite is the body for creating a site.
type NewSite struct {
	SiteID      string `json:"site_id" validate:"required,max=50,excludesall=/?#"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// CreatedSite carries the one-time view of a new site's API key.
type CreatedSite struct {
	SiteID     string `json:"site_id"`
	Name       string `json:"name"`
	APIKey     string `json:"api_key"`
	IsApproved bool   `json:"is_approved"`
	IsActive   bool   `json:"is_active"`
}

func (c *Client) AdminCreateSite(ctx context.Context, ts TokenSource, in NewSite) (CreatedSite, error) {
	var out struct {
		Site CreatedSite `json:"site"`
	}
	if err := validate.Struct(in); err != nil {
		return out.Site, invalid(err)
	}
	err := c.do(ctx, "admin.site_create", http.MethodPost, "/admin/sites", ts, in, &out)
	return out.Site, err
}

// SiteUpdate changes a site's name and/or description. Nil fields are left alone.
type SiteUpdate struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

func (c *Client) AdminUpdateSite(ctx context.Context, ts TokenSource, siteID string, in SiteUpdate) error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	return c.do(ctx, "admin.site_update", http.MethodPut, "/admin/sites/"+pathEscape(siteID), ts, in, nil)
}

func (c *Client) AdminDeleteSite(ctx context.Context, ts TokenSource, siteID string) error {
	return c.do(ctx, "admin.site_delete", http.MethodDelete, "/admin/sites/"+pathEscape(siteID), ts, nil, nil)
}

// SiteAction is a state change applied to a site.
type SiteAction string

const (
	ActionApprove    SiteAction = "approve"
	ActionActivate   SiteAction = "activate"
	ActionDeactivate SiteAction = "deactivate"
)

// AdminSiteAction approves, activates or deactivates a site and returns the backend message.
func (c *Client) AdminSiteAction(ctx context.Context, ts TokenSource, siteID string, action SiteAction) (string, error) {
	switch action {
	case ActionApprove, ActionActivate, ActionDeactivate:
	default:
		return "", &Error{Message: "invalid input: unknown site action " + string(action)}
	}
	var out messageResponse
	path := "/admin/sites/" + pathEscape(siteID) + "/" + string(action)
	err := c.do(ctx, "admin.site_"+string(action), http.MethodPost, path, ts, nil, &out)
	return out.Message, err
}

// AdminRegenerateKey issues a new API key for a site and returns it.
func (c *Client) AdminRegenerateKey(ctx context.Context, ts TokenSource, siteID string) (string, error) {
	var out struct {
		APIKey string `json:"api_key"`
	}
	path := "/admin/sites/" + pathEscape(siteID) + "/regenerate-key"
	err := c.do(ctx, "admin.site_regenerate_key", http.MethodPost, path, ts, nil, &out)
	return out.APIKey, err
}

// NewCategory is the body for adding a category to a site.
type NewCategory struct {
	Key              string `json:"key" validate:"required,max=100,excludesall=/?#"`
	Name             string `json:"name" validate:"required,max=100"`
	Description      string `json:"description"`
	DefaultFrequency string `json:"default_frequency" validate:"oneof=instant daily weekly"`
	DefaultTimeOfDay string `json:"default_time_of_day,omitempty" validate:"omitempty,hhmm"`
	DefaultWeeklyDay *int   `json:"default_weekly_day,omitempty" validate:"omitempty,min=0,max=6"`
}

func (c *Client) AdminCreateCategory(ctx context.Context, ts TokenSource, siteID string, in NewCategory) (domain.Category, error) {
	var out struct {
		Category domain.Category `json:"category"`
	}
	if in.DefaultFrequency == "" {
		in.DefaultFrequency = string(domain.FrequencyInstant)
	}
	if err := validate.Struct(in); err != nil {
		return out.Category, invalid(err)
	}
	path := "/admin/sites/" + pathEscape(siteID) + "/categories"
	err := c.do(ctx, "admin.category_create", http.MethodPost, path, ts, in, &out)
	return out.Category, err
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Users  []domain.User `json:"users"`
}

func (c *Client) AdminUsers(ctx context.Context, ts TokenSource, limit, offset int) (UserPage, error) {
	var out UserPage
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	err := c.do(ctx, "admin.users", http.MethodGet, withQuery("/admin/users", q), ts, nil, &out)
	return out, err
}

func (c *Client) AdminNotifications(ctx context.Context, ts TokenSource, opts ListOptions) (domain.NotificationPage, error) {
	var out domain.NotificationPage
	err := c.do(ctx, "admin.notifications", http.MethodGet, withQuery("/admin/notifications", opts.query()), ts, nil, &out)
	return out, err
}

// Broadcast targets.
const (
	TargetAll       = "all"
	TargetSiteUsers = "site_users"
)

// Broadcast is a notification sent to every user or to the users of one site.
type Broadcast struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
	Type    string `json:"type" validate:"oneof=info success warning error"`
	Target  string `json:"target" validate:"oneof=all site_users"`
	SiteID  string `json:"site_id,omitempty" validate:"required_if=Target site_users"`
}

func (c *Client) AdminBroadcast(ctx context.Context, ts TokenSource, in Broadcast) (string, error) {
	if in.Type == "" {
		in.Type = domain.TypeInfo
	}
	if in.Target == "" {
		in.Target = TargetAll
	}
	if err := validate.Struct(in); err != nil {
		return "", invalid(err)
	}
	var out messageResponse
	err := c.do(ctx, "admin.broadcast", http.MethodPost, "/admin/broadcast", ts, in, &out)
	return out.Message, err
}
