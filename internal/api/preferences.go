package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/byNolo/nolofication/internal/domain"
)

// GlobalPreferences loads the user's defaults.
func (c *Client) GlobalPreferences(ctx context.Context, ts TokenSource) (domain.GlobalPreferences, error) {
	var out domain.GlobalPreferences
	err := c.do(ctx, "preferences.get", http.MethodGet, "/preferences", ts, nil, &out)
	return out, err
}

// UpdateGlobalPreferences replaces the user's defaults and returns the stored result.
func (c *Client) UpdateGlobalPreferences(ctx context.Context, ts TokenSource, prefs domain.GlobalPreferences) (domain.GlobalPreferences, error) {
	var out domain.GlobalPreferences
	if err := checkGlobal(prefs); err != nil {
		return out, invalid(err)
	}
	err := c.do(ctx, "preferences.put", http.MethodPut, "/preferences", ts, prefs, &out)
	return out, err
}

// SiteInfo is the site header returned with site preferences.
type SiteInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SitePreferencesResponse is the combined document for one site.
type SitePreferencesResponse struct {
	Info      SiteInfo                 `json:"site"`
	Global    domain.GlobalPreferences `json:"global_preferences"`
	Overrides domain.SitePreferences   `json:"site_preferences"`
}

// SitePreferences loads the site header plus the user's global and site layers.
func (c *Client) SitePreferences(ctx context.Context, ts TokenSource, siteID string) (SitePreferencesResponse, error) {
	var out SitePreferencesResponse
	err := c.do(ctx, "site_preferences.get", http.MethodGet, "/sites/"+pathEscape(siteID)+"/preferences", ts, nil, &out)
	return out, err
}

// UpdateSitePreferences sends an override patch. Channels present in the
// patch are written (Unset clears an override); absent ones are untouched.
func (c *Client) UpdateSitePreferences(ctx context.Context, ts TokenSource, siteID string, patch domain.SitePreferences) (domain.SitePreferences, error) {
	var out domain.SitePreferences
	if err := checkChannels(patch.Channels); err != nil {
		return out, invalid(err)
	}
	if err := checkSchedule(patch.Schedule); err != nil {
		return out, invalid(err)
	}
	err := c.do(ctx, "site_preferences.put", http.MethodPut, "/sites/"+pathEscape(siteID)+"/preferences", ts, patch, &out)
	return out, err
}

// DeleteSitePreferences drops every override for the site.
func (c *Client) DeleteSitePreferences(ctx context.Context, ts TokenSource, siteID string) error {
	return c.do(ctx, "site_preferences.delete", http.MethodDelete, "/sites/"+pathEscape(siteID)+"/preferences", ts, nil, nil)
}

// Categories loads the site's categories joined with the user's preferences.
func (c *Client) Categories(ctx context.Context, ts TokenSource, siteID string) ([]domain.CategoryEntry, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "categories.get", http.MethodGet, "/sites/"+pathEscape(siteID)+"/my-categories", ts, nil, &raw); err != nil {
		return nil, err
	}
	entries, err := DecodeCategoryList(raw)
	if err != nil {
		return nil, &Error{Message: "malformed category list", Status: http.StatusOK, Data: raw, Err: err}
	}
	return entries, nil
}

// DecodeCategoryList accepts either {"categories": [...]} or a bare array.
func DecodeCategoryList(b []byte) ([]domain.CategoryEntry, error) {
	var wrapped struct {
		Categories []domain.CategoryEntry `json:"categories"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil {
		return wrapped.Categories, nil
	}
	var list []domain.CategoryEntry
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateCategoryPreference upserts the user's preference for one category.
func (c *Client) UpdateCategoryPreference(ctx context.Context, ts TokenSource, siteID, key string, pref domain.CategoryPreference) (domain.CategoryPreference, error) {
	var out struct {
		Category   string                    `json:"category"`
		Preference domain.CategoryPreference `json:"preference"`
	}
	if err := checkSchedule(pref.Schedule); err != nil {
		return out.Preference, invalid(err)
	}
	path := "/sites/" + pathEscape(siteID) + "/categories/" + pathEscape(key) + "/preferences"
	err := c.do(ctx, "category_preference.put", http.MethodPut, path, ts, pref, &out)
	return out.Preference, err
}
