package domain

// Site is a public, approved site users can configure.
type Site struct {
	SiteID      string `json:"site_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AdminSite is the administrator's view of a registered site.
type AdminSite struct {
	ID                int64  `json:"id"`
	SiteID            string `json:"site_id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	CreatorKeynID     string `json:"creator_keyn_id"`
	IsApproved        bool   `json:"is_approved"`
	IsActive          bool   `json:"is_active"`
	APIKey            string `json:"api_key"`
	CreatedAt         string `json:"created_at"`
	NotificationCount int    `json:"notification_count"`
	CategoryCount     int    `json:"category_count"`
}

// Status is a one-word state for listings.
func (s AdminSite) Status() string {
	switch {
	case !s.IsApproved:
		return "pending"
	case !s.IsActive:
		return "inactive"
	}
	return "active"
}

// DashboardStats are the admin dashboard totals.
type DashboardStats struct {
	Notifications int `json:"notifications"`
	Users         int `json:"users"`
	Sites         int `json:"sites"`
	ActiveSites   int `json:"active_sites"`
	PendingSites  int `json:"pending_sites"`
}

type Dashboard struct {
	Stats               DashboardStats  `json:"stats"`
	Channels            map[Channel]int `json:"channels"`
	RecentNotifications []Notification  `json:"recent_notifications"`
}
