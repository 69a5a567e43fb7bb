package api

import (
	"context"
	"net/http"

	"github.com/byNolo/nolofication/internal/domain"
)

// PublicSites lists active, approved sites. No authentication needed.
func (c *Client) PublicSites(ctx context.Context) ([]domain.Site, error) {
	var out struct {
		Total int           `json:"total"`
		Sites []domain.Site `json:"sites"`
	}
	err := c.do(ctx, "sites.public", http.MethodGet, "/sites/public", NoAuth, nil, &out)
	return out.Sites, err
}
