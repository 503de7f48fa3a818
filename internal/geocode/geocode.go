// Package geocode resolves free-text addresses through the backend geocoder.
package geocode

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"fleetplan/internal/model"
	"fleetplan/internal/remote"
)

// ErrNoAddresses is returned for an empty lookup.
var ErrNoAddresses = errors.New("no addresses to geocode")

// Client posts address batches to the geocoder.
type Client struct {
	URL    string
	remote *remote.Client
	log    *zap.Logger
}

func NewClient(url string, rc *remote.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{URL: url, remote: rc, log: log}
}

// Lookup resolves addresses. country is an optional ISO 3166-1 alpha-2
// filter. When some addresses fail to resolve the results
// are still returned together with a *model.PartialGeocodeResult.
func (c *Client) Lookup(ctx context.Context, addresses []string, country string) ([]model.GeocodeResult, error) {
	cleaned := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoAddresses
	}
	country = strings.TrimSpace(country)

	var resp model.GeocodeResponse
	if err := c.remote.PostJSON(ctx, "geocode", c.URL, model.GeocodeRequest{Addresses: cleaned, Country: country}, &resp); err != nil {
		return nil, err
	}
	resolved := 0
	for _, r := range resp.Results {
		if r.Resolved() {
			resolved++
		}
	}
	c.log.Info("geocode complete", zap.Int("resolved", resolved), zap.Int("total", len(cleaned)))
	if resolved < len(cleaned) {
		return resp.Results, &model.PartialGeocodeResult{Resolved: resolved, Total: len(cleaned)}
	}
	return resp.Results, nil
}
