package optimize

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetplan/internal/model"
	"fleetplan/internal/remote"
)

// Client talks to the optimizer service and its config endpoint.
type Client struct {
	URL       string
	ConfigURL string
	remote    *remote.Client
	log       *zap.Logger
}

// NewClient wraps a remote.Client. configURL may be empty.
func NewClient(url, configURL string, rc *remote.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{URL: url, ConfigURL: configURL, remote: rc, log: log}
}

// Optimize posts req and returns the decoded response. Transport failures and
// non-2xx answers come back as *model.NetworkError.
func (c *Client) Optimize(ctx context.Context, req model.OptimizeRequest) (model.OptimizeResponse, error) {
	var resp model.OptimizeResponse
	start := time.Now()
	if err := c.remote.PostJSON(ctx, "optimize", c.URL, req, &resp); err != nil {
		return model.OptimizeResponse{}, err
	}
	c.log.Info("optimize complete",
		zap.Int("vehicles", len(req.Vehicles.Rows)),
		zap.Int("shipments", len(req.Shipments.Rows)),
		zap.Int("zones", len(req.Zones)),
		zap.Int("assignments", len(resp.Assignments)),
		zap.Duration("took", time.Since(start)))
	if resp.ProviderError != "" {
		c.log.Warn("optimizer provider error", zap.String("provider_error", resp.ProviderError))
	}
	return resp, nil
}

// FetchConfig reads the backend's public config. A client without a config
// URL returns the zero config.
func (c *Client) FetchConfig(ctx context.Context) (model.RemoteConfig, error) {
	var cfg model.RemoteConfig
	if c.ConfigURL == "" {
		return cfg, nil
	}
	if err := c.remote.GetJSON(ctx, "config", c.ConfigURL, &cfg); err != nil {
		return model.RemoteConfig{}, err
	}
	return cfg, nil
}
