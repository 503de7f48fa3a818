package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fleetplan/internal/config"
	"fleetplan/internal/geocode"
	"fleetplan/internal/metrics"
	"fleetplan/internal/optimize"
	"fleetplan/internal/remote"
	"fleetplan/internal/render"
	"fleetplan/internal/session"
)

type Server struct {
	Cfg      *config.Config
	Sessions *session.Memory
	Broker   EventBroker
	Log      *zap.Logger

	optimizeEnabled bool
	geocodeEnabled  bool
}

// NewServer wires the configured collaborators. The optimizer and geocoder
// are only attached when their URLs are set; Redis fan-out only when
// REDIS_URL is set, falling back to the in-process broker.
func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	deps := &session.Deps{
		Renderer: render.NewRenderer(render.Config{
			OSMURL:    cfg.Tiles.OSMURL,
			TomTomURL: cfg.Tiles.TomTomURL,
		}),
		Log:          log,
		PreviewLimit: cfg.Preview.Limit,
	}

	s := &Server{Cfg: cfg, Log: log}

	optRemote := remote.New(cfg.Optimizer.GetTimeout(), limiter(cfg.Optimizer), cfg.Optimizer.Secret, log)
	opt := optimize.NewClient(cfg.Optimizer.URL, cfg.ConfigURL, optRemote, log)
	deps.Config = opt
	if cfg.Optimizer.Enabled() {
		deps.Optimizer = opt
		s.optimizeEnabled = true
	}
	if cfg.Geocoder.Enabled() {
		geoRemote := remote.New(cfg.Geocoder.GetTimeout(), limiter(cfg.Geocoder), cfg.Geocoder.Secret, log)
		deps.Geocoder = geocode.NewClient(cfg.Geocoder.URL, geoRemote, log)
		s.geocodeEnabled = true
	}

	// Broker selection
	var broker EventBroker = NewBroker()
	if cfg.Redis.URL != "" {
		rb, err := NewRedisBroker(cfg.Redis.URL, cfg.Redis.Channel, log)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		} else {
			broker = rb
		}
	}
	s.Broker = broker
	deps.Notifier = broker
	s.Sessions = session.NewMemory(deps)
	return s, nil
}

func limiter(e config.EndpointConfig) *rate.Limiter {
	if e.RPS <= 0 {
		return nil
	}
	burst := e.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(e.RPS), burst)
}

// Routes builds the HTTP handler with middleware applied.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("POST /v1/sessions", s.CreateSessionHandler)
	mux.HandleFunc("GET /v1/sessions/{id}", s.GetSessionHandler)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.DeleteSessionHandler)

	// Dataset workflow
	mux.HandleFunc("POST /v1/sessions/{id}/count", s.CountHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/vehicles", s.UploadHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/proceed", s.ProceedHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/shipments", s.UploadHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", s.ResetHandler)
	mux.HandleFunc("GET /v1/sessions/{id}/preview/{kind}", s.PreviewHandler)
	mux.HandleFunc("GET /v1/sessions/{id}/export/{kind}", s.ExportHandler)

	// Zones
	mux.HandleFunc("POST /v1/sessions/{id}/draw/begin", s.DrawBeginHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/draw/capture", s.DrawCaptureHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/draw/finish", s.DrawFinishHandler)
	mux.HandleFunc("DELETE /v1/sessions/{id}/zones", s.ClearZonesHandler)

	// Map and results
	mux.HandleFunc("POST /v1/sessions/{id}/map", s.ShowInputsHandler)
	mux.HandleFunc("GET /v1/sessions/{id}/map", s.MapHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/layers", s.LayersHandler)
	mux.HandleFunc("GET /v1/sessions/{id}/summary", s.SummaryHandler)
	if s.optimizeEnabled {
		mux.HandleFunc("POST /v1/sessions/{id}/optimize", s.OptimizeHandler)
	}
	if s.geocodeEnabled {
		mux.HandleFunc("POST /v1/sessions/{id}/geocode", s.GeocodeHandler)
	}

	// Status stream
	mux.HandleFunc("GET /v1/sessions/{id}/events", s.EventsWSHandler)

	// Templates
	mux.HandleFunc("GET /v1/templates/{file}", s.TemplateHandler)

	// Health, metrics, debug
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /debug/info", s.DebugJSON)

	var h http.Handler = mux
	h = s.rateLimitMiddleware(h)
	h = s.metricsMiddleware(h)
	h = s.logMiddleware(h)
	return h
}

// Run starts the session janitor; it returns when ctx is done.
func (s *Server) Run(ctx context.Context) {
	ttl := s.Cfg.GetSessionTTL()
	interval := ttl / 4
	if interval <= 0 {
		interval = ttl
	}
	s.Sessions.RunJanitor(ctx, ttl, interval)
}

// Close releases broker connections.
func (s *Server) Close() error {
	if c, ok := s.Broker.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
