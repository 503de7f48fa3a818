// Package session hosts one operator's planning workspace: the dataset
// workflow, zone capture, map overlays and the last optimizer result.
//
// Every operation takes the session lock for its state transitions only.
// Network and body reads happen outside the lock and re-enter it to apply
// their result, guarded by a per-operation ticket so that a completion that
// was overtaken by a newer request is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/geometry"
	"fleetplan/internal/metrics"
	"fleetplan/internal/model"
	"fleetplan/internal/render"
	"fleetplan/internal/schema"
	"fleetplan/internal/workflow"
)

var (
	// ErrStale is returned when a newer request of the same kind was issued
	// while this one was in flight. Its result was discarded.
	ErrStale = errors.New("superseded by a newer request")
	// ErrDownstreamDisabled is returned by map and optimizer actions before
	// both datasets are loaded.
	ErrDownstreamDisabled = fmt.Errorf("%w: load vehicles and shipments first", workflow.ErrInvalidTransition)
	// ErrNoResult is returned when no optimization has completed yet.
	ErrNoResult = errors.New("no optimization result yet")
	// ErrUnavailable is returned when the backing service is not configured.
	ErrUnavailable = errors.New("service not configured")
	// ErrNotDrawing is returned by capture and finish outside drawing mode.
	ErrNotDrawing = fmt.Errorf("%w: not drawing", workflow.ErrInvalidTransition)
	// ErrRingTooShort is returned by finish with fewer than three points.
	ErrRingTooShort = fmt.Errorf("a zone needs at least %d points", geometry.MinRing)
)

// Optimizer is the remote optimizer.
type Optimizer interface {
	Optimize(ctx context.Context, req model.OptimizeRequest) (model.OptimizeResponse, error)
}

// ConfigSource serves the public map config.
type ConfigSource interface {
	FetchConfig(ctx context.Context) (model.RemoteConfig, error)
}

// Geocoder resolves addresses.
type Geocoder interface {
	Lookup(ctx context.Context, addresses []string, country string) ([]model.GeocodeResult, error)
}

// Notifier receives status events. Publish must not block for long.
type Notifier interface {
	Publish(sessionID string, evt Event)
}

// Deps are the collaborators shared by all sessions. Optimizer, Config,
// Geocoder and Notifier may be nil.
type Deps struct {
	Optimizer    Optimizer
	Config       ConfigSource
	Geocoder     Geocoder
	Renderer     *render.Renderer
	Notifier     Notifier
	Log          *zap.Logger
	PreviewLimit int
	Now          func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Area is the part of the page a status message belongs to.
type Area string

const (
	AreaCount     Area = "count"
	AreaVehicles  Area = "vehicles"
	AreaShipments Area = "shipments"
	AreaMap       Area = "map"
	AreaOptimize  Area = "optimize"
	AreaGeocode   Area = "geocode"
)

// Level grades a status message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Status is the latest message shown for an area.
type Status struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Event is published whenever a status changes.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Area    Area           `json:"area"`
	Status  Status         `json:"status"`
	Stage   workflow.Stage `json:"stage"`
	Enabled bool           `json:"downstream_enabled"`
}

// op names used for tickets, metrics and logs.
const (
	opVehicles  = "vehicles"
	opShipments = "shipments"
	opOptimize  = "optimize"
	opGeocode   = "geocode"
	opMapConfig = "map_config"
)

// Session is one operator's workspace. All methods are safe for concurrent
// use.
type Session struct {
	ID string

	deps *Deps
	log  *zap.Logger

	mu       sync.Mutex
	ctrl     *workflow.Controller
	capture  *geometry.Capture
	ms       *render.MapSession
	vis      render.Visibility
	previews map[schema.Kind]csvtable.Table
	resp     *model.OptimizeResponse
	geocoded []model.GeocodeResult
	status   map[Area]Status
	tickets  map[string]uint64
	pending  []Event
	created  time.Time
	touched  time.Time
}

// withDefaults returns a copy of d with the logger and renderer filled in.
func (d *Deps) withDefaults() *Deps {
	c := *d
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	if c.Renderer == nil {
		c.Renderer = render.NewRenderer(render.Config{})
	}
	return &c
}

// New creates an empty session in the count entry stage. deps is copied;
// later changes to it do not reach the session.
func New(deps *Deps) *Session {
	deps = deps.withDefaults()
	id := uuid.New().String()
	now := deps.now()
	return &Session{
		ID:       id,
		deps:     deps,
		log:      deps.Log.With(zap.String("session", id)),
		ctrl:     workflow.New(),
		capture:  geometry.NewCapture(),
		vis:      render.DefaultVisibility,
		previews: map[schema.Kind]csvtable.Table{},
		status:   map[Area]Status{},
		tickets:  map[string]uint64{},
		created:  now,
		touched:  now,
	}
}

// locked runs fn under the session lock and publishes the events it queued
// after releasing it.
func (s *Session) locked(fn func() error) error {
	s.mu.Lock()
	s.touched = s.deps.now()
	err := fn()
	evs := s.pending
	s.pending = nil
	s.mu.Unlock()
	s.publish(evs)
	return err
}

func (s *Session) publish(evs []Event) {
	if s.deps.Notifier == nil {
		return
	}
	for _, e := range evs {
		s.deps.Notifier.Publish(s.ID, e)
	}
}

// setStatus records a message for area and queues an event. Caller holds mu.
func (s *Session) setStatus(area Area, level Level, msg string) {
	st := Status{Level: level, Message: msg, At: s.deps.now()}
	s.status[area] = st
	s.pending = append(s.pending, Event{
		ID:      uuid.New().String(),
		Type:    "status",
		Area:    area,
		Status:  st,
		Stage:   s.ctrl.Stage(),
		Enabled: s.ctrl.DownstreamEnabled(),
	})
}

// issue hands out a new ticket for op. Caller holds mu.
func (s *Session) issue(op string) uint64 {
	s.tickets[op]++
	return s.tickets[op]
}

// current reports whether ticket is still the latest for op, logging and
// counting the discard when it is not. Caller holds mu.
func (s *Session) current(op string, ticket uint64) bool {
	if s.tickets[op] == ticket {
		return true
	}
	metrics.StaleCompletions.WithLabelValues(op).Inc()
	s.log.Info("discarding stale completion",
		zap.String("op", op),
		zap.Uint64("ticket", ticket),
		zap.Uint64("latest", s.tickets[op]))
	return false
}

// Touched returns the time of the last operation.
func (s *Session) Touched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Snapshot is the JSON view of a session.
type Snapshot struct {
	ID                string             `json:"id"`
	Stage             workflow.Stage     `json:"stage"`
	Warning           bool               `json:"warning"`
	DeclaredCount     *float64           `json:"declared_count,omitempty"`
	VehicleRows       *int               `json:"vehicle_rows,omitempty"`
	ShipmentRows      *int               `json:"shipment_rows,omitempty"`
	DownstreamEnabled bool               `json:"downstream_enabled"`
	Draw              geometry.DrawState `json:"draw"`
	FinishEnabled     bool               `json:"finish_enabled"`
	Zones             []model.Zone       `json:"zones"`
	Layers            render.Visibility  `json:"layers"`
	HasResult         bool               `json:"has_result"`
	Status            map[Area]Status    `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:                s.ID,
		Stage:             s.ctrl.Stage(),
		Warning:           s.ctrl.Warning(),
		DownstreamEnabled: s.ctrl.DownstreamEnabled(),
		Draw:              s.capture.State(),
		FinishEnabled:     s.capture.FinishEnabled(),
		Zones:             s.capture.Zones(),
		Layers:            s.vis,
		HasResult:         s.resp != nil,
		Status:            make(map[Area]Status, len(s.status)),
		CreatedAt:         s.created,
		UpdatedAt:         s.touched,
	}
	if n, ok := s.ctrl.DeclaredCount(); ok {
		snap.DeclaredCount = &n
	}
	if t := s.ctrl.Vehicles().Table; t != nil {
		n := len(t.Rows)
		snap.VehicleRows = &n
	}
	if t := s.ctrl.Shipments().Table; t != nil {
		n := len(t.Rows)
		snap.ShipmentRows = &n
	}
	if snap.Zones == nil {
		snap.Zones = []model.Zone{}
	}
	for k, v := range s.status {
		snap.Status[k] = v
	}
	return snap
}
