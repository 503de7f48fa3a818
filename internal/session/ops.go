package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/geocode"
	"fleetplan/internal/metrics"
	"fleetplan/internal/model"
	"fleetplan/internal/optimize"
	"fleetplan/internal/preview"
	"fleetplan/internal/render"
	"fleetplan/internal/schema"
	"fleetplan/internal/workflow"
)

// SubmitCount declares the expected number of vehicles.
func (s *Session) SubmitCount(n float64) error {
	return s.locked(func() error {
		if err := s.ctrl.SubmitCount(n); err != nil {
			s.setStatus(AreaCount, LevelError, err.Error())
			return err
		}
		s.setStatus(AreaCount, LevelSuccess, fmt.Sprintf("Expecting %g vehicles.", n))
		s.refreshInputs()
		return nil
	})
}

// ProceedToShipments opens the shipment step.
func (s *Session) ProceedToShipments() error {
	return s.locked(func() error {
		if err := s.ctrl.ProceedToShipments(); err != nil {
			return err
		}
		s.setStatus(AreaShipments, LevelInfo, "Upload the shipments file.")
		return nil
	})
}

// Upload reads a dataset body of the given kind and applies it. The body is
// read outside the session lock. A header mismatch returns the outcome (so
// the rejected table can be previewed) together with a
// *schema.HeaderMismatchError; an unreadable body returns a
// *workflow.FileReadError.
func (s *Session) Upload(ctx context.Context, kind schema.Kind, body io.Reader) (workflow.Outcome, error) {
	op := opVehicles
	if kind == schema.Shipment {
		op = opShipments
	}
	var ticket uint64
	if err := s.locked(func() error {
		if err := s.checkUploadStage(kind); err != nil {
			return err
		}
		ticket = s.issue(op)
		return nil
	}); err != nil {
		return workflow.Outcome{}, err
	}

	text, readErr := readAll(ctx, body)

	var out workflow.Outcome
	err := s.locked(func() error {
		if !s.current(op, ticket) {
			return ErrStale
		}
		area := areaOf(kind)
		if readErr != nil {
			err := s.ctrl.FailUpload(kind, readErr)
			if errors.Is(err, workflow.ErrInvalidTransition) {
				return err
			}
			metrics.Uploads.WithLabelValues(kind.String(), "unreadable").Inc()
			s.setStatus(area, LevelError, err.Error())
			s.refreshInputs()
			return err
		}
		var err error
		if kind == schema.Vehicle {
			out, err = s.ctrl.UploadVehicles(text)
		} else {
			out, err = s.ctrl.UploadShipments(text)
		}
		if errors.Is(err, workflow.ErrInvalidTransition) {
			return err
		}
		s.previews[kind] = out.Table
		s.refreshInputs()
		if err != nil {
			metrics.Uploads.WithLabelValues(kind.String(), "mismatch").Inc()
			s.setStatus(area, LevelError, err.Error())
			return err
		}
		metrics.UploadRows.WithLabelValues(kind.String()).Observe(float64(len(out.Table.Rows)))
		if out.Warning != nil {
			metrics.Uploads.WithLabelValues(kind.String(), "warning").Inc()
			s.setStatus(area, LevelWarn, out.Message())
		} else {
			metrics.Uploads.WithLabelValues(kind.String(), "loaded").Inc()
			s.setStatus(area, LevelSuccess, out.Message())
		}
		s.log.Info("dataset loaded", zap.Stringer("kind", kind), zap.Int("rows", len(out.Table.Rows)), zap.Bool("warning", out.Warning != nil))
		return nil
	})
	return out, err
}

func (s *Session) checkUploadStage(kind schema.Kind) error {
	st := s.ctrl.Stage()
	if kind == schema.Vehicle && st < workflow.AwaitingVehicleUpload {
		return workflow.ErrInvalidTransition
	}
	if kind == schema.Shipment && st < workflow.AwaitingShipmentUpload {
		return workflow.ErrInvalidTransition
	}
	return nil
}

func areaOf(kind schema.Kind) Area {
	if kind == schema.Vehicle {
		return AreaVehicles
	}
	return AreaShipments
}

// readAll drains r, giving up when ctx is done.
func readAll(ctx context.Context, r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("empty upload")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(b), nil
}

// Reset clears both datasets and the declared count. Zones, the map and the
// last optimization result are kept. In-flight uploads are discarded.
func (s *Session) Reset() {
	_ = s.locked(func() error {
		s.ctrl.Reset()
		s.previews = map[schema.Kind]csvtable.Table{}
		s.issue(opVehicles)
		s.issue(opShipments)
		delete(s.status, AreaVehicles)
		delete(s.status, AreaShipments)
		s.refreshInputs()
		s.setStatus(AreaCount, LevelInfo, "Workflow reset.")
		return nil
	})
}

// Preview renders the last uploaded table of kind, including a rejected one.
func (s *Session) Preview(kind schema.Kind, limit int) preview.Model {
	if limit <= 0 {
		limit = s.deps.PreviewLimit
	}
	s.mu.Lock()
	t := s.previews[kind]
	s.mu.Unlock()
	return preview.Render(t, limit)
}

// Dataset returns the loaded (validated) table of kind.
func (s *Session) Dataset(kind schema.Kind) (csvtable.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.ctrl.Vehicles()
	if kind == schema.Shipment {
		slot = s.ctrl.Shipments()
	}
	if !slot.Loaded() {
		return csvtable.Table{}, false
	}
	return *slot.Table, true
}

// ensureMap creates the map session on first need. The remote config fetch
// runs outside the lock; a failed fetch falls back to the default basemap.
func (s *Session) ensureMap(ctx context.Context) {
	s.mu.Lock()
	have := s.ms != nil
	s.mu.Unlock()
	if have {
		return
	}
	var rc model.RemoteConfig
	if s.deps.Config != nil {
		var err error
		rc, err = s.deps.Config.FetchConfig(ctx)
		if err != nil {
			s.log.Warn("config fetch failed, using default tiles", zap.Error(err))
		}
	}
	_ = s.locked(func() error {
		if s.ms != nil {
			return nil
		}
		s.ms = s.deps.Renderer.NewMapSession(rc)
		s.ms.SetVisibility(s.vis)
		s.deps.Renderer.RenderZones(s.ms, s.capture.Zones(), s.capture.Provisional())
		if s.resp != nil {
			s.deps.Renderer.RenderResponse(s.ms, *s.resp)
		}
		s.log.Debug("map session created", zap.String("tiles", s.ms.Tiles().Name))
		return nil
	})
}

// refreshInputs redraws the inputs layer if inputs are on the map. Caller
// holds mu.
func (s *Session) refreshInputs() {
	if s.ms == nil || len(s.ms.Layer(render.LayerInputs).Markers) == 0 {
		return
	}
	s.deps.Renderer.RenderInputs(s.ms, s.ctrl.Vehicles().Table, s.ctrl.Shipments().Table)
}

// refreshZones redraws the zones layer. Caller holds mu.
func (s *Session) refreshZones() {
	if s.ms == nil {
		return
	}
	s.deps.Renderer.RenderZones(s.ms, s.capture.Zones(), s.capture.Provisional())
}

// ShowInputs draws the loaded datasets on the map.
func (s *Session) ShowInputs(ctx context.Context) (render.Overlays, error) {
	if err := s.locked(func() error {
		if !s.ctrl.DownstreamEnabled() {
			return ErrDownstreamDisabled
		}
		return nil
	}); err != nil {
		return render.Overlays{}, err
	}
	s.ensureMap(ctx)
	var ov render.Overlays
	err := s.locked(func() error {
		if !s.ctrl.DownstreamEnabled() {
			return ErrDownstreamDisabled
		}
		skipped := s.deps.Renderer.RenderInputs(s.ms, s.ctrl.Vehicles().Table, s.ctrl.Shipments().Table)
		if skipped > 0 {
			s.setStatus(AreaMap, LevelWarn, fmt.Sprintf("Inputs shown on map; %d points had invalid coordinates.", skipped))
		} else {
			s.setStatus(AreaMap, LevelSuccess, "Inputs shown on map.")
		}
		ov = s.ms.Overlays()
		return nil
	})
	return ov, err
}

// Overlays returns the current map, creating it if needed.
func (s *Session) Overlays(ctx context.Context) render.Overlays {
	s.ensureMap(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ms.Overlays()
}

// SetLayers applies the show/hide toggles.
func (s *Session) SetLayers(v render.Visibility) render.Visibility {
	_ = s.locked(func() error {
		s.vis = v
		if s.ms != nil {
			s.ms.SetVisibility(v)
		}
		return nil
	})
	return v
}

// BeginDraw starts drawing a zone of kind.
func (s *Session) BeginDraw(ctx context.Context, kind model.ZoneKind) {
	s.ensureMap(ctx)
	_ = s.locked(func() error {
		s.capture.Begin(kind)
		s.refreshZones()
		s.setStatus(AreaMap, LevelInfo, fmt.Sprintf("Drawing %s zone: click to add points, then finish.", kind))
		return nil
	})
}

// CapturePoint adds p to the drawing in progress.
func (s *Session) CapturePoint(p model.LatLng) error {
	return s.locked(func() error {
		if !s.capture.Capture(p) {
			return ErrNotDrawing
		}
		s.refreshZones()
		return nil
	})
}

// FinishDraw commits the pending ring. With fewer than three points nothing
// changes and ErrRingTooShort is returned.
func (s *Session) FinishDraw() (model.Zone, error) {
	var z model.Zone
	err := s.locked(func() error {
		if !s.capture.FinishEnabled() {
			return ErrNotDrawing
		}
		var ok bool
		if z, ok = s.capture.Finish(); !ok {
			s.setStatus(AreaMap, LevelWarn, ErrRingTooShort.Error()+".")
			return ErrRingTooShort
		}
		metrics.ZonesCommitted.WithLabelValues(z.Kind.String()).Inc()
		s.refreshZones()
		s.setStatus(AreaMap, LevelSuccess, fmt.Sprintf("Added %s zone with %d points.", z.Kind, len(z.Ring)))
		return nil
	})
	return z, err
}

// ClearZones removes every committed zone.
func (s *Session) ClearZones() {
	_ = s.locked(func() error {
		s.capture.ClearAll()
		s.refreshZones()
		s.setStatus(AreaMap, LevelInfo, "Zones cleared.")
		return nil
	})
}

// Optimize sends the datasets and zones to the optimizer and renders the
// answer. On failure the previous result, datasets and zones stay as they
// were.
func (s *Session) Optimize(ctx context.Context, opts optimize.Options, creds *optimize.Credentials) (render.Summary, error) {
	if s.deps.Optimizer == nil {
		return render.Summary{}, ErrUnavailable
	}
	var (
		req    model.OptimizeRequest
		ticket uint64
	)
	if err := s.locked(func() error {
		if !s.ctrl.DownstreamEnabled() {
			return ErrDownstreamDisabled
		}
		var err error
		req, err = optimize.BuildRequest(s.ctrl.Vehicles().Table, s.ctrl.Shipments().Table, s.capture.Zones(), opts, creds)
		if err != nil {
			return err
		}
		ticket = s.issue(opOptimize)
		s.setStatus(AreaOptimize, LevelInfo, "Optimizing...")
		return nil
	}); err != nil {
		return render.Summary{}, err
	}

	start := time.Now()
	resp, callErr := s.deps.Optimizer.Optimize(ctx, req)
	took := time.Since(start)
	if callErr == nil {
		s.ensureMap(ctx)
	}

	var sum render.Summary
	err := s.locked(func() error {
		if !s.current(opOptimize, ticket) {
			metrics.Optimizations.WithLabelValues("stale").Inc()
			return ErrStale
		}
		if callErr != nil {
			metrics.Optimizations.WithLabelValues("network_error").Inc()
			metrics.OptimizeLatency.WithLabelValues("network_error").Observe(float64(took.Milliseconds()))
			s.log.Warn("optimize failed", zap.Error(callErr))
			s.setStatus(AreaOptimize, LevelError, callErr.Error())
			return callErr
		}
		outcome := "ok"
		if resp.ProviderError != "" {
			outcome = "provider_error"
		}
		metrics.Optimizations.WithLabelValues(outcome).Inc()
		metrics.OptimizeLatency.WithLabelValues(outcome).Observe(float64(took.Milliseconds()))

		s.resp = &resp
		sum = s.deps.Renderer.RenderResponse(s.ms, resp)
		msg := fmt.Sprintf("Optimized %d routes: %.1f km, %.0f min.", len(resp.Assignments), sum.TotalDistanceKm, sum.TotalTimeMin)
		level := LevelSuccess
		if resp.Notice != "" {
			msg += " " + resp.Notice
		}
		if resp.ProviderError != "" {
			msg += " Provider error: " + resp.ProviderError
			level = LevelWarn
		}
		s.setStatus(AreaOptimize, level, msg)
		return nil
	})
	return sum, err
}

// Summary returns the last optimization summary.
func (s *Session) Summary() (render.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resp == nil {
		return render.Summary{}, ErrNoResult
	}
	return render.Summarize(*s.resp), nil
}

// Geocode resolves addresses. A partial result is returned with a
// *model.PartialGeocodeResult and is not treated as a failure.
func (s *Session) Geocode(ctx context.Context, addresses []string, country string) ([]model.GeocodeResult, error) {
	if s.deps.Geocoder == nil {
		return nil, ErrUnavailable
	}
	var ticket uint64
	_ = s.locked(func() error {
		ticket = s.issue(opGeocode)
		return nil
	})

	res, callErr := s.deps.Geocoder.Lookup(ctx, addresses, country)

	err := s.locked(func() error {
		if !s.current(opGeocode, ticket) {
			return ErrStale
		}
		var partial *model.PartialGeocodeResult
		switch {
		case errors.As(callErr, &partial):
			metrics.Geocodes.WithLabelValues("partial").Inc()
			s.geocoded = res
			s.setStatus(AreaGeocode, LevelWarn, fmt.Sprintf("Geocoded %d/%d addresses.", partial.Resolved, partial.Total))
		case errors.Is(callErr, geocode.ErrNoAddresses):
			metrics.Geocodes.WithLabelValues("invalid_input").Inc()
			s.setStatus(AreaGeocode, LevelWarn, "Enter at least one address to geocode.")
		case callErr != nil:
			metrics.Geocodes.WithLabelValues("network_error").Inc()
			s.setStatus(AreaGeocode, LevelError, callErr.Error())
			return callErr
		default:
			metrics.Geocodes.WithLabelValues("ok").Inc()
			s.geocoded = res
			s.setStatus(AreaGeocode, LevelSuccess, fmt.Sprintf("Geocoded %d/%d addresses.", len(res), len(res)))
		}
		return callErr
	})
	if err != nil && !errors.Is(err, callErr) {
		return nil, err
	}
	return res, err
}
