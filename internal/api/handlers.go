package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/model"
	"fleetplan/internal/optimize"
	"fleetplan/internal/preview"
	"fleetplan/internal/render"
	"fleetplan/internal/schema"
	"fleetplan/internal/session"
)

// session looks up the {id} path value, writing a 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Create()
	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CountHandler accepts {"count": n}; n may be a number or a numeric string.
func (s *Server) CountHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Count json.RawMessage `json:"count"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := sess.SubmitCount(parseCount(body.Count)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// parseCount converts the raw count; anything unparseable becomes NaN, which
// the workflow rejects.
func parseCount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return math.NaN()
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return v
		}
	}
	return math.NaN()
}

func (s *Server) ProceedHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.ProceedToShipments(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) ResetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// uploadResponse is returned for accepted uploads.
type uploadResponse struct {
	Kind    string           `json:"kind"`
	Rows    int              `json:"rows"`
	Message string           `json:"message"`
	Warning string           `json:"warning,omitempty"`
	Preview preview.Model    `json:"preview"`
	Session session.Snapshot `json:"session"`
}

// errReader reports a body that could not be opened.
type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// UploadHandler serves both /vehicles and /shipments. The body is the CSV
// text itself or a multipart form with a "file" field.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kind := schema.Vehicle
	if strings.HasSuffix(r.URL.Path, "/shipments") {
		kind = schema.Shipment
	}
	if n := s.Cfg.Server.MaxUploadBytes; n > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, n)
	}
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			body = errReader{err: fmt.Errorf("missing file field: %w", err)}
		} else {
			defer func() { _ = f.Close() }()
			body = f
		}
	}

	out, err := sess.Upload(r.Context(), kind, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := uploadResponse{
		Kind:    kind.String(),
		Rows:    len(out.Table.Rows),
		Message: out.Message(),
		Preview: preview.Render(out.Table, s.Cfg.Preview.Limit),
		Session: sess.Snapshot(),
	}
	if out.Warning != nil {
		resp.Warning = out.Warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PreviewHandler renders the last uploaded table, rejected or not.
// ?format=html returns table markup.
func (s *Server) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kind, err := schema.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid kind", err.Error(), r.URL.Path)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer", r.URL.Path)
			return
		}
		limit = n
	}
	m := sess.Preview(kind, limit)
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, m.HTML())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ExportHandler downloads the loaded table as RFC4180 CSV.
func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kind, err := schema.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid kind", err.Error(), r.URL.Path)
		return
	}
	t, ok := sess.Dataset(kind)
	if !ok {
		writeProblem(w, http.StatusNotFound, "Dataset not loaded", kind.String()+" have not been loaded", r.URL.Path)
		return
	}
	writeCSV(w, kind.String()+".csv", csvtable.Marshal(t))
}

// TemplateHandler serves the header-only template for /v1/templates/{kind}.csv.
func (s *Server) TemplateHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(r.PathValue("file"), ".csv")
	name = strings.TrimSuffix(name, "_template")
	kind, err := schema.ParseKind(name)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Unknown template", err.Error(), r.URL.Path)
		return
	}
	writeCSV(w, kind.TemplateName(), csvtable.Template(kind.Columns()))
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// drawResponse reports the capture state after a draw action.
type drawResponse struct {
	Accepted *bool            `json:"accepted,omitempty"`
	Zone     *model.Zone      `json:"zone,omitempty"`
	Session  session.Snapshot `json:"session"`
}

func (s *Server) DrawBeginHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Kind string `json:"kind"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	kind, err := model.ParseZoneKind(body.Kind)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid zone kind", err.Error(), r.URL.Path)
		return
	}
	sess.BeginDraw(r.Context(), kind)
	writeJSON(w, http.StatusOK, drawResponse{Session: sess.Snapshot()})
}

func (s *Server) DrawCaptureHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var p *model.LatLng
	if err := decodeJSON(r, &p); err != nil || p == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid point", "body must be {\"lat\":..,\"lng\":..}", r.URL.Path)
		return
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		writeProblem(w, http.StatusBadRequest, "Invalid point", "coordinates out of range", r.URL.Path)
		return
	}
	err := sess.CapturePoint(*p)
	accepted := err == nil
	if err != nil && !errors.Is(err, session.ErrNotDrawing) {
		writeError(w, r, err)
		return
	}
	// a click outside drawing mode is ignored, not an error
	writeJSON(w, http.StatusOK, drawResponse{Accepted: &accepted, Session: sess.Snapshot()})
}

func (s *Server) DrawFinishHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	z, err := sess.FinishDraw()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drawResponse{Zone: &z, Session: sess.Snapshot()})
}

func (s *Server) ClearZonesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ClearZones()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) ShowInputsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ov, err := sess.ShowInputs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) MapHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Overlays(r.Context()))
}

// LayersHandler updates the toggles; omitted fields keep their value.
func (s *Server) LayersHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body struct {
		ShowInputs *bool `json:"showInputs"`
		ShowStops  *bool `json:"showStops"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	v := sess.Snapshot().Layers
	if body.ShowInputs != nil {
		v.ShowInputs = *body.ShowInputs
	}
	if body.ShowStops != nil {
		v.ShowStops = *body.ShowStops
	}
	writeJSON(w, http.StatusOK, sess.SetLayers(v))
}

type optimizeBody struct {
	Options     optimize.Options      `json:"options"`
	Credentials *optimize.Credentials `json:"credentials,omitempty"`
}

type optimizeResponse struct {
	Summary  render.Summary  `json:"summary"`
	Overlays render.Overlays `json:"overlays"`
}

func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body optimizeBody
	if err := decodeJSON(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if m := body.Options.MaxLengthM; m != nil && (*m <= 0 || math.IsNaN(*m) || math.IsInf(*m, 0)) {
		writeProblem(w, http.StatusBadRequest, "Invalid options", "max_length_m must be positive", r.URL.Path)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.Cfg.Optimizer.GetTimeout()+5*time.Second)
	defer cancel()
	sum, err := sess.Optimize(ctx, body.Options, body.Credentials)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, optimizeResponse{Summary: sum, Overlays: sess.Overlays(ctx)})
}

func (s *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sum, err := sess.Summary()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type geocodeResponse struct {
	Results  []model.GeocodeResult `json:"results"`
	Resolved int                   `json:"resolved"`
	Total    int                   `json:"total"`
}

func (s *Server) GeocodeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body model.GeocodeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	res, err := sess.Geocode(r.Context(), body.Addresses, body.Country)
	var partial *model.PartialGeocodeResult
	if err != nil && !errors.As(err, &partial) {
		writeError(w, r, err)
		return
	}
	out := geocodeResponse{Results: res, Total: len(res)}
	for _, g := range res {
		if g.Resolved() {
			out.Resolved++
		}
	}
	if partial != nil {
		out.Resolved, out.Total = partial.Resolved, partial.Total
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check Redis connectivity when fan-out goes through Redis
	type pinger interface{ Ping(ctx context.Context) error }
	if p, ok := s.Broker.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
