package render

import (
	"fmt"
	"strconv"
	"strings"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/model"
)

// Tile defaults. The TomTom template takes the key via %s.
const (
	DefaultOSMURL    = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultTomTomURL = "https://api.tomtom.com/map/1/tile/basic/main/{z}/{x}/{y}.png?key=%s"
)

// Config is threaded into the renderer explicitly.
type Config struct {
	OSMURL    string
	TomTomURL string
}

// Renderer draws onto a MapSession. It holds no per-session state.
type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.OSMURL == "" {
		cfg.OSMURL = DefaultOSMURL
	}
	if cfg.TomTomURL == "" {
		cfg.TomTomURL = DefaultTomTomURL
	}
	return &Renderer{cfg: cfg}
}

// NewMapSession creates an empty map whose basemap is TomTom when the remote
// config carries a key and OpenStreetMap otherwise.
func (r *Renderer) NewMapSession(rc model.RemoteConfig) *MapSession {
	return newMapSession(r.TileSource(rc))
}

func (r *Renderer) TileSource(rc model.RemoteConfig) TileSource {
	if rc.TomTomKey != "" {
		return TileSource{
			Name:        "tomtom",
			URL:         fmt.Sprintf(r.cfg.TomTomURL, rc.TomTomKey),
			Attribution: "© TomTom",
		}
	}
	return TileSource{
		Name:        "osm",
		URL:         r.cfg.OSMURL,
		Attribution: "© OpenStreetMap contributors",
	}
}

// inputPoint describes one coordinate pair drawn from a dataset row.
type inputPoint struct {
	kind, lat, lng, id string
}

var (
	vehiclePoints = []inputPoint{
		{kind: "vehicle_start", lat: "start_latitude", lng: "start_longitude", id: "id"},
		{kind: "vehicle_end", lat: "end_latitude", lng: "end_longitude", id: "id"},
	}
	shipmentPoints = []inputPoint{
		{kind: "pickup", lat: "Pickup Location Lat", lng: "Pickup Location Lng", id: "Pickup Id"},
		{kind: "delivery", lat: "Delivery Location Lat", lng: "Delivery Location Lng", id: "Delivery Id"},
	}
)

// RenderInputs rebuilds the inputs layer from the loaded datasets. Either
// table may be nil. It returns how many coordinate pairs were skipped because
// they did not parse.
func (r *Renderer) RenderInputs(ms *MapSession, vehicles, shipments *csvtable.Table) int {
	l := ms.clear(LayerInputs)
	skipped := 0
	add := func(t *csvtable.Table, points []inputPoint) {
		if t == nil {
			return
		}
		for _, p := range points {
			li, gi, ii := t.Column(p.lat), t.Column(p.lng), t.Column(p.id)
			if li < 0 || gi < 0 {
				skipped += len(t.Rows)
				continue
			}
			for _, row := range t.Rows {
				pos, ok := parseLatLng(row[li], row[gi])
				if !ok {
					skipped++
					continue
				}
				id := ""
				if ii >= 0 {
					id = row[ii]
				}
				l.Markers = append(l.Markers, Marker{
					Kind:     p.kind,
					Position: pos,
					Label:    []string{strings.TrimSpace(id + " " + strings.ReplaceAll(p.kind, "_", " ")), formatLatLng(pos)},
				})
			}
		}
	}
	add(vehicles, vehiclePoints)
	add(shipments, shipmentPoints)
	ms.applyVisibility()
	return skipped
}

// RenderZones rebuilds the zones layer from the committed zones plus the
// ring being drawn, if any.
func (r *Renderer) RenderZones(ms *MapSession, zones []model.Zone, provisional []model.LatLng) {
	l := ms.clear(LayerZones)
	for _, z := range zones {
		l.Polygons = append(l.Polygons, Polygon{Kind: z.Kind, Ring: append([]model.LatLng(nil), z.Ring...)})
	}
	if len(provisional) > 0 {
		l.Polygons = append(l.Polygons, Polygon{Ring: append([]model.LatLng(nil), provisional...), Provisional: true})
	}
}

// RenderResponse rebuilds the routes and stops layers from an optimizer
// response and returns its summary. Routes with fewer than two coordinate
// pairs are not drawn. Visibility toggles are applied last.
func (r *Renderer) RenderResponse(ms *MapSession, resp model.OptimizeResponse) Summary {
	routes := ms.clear(LayerRoutes)
	stops := ms.clear(LayerStops)

	for _, a := range resp.Assignments {
		color := VehicleColor(a.VehicleID)
		if pts := swapPairs(a.Route.Coordinates); len(pts) >= 2 {
			routes.Paths = append(routes.Paths, Path{VehicleID: a.VehicleID, Color: color, Points: pts})
		}
		for i, s := range a.Stops {
			pos := model.LatLng{Lat: s.Lat, Lng: s.Lng}
			label := []string{
				fmt.Sprintf("%s #%d", a.VehicleID, i+1),
				s.Type,
				formatLatLng(pos),
			}
			if s.ETA != "" {
				label = append(label, "ETA "+s.ETA)
			}
			stops.Markers = append(stops.Markers, Marker{
				Kind:      s.Type,
				VehicleID: a.VehicleID,
				Seq:       i + 1,
				Position:  pos,
				Color:     color,
				Label:     label,
			})
		}
	}

	sum := Summarize(resp)
	ms.summary = &sum
	ms.applyVisibility()
	return sum
}

// swapPairs converts [lng, lat] pairs to LatLng, dropping malformed pairs.
func swapPairs(coords [][]float64) []model.LatLng {
	out := make([]model.LatLng, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, model.LatLng{Lat: c[1], Lng: c[0]})
	}
	return out
}

func parseLatLng(lat, lng string) (model.LatLng, bool) {
	a, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return model.LatLng{}, false
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return model.LatLng{}, false
	}
	if a < -90 || a > 90 || b < -180 || b > 180 {
		return model.LatLng{}, false
	}
	return model.LatLng{Lat: a, Lng: b}, true
}

func formatLatLng(p model.LatLng) string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}
