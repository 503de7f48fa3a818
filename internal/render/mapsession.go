// Package render turns datasets, zones and optimizer responses into map
// overlays held by an explicit per-session MapSession.
package render

import "fleetplan/internal/model"

// LayerName identifies an overlay layer.
type LayerName string

const (
	LayerInputs LayerName = "inputs"
	LayerZones  LayerName = "zones"
	LayerRoutes LayerName = "routes"
	LayerStops  LayerName = "stops"
)

// layerOrder is the draw order, bottom first.
var layerOrder = []LayerName{LayerInputs, LayerZones, LayerRoutes, LayerStops}

// Path is a drawn route polyline in lat/lng order.
type Path struct {
	VehicleID string         `json:"vehicle_id"`
	Color     string         `json:"color"`
	Points    []model.LatLng `json:"points"`
}

// Marker is a point overlay. Seq is the 1-based stop number, 0 for input
// markers.
type Marker struct {
	Kind      string       `json:"kind"`
	VehicleID string       `json:"vehicle_id,omitempty"`
	Seq       int          `json:"seq,omitempty"`
	Position  model.LatLng `json:"position"`
	Color     string       `json:"color,omitempty"`
	Label     []string     `json:"label"`
}

// Polygon is a zone outline. Provisional marks the ring being drawn.
type Polygon struct {
	Kind        model.ZoneKind `json:"kind"`
	Ring        []model.LatLng `json:"ring"`
	Provisional bool           `json:"provisional,omitempty"`
}

// Layer is one overlay group, rebuilt as a whole on every render.
type Layer struct {
	Name     LayerName `json:"name"`
	Visible  bool      `json:"visible"`
	Paths    []Path    `json:"paths,omitempty"`
	Markers  []Marker  `json:"markers,omitempty"`
	Polygons []Polygon `json:"polygons,omitempty"`
}

// Visibility holds the operator's show/hide toggles.
type Visibility struct {
	ShowInputs bool `json:"showInputs"`
	ShowStops  bool `json:"showStops"`
}

// DefaultVisibility shows everything.
var DefaultVisibility = Visibility{ShowInputs: true, ShowStops: true}

// TileSource is the basemap the client should load.
type TileSource struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// Overlays is a snapshot of the map for clients.
type Overlays struct {
	Tiles   TileSource `json:"tiles"`
	Layers  []Layer    `json:"layers"`
	Summary *Summary   `json:"summary,omitempty"`
}

// MapSession owns the overlay layers of one operator's map. It is not safe
// for concurrent use; the owning session serializes access.
type MapSession struct {
	tiles   TileSource
	layers  map[LayerName]*Layer
	vis     Visibility
	summary *Summary
}

func newMapSession(tiles TileSource) *MapSession {
	ms := &MapSession{tiles: tiles, layers: make(map[LayerName]*Layer, len(layerOrder)), vis: DefaultVisibility}
	for _, n := range layerOrder {
		ms.layers[n] = &Layer{Name: n, Visible: true}
	}
	return ms
}

// Tiles returns the basemap source chosen at creation.
func (ms *MapSession) Tiles() TileSource { return ms.tiles }

// clear drops everything on a layer, keeping its visibility.
func (ms *MapSession) clear(n LayerName) *Layer {
	l := ms.layers[n]
	l.Paths, l.Markers, l.Polygons = nil, nil, nil
	return l
}

// Layer returns a copy of the named layer.
func (ms *MapSession) Layer(n LayerName) Layer {
	l, ok := ms.layers[n]
	if !ok {
		return Layer{Name: n}
	}
	return copyLayer(*l)
}

// Visibility returns the current toggles.
func (ms *MapSession) Visibility() Visibility { return ms.vis }

// SetVisibility stores the toggles and applies them.
func (ms *MapSession) SetVisibility(v Visibility) {
	ms.vis = v
	ms.applyVisibility()
}

func (ms *MapSession) applyVisibility() {
	ms.layers[LayerInputs].Visible = ms.vis.ShowInputs
	ms.layers[LayerStops].Visible = ms.vis.ShowStops
}

// Summary returns the last rendered summary, or nil.
func (ms *MapSession) Summary() *Summary {
	if ms.summary == nil {
		return nil
	}
	s := *ms.summary
	s.Rows = append([]SummaryRow(nil), ms.summary.Rows...)
	return &s
}

// Overlays snapshots every layer in draw order.
func (ms *MapSession) Overlays() Overlays {
	out := Overlays{Tiles: ms.tiles, Layers: make([]Layer, 0, len(layerOrder)), Summary: ms.Summary()}
	for _, n := range layerOrder {
		out.Layers = append(out.Layers, copyLayer(*ms.layers[n]))
	}
	return out
}

func copyLayer(l Layer) Layer {
	c := Layer{Name: l.Name, Visible: l.Visible}
	if l.Paths != nil {
		c.Paths = make([]Path, len(l.Paths))
		for i, p := range l.Paths {
			p.Points = append([]model.LatLng(nil), p.Points...)
			c.Paths[i] = p
		}
	}
	if l.Markers != nil {
		c.Markers = make([]Marker, len(l.Markers))
		for i, m := range l.Markers {
			m.Label = append([]string(nil), m.Label...)
			c.Markers[i] = m
		}
	}
	if l.Polygons != nil {
		c.Polygons = make([]Polygon, len(l.Polygons))
		for i, p := range l.Polygons {
			p.Ring = append([]model.LatLng(nil), p.Ring...)
			c.Polygons[i] = p
		}
	}
	return c
}
