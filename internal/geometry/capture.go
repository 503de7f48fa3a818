// Package geometry implements interactive polygon capture for no-go zones and
// geofences.
package geometry

import "fleetplan/internal/model"

// MinRing is the fewest points a committed zone may have.
const MinRing = 3

// Mode is Idle or Drawing.
type Mode int

const (
	Idle Mode = iota
	Drawing
)

func (m Mode) String() string {
	if m == Drawing {
		return "drawing"
	}
	return "idle"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// DrawState is the in-progress drawing.
type DrawState struct {
	Mode    Mode           `json:"mode"`
	Kind    model.ZoneKind `json:"kind"`
	Pending []model.LatLng `json:"pending"`
}

// Capture holds the single DrawState of a session and the zones committed so
// far. Zones change only through Finish and ClearAll.
type Capture struct {
	state DrawState
	zones []model.Zone
}

// NewCapture returns an idle capture with no zones.
func NewCapture() *Capture { return &Capture{} }

// Begin starts a new drawing of kind, discarding any pending points.
func (c *Capture) Begin(kind model.ZoneKind) {
	c.state = DrawState{Mode: Drawing, Kind: kind}
}

// Capture appends p while drawing. It reports whether the point was taken.
func (c *Capture) Capture(p model.LatLng) bool {
	if c.state.Mode != Drawing {
		return false
	}
	c.state.Pending = append(c.state.Pending, p)
	return true
}

// Finish commits the pending ring as a zone when it has at least MinRing
// points and returns to Idle. With fewer points nothing changes.
func (c *Capture) Finish() (model.Zone, bool) {
	if c.state.Mode != Drawing || len(c.state.Pending) < MinRing {
		return model.Zone{}, false
	}
	z := model.Zone{Kind: c.state.Kind, Ring: c.state.Pending}
	c.zones = append(c.zones, z)
	c.state = DrawState{Mode: Idle}
	return z, true
}

// ClearAll removes every committed zone. The drawing in progress is kept.
func (c *Capture) ClearAll() { c.zones = nil }

func (c *Capture) Mode() Mode { return c.state.Mode }

// Kind is the kind being drawn; only meaningful while Drawing.
func (c *Capture) Kind() model.ZoneKind { return c.state.Kind }

// FinishEnabled is true while drawing.
func (c *Capture) FinishEnabled() bool { return c.state.Mode == Drawing }

// Pending returns a copy of the captured points.
func (c *Capture) Pending() []model.LatLng {
	return append([]model.LatLng(nil), c.state.Pending...)
}

// Provisional is the open path shown while drawing; it is redrawn after every
// capture and empty when idle.
func (c *Capture) Provisional() []model.LatLng {
	if c.state.Mode != Drawing {
		return nil
	}
	return c.Pending()
}

// State returns a copy of the draw state.
func (c *Capture) State() DrawState {
	s := c.state
	s.Pending = c.Pending()
	return s
}

// Zones returns a copy of the committed zones.
func (c *Capture) Zones() []model.Zone {
	return append([]model.Zone(nil), c.zones...)
}
