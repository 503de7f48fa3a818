package model

import (
	"encoding/json"
	"fmt"
)

// Core domain and wire types shared by the capture, optimize and render layers.

// LatLng is a point in latitude, longitude order.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ZoneKind tags a drawn polygon.
type ZoneKind int

const (
	NoGo ZoneKind = iota
	Geofence
)

// Wire names used by the optimizer.
func (k ZoneKind) String() string {
	switch k {
	case NoGo:
		return "nogo"
	case Geofence:
		return "fence"
	}
	return "unknown"
}

func (k ZoneKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ZoneKind) UnmarshalText(b []byte) error {
	v, err := ParseZoneKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseZoneKind accepts the wire names plus the long forms.
func ParseZoneKind(s string) (ZoneKind, error) {
	switch s {
	case "nogo", "no_go", "no-go":
		return NoGo, nil
	case "fence", "geofence":
		return Geofence, nil
	}
	return 0, fmt.Errorf("unknown zone kind: %q", s)
}

// Zone is a committed polygon. Ring holds at least three points and is
// implicitly closed.
type Zone struct {
	Kind ZoneKind `json:"kind"`
	Ring []LatLng `json:"ring"`
}

// Table is the wire form of a parsed dataset.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type ZonePayload struct {
	Type    string       `json:"type"`
	Polygon [][2]float64 `json:"polygon"`
}

type VehicleRestrictions struct {
	MaxLengthM *float64 `json:"max_length_m,omitempty"`
}

type OptionsPayload struct {
	UseRoadRoutes       bool                `json:"use_road_routes"`
	VehicleRestrictions VehicleRestrictions `json:"vehicle_restrictions"`
}

// OptimizeRequest is the body sent to the remote optimizer.
type OptimizeRequest struct {
	Vehicles  Table          `json:"vehicles"`
	Shipments Table          `json:"shipments"`
	Zones     []ZonePayload  `json:"zones"`
	Options   OptionsPayload `json:"options"`
	NbAPIKey  string         `json:"nb_api_key,omitempty"`
	TtAPIKey  string         `json:"tt_api_key,omitempty"`
}

// OptimizeResponse is the optimizer's answer.
type OptimizeResponse struct {
	Assignments   []Assignment `json:"assignments"`
	Summary       *Summary     `json:"summary,omitempty"`
	Notice        string       `json:"notice,omitempty"`
	ProviderError string       `json:"provider_error,omitempty"`
}

type Summary struct {
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalTimeMin    float64 `json:"total_time_min"`
}

// UnmarshalJSON treats an empty summary object as absent; the mock provider
// sends `"summary": {}` when it has nothing to report.
func (r *OptimizeResponse) UnmarshalJSON(b []byte) error {
	type plain OptimizeResponse
	var aux struct {
		plain
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = OptimizeResponse(aux.plain)
	r.Summary = nil
	if len(aux.Summary) == 0 || string(aux.Summary) == "null" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(aux.Summary, &fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	var s Summary
	if err := json.Unmarshal(aux.Summary, &s); err != nil {
		return err
	}
	r.Summary = &s
	return nil
}

type Assignment struct {
	VehicleID string  `json:"vehicle_id"`
	Route     Route   `json:"route"`
	Stops     []Stop  `json:"stops"`
	Metrics   Metrics `json:"metrics"`
}

// Route coordinates are in longitude, latitude order.
type Route struct {
	Type        string      `json:"type,omitempty"`
	Coordinates [][]float64 `json:"coordinates"`
}

type Metrics struct {
	DistanceM float64 `json:"distance_m"`
	TimeS     float64 `json:"time_s"`
}

type Stop struct {
	ID   string  `json:"id,omitempty"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Type string  `json:"type"`
	ETA  string  `json:"eta,omitempty"`
}

// Geocoding

type GeocodeRequest struct {
	Addresses []string `json:"addresses"`
	Country   string   `json:"country"`
}

type GeocodeResult struct {
	Query string   `json:"query"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error,omitempty"`
}

// Resolved reports whether the geocoder found coordinates.
func (g GeocodeResult) Resolved() bool { return g.Lat != nil && g.Lng != nil }

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

// RemoteConfig is served by the backend's config endpoint.
type RemoteConfig struct {
	TomTomKey string `json:"tomtom_key,omitempty"`
}
