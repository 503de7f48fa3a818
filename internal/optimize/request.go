// Package optimize builds optimizer requests from the session's datasets and
// zones and sends them to the remote optimizer.
package optimize

import (
	"errors"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/model"
)

// ErrMissingDataset is returned when a request is built without both tables.
var ErrMissingDataset = errors.New("load both vehicles and shipments before optimizing")

// Options are the operator's routing switches.
type Options struct {
	UseRoadRoutes bool     `json:"use_road_routes"`
	MaxLengthM    *float64 `json:"max_length_m,omitempty"`
}

// Credentials are optional provider keys forwarded to the optimizer.
type Credentials struct {
	NbAPIKey string `json:"nb_api_key,omitempty"`
	TtAPIKey string `json:"tt_api_key,omitempty"`
}

// BuildRequest assembles the optimizer body. Nothing is sent when either
// table is missing.
func BuildRequest(vehicles, shipments *csvtable.Table, zones []model.Zone, opts Options, creds *Credentials) (model.OptimizeRequest, error) {
	if vehicles == nil || shipments == nil {
		return model.OptimizeRequest{}, ErrMissingDataset
	}
	req := model.OptimizeRequest{
		Vehicles:  wireTable(*vehicles),
		Shipments: wireTable(*shipments),
		Zones:     make([]model.ZonePayload, 0, len(zones)),
		Options: model.OptionsPayload{
			UseRoadRoutes:       opts.UseRoadRoutes,
			VehicleRestrictions: model.VehicleRestrictions{MaxLengthM: opts.MaxLengthM},
		},
	}
	for _, z := range zones {
		req.Zones = append(req.Zones, ZonePayload(z))
	}
	if creds != nil {
		req.NbAPIKey = creds.NbAPIKey
		req.TtAPIKey = creds.TtAPIKey
	}
	return req, nil
}

// ZonePayload serializes a zone ring as [lat, lng] pairs.
func ZonePayload(z model.Zone) model.ZonePayload {
	poly := make([][2]float64, len(z.Ring))
	for i, p := range z.Ring {
		poly[i] = [2]float64{p.Lat, p.Lng}
	}
	return model.ZonePayload{Type: z.Kind.String(), Polygon: poly}
}

func wireTable(t csvtable.Table) model.Table {
	headers := append([]string(nil), t.Headers...)
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	return model.Table{Headers: headers, Rows: rows}
}
