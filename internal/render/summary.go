package render

import "fleetplan/internal/model"

// SummaryRow is one assignment's line in the results table.
type SummaryRow struct {
	VehicleID  string  `json:"vehicle_id"`
	Color      string  `json:"color"`
	DistanceKm float64 `json:"distance_km"`
	TimeMin    float64 `json:"time_min"`
	Stops      int     `json:"stops"`
}

// Summary is the results table plus totals.
type Summary struct {
	Rows            []SummaryRow `json:"rows"`
	TotalDistanceKm float64      `json:"total_distance_km"`
	TotalTimeMin    float64      `json:"total_time_min"`
	// Computed is set when the totals were summed locally.
	Computed      bool   `json:"computed"`
	Notice        string `json:"notice,omitempty"`
	ProviderError string `json:"provider_error,omitempty"`
}

// Summarize builds the results table. Totals come from the response summary
// when present and are otherwise summed from the assignments.
func Summarize(resp model.OptimizeResponse) Summary {
	s := Summary{
		Rows:          make([]SummaryRow, 0, len(resp.Assignments)),
		Notice:        resp.Notice,
		ProviderError: resp.ProviderError,
	}
	var distM, timeS float64
	for _, a := range resp.Assignments {
		s.Rows = append(s.Rows, SummaryRow{
			VehicleID:  a.VehicleID,
			Color:      VehicleColor(a.VehicleID),
			DistanceKm: a.Metrics.DistanceM / 1000,
			TimeMin:    a.Metrics.TimeS / 60,
			Stops:      len(a.Stops),
		})
		distM += a.Metrics.DistanceM
		timeS += a.Metrics.TimeS
	}
	if resp.Summary != nil {
		s.TotalDistanceKm = resp.Summary.TotalDistanceKm
		s.TotalTimeMin = resp.Summary.TotalTimeMin
		return s
	}
	s.TotalDistanceKm = distM / 1000
	s.TotalTimeMin = timeS / 60
	s.Computed = true
	return s
}
