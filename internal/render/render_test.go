package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/model"
)

func TestVehicleHue(t *testing.T) {
	cases := map[string]int{
		"":                               0,
		"V1":                             195,
		"é":                              233,
		"vehicle-000123-long-identifier": 64,
		"truck-\U0001F69A-0042":          168,
	}
	for id, want := range cases {
		assert.Equal(t, want, VehicleHue(id), id)
	}
	assert.Equal(t, "hsl(195,70%,45%)", VehicleColor("V1"))
}

func TestTileSource(t *testing.T) {
	r := NewRenderer(Config{})
	assert.Equal(t, "osm", r.NewMapSession(model.RemoteConfig{}).Tiles().Name)

	ts := r.TileSource(model.RemoteConfig{TomTomKey: "k1"})
	assert.Equal(t, "tomtom", ts.Name)
	assert.Contains(t, ts.URL, "key=k1")
}

func TestRenderResponseEmpty(t *testing.T) {
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})
	sum := r.RenderResponse(ms, model.OptimizeResponse{Assignments: []model.Assignment{}})

	assert.Empty(t, ms.Layer(LayerRoutes).Paths)
	assert.Empty(t, ms.Layer(LayerStops).Markers)
	assert.Empty(t, sum.Rows)
	assert.Zero(t, sum.TotalDistanceKm)
	assert.Zero(t, sum.TotalTimeMin)
}

func sampleResponse() model.OptimizeResponse {
	return model.OptimizeResponse{
		Assignments: []model.Assignment{
			{
				VehicleID: "V1",
				Route:     model.Route{Coordinates: [][]float64{{-3, 40}, {-3.05, 40.05}, {-3.1, 40.1}}},
				Stops: []model.Stop{
					{Lat: 40, Lng: -3, Type: "start", ETA: "08:00"},
					{Lat: 40.05, Lng: -3.05, Type: "pickup"},
				},
				Metrics: model.Metrics{DistanceM: 12000, TimeS: 1800},
			},
			{
				VehicleID: "V2",
				Route:     model.Route{Coordinates: [][]float64{{-3, 40}}},
				Stops:     []model.Stop{{Lat: 41, Lng: -4, Type: "delivery", ETA: "09:30"}},
				Metrics:   model.Metrics{DistanceM: 500, TimeS: 120},
			},
		},
	}
}

func TestRenderResponse(t *testing.T) {
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})
	sum := r.RenderResponse(ms, sampleResponse())

	paths := ms.Layer(LayerRoutes).Paths
	require.Len(t, paths, 1, "single-point route is not drawn")
	assert.Equal(t, model.LatLng{Lat: 40, Lng: -3}, paths[0].Points[0])
	assert.Equal(t, model.LatLng{Lat: 40.1, Lng: -3.1}, paths[0].Points[2])
	assert.Equal(t, VehicleColor("V1"), paths[0].Color)

	markers := ms.Layer(LayerStops).Markers
	require.Len(t, markers, 3)
	assert.Equal(t, []int{1, 2, 1}, []int{markers[0].Seq, markers[1].Seq, markers[2].Seq})
	assert.Equal(t, []string{"V1 #1", "start", "40.00000, -3.00000", "ETA 08:00"}, markers[0].Label)
	assert.Len(t, markers[1].Label, 3, "no ETA line without an eta")
	assert.Equal(t, "V2", markers[2].VehicleID)

	want := []SummaryRow{
		{VehicleID: "V1", Color: VehicleColor("V1"), DistanceKm: 12, TimeMin: 30, Stops: 2},
		{VehicleID: "V2", Color: VehicleColor("V2"), DistanceKm: 0.5, TimeMin: 2, Stops: 1},
	}
	if diff := cmp.Diff(want, sum.Rows); diff != "" {
		t.Fatalf("summary rows (-want +got):\n%s", diff)
	}
	assert.True(t, sum.Computed)
	assert.InDelta(t, 12.5, sum.TotalDistanceKm, 1e-9)
	assert.InDelta(t, 32, sum.TotalTimeMin, 1e-9)
	require.NotNil(t, ms.Summary())
}

func TestSummarizeUsesResponseTotals(t *testing.T) {
	resp := sampleResponse()
	resp.Summary = &model.Summary{TotalDistanceKm: 99, TotalTimeMin: 7}
	resp.Notice = "mock provider"
	s := Summarize(resp)
	assert.False(t, s.Computed)
	assert.Equal(t, 99.0, s.TotalDistanceKm)
	assert.Equal(t, 7.0, s.TotalTimeMin)
	assert.Equal(t, "mock provider", s.Notice)
}

func TestRerenderClearsLayers(t *testing.T) {
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})
	r.RenderResponse(ms, sampleResponse())
	r.RenderResponse(ms, model.OptimizeResponse{})
	assert.Empty(t, ms.Layer(LayerRoutes).Paths)
	assert.Empty(t, ms.Layer(LayerStops).Markers)
}

func TestVisibilityAppliedAfterRender(t *testing.T) {
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})
	ms.SetVisibility(Visibility{ShowInputs: false, ShowStops: false})
	r.RenderResponse(ms, sampleResponse())

	assert.False(t, ms.Layer(LayerStops).Visible)
	assert.False(t, ms.Layer(LayerInputs).Visible)
	assert.True(t, ms.Layer(LayerRoutes).Visible)
	assert.Len(t, ms.Layer(LayerStops).Markers, 3, "hidden layers keep their markers")

	ms.SetVisibility(DefaultVisibility)
	assert.True(t, ms.Layer(LayerStops).Visible)
}

func TestRenderInputs(t *testing.T) {
	v := csvtable.Parse("id,vehicle_description,capacity,start_latitude,start_longitude,end_latitude,end_longitude,shift_start,shift_end,max_tasks\n" +
		"V1,Van,500,40.0,-3.0,40.1,-3.1,08:00,18:00,20\n" +
		"V2,Van,500,abc,-3.0,40.1,-3.1,08:00,18:00,20\n")
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})

	skipped := r.RenderInputs(ms, &v, nil)
	assert.Equal(t, 1, skipped)
	markers := ms.Layer(LayerInputs).Markers
	require.Len(t, markers, 3)
	assert.Equal(t, "vehicle_start", markers[0].Kind)
	assert.Equal(t, []string{"V1 vehicle start", "40.00000, -3.00000"}, markers[0].Label)

	r.RenderInputs(ms, nil, nil)
	assert.Empty(t, ms.Layer(LayerInputs).Markers)
}

func TestRenderZones(t *testing.T) {
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})
	ring := []model.LatLng{{Lat: 1, Lng: 1}, {Lat: 1, Lng: 2}, {Lat: 2, Lng: 2}}
	r.RenderZones(ms, []model.Zone{{Kind: model.Geofence, Ring: ring}}, ring[:1])

	polys := ms.Layer(LayerZones).Polygons
	require.Len(t, polys, 2)
	assert.Equal(t, model.Geofence, polys[0].Kind)
	assert.True(t, polys[1].Provisional)

	r.RenderZones(ms, nil, nil)
	assert.Empty(t, ms.Layer(LayerZones).Polygons)
}

func TestOverlaysAreSnapshots(t *testing.T) {
	r := NewRenderer(Config{})
	ms := r.NewMapSession(model.RemoteConfig{})
	r.RenderResponse(ms, sampleResponse())
	ov := ms.Overlays()
	require.Len(t, ov.Layers, 4)
	assert.Equal(t, LayerInputs, ov.Layers[0].Name)
	ov.Layers[2].Paths[0].Points[0].Lat = 0
	assert.Equal(t, 40.0, ms.Layer(LayerRoutes).Paths[0].Points[0].Lat)
}
