package render

import (
	"fmt"
	"unicode/utf16"
)

// VehicleHue hashes a vehicle id to a hue in [0,360). The hash runs over
// UTF-16 code units, h = h*31 + unit with uint32 wrap-around, so colors match
// the browser client for the same id.
func VehicleHue(id string) int {
	var h uint32
	for _, u := range utf16.Encode([]rune(id)) {
		h = h*31 + uint32(u)
	}
	return int(h % 360)
}

// VehicleColor is the CSS color for a vehicle's route and stops.
func VehicleColor(id string) string {
	return fmt.Sprintf("hsl(%d,70%%,45%%)", VehicleHue(id))
}
