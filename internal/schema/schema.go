// Package schema holds the fixed column layouts for uploaded files and the
// header check applied to them.
package schema

import (
	"fmt"
	"strings"
)

// Kind identifies one of the two datasets.
type Kind int

const (
	Vehicle Kind = iota
	Shipment
)

// Vehicle and shipment column order. The names and order are part of the
// contract with the optimizer and must not change.
var (
	VehicleColumns = []string{
		"id",
		"vehicle_description",
		"capacity",
		"start_latitude",
		"start_longitude",
		"end_latitude",
		"end_longitude",
		"shift_start",
		"shift_end",
		"max_tasks",
	}

	ShipmentColumns = []string{
		"Pickup Id",
		"Delivery Id",
		"Description",
		"Pickup Location Lat",
		"Pickup Location Lng",
		"Pickup Start Time",
		"Pickup End Time",
		"Delivery Location Lat",
		"Delivery Location Lng",
		"Delivery Start Time",
		"Delivery End Time",
		"Quantity",
		"Priority",
	}
)

func (k Kind) String() string {
	switch k {
	case Vehicle:
		return "vehicles"
	case Shipment:
		return "shipments"
	}
	return "unknown"
}

// Columns returns a copy of the expected header row for k.
func (k Kind) Columns() []string {
	switch k {
	case Vehicle:
		return append([]string(nil), VehicleColumns...)
	case Shipment:
		return append([]string(nil), ShipmentColumns...)
	}
	return nil
}

// TemplateName is the download file name for the header-only template.
func (k Kind) TemplateName() string { return k.String() + "_template.csv" }

// ParseKind accepts "vehicles"/"vehicle" and "shipments"/"shipment".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vehicle", "vehicles":
		return Vehicle, nil
	case "shipment", "shipments":
		return Shipment, nil
	}
	return 0, fmt.Errorf("unknown dataset kind: %q", s)
}

// Reason says why a header row was rejected.
type Reason string

const (
	LengthMismatch     Reason = "length_mismatch"
	PositionalMismatch Reason = "positional_mismatch"
)

// Result is the outcome of Validate. Index is only meaningful for
// PositionalMismatch.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
	Index  int    `json:"index"`
}

// Validate compares actual against expected after trimming both sides.
// Comparison is exact: case and order matter, and a length difference fails
// without looking at individual columns.
func Validate(actual, expected []string) Result {
	if len(actual) != len(expected) {
		return Result{Reason: LengthMismatch}
	}
	for i := range expected {
		if strings.TrimSpace(actual[i]) != strings.TrimSpace(expected[i]) {
			return Result{Reason: PositionalMismatch, Index: i}
		}
	}
	return Result{Valid: true}
}

// HeaderMismatchError reports a rejected header row with both lists.
type HeaderMismatchError struct {
	Kind     Kind
	Reason   Reason
	Index    int
	Expected []string
	Actual   []string
}

func (e *HeaderMismatchError) Error() string {
	msg := "Header mismatch. Expected: " + strings.Join(e.Expected, ", ")
	if e.Reason == PositionalMismatch && e.Index < len(e.Actual) {
		return fmt.Sprintf("%s (column %d is %q, want %q)", msg, e.Index+1, e.Actual[e.Index], e.Expected[e.Index])
	}
	return fmt.Sprintf("%s (got %d columns, want %d)", msg, len(e.Actual), len(e.Expected))
}

// Err converts an invalid result into a *HeaderMismatchError; valid results
// return nil.
func (r Result) Err(k Kind, actual []string) error {
	if r.Valid {
		return nil
	}
	return &HeaderMismatchError{
		Kind:     k,
		Reason:   r.Reason,
		Index:    r.Index,
		Expected: k.Columns(),
		Actual:   append([]string(nil), actual...),
	}
}
