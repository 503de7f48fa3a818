// Package workflow drives the count -> vehicles -> shipments ingestion flow
// and decides when the map and optimizer become available.
package workflow

import (
	"errors"
	"fmt"
	"math"

	"fleetplan/internal/csvtable"
	"fleetplan/internal/schema"
)

// Stage is the position in the ingestion flow.
type Stage int

const (
	CountEntry Stage = iota
	AwaitingVehicleUpload
	VehicleLoaded
	AwaitingShipmentUpload
	BothLoaded
)

var stageNames = map[Stage]string{
	CountEntry:             "count_entry",
	AwaitingVehicleUpload:  "awaiting_vehicle_upload",
	VehicleLoaded:          "vehicle_loaded",
	AwaitingShipmentUpload: "awaiting_shipment_upload",
	BothLoaded:             "both_loaded",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// MarshalText lets Stage appear as its name in JSON.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrInvalidTransition is returned when an operation is not allowed in the
// current stage.
var ErrInvalidTransition = errors.New("operation not allowed in current stage")

// InputError rejects a declared vehicle count.
type InputError struct {
	Value float64
}

func (e *InputError) Error() string {
	return "Please enter a valid vehicle count (> 0)."
}

// FileReadError wraps a failure to read an uploaded file.
type FileReadError struct {
	Kind schema.Kind
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("Failed to read %s CSV. Please check the file: %v", e.Kind, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// CountMismatchWarning is advisory: the vehicle file loaded but its row count
// differs from the declared count.
type CountMismatchWarning struct {
	Declared float64
	Rows     int
}

func (w *CountMismatchWarning) Error() string {
	return fmt.Sprintf("vehicle count (%g) differs from rows (%d)", w.Declared, w.Rows)
}

// Slot holds the current table for one dataset.
type Slot struct {
	Table *csvtable.Table
}

// Loaded reports whether the slot holds a validated table.
func (s Slot) Loaded() bool { return s.Table != nil }

// Outcome describes one upload. Table and Validation are always populated so
// the caller can preview a rejected file.
type Outcome struct {
	Kind       schema.Kind
	Table      csvtable.Table
	Validation schema.Result
	Warning    *CountMismatchWarning
}

// Message is the operator-facing summary of a successful upload.
func (o Outcome) Message() string {
	msg := fmt.Sprintf("Loaded %d %s rows.", len(o.Table.Rows), singular(o.Kind))
	if o.Warning != nil {
		msg += fmt.Sprintf(" Note: %s.", o.Warning.Error())
	}
	return msg
}

func singular(k schema.Kind) string {
	if k == schema.Vehicle {
		return "vehicle"
	}
	return "shipment"
}

// Controller owns the dataset slots and the declared count. It is not safe
// for concurrent use; the owning session serializes calls.
type Controller struct {
	stage     Stage
	warning   bool
	declared  *float64
	vehicles  Slot
	shipments Slot
}

// New returns a controller in CountEntry.
func New() *Controller { return &Controller{} }

func (c *Controller) Stage() Stage { return c.stage }

// Warning reports whether the loaded vehicle file disagrees with the
// declared count.
func (c *Controller) Warning() bool { return c.warning }

func (c *Controller) Vehicles() Slot { return c.vehicles }

func (c *Controller) Shipments() Slot { return c.shipments }

// DeclaredCount returns the declared vehicle count, if any.
func (c *Controller) DeclaredCount() (float64, bool) {
	if c.declared == nil {
		return 0, false
	}
	return *c.declared, true
}

// SubmitCount declares the expected number of vehicles. n must be finite and
// positive. Success clears both slots and waits for the vehicle file.
func (c *Controller) SubmitCount(n float64) error {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		c.stage = CountEntry
		return &InputError{Value: n}
	}
	v := n
	c.declared = &v
	c.vehicles = Slot{}
	c.shipments = Slot{}
	c.warning = false
	c.stage = AwaitingVehicleUpload
	return nil
}

// UploadVehicles parses and validates a vehicle file. A header mismatch clears
// the vehicle slot, returns the stage to AwaitingVehicleUpload and yields a
// *schema.HeaderMismatchError alongside the outcome. A valid re-upload while
// the shipment step is open keeps it open.
func (c *Controller) UploadVehicles(text string) (Outcome, error) {
	if c.stage < AwaitingVehicleUpload {
		return Outcome{}, ErrInvalidTransition
	}
	out := check(schema.Vehicle, text)
	if err := out.Validation.Err(schema.Vehicle, out.Table.Headers); err != nil {
		c.rejectVehicles()
		return out, err
	}
	tb := out.Table
	c.vehicles = Slot{Table: &tb}
	c.warning = false
	if c.declared != nil && float64(len(tb.Rows)) != *c.declared {
		c.warning = true
		out.Warning = &CountMismatchWarning{Declared: *c.declared, Rows: len(tb.Rows)}
	}
	switch {
	case c.shipments.Loaded():
		c.stage = BothLoaded
	case c.stage == AwaitingShipmentUpload:
		// the shipment step stays open
	default:
		c.stage = VehicleLoaded
	}
	return out, nil
}

// ProceedToShipments opens the shipment step once vehicles are loaded.
func (c *Controller) ProceedToShipments() error {
	switch c.stage {
	case VehicleLoaded:
		c.stage = AwaitingShipmentUpload
		return nil
	case AwaitingShipmentUpload, BothLoaded:
		return nil
	}
	return ErrInvalidTransition
}

// UploadShipments parses and validates a shipment file. Rejection mirrors
// UploadVehicles.
func (c *Controller) UploadShipments(text string) (Outcome, error) {
	if c.stage < AwaitingShipmentUpload {
		return Outcome{}, ErrInvalidTransition
	}
	out := check(schema.Shipment, text)
	if err := out.Validation.Err(schema.Shipment, out.Table.Headers); err != nil {
		c.rejectShipments()
		return out, err
	}
	tb := out.Table
	c.shipments = Slot{Table: &tb}
	c.stage = BothLoaded
	return out, nil
}

// FailUpload records an unreadable file for kind. It behaves like a rejected
// header row: the slot is cleared and downstream actions are disabled.
func (c *Controller) FailUpload(kind schema.Kind, cause error) error {
	switch kind {
	case schema.Vehicle:
		if c.stage < AwaitingVehicleUpload {
			return ErrInvalidTransition
		}
		c.rejectVehicles()
	case schema.Shipment:
		if c.stage < AwaitingShipmentUpload {
			return ErrInvalidTransition
		}
		c.rejectShipments()
	}
	return &FileReadError{Kind: kind, Err: cause}
}

// Reset clears everything and returns to CountEntry.
func (c *Controller) Reset() {
	*c = Controller{}
}

// DownstreamEnabled reports whether the map and optimizer may be used.
func (c *Controller) DownstreamEnabled() bool {
	return c.stage >= BothLoaded && c.vehicles.Loaded() && c.shipments.Loaded()
}

func (c *Controller) rejectVehicles() {
	c.vehicles = Slot{}
	c.warning = false
	c.stage = AwaitingVehicleUpload
}

func (c *Controller) rejectShipments() {
	c.shipments = Slot{}
	c.stage = AwaitingShipmentUpload
}

func check(k schema.Kind, text string) Outcome {
	tb := csvtable.Parse(text)
	return Outcome{
		Kind:       k,
		Table:      tb,
		Validation: schema.Validate(tb.Headers, k.Columns()),
	}
}
