package model

import "fmt"

// NetworkError is a transport failure or non-success response from the
// optimizer, geocoder or config endpoint.
type NetworkError struct {
	Op     string // optimize, geocode, config
	Status int    // 0 for transport failures
	Detail string
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.Status, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PartialGeocodeResult reports addresses the geocoder could not resolve. It
// is informational, never fatal.
type PartialGeocodeResult struct {
	Resolved int
	Total    int
}

func (p *PartialGeocodeResult) Error() string {
	return fmt.Sprintf("resolved %d/%d addresses", p.Resolved, p.Total)
}
