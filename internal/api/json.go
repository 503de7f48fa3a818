package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fleetplan/internal/geocode"
	"fleetplan/internal/model"
	"fleetplan/internal/optimize"
	"fleetplan/internal/schema"
	"fleetplan/internal/session"
	"fleetplan/internal/workflow"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// HeaderProblem extends Problem with both header lists.
type HeaderProblem struct {
	Problem
	Reason   schema.Reason `json:"reason"`
	Index    int           `json:"index"`
	Expected []string      `json:"expected"`
	Actual   []string      `json:"actual"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		hm    *schema.HeaderMismatchError
		input *workflow.InputError
		fre   *workflow.FileReadError
		ne    *model.NetworkError
	)
	path := r.URL.Path
	switch {
	case errors.As(err, &hm):
		writeJSON(w, http.StatusUnprocessableEntity, HeaderProblem{
			Problem:  Problem{Type: "about:blank", Title: "Header mismatch", Status: http.StatusUnprocessableEntity, Detail: hm.Error(), Instance: path},
			Reason:   hm.Reason,
			Index:    hm.Index,
			Expected: hm.Expected,
			Actual:   hm.Actual,
		})
	case errors.As(err, &input):
		writeProblem(w, http.StatusBadRequest, "Invalid vehicle count", input.Error(), path)
	case errors.As(err, &fre):
		writeProblem(w, http.StatusBadRequest, "Unreadable file", fre.Error(), path)
	case errors.Is(err, session.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Session not found", "", path)
	case errors.Is(err, session.ErrNoResult):
		writeProblem(w, http.StatusNotFound, "No result", err.Error(), path)
	case errors.Is(err, session.ErrRingTooShort):
		writeProblem(w, http.StatusUnprocessableEntity, "Zone too small", err.Error(), path)
	case errors.Is(err, session.ErrStale):
		writeProblem(w, http.StatusConflict, "Superseded", err.Error(), path)
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, optimize.ErrMissingDataset):
		writeProblem(w, http.StatusConflict, "Invalid transition", err.Error(), path)
	case errors.Is(err, session.ErrUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", err.Error(), path)
	case errors.Is(err, geocode.ErrNoAddresses):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), path)
	case errors.As(err, &ne):
		writeProblem(w, http.StatusBadGateway, "Upstream failure", ne.Error(), path)
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), path)
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
