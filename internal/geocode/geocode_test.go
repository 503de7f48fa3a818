package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplan/internal/model"
	"fleetplan/internal/remote"
)

func geocoder(t *testing.T, body string, seen *model.GeocodeRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupAllResolved(t *testing.T) {
	var seen model.GeocodeRequest
	srv := geocoder(t, `{"results":[{"query":"Gran Via 1","lat":40.42,"lng":-3.70}]}`, &seen)
	c := NewClient(srv.URL, &remote.Client{HTTP: srv.Client()}, nil)

	res, err := c.Lookup(context.Background(), []string{" Gran Via 1 ", ""}, " ES ")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 40.42, *res[0].Lat, 1e-9)
	assert.Equal(t, []string{"Gran Via 1"}, seen.Addresses)
	assert.Equal(t, "ES", seen.Country)
}

func TestLookupPartial(t *testing.T) {
	srv := geocoder(t, `{"results":[{"query":"a","lat":1,"lng":2},{"query":"b","lat":null,"lng":null}]}`, nil)
	c := NewClient(srv.URL, &remote.Client{HTTP: srv.Client()}, nil)

	res, err := c.Lookup(context.Background(), []string{"a", "b"}, "FR")
	require.Len(t, res, 2)
	var partial *model.PartialGeocodeResult
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 1, partial.Resolved)
	assert.Equal(t, 2, partial.Total)
	assert.Equal(t, "resolved 1/2 addresses", err.Error())
}

func TestLookupEmpty(t *testing.T) {
	c := NewClient("http://geocoder.invalid", nil, nil)
	_, err := c.Lookup(context.Background(), []string{" ", ""}, "ES")
	assert.ErrorIs(t, err, ErrNoAddresses)
}

func TestLookupNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, &remote.Client{HTTP: srv.Client()}, nil)
	_, err := c.Lookup(context.Background(), []string{"x"}, "ES")
	var ne *model.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusServiceUnavailable, ne.Status)
}
