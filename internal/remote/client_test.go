package remote

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"fleetplan/internal/model"
)

func TestPostJSON_SignsAndDecodes(t *testing.T) {
	var gotSig, gotCT string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(0, rate.NewLimiter(rate.Inf, 1), "secret", nil)
	c.HTTP = srv.Client()
	var out struct{ OK bool }
	require.NoError(t, c.PostJSON(context.Background(), "optimize", srv.URL, map[string]int{"a": 1}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, "application/json", gotCT)
	assert.True(t, validSignature("secret", gotBody, gotSig))
}

func TestPostJSON_NoSecretNoSignature(t *testing.T) {
	var hasSig bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSig = r.Header[SignatureHeader]
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := &Client{HTTP: srv.Client()}
	require.NoError(t, c.PostJSON(context.Background(), "geocode", srv.URL, struct{}{}, nil))
	assert.False(t, hasSig)
}

func TestDo_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"NextBillion HTTP 401: bad key"}`))
	}))
	defer srv.Close()
	c := &Client{HTTP: srv.Client()}
	err := c.GetJSON(context.Background(), "config", srv.URL, &struct{}{})
	var ne *model.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusBadGateway, ne.Status)
	assert.Equal(t, "NextBillion HTTP 401: bad key", ne.Detail)
	assert.Equal(t, "config", ne.Op)
}

func TestDo_TransportError(t *testing.T) {
	c := &Client{HTTP: doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	err := c.GetJSON(context.Background(), "optimize", "http://optimizer.invalid", nil)
	var ne *model.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Zero(t, ne.Status)
	assert.EqualError(t, ne.Err, "connection refused")
}

func TestDo_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()
	c := &Client{HTTP: srv.Client()}
	var out map[string]any
	err := c.GetJSON(context.Background(), "config", srv.URL, &out)
	var ne *model.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusOK, ne.Status)
}

func TestDo_LimiterHonoursContext(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(1<<62), 1)
	require.True(t, lim.Allow())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Client{HTTP: http.DefaultClient, Limiter: lim}
	err := c.GetJSON(ctx, "optimize", "http://optimizer.invalid", nil)
	var ne *model.NetworkError
	assert.True(t, errors.As(err, &ne))
}

func TestErrorDetail(t *testing.T) {
	cases := map[string]string{
		`{"detail":[{"msg":"field required","loc":["body"]}]}`: "field required",
		`{"error":{"message":"quota"}}`:                        "quota",
		`{"error":"nope"}`:                                     "nope",
		`{"provider_error":"HTTP 500"}`:                        "HTTP 500",
		"  plain text failure \n":                              "plain text failure",
	}
	for in, want := range cases {
		assert.Equal(t, want, ErrorDetail([]byte(in)), in)
	}
}

func TestSignDependsOnSecretAndBody(t *testing.T) {
	c := &Client{Secret: "k"}
	sig := c.sign([]byte("body"))
	assert.Len(t, sig, 64)
	assert.True(t, validSignature("k", []byte("body"), sig))
	assert.False(t, validSignature("k", []byte("other"), sig))
	assert.False(t, validSignature("other", []byte("body"), sig))
	assert.False(t, validSignature("k", []byte("body"), "zz"))
}

// validSignature checks sig the way a receiving service would.
func validSignature(secret string, body []byte, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }
