// Package remote is the JSON-over-HTTP plumbing shared by the optimizer,
// geocoder and config clients.
package remote

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fleetplan/internal/model"
)

// maxBody caps how much of a response is read.
const maxBody = 32 << 20

// SignatureHeader carries the request body signature when a secret is set.
const SignatureHeader = "X-Signature"

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts and fetches JSON. Limiter and Secret are optional.
type Client struct {
	HTTP    Doer
	Limiter *rate.Limiter
	// Secret, when set, signs request bodies in SignatureHeader.
	Secret string
	Log    *zap.Logger
}

// New returns a Client with a timeout-bound http.Client.
func New(timeout time.Duration, limiter *rate.Limiter, secret string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		Limiter: limiter,
		Secret:  secret,
		Log:     log,
	}
}

// PostJSON sends in as JSON to url and decodes the response into out. Any
// failure is returned as *model.NetworkError tagged with op.
func (c *Client) PostJSON(ctx context.Context, op, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Secret != "" {
		req.Header.Set(SignatureHeader, c.sign(body))
	}
	return c.do(ctx, op, req, out)
}

// GetJSON fetches url and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}
	return c.do(ctx, op, req, out)
}

func (c *Client) do(ctx context.Context, op string, req *http.Request, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return &model.NetworkError{Op: op, Err: err}
		}
	}
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger().Warn("remote call failed", zap.String("op", op), zap.String("url", req.URL.String()), zap.Error(err))
		return &model.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &model.NetworkError{Op: op, Status: resp.StatusCode, Err: err}
	}
	c.logger().Debug("remote call", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.NetworkError{Op: op, Status: resp.StatusCode, Detail: ErrorDetail(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &model.NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// sign returns lowercase hex HMAC-SHA256 of the exact bytes sent, keyed with
// the secret shared with the optimizer or geocoder.
func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.Secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// ErrorDetail pulls a human-readable message out of an error body. It knows
// the FastAPI `detail` shapes and common `error`/`message` keys and falls back
// to the raw text.
func ErrorDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"detail.0.msg", "detail", "provider_error", "error.message", "error", "message", "title"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
