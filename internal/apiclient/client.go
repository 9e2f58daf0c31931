// Package apiclient is the JSON-over-HTTP client the gateways use to reach
// the API. Every response is decoded into a tagged result: either the typed
// payload or an *apperr.Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
)

// Doer sends a prepared request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Envelope is the status wrapper every API response carries.
type Envelope struct {
	Status  string            `json:"status"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON when set.
	Body           any
	Bearer         string
	IdempotencyKey string
	// Fallback is the kind reported for 5xx responses without an error code.
	Fallback apperr.Kind
}

// Client issues API calls relative to a base URL.
type Client struct {
	base   string
	doer   Doer
	logger *slog.Logger
}

// New builds a client. A nil doer uses an http.Client with a 15s timeout.
func New(baseURL string, doer Doer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), doer: doer, logger: logging.OrDiscard(logger)}
}

// Do performs req and decodes the response into out, which must be a pointer
// to a struct that may embed Envelope. The returned Envelope carries the
// response status so callers can tell "success" from "conflict".
func (c *Client) Do(ctx context.Context, req Request, out any) (Envelope, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return Envelope{}, err
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Envelope{}, apperr.Wrap(ctx.Err(), apperr.KindNetwork, "request cancelled")
		}
		return Envelope{}, apperr.Wrap(err, apperr.KindNetwork, fmt.Sprintf("%s %s", req.Method, req.Path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, apperr.Wrap(err, apperr.KindNetwork, "read response")
	}

	// Bodies that are not an envelope (search returns a bare array) leave env empty.
	var env Envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 || env.Status == "error" {
		apiErr := classify(resp.StatusCode, env, req.Fallback)
		c.logger.Debug("api error", "method", req.Method, "path", req.Path, "status", resp.StatusCode, "code", string(apiErr.Kind))
		return env, apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return env, apperr.Wrap(err, apperr.KindInternal, "decode response")
		}
	}
	return env, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.base + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindInternal, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return httpReq, nil
}

// Upload posts raw bytes with the given content type and decodes the JSON
// response into out.
func (c *Client) Upload(ctx context.Context, path, bearer, contentType string, data []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "build request")
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return apperr.Wrap(err, apperr.KindNetwork, "upload")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(err, apperr.KindNetwork, "read response")
	}
	var env Envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= 400 || env.Status == "error" {
		return classify(resp.StatusCode, env, apperr.KindNetwork)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "decode response")
		}
	}
	return nil
}

func classify(status int, env Envelope, fallback apperr.Kind) *apperr.Error {
	if fallback == "" {
		fallback = apperr.KindNetwork
	}
	kind, ok := apperr.ParseKind(env.Code)
	if !ok {
		kind = apperr.KindFromStatus(status, fallback)
	}
	if status < 400 && !ok {
		kind = fallback
	}
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &apperr.Error{Kind: kind, Message: msg, Fields: env.Fields}
}

// IsStatus reports whether env carries the given status.
func IsStatus(env Envelope, status string) bool {
	return strings.EqualFold(env.Status, status)
}

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
