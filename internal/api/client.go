// Package api is the client for the loyalty backend's REST interface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/existflow/narodplus/internal/apperr"
	"github.com/existflow/narodplus/internal/gateway"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// TokenSource supplies the bearer token. A missing token is not an error.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, bool)
}

// Client talks to the backend.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	tokens     TokenSource
	validate   *validator.Validate
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport routes requests through rt, typically the offline gateway.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperr.New(apperr.KindConfig, "api.NewClient", fmt.Sprintf("invalid server url %q", baseURL))
	}

	c := &Client{
		base:       u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		validate:   validator.New(),
		log:        logger.WithFields(logger.F("component", "api")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) check(op string, req any) error {
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return &apperr.Error{
				Kind:    apperr.KindValidation,
				Op:      op,
				Message: "invalid " + strings.Join(fields, ", "),
				Cause:   err,
			}
		}
		return apperr.Wrap(apperr.KindValidation, op, "invalid request", err)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method string, path []string, body, out any) error {
	u := c.base.JoinPath(path...)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, "failed to encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if c.tokens != nil {
		if token, ok := c.tokens.AuthToken(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.log.WithFields(logger.F("op", op), logger.F("request_id", reqID))
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("Request failed", logger.F("url", u.String()), logger.Err(err))
		return apperr.Wrap(apperr.KindNetwork, op, "failed to connect", err)
	}
	defer resp.Body.Close()

	log.Debug("Request completed",
		logger.F("status", resp.StatusCode),
		logger.F("cached", resp.Header.Get(gateway.HeaderCache) != ""),
		logger.F("duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperr.Backend(op, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.Error{Kind: apperr.KindBackend, Op: op, Message: "unreadable response", Status: resp.StatusCode, Cause: err}
	}
	return nil
}
