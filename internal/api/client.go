package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"transcoderctl/internal/config"
	"transcoderctl/internal/logging"
)

const maxErrorBody = 64 << 10

// Client talks to the transcoder REST API.
type Client struct {
	base         *url.URL
	http         *http.Client
	transfer     *http.Client
	token        string
	storageHost  string
	storageAlias string
	logger       *slog.Logger
	requestID    func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for JSON calls. Unless
// WithTransferClient is also given, uploads and downloads use a copy of it
// whose Timeout bounds only the wait for response headers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTransferClient sets the HTTP client for uploads and downloads, which
// run for as long as their context allows.
func WithTransferClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.transfer = hc
		}
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithStorageRewrite replaces host with alias in signed download URLs.
func WithStorageRewrite(host, alias string) Option {
	return func(c *Client) {
		c.storageHost = strings.TrimSpace(host)
		c.storageAlias = strings.TrimSpace(alias)
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "api")
		}
	}
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    logging.NewNop(),
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transfer == nil {
		c.transfer = transferClient(c.http)
	}
	return c, nil
}

// transferClient copies hc without its overall Timeout, which would cut off
// a body still streaming. The timeout moves to ResponseHeaderTimeout when
// the transport allows it.
func transferClient(hc *http.Client) *http.Client {
	out := *hc
	out.Timeout = 0
	if hc.Timeout <= 0 {
		return &out
	}
	var base *http.Transport
	switch rt := hc.Transport.(type) {
	case nil:
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			base = dt
		}
	case *http.Transport:
		base = rt
	}
	if base != nil {
		tr := base.Clone()
		tr.ResponseHeaderTimeout = hc.Timeout
		out.Transport = tr
	}
	return &out
}

// NewFromConfig builds a client from the [api] config section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return New(cfg.API.BaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		WithToken(cfg.API.APIToken),
		WithStorageRewrite(cfg.API.StorageHost, cfg.API.StorageHostRewrite),
		WithLogger(logger),
	)
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(p string, query url.Values) *url.URL {
	u := *c.base
	u.Path = path.Join("/", c.base.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

func (c *Client) newRequest(ctx context.Context, method, p string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.endpoint(p, query)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", c.requestIDFor(ctx))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) requestIDFor(ctx context.Context) string {
	if id, ok := logging.CorrelationIDFromContext(ctx); ok {
		return id
	}
	return c.requestID()
}

// doJSON sends payload (if any) as JSON and decodes the response into out
// (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, p string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, p, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, p, query, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.send(c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, p, err)
	}
	return nil
}

func decodeJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

// send executes req on hc and converts transport failures and non-2xx statuses
// into errors. The caller owns the returned body.
func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug("request failed",
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Error(err),
		)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	c.logger.Debug("request complete",
		logging.String("method", req.Method),
		logging.String("path", req.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, req.Header.Get("X-Request-ID")),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}
	return resp, nil
}
