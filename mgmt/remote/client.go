// Package remote implements mgmt.Connection against an agent endpoint.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sethvargo/go-retry"

	"github.com/hugr-lab/manageql/agent"
	"github.com/hugr-lab/manageql/mgmt"
)

// Default retry settings.
const (
	DefaultMaxRetries = 5
	DefaultBackoff    = 100 * time.Millisecond
)

// Config configures a Client.
type Config struct {
	// URL of the agent, e.g. "http://localhost:9010". Required.
	URL string

	// Token is sent as a bearer token when set.
	Token string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// MaxRetries of a failed call. Zero uses DefaultMaxRetries; a negative
	// value disables retries.
	MaxRetries int

	// Backoff is the base of the fibonacci backoff between retries.
	Backoff time.Duration

	Logger *slog.Logger
}

// Client is a mgmt.Connection backed by a remote agent. Transport failures
// and 5xx responses are retried with fibonacci backoff; other failures are
// returned at once.
type Client struct {
	base       *url.URL
	token      string
	http       *http.Client
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

var _ mgmt.Connection = (*Client)(nil)

// New creates a Client. It does not contact the agent.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote: url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: invalid url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", base.Scheme)
	}

	c := &Client{
		base:    base,
		token:   cfg.Token,
		http:    cfg.HTTPClient,
		backoff: cfg.Backoff,
		logger:  cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	switch {
	case cfg.MaxRetries == 0:
		c.maxRetries = DefaultMaxRetries
	case cfg.MaxRetries > 0:
		c.maxRetries = uint64(cfg.MaxRetries)
	}
	return c, nil
}

// Ping checks that the agent is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", "", http.MethodGet, agent.PathHealth, nil, nil, nil)
}

// QueryNames implements mgmt.Connection.
func (c *Client) QueryNames(ctx context.Context, pattern *mgmt.ObjectName) ([]mgmt.ObjectName, error) {
	q := url.Values{}
	key := ""
	if pattern != nil {
		key = pattern.Canonical()
		q.Set("pattern", key)
	}
	var resp agent.NamesResponse
	if err := c.call(ctx, "query", key, http.MethodGet, agent.PathNames, q, nil, &resp); err != nil {
		return nil, err
	}
	names := make([]mgmt.ObjectName, 0, len(resp.Names))
	for _, s := range resp.Names {
		n, err := mgmt.ParseObjectName(s)
		if err != nil {
			return nil, &mgmt.IOError{Op: "query", Name: key, Err: err}
		}
		names = append(names, n)
	}
	return names, nil
}

// Describe implements mgmt.Connection.
func (c *Client) Describe(ctx context.Context, name mgmt.ObjectName) ([]mgmt.AttributeInfo, error) {
	key := name.Canonical()
	var resp agent.DescribeResponse
	if err := c.call(ctx, "describe", key, http.MethodGet, agent.PathDescribe, url.Values{"name": {key}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

// ReadAttributes implements mgmt.Connection. Values that cannot be decoded
// are omitted like unreadable attributes.
func (c *Client) ReadAttributes(ctx context.Context, name mgmt.ObjectName, names []string) ([]mgmt.Attribute, error) {
	key := name.Canonical()
	req := agent.ReadRequest{Name: key, Attributes: names}
	var resp agent.ReadResponse
	if err := c.call(ctx, "read", key, http.MethodPost, agent.PathRead, nil, &req, &resp); err != nil {
		return nil, err
	}

	attrs := make([]mgmt.Attribute, 0, len(resp.Attributes))
	for _, wa := range resp.Attributes {
		v, err := mgmt.DecodeValue(wa.Value)
		if err != nil {
			c.logger.Warn("remote: skipping attribute", "object", key, "attribute", wa.Name, "error", err)
			continue
		}
		attrs = append(attrs, mgmt.Attribute{Name: wa.Name, Value: v})
	}
	return attrs, nil
}

// call performs one request with retries and decodes the JSON response
// into out. Failures are returned as *mgmt.IOError.
func (c *Client) call(ctx context.Context, op, name, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return &mgmt.IOError{Op: op, Name: name, Err: err}
		}
	}

	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, method, u.String(), body, out)
		if err != nil && isRetryable(err) {
			c.logger.Debug("remote: retrying", "op", op, "object", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return mgmt.WrapIOError(op, name, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode >= 300 {
		return responseError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
