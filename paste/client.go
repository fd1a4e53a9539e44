package paste

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/latexbot/resilience"
)

// DefaultEndpoint is the public hastebin-compatible paste service.
const DefaultEndpoint = "https://paste.pythondiscord.com"

// Sentinel errors for paste uploads.
var (
	// ErrNoKey is returned when the service answers without a document key.
	ErrNoKey = errors.New("paste: response has no key")

	// ErrEmptyText is returned for an empty upload.
	ErrEmptyText = errors.New("paste: nothing to upload")
)

// StatusError reports a non-2xx response. The service answers 400 when the
// document is too large.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("paste: unexpected status %d", e.StatusCode)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the service base URL. Documents are POSTed to
	// <Endpoint>/documents.
	Endpoint string

	// HTTPClient performs the calls. Default: a client with a 10s timeout.
	HTTPClient *http.Client

	// Executor guards each upload. Default: run directly.
	Executor *resilience.Executor
}

// Client uploads text documents and returns their view URL.
type Client struct {
	base string
	http *http.Client
	exec *resilience.Executor
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if base == "" {
		base = DefaultEndpoint
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("paste: invalid endpoint %q", cfg.Endpoint)
	}

	c := &Client{base: base, http: cfg.HTTPClient, exec: cfg.Executor}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.exec == nil {
		c.exec = resilience.NewExecutor()
	}
	return c, nil
}

// Endpoint returns the service base URL.
func (c *Client) Endpoint() string {
	return c.base
}

// Upload posts text and returns <base>/<key>.txt?noredirect.
func (c *Client) Upload(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}

	var key string
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		key, err = c.upload(ctx, text)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.base + "/" + url.PathEscape(key) + ".txt?noredirect", nil
}

func (c *Client) upload(ctx context.Context, text string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/documents", strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("paste: building request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paste: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	var doc struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&doc); err != nil {
		return "", fmt.Errorf("paste: decoding response: %w", err)
	}
	if strings.TrimSpace(doc.Key) == "" {
		return "", ErrNoKey
	}
	return doc.Key, nil
}
