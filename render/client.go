package render

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

// DefaultEndpoint is the public rtex API.
const DefaultEndpoint = "https://rtex.probablyaweb.site/api/v2"

// DefaultMaxImageBytes bounds how much of an artifact is read.
const DefaultMaxImageBytes = 16 << 20

// maxSubmitBody bounds the JSON status document.
const maxSubmitBody = 4 << 20

// Config configures a Client.
type Config struct {
	// Endpoint is the render API URL. Artifacts are fetched from
	// <Endpoint>/<filename>.
	Endpoint string

	// Format is the requested output format. Default: "png".
	Format string

	// HTTPClient performs the calls. Default: a client with a 60s timeout.
	HTTPClient *http.Client

	// Executor guards each call. Default: run directly.
	Executor *resilience.Executor

	// MaxImageBytes caps the artifact size. Default: DefaultMaxImageBytes.
	MaxImageBytes int64

	// UserAgent is sent on every request.
	UserAgent string
}

// Client talks to an rtex-compatible rendering service.
type Client struct {
	endpoint  string
	format    string
	http      *http.Client
	exec      *resilience.Executor
	maxImage  int64
	userAgent string
}

// submitResponse is the JSON document returned by the submit call.
type submitResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Log      string `json:"log"`
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("render: invalid endpoint %q", cfg.Endpoint)
	}

	c := &Client{
		endpoint:  endpoint,
		format:    cfg.Format,
		http:      cfg.HTTPClient,
		exec:      cfg.Executor,
		maxImage:  cfg.MaxImageBytes,
		userAgent: cfg.UserAgent,
	}
	if c.format == "" {
		c.format = "png"
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.exec == nil {
		c.exec = resilience.NewExecutor()
	}
	if c.maxImage <= 0 {
		c.maxImage = DefaultMaxImageBytes
	}
	return c, nil
}

// Endpoint returns the configured render API URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Render submits source and fetches the resulting artifact.
//
// A status other than "success" yields Failure with a nil error. Transport
// problems on either call yield a *TransportError; calls refused by the
// executor yield its sentinel errors.
func (c *Client) Render(ctx context.Context, source string) (Outcome, error) {
	var out Outcome
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.render(ctx, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) render(ctx context.Context, source string) (Outcome, error) {
	resp, err := c.submit(ctx, source)
	if err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return Failure{Logs: resp.Log}, nil
	}
	image, err := c.fetch(ctx, resp.Filename)
	if err != nil {
		return nil, err
	}
	return Success{Image: image}, nil
}

func (c *Client) submit(ctx context.Context, source string) (*submitResponse, error) {
	form := url.Values{}
	form.Set("code", source)
	form.Set("format", c.format)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: "submit", URL: c.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	c.decorate(req)

	body, err := c.do(req, "submit", maxSubmitBody)
	if err != nil {
		return nil, err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Op: "submit", URL: c.endpoint, Err: errors.Join(errMalformed, err)}
	}
	if resp.Status == "success" && strings.TrimSpace(resp.Filename) == "" {
		return nil, &TransportError{Op: "submit", URL: c.endpoint, Err: fmt.Errorf("%w: success without filename", errMalformed)}
	}
	return &resp, nil
}

func (c *Client) fetch(ctx context.Context, filename string) ([]byte, error) {
	artifact := c.endpoint + "/" + url.PathEscape(filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact, nil)
	if err != nil {
		return nil, &TransportError{Op: "fetch", URL: artifact, Err: err}
	}
	c.decorate(req)

	image, err := c.do(req, "fetch", c.maxImage)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, &TransportError{Op: "fetch", URL: artifact, Err: errors.Join(errMalformed, ErrEmptyImage)}
	}
	return image, nil
}

func (c *Client) do(req *http.Request, op string, limit int64) ([]byte, error) {
	target := req.URL.String()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &TransportError{Op: op, URL: target, Err: fmt.Errorf("%w: body exceeds %d bytes", errMalformed, limit)}
	}
	return body, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
