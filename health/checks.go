package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
)

// DirChecker reports whether a directory accepts new files.
type DirChecker struct {
	name string
	dir  string
}

// NewDirChecker creates a DirChecker for dir.
func NewDirChecker(name, dir string) *DirChecker {
	return &DirChecker{name: name, dir: dir}
}

// Name returns the checker name.
func (c *DirChecker) Name() string { return c.name }

// Check creates and removes a scratch file in the directory.
func (c *DirChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context done", err)
	}
	details := map[string]any{"dir": c.dir}

	f, err := os.CreateTemp(c.dir, ".healthcheck-*")
	if err != nil {
		return Unhealthy("directory not writable", err).WithDetails(details)
	}
	name := f.Name()
	closeErr := f.Close()
	if err := os.Remove(name); err != nil {
		return Degraded(fmt.Sprintf("scratch file left behind: %v", err)).WithDetails(details)
	}
	if closeErr != nil {
		return Unhealthy("directory not writable", closeErr).WithDetails(details)
	}
	return Healthy("directory writable").WithDetails(details)
}

// HTTPChecker reports whether an HTTP endpoint answers. Any response,
// whatever its status, counts as reachable.
type HTTPChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPChecker creates an HTTPChecker. A nil client uses http.DefaultClient.
func NewHTTPChecker(name, url string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{name: name, url: url, client: client}
}

// Name returns the checker name.
func (c *HTTPChecker) Name() string { return c.name }

// Check sends a HEAD request to the endpoint.
func (c *HTTPChecker) Check(ctx context.Context) Result {
	details := map[string]any{"url": c.url}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return Unhealthy("invalid endpoint", err).WithDetails(details)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy("endpoint unreachable", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}
	_ = resp.Body.Close()

	details["status_code"] = resp.StatusCode
	return Healthy("endpoint reachable").WithDetails(details)
}

var (
	_ Checker = (*DirChecker)(nil)
	_ Checker = (*HTTPChecker)(nil)
	_ Checker = (*CheckerFunc)(nil)
)
