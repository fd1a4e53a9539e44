package config

import "time"

// Option is one configuration key with its default and meaning.
type Option struct {
	Key     string
	Default any
	Comment string
}

// Options returns every configuration key. It is the single source of truth
// for defaults and for the rendered default config file.
func Options() []Option {
	return []Option{
		{Key: "cache.dir", Default: "cache", Comment: "Directory holding rendered images as <hash>.png"},
		{Key: "cache.hash", Default: "md5", Comment: "Cache key digest: md5 or sha256"},

		{Key: "render.endpoint", Default: "https://rtex.probablyaweb.site/api/v2", Comment: "Rendering service base URL"},
		{Key: "render.format", Default: "png", Comment: "Output format requested from the rendering service"},
		{Key: "render.timeout", Default: 30 * time.Second, Comment: "Timeout for one render attempt (submit and fetch)"},
		{Key: "render.max_image_bytes", Default: int64(16 << 20), Comment: "Largest image accepted from the rendering service"},
		{Key: "render.rate", Default: 5.0, Comment: "Render calls per second"},
		{Key: "render.burst", Default: 10, Comment: "Render call burst size"},
		{Key: "render.max_concurrent", Default: 4, Comment: "Concurrent render calls"},
		{Key: "render.queue_wait", Default: 10 * time.Second, Comment: "How long a render waits for a rate or concurrency slot"},
		{Key: "render.retry.max_attempts", Default: 1, Comment: "Attempts per render; transport errors only"},
		{Key: "render.retry.initial_delay", Default: 200 * time.Millisecond, Comment: "First retry delay"},
		{Key: "render.retry.max_delay", Default: 5 * time.Second, Comment: "Largest retry delay"},
		{Key: "render.circuit.max_failures", Default: 5, Comment: "Consecutive transport failures that open the circuit"},
		{Key: "render.circuit.reset_timeout", Default: 30 * time.Second, Comment: "How long the circuit stays open"},

		{Key: "paste.enabled", Default: true, Comment: "Upload render logs on failure"},
		{Key: "paste.endpoint", Default: "https://paste.pythondiscord.com", Comment: "Paste service base URL"},
		{Key: "paste.timeout", Default: 10 * time.Second, Comment: "Timeout for one log upload"},

		{Key: "template.path", Default: "", Comment: "LaTeX document template with a $text slot; empty uses the built-in one"},

		{Key: "server.addr", Default: ":8080", Comment: "HTTP listen address"},
		{Key: "server.read_timeout", Default: 10 * time.Second, Comment: "HTTP read timeout"},
		{Key: "server.write_timeout", Default: 90 * time.Second, Comment: "HTTP write timeout"},
		{Key: "server.shutdown_timeout", Default: 15 * time.Second, Comment: "Grace period for in-flight requests on shutdown"},
		{Key: "server.max_query_bytes", Default: int64(64 << 10), Comment: "Largest accepted request body"},

		{Key: "auth.enabled", Default: false, Comment: "Require an API key or bearer token on /v1 routes"},
		{Key: "auth.api_keys", Default: []string{}, Comment: "API keys as principal[@tenant]:key or principal[@tenant]:sha256:<hex>"},
		{Key: "auth.jwt.secret", Default: "", Comment: "HS256 secret for bearer tokens; empty disables JWT"},
		{Key: "auth.jwt.issuer", Default: "", Comment: "Required iss claim"},
		{Key: "auth.jwt.audience", Default: "", Comment: "Required aud claim"},

		{Key: "secrets.strict", Default: true, Comment: "Fail when a secretref resolves to an empty value"},
		{Key: "secrets.providers", Default: []string{"env", "file"}, Comment: "Enabled secretref providers"},
		{Key: "secrets.file_root", Default: "", Comment: "Base directory for secretref:file references"},

		{Key: "log.level", Default: "info", Comment: "debug, info, warn, or error"},
		{Key: "tracing.enabled", Default: false, Comment: "Export traces"},
		{Key: "tracing.exporter", Default: "none", Comment: "stdout, otlp, or none"},
		{Key: "tracing.sample_pct", Default: 100.0, Comment: "Percentage of traces sampled"},
		{Key: "metrics.enabled", Default: true, Comment: "Collect metrics"},
		{Key: "metrics.exporter", Default: "prometheus", Comment: "prometheus, stdout, otlp, or none"},
	}
}
