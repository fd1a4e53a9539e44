// Package app wires a resolved configuration into the running services:
// observability, the image cache, the render and paste clients, the latex
// command handler, health checks, and authentication.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/latexbot/auth"
	"github.com/jonwraymond/latexbot/cache"
	"github.com/jonwraymond/latexbot/config"
	"github.com/jonwraymond/latexbot/health"
	"github.com/jonwraymond/latexbot/latex"
	"github.com/jonwraymond/latexbot/observe"
	"github.com/jonwraymond/latexbot/paste"
	"github.com/jonwraymond/latexbot/render"
	"github.com/jonwraymond/latexbot/resilience"
)

// ServiceName names the service in telemetry.
const ServiceName = "latexbot"

// Version is stamped at build time.
var Version = "dev"

// healthCheckTimeout bounds the render endpoint reachability check.
const healthCheckTimeout = 5 * time.Second

// App aggregates the wired services.
type App struct {
	Config   *config.Config
	Observer observe.Observer
	Logger   observe.Logger
	Cache    *cache.Dir
	Handler  *latex.Handler
	Gate     *resilience.Gate
	Health   *health.Aggregator

	// Auth is nil when authentication is disabled.
	Auth auth.Authenticator

	// Metrics serves the prometheus registry, or is nil when metrics are not
	// exported through prometheus.
	Metrics http.Handler

	renderExec *resilience.Executor
}

// Option adjusts how Build wires the services.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logWriter  io.Writer
	renderer   latex.Renderer
	paster     latex.Paster
}

// WithHTTPClient sets the client used for the render and paste services.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogWriter sends log output to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithRenderer replaces the render service client.
func WithRenderer(r latex.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithPaster replaces the paste service client.
func WithPaster(p latex.Paster) Option {
	return func(o *options) { o.paster = p }
}

// Build wires cfg into an App. The caller must Shutdown it.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}

	registry := promclient.NewRegistry()
	obs, err := observe.NewObserver(ctx, observerConfig(cfg, registry, o.logWriter))
	if err != nil {
		return nil, fmt.Errorf("app: observability: %w", err)
	}
	a.Observer = obs
	a.Logger = obs.Logger()
	if cfg.Metrics.Enabled && strings.EqualFold(cfg.Metrics.Exporter, "prometheus") {
		a.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("app: observability: %w", err))
	}

	a.Cache, err = cache.NewDir(cfg.Cache.Dir, "png")
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("app: cache: %w", err))
	}
	keyer, err := cache.NewKeyer(cfg.Cache.Hash)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("app: cache: %w", err))
	}
	tpl, err := latex.LoadTemplate(cfg.Template.Path)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("app: template: %w", err))
	}

	renderer := o.renderer
	if renderer == nil {
		a.renderExec = a.renderExecutor()
		renderer, err = render.NewClient(render.Config{
			Endpoint:      cfg.Render.Endpoint,
			Format:        cfg.Render.Format,
			HTTPClient:    o.httpClient,
			Executor:      a.renderExec,
			MaxImageBytes: cfg.Render.MaxImageBytes,
			UserAgent:     ServiceName + "/" + Version,
		})
		if err != nil {
			return nil, a.fail(ctx, fmt.Errorf("app: render: %w", err))
		}
	}

	paster := o.paster
	if paster == nil && cfg.Paste.Enabled {
		paster, err = paste.NewClient(paste.Config{
			Endpoint:   cfg.Paste.Endpoint,
			HTTPClient: o.httpClient,
			Executor:   resilience.NewPolicyExecutor(resilience.Policy{Timeout: cfg.Paste.Timeout}),
		})
		if err != nil {
			return nil, a.fail(ctx, fmt.Errorf("app: paste: %w", err))
		}
	}

	a.Gate = resilience.NewGate()
	handlerOpts := []latex.Option{
		latex.WithKeyer(keyer),
		latex.WithTemplate(tpl),
		latex.WithGate(a.Gate),
		latex.WithMiddleware(mw),
	}
	if paster != nil {
		handlerOpts = append(handlerOpts, latex.WithPaster(paster))
	}
	a.Handler, err = latex.NewHandler(a.Cache, renderer, handlerOpts...)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("app: handler: %w", err))
	}

	a.Health = health.NewAggregator()
	a.Health.Register(health.NewDirChecker("cache", a.Cache.Root()))
	checkClient := &http.Client{Timeout: healthCheckTimeout}
	if o.httpClient != nil {
		checkClient = o.httpClient
	}
	a.Health.Register(health.NewHTTPChecker("render", cfg.Render.Endpoint, checkClient))

	a.Auth, err = buildAuthenticator(cfg.Auth)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("app: auth: %w", err))
	}

	a.Logger.Debug(ctx, "services wired",
		observe.F("cache_dir", a.Cache.Root()),
		observe.F("hash", keyer.Name()),
		observe.F("render_endpoint", cfg.Render.Endpoint),
		observe.F("paste_enabled", paster != nil),
		observe.F("auth_enabled", a.Auth != nil),
	)
	return a, nil
}

// Shutdown flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Observer == nil {
		return nil
	}
	return a.Observer.Shutdown(ctx)
}

// RenderCircuit returns the render breaker state, or "" when the default
// render client is not in use.
func (a *App) RenderCircuit() string {
	if a.renderExec == nil || a.renderExec.CircuitBreaker() == nil {
		return ""
	}
	return a.renderExec.CircuitBreaker().State().String()
}

func (a *App) fail(ctx context.Context, err error) error {
	if shutdownErr := a.Shutdown(ctx); shutdownErr != nil {
		return errors.Join(err, shutdownErr)
	}
	return err
}

func (a *App) renderExecutor() *resilience.Executor {
	rc := a.Config.Render
	logger := a.Logger
	return resilience.NewPolicyExecutor(resilience.Policy{
		Timeout:       rc.Timeout,
		Rate:          rc.Rate,
		Burst:         rc.Burst,
		MaxConcurrent: rc.MaxConcurrent,
		QueueWait:     rc.QueueWait,
		MaxAttempts:   rc.Retry.MaxAttempts,
		RetryDelay:    rc.Retry.InitialDelay,
		MaxRetryDelay: rc.Retry.MaxDelay,
		RetryIf:       render.Retryable,
		MaxFailures:   rc.Circuit.MaxFailures,
		ResetTimeout:  rc.Circuit.ResetTimeout,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "render circuit changed state",
				observe.F("from", from.String()), observe.F("to", to.String()))
		},
		OnRetry: func(err error, delay time.Duration) {
			logger.Debug(context.Background(), "retrying render call",
				observe.F("error", err), observe.F("delay_ms", delay.Milliseconds()))
		},
	})
}

func observerConfig(cfg *config.Config, registry promclient.Registerer, w io.Writer) observe.Config {
	return observe.Config{
		ServiceName: ServiceName,
		Version:     Version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Tracing.Enabled,
			Exporter:  cfg.Tracing.Exporter,
			SamplePct: cfg.Tracing.SamplePct / 100,
		},
		Metrics: observe.MetricsConfig{
			Enabled:    cfg.Metrics.Enabled,
			Exporter:   cfg.Metrics.Exporter,
			Registerer: registry,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Log.Level,
			Writer:  w,
		},
	}
}

func buildAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var auths []auth.Authenticator
	if len(cfg.APIKeys) > 0 {
		store, err := auth.NewMemoryAPIKeyStoreFromSpecs(cfg.APIKeys)
		if err != nil {
			return nil, err
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.DefaultAPIKeyHeader, store))
	}
	if cfg.JWT.Secret != "" {
		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(cfg.JWT.Secret),
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		auths = append(auths, jwtAuth)
	}
	if len(auths) == 0 {
		return nil, errors.New("no credentials configured")
	}
	return auth.NewCompositeAuthenticator(auths...), nil
}
