package latex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/latexbot/cache"
	"github.com/jonwraymond/latexbot/observe"
	"github.com/jonwraymond/latexbot/render"
	"github.com/jonwraymond/latexbot/resilience"
)

// CommandName names the command in logs, spans, and metrics.
const CommandName = "latex"

// ErrNilDependency is returned by NewHandler for a missing store or renderer.
var ErrNilDependency = errors.New("latex: store and renderer are required")

// Renderer turns a LaTeX document into an image.
type Renderer interface {
	Render(ctx context.Context, source string) (render.Outcome, error)
}

// Paster uploads text and returns a link to it.
type Paster interface {
	Upload(ctx context.Context, text string) (string, error)
}

// Handler runs the latex command: normalize, key, look up the cache, and
// render on a miss.
//
// Invocations sharing a scope run one at a time; later ones wait. Identical
// misses in different scopes share a single render.
type Handler struct {
	store    cache.Store
	keyer    cache.Keyer
	renderer Renderer
	paster   Paster
	template *Template
	gate     *resilience.Gate
	mw       *observe.Middleware
	newID    func() string

	flight singleflight.Group
}

// Option configures a Handler.
type Option func(*Handler)

// WithKeyer sets the cache key function. Default: MD5.
func WithKeyer(k cache.Keyer) Option {
	return func(h *Handler) { h.keyer = k }
}

// WithPaster sets the log upload client. Without one, failure notices always
// say the logs could not be uploaded.
func WithPaster(p Paster) Option {
	return func(h *Handler) { h.paster = p }
}

// WithTemplate sets the document template. Default: DefaultTemplate.
func WithTemplate(t *Template) Option {
	return func(h *Handler) { h.template = t }
}

// WithGate shares a scope gate between handlers.
func WithGate(g *resilience.Gate) Option {
	return func(h *Handler) { h.gate = g }
}

// WithMiddleware sets the observability wrapper.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(h *Handler) { h.mw = mw }
}

// WithInvocationIDs overrides how invocation IDs are generated.
func WithInvocationIDs(fn func() string) Option {
	return func(h *Handler) { h.newID = fn }
}

// NewHandler creates a Handler over store and renderer.
func NewHandler(store cache.Store, renderer Renderer, opts ...Option) (*Handler, error) {
	if store == nil || renderer == nil {
		return nil, ErrNilDependency
	}
	h := &Handler{store: store, renderer: renderer}
	for _, opt := range opts {
		opt(h)
	}
	if h.keyer == nil {
		h.keyer = cache.NewMD5Keyer()
	}
	if h.template == nil {
		h.template = DefaultTemplate()
	}
	if h.gate == nil {
		h.gate = resilience.NewGate()
	}
	if h.mw == nil {
		h.mw = observe.NewMiddleware(nil, nil, nil)
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	return h, nil
}

// Handle runs one invocation and returns its single reply.
//
// Transport failures talking to the rendering service, and calls refused by
// its resilience policy, are returned as errors with no Response.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	scope := strings.TrimSpace(req.Scope)
	if scope == "" {
		scope = DefaultScope
	}
	meta := observe.CommandMeta{Name: CommandName, Scope: scope, InvocationID: h.newID()}

	var resp Response
	run := h.mw.Wrap(func(ctx context.Context, meta observe.CommandMeta) (observe.Report, error) {
		var report observe.Report
		err := h.gate.Do(ctx, scope, func(ctx context.Context) error {
			var err error
			resp, report, err = h.handle(ctx, meta, req.Query)
			return err
		})
		return report, err
	})

	if _, err := run(ctx, meta); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Open returns the image bytes of an image Response.
func (h *Handler) Open(ctx context.Context, resp Response) (io.ReadCloser, error) {
	if resp.Kind != KindImage {
		return nil, fmt.Errorf("latex: %s response has no image", resp.Kind)
	}
	return h.store.Open(ctx, resp.Key)
}

// Key returns the cache key and entry path a query would use.
func (h *Handler) Key(query string) (key, path string) {
	key = h.keyer.Key(Normalize(query))
	return key, h.store.Path(key)
}

func (h *Handler) handle(ctx context.Context, meta observe.CommandMeta, raw string) (Response, observe.Report, error) {
	query := Normalize(raw)
	if strings.TrimSpace(query) == "" {
		return Response{}, observe.Report{}, ErrEmptyQuery
	}
	key := h.keyer.Key(query)

	if h.store.Exists(ctx, key) {
		return imageResponse(key, h.store.Path(key), true), observe.Report{
			Outcome: observe.OutcomeImage,
			Key:     key,
			Cached:  true,
		}, nil
	}

	// The shared render is detached from any one caller so that a caller
	// giving up does not fail the others. A caller whose context ends still
	// waits for the render before returning, keeping its scope held until
	// nothing runs under it.
	ch := h.flight.DoChan(key, func() (any, error) {
		return h.renderAndStore(context.WithoutCancel(ctx), meta, key, query)
	})
	select {
	case <-ctx.Done():
		<-ch
		return Response{}, observe.Report{Key: key}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, observe.Report{Key: key}, res.Err
		}
		out := res.Val.(rendered)
		return out.resp, out.report, nil
	}
}

type rendered struct {
	resp   Response
	report observe.Report
}

func (h *Handler) renderAndStore(ctx context.Context, meta observe.CommandMeta, key, query string) (rendered, error) {
	// A render for this key may have finished between the lookup and now.
	if h.store.Exists(ctx, key) {
		return rendered{
			resp:   imageResponse(key, h.store.Path(key), true),
			report: observe.Report{Outcome: observe.OutcomeImage, Key: key, Cached: true},
		}, nil
	}

	res, err := h.store.Reserve(ctx, key)
	if err != nil {
		return rendered{}, err
	}
	// Every path that does not commit leaves nothing behind.
	defer func() { _ = res.Abort() }()

	outcome, err := h.render(ctx, meta, h.template.Execute(query))
	if err != nil {
		return rendered{}, err
	}

	switch o := outcome.(type) {
	case render.Success:
		if _, err := res.Write(o.Image); err != nil {
			return rendered{}, fmt.Errorf("latex: writing image: %w", err)
		}
		if err := res.Commit(); err != nil {
			return rendered{}, fmt.Errorf("latex: storing image: %w", err)
		}
		return rendered{
			resp:   imageResponse(key, res.Path(), false),
			report: observe.Report{Outcome: observe.OutcomeImage, Key: key},
		}, nil

	case render.Failure:
		if err := res.Abort(); err != nil {
			h.mw.Logger().WithCommand(meta).Warn(ctx, "discarding reserved entry", observe.F("key", key), observe.F("error", err))
		}
		logsURL := h.uploadLogs(ctx, meta, o.Logs)
		return rendered{
			resp: failureResponse(key, logsURL),
			report: observe.Report{
				Outcome:     observe.OutcomeFailure,
				Key:         key,
				PasteFailed: logsURL == "",
			},
		}, nil

	default:
		return rendered{}, fmt.Errorf("latex: unexpected render outcome %T", outcome)
	}
}

func (h *Handler) render(ctx context.Context, meta observe.CommandMeta, source string) (render.Outcome, error) {
	tracer := h.mw.Tracer()
	ctx, span := tracer.StartSpan(ctx, meta.WithStage("render"))
	outcome, err := h.renderer.Render(ctx, source)
	tracer.EndSpan(span, err)
	return outcome, err
}

// uploadLogs returns the paste link, or "" when there is none.
func (h *Handler) uploadLogs(ctx context.Context, meta observe.CommandMeta, logs string) string {
	if h.paster == nil {
		return ""
	}
	tracer := h.mw.Tracer()
	ctx, span := tracer.StartSpan(ctx, meta.WithStage("paste"))
	link, err := h.paster.Upload(ctx, logs)
	tracer.EndSpan(span, err)
	if err != nil {
		h.mw.Logger().WithCommand(meta).Warn(ctx, "log upload failed", observe.F("error", err))
		return ""
	}
	return link
}
