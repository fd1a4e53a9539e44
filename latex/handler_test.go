package latex

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/latexbot/cache"
	"github.com/jonwraymond/latexbot/paste"
	"github.com/jonwraymond/latexbot/render"
	"github.com/jonwraymond/latexbot/resilience"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

type fakeRenderer struct {
	calls   atomic.Int32
	sources chan string
	fn      func(ctx context.Context, source string) (render.Outcome, error)
}

func (f *fakeRenderer) Render(ctx context.Context, source string) (render.Outcome, error) {
	f.calls.Add(1)
	if f.sources != nil {
		f.sources <- source
	}
	return f.fn(ctx, source)
}

func succeed(image []byte) func(context.Context, string) (render.Outcome, error) {
	return func(context.Context, string) (render.Outcome, error) {
		return render.Success{Image: image}, nil
	}
}

type fakePaster struct {
	calls atomic.Int32
	text  string
	url   string
	err   error
}

func (f *fakePaster) Upload(_ context.Context, text string) (string, error) {
	f.calls.Add(1)
	f.text = text
	return f.url, f.err
}

func newTestHandler(t *testing.T, r Renderer, opts ...Option) (*Handler, *cache.Dir) {
	t.Helper()
	dir, err := cache.NewDir(filepath.Join(t.TempDir(), "cache"), "png")
	require.NoError(t, err)
	h, err := NewHandler(dir, r, opts...)
	require.NoError(t, err)
	return h, dir
}

func readImage(t *testing.T, h *Handler, resp Response) []byte {
	t.Helper()
	rc, err := h.Open(context.Background(), resp)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	dir, err := cache.NewDir(t.TempDir(), "")
	require.NoError(t, err)

	_, err = NewHandler(nil, &fakeRenderer{})
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewHandler(dir, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestHandle_CacheRoundTrip(t *testing.T) {
	r := &fakeRenderer{fn: succeed(pngBytes)}
	h, dir := newTestHandler(t, r)
	ctx := context.Background()

	first, err := h.Handle(ctx, Request{Query: "`x^2`"})
	require.NoError(t, err)
	assert.Equal(t, KindImage, first.Kind)
	assert.False(t, first.Cached)
	assert.Equal(t, ImageFilename, first.Filename)
	assert.Equal(t, cache.NewMD5Keyer().Key("x^2"), first.Key)
	assert.Equal(t, dir.Path(first.Key), first.Path)
	assert.FileExists(t, first.Path)

	// Different raw input, same normalized query.
	second, err := h.Handle(ctx, Request{Query: "```tex\nx^2\n```"})
	require.NoError(t, err)
	assert.Equal(t, KindImage, second.Kind)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Key, second.Key)

	assert.EqualValues(t, 1, r.calls.Load())
	assert.Equal(t, pngBytes, readImage(t, h, first))
	assert.Equal(t, pngBytes, readImage(t, h, second))
}

func TestHandle_SubmitsTemplatedSource(t *testing.T) {
	r := &fakeRenderer{fn: succeed(pngBytes), sources: make(chan string, 1)}
	tpl, err := ParseTemplate("BEGIN $text END")
	require.NoError(t, err)
	h, _ := newTestHandler(t, r, WithTemplate(tpl))

	_, err = h.Handle(context.Background(), Request{Query: "`a $b$ c`"})
	require.NoError(t, err)
	assert.Equal(t, "BEGIN a $b$ c END", <-r.sources)
}

func TestHandle_FailureLeavesNoEntry(t *testing.T) {
	r := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
		return render.Failure{Logs: "boom"}, nil
	}}
	p := &fakePaster{url: "https://paste.example/abc.txt?noredirect"}
	h, dir := newTestHandler(t, r, WithPaster(p))

	resp, err := h.Handle(context.Background(), Request{Query: `\badcommand`})
	require.NoError(t, err)

	assert.Equal(t, KindFailure, resp.Kind)
	assert.Equal(t, FailureTitle, resp.Title)
	assert.Equal(t, "[View Logs](https://paste.example/abc.txt?noredirect)", resp.Description)
	assert.Equal(t, p.url, resp.LogsURL)
	assert.Empty(t, resp.Path)
	assert.Equal(t, "boom", p.text)

	assert.NoFileExists(t, dir.Path(resp.Key))
	assert.False(t, dir.Exists(context.Background(), resp.Key))
	stats, err := dir.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Partial)

	_, err = h.Open(context.Background(), resp)
	assert.Error(t, err)
}

func TestHandle_FailureIsNotCached(t *testing.T) {
	r := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
		return render.Failure{Logs: "boom"}, nil
	}}
	h, _ := newTestHandler(t, r)

	for range 2 {
		resp, err := h.Handle(context.Background(), Request{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, KindFailure, resp.Kind)
	}
	assert.EqualValues(t, 2, r.calls.Load())
}

func TestHandle_PasteFailureFallback(t *testing.T) {
	r := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
		return render.Failure{Logs: "boom"}, nil
	}}

	t.Run("upload error", func(t *testing.T) {
		p := &fakePaster{err: errors.New("paste down")}
		h, _ := newTestHandler(t, r, WithPaster(p))

		resp, err := h.Handle(context.Background(), Request{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, KindFailure, resp.Kind)
		assert.Equal(t, UploadFailedNotice, resp.Description)
		assert.Empty(t, resp.LogsURL)
		assert.EqualValues(t, 1, p.calls.Load())
	})

	t.Run("no paster", func(t *testing.T) {
		h, _ := newTestHandler(t, r)

		resp, err := h.Handle(context.Background(), Request{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, UploadFailedNotice, resp.Description)
	})

	t.Run("empty logs skip upload", func(t *testing.T) {
		var posts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			posts.Add(1)
			_, _ = w.Write([]byte(`{"key":"abc"}`))
		}))
		t.Cleanup(srv.Close)
		p, err := paste.NewClient(paste.Config{Endpoint: srv.URL})
		require.NoError(t, err)

		silent := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
			return render.Failure{}, nil
		}}
		h, _ := newTestHandler(t, silent, WithPaster(p))

		resp, err := h.Handle(context.Background(), Request{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, KindFailure, resp.Kind)
		assert.Equal(t, UploadFailedNotice, resp.Description)
		assert.Zero(t, posts.Load())
	})
}

func TestHandle_TransportErrorLeavesNoEntry(t *testing.T) {
	transportErr := &render.TransportError{Op: "submit", StatusCode: 502, Err: errors.New("bad gateway")}
	r := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
		return nil, transportErr
	}}
	h, dir := newTestHandler(t, r)

	resp, err := h.Handle(context.Background(), Request{Query: "x"})
	require.Error(t, err)
	var te *render.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Response{}, resp)

	key, path := h.Key("x")
	assert.NoFileExists(t, path)
	assert.False(t, dir.Exists(context.Background(), key))
	stats, err := dir.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Partial)
}

func TestHandle_EmptyQuery(t *testing.T) {
	r := &fakeRenderer{fn: succeed(pngBytes)}
	h, _ := newTestHandler(t, r)

	for _, q := range []string{"", "   ", "``", "```\n\n```"} {
		_, err := h.Handle(context.Background(), Request{Query: q})
		assert.ErrorIs(t, err, ErrEmptyQuery, "query %q", q)
	}
	assert.Zero(t, r.calls.Load())
}

func TestHandle_EmptyImageIsNotStored(t *testing.T) {
	r := &fakeRenderer{fn: succeed(nil)}
	h, dir := newTestHandler(t, r)

	_, err := h.Handle(context.Background(), Request{Query: "x"})
	require.ErrorIs(t, err, cache.ErrEmptyResult)

	key, _ := h.Key("x")
	assert.False(t, dir.Exists(context.Background(), key))
}

func TestHandle_UsesConfiguredKeyer(t *testing.T) {
	r := &fakeRenderer{fn: succeed(pngBytes)}
	h, _ := newTestHandler(t, r, WithKeyer(cache.NewSHA256Keyer()))

	resp, err := h.Handle(context.Background(), Request{Query: "x"})
	require.NoError(t, err)
	assert.Len(t, resp.Key, 64)
	assert.True(t, strings.HasSuffix(resp.Path, resp.Key+".png"))
}

func TestHandle_IdenticalQueriesRenderOnce(t *testing.T) {
	release := make(chan struct{})
	r := &fakeRenderer{fn: func(ctx context.Context, _ string) (render.Outcome, error) {
		<-release
		return render.Success{Image: pngBytes}, nil
	}}
	h, _ := newTestHandler(t, r)

	const callers = 8
	var wg sync.WaitGroup
	responses := make([]Response, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Distinct scopes so the gate does not serialize them.
			responses[i], errs[i] = h.Handle(context.Background(), Request{
				Scope: "guild-" + string(rune('a'+i)),
				Query: "`e^{i\\pi}`",
			})
		}()
	}

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, r.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, KindImage, responses[i].Kind)
		assert.Equal(t, responses[0].Key, responses[i].Key)
		assert.Equal(t, pngBytes, readImage(t, h, responses[i]))
	}
}

func TestHandle_SameScopeRunsSerially(t *testing.T) {
	var active, peak atomic.Int32
	r := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return render.Success{Image: pngBytes}, nil
	}}
	gate := resilience.NewGate()
	h, _ := newTestHandler(t, r, WithGate(gate))

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), Request{Scope: "guild", Query: strings.Repeat("x", i+1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 4, r.calls.Load())
	assert.EqualValues(t, 1, peak.Load())
	assert.Zero(t, gate.Len())
}

func TestHandle_CallerCancelDoesNotAbortSharedRender(t *testing.T) {
	release := make(chan struct{})
	r := &fakeRenderer{fn: func(ctx context.Context, _ string) (render.Outcome, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return render.Success{Image: pngBytes}, nil
	}}
	h, dir := newTestHandler(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.Handle(ctx, Request{Scope: "a", Query: "y"})
		done <- err
	}()

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	close(release)
	require.ErrorIs(t, <-done, context.Canceled)

	key, path := h.Key("y")
	require.True(t, dir.Exists(context.Background(), key))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestHandle_CancelledCallerHoldsScopeUntilRenderEnds(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	var active, peak atomic.Int32
	r := &fakeRenderer{fn: func(_ context.Context, source string) (render.Outcome, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		started <- source
		<-release
		return render.Success{Image: pngBytes}, nil
	}}
	gate := resilience.NewGate()
	h, _ := newTestHandler(t, r, WithGate(gate))

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := h.Handle(ctx, Request{Scope: "guild", Query: "first"})
		firstDone <- err
	}()
	<-started
	cancel()

	secondDone := make(chan error, 1)
	go func() {
		_, err := h.Handle(context.Background(), Request{Scope: "guild", Query: "second"})
		secondDone <- err
	}()
	require.Eventually(t, func() bool { return gate.Waiters("guild") == 2 }, time.Second, time.Millisecond)

	select {
	case err := <-firstDone:
		t.Fatalf("cancelled caller released its scope mid-render: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	assert.EqualValues(t, 1, r.calls.Load())

	close(release)
	require.ErrorIs(t, <-firstDone, context.Canceled)
	require.NoError(t, <-secondDone)
	assert.EqualValues(t, 2, r.calls.Load())
	assert.EqualValues(t, 1, peak.Load())
	assert.Zero(t, gate.Len())
}

func TestHandle_DefaultScope(t *testing.T) {
	block := make(chan struct{})
	r := &fakeRenderer{fn: func(context.Context, string) (render.Outcome, error) {
		<-block
		return render.Success{Image: pngBytes}, nil
	}}
	gate := resilience.NewGate()
	h, _ := newTestHandler(t, r, WithGate(gate))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Handle(context.Background(), Request{Query: "z"})
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, gate.Len())
	assert.Equal(t, 1, gate.Waiters(DefaultScope))

	close(block)
	<-done
}

func TestOpen_RejectsFailure(t *testing.T) {
	h, _ := newTestHandler(t, &fakeRenderer{fn: succeed(pngBytes)})
	_, err := h.Open(context.Background(), failureResponse("abc", ""))
	assert.Error(t, err)
}

func TestFailureResponse(t *testing.T) {
	resp := failureResponse("k", "https://p.example/a (1).txt")
	assert.Equal(t, "[View Logs](https://p.example/a%20%281%29.txt)", resp.Description)

	resp = failureResponse("k", "")
	assert.Equal(t, UploadFailedNotice, resp.Description)
	assert.Equal(t, "failure", resp.Kind.String())
}
