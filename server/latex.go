package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/jonwraymond/latexbot/auth"
	"github.com/jonwraymond/latexbot/latex"
	"github.com/jonwraymond/latexbot/observe"
	"github.com/jonwraymond/latexbot/render"
	"github.com/jonwraymond/latexbot/resilience"
)

// Headers set on image replies.
const (
	HeaderCache    = "X-Cache"
	HeaderCacheKey = "X-Cache-Key"
)

type latexRequest struct {
	Scope string `json:"scope"`
	Query string `json:"query"`
}

type failureBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	LogsURL     string `json:"logs_url,omitempty"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleLatex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxQuery)

	var body latexRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "query too large")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	scope := body.Scope
	if scope == "" {
		scope = auth.ScopeFromContext(ctx)
	}

	resp, err := s.latex.Handle(ctx, latex.Request{Scope: scope, Query: body.Query})
	if err != nil {
		s.writeHandleError(w, r, err)
		return
	}

	switch resp.Kind {
	case latex.KindImage:
		s.writeImage(w, r, resp)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, failureBody{
			Title:       resp.Title,
			Description: resp.Description,
			LogsURL:     resp.LogsURL,
		})
	}
}

func (s *Server) writeImage(w http.ResponseWriter, r *http.Request, resp latex.Response) {
	rc, err := s.latex.Open(r.Context(), resp)
	if err != nil {
		s.logger.Error(r.Context(), "opening cached image", observe.F("key", resp.Key), observe.F("error", err))
		s.writeError(w, r, http.StatusInternalServerError, "image unavailable")
		return
	}
	defer rc.Close()

	cacheState := "miss"
	if resp.Cached {
		cacheState = "hit"
	}
	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Disposition", `inline; filename="`+resp.Filename+`"`)
	h.Set(HeaderCache, cacheState)
	h.Set(HeaderCacheKey, resp.Key)
	if f, ok := rc.(interface{ Stat() (os.FileInfo, error) }); ok {
		if st, err := f.Stat(); err == nil {
			h.Set("Content-Length", strconv.FormatInt(st.Size(), 10))
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn(r.Context(), "writing image", observe.F("key", resp.Key), observe.F("error", err))
	}
}

func (s *Server) writeHandleError(w http.ResponseWriter, r *http.Request, err error) {
	var te *render.TransportError
	switch {
	case errors.Is(err, latex.ErrEmptyQuery):
		s.writeError(w, r, http.StatusBadRequest, "query is empty")
	case resilience.IsRejected(err):
		w.Header().Set("Retry-After", "1")
		s.writeError(w, r, http.StatusServiceUnavailable, "renderer busy, try again later")
	case errors.As(err, &te):
		s.writeError(w, r, http.StatusBadGateway, "rendering service unavailable")
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, r, http.StatusGatewayTimeout, "rendering timed out")
	case resilience.IsCanceled(err):
		// The client went away; nobody reads the reply.
		return
	default:
		s.logger.Error(r.Context(), "latex command failed",
			observe.F("request_id", RequestIDFromContext(r.Context())), observe.F("error", err))
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: RequestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
