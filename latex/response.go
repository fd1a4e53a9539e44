package latex

import (
	"errors"
	"strings"
)

// Kind says which of the two user-visible replies a Response is.
type Kind int

const (
	// KindImage is a rendered image attachment.
	KindImage Kind = iota
	// KindFailure is a failure notice for input the service could not render.
	KindFailure
)

func (k Kind) String() string {
	if k == KindFailure {
		return "failure"
	}
	return "image"
}

// Reply text.
const (
	ImageFilename      = "latex.png"
	FailureTitle       = "Failed to render input."
	UploadFailedNotice = "Couldn't upload logs."
)

// ErrEmptyQuery is returned when the query is blank after normalization.
var ErrEmptyQuery = errors.New("latex: query is empty")

// Request is one command invocation.
type Request struct {
	// Scope groups invocations that must not run concurrently, for example
	// a guild. Empty selects DefaultScope.
	Scope string

	// Query is the raw user text, possibly wrapped in a code fence.
	Query string
}

// DefaultScope is used for requests without a scope.
const DefaultScope = "default"

// Response is the single reply to a Request.
type Response struct {
	Kind Kind

	// Key is the cache key of the normalized query.
	Key string

	// Image fields.
	Cached   bool   // served without contacting the rendering service
	Path     string // cache entry holding the image
	Filename string // attachment name

	// Failure fields.
	Title       string
	Description string
	LogsURL     string // empty when the log upload failed
}

func imageResponse(key, path string, cached bool) Response {
	return Response{
		Kind:     KindImage,
		Key:      key,
		Cached:   cached,
		Path:     path,
		Filename: ImageFilename,
	}
}

func failureResponse(key, logsURL string) Response {
	desc := UploadFailedNotice
	if logsURL != "" {
		desc = "[View Logs](" + escapeLinkTarget(logsURL) + ")"
	}
	return Response{
		Kind:        KindFailure,
		Key:         key,
		Title:       FailureTitle,
		Description: desc,
		LogsURL:     logsURL,
	}
}

// escapeLinkTarget keeps a URL from closing the markdown link early.
func escapeLinkTarget(u string) string {
	return strings.NewReplacer("(", "%28", ")", "%29", " ", "%20").Replace(u)
}
