package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/mattjoyce/slashgate/internal/interaction"
)

// Authenticator checks the signature headers of an inbound request.
type Authenticator interface {
	Check(h http.Header, body []byte, now time.Time) error
}

// CommandRouter dispatches command invocations.
type CommandRouter interface {
	Route(ctx context.Context, name string, args map[string]any, inv interaction.Invoker) interaction.Response
	Has(name string) bool
}

// Config holds interactions server configuration.
type Config struct {
	Listen string

	// Path is the POST endpoint the platform calls (default: /interactions).
	Path string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB).
	MaxBodySize int64

	// RouteTimeout bounds the context handed to command handlers. The
	// platform waits three seconds for the initial response.
	RouteTimeout time.Duration

	// EnableMetrics mounts GET /metrics.
	EnableMetrics bool
}

// ErrorResponse is the JSON body for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body for GET /.
type HealthResponse struct {
	Status string `json:"status"`
}

// Default values
const (
	DefaultPath         = "/interactions"
	DefaultMaxBodySize  = 1048576 // 1 MB
	DefaultRouteTimeout = 2500 * time.Millisecond
)

// Client-facing error messages. They never say which check failed.
const (
	msgUnauthorized = "invalid request signature"
	msgMalformed    = "malformed interaction"
	msgTooLarge     = "payload too large"
	msgReadFailed   = "failed to read request body"
)
