package azure

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ConfigError reports required configuration fields that are missing from the
// environment. It is always returned before any network call is attempted.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("azure: missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// TransportError wraps a non-success response or a connection failure from the
// remote endpoint. Status is zero when the request never reached the server.
// Transport failures are surfaced to the caller as-is, never retried here.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("azure: endpoint returned status %d: %s", e.Status, e.Message())
	case e.Status != 0:
		return fmt.Sprintf("azure: endpoint returned status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("azure: request failed: %v", e.Err)
	}
	return "azure: request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message extracts the human-readable message Azure embeds in the error body
// under error.message, falling back to the raw body.
func (e *TransportError) Message() string {
	if msg := gjson.Get(e.Body, "error.message"); msg.Exists() {
		return msg.String()
	}
	return e.Body
}

// ParseError reports an embedding payload that arrived in neither supported
// encoding, or a vector that does not match the configured dimension. It is
// distinct from TransportError: the request succeeded but the response could
// not be understood.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("azure: %s: %v", e.Reason, e.Err)
	}
	return "azure: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
