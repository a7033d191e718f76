package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// FailureKind is a closed set of structured tags produced at the point a
// failure originates, so retryability is a total function over the tag
// rather than pattern matching over free text.
type FailureKind string

// Possible failure kinds.
const (
	// FailureStatus is a non-2xx HTTP response from the upstream API.
	FailureStatus FailureKind = "status"

	// FailureNetwork is a transport-level reset, abort, or premature close.
	FailureNetwork FailureKind = "network"

	// FailureTimeout is an expired per-attempt deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureUnknown is any error that matched no retryable signature.
	// Unknown failures are fatal.
	FailureUnknown FailureKind = "unknown"
)

// retryableStatuses are the upstream HTTP statuses worth re-attempting.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Failure is the typed error returned by the transport. It carries the
// originating HTTP status and body, plus any structured error code/message
// the upstream included in a JSON body.
type Failure struct {
	Kind            FailureKind
	StatusCode      int
	UpstreamCode    string
	UpstreamMessage string
	RawBody         string
	Err             error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch f.Kind {
	case FailureStatus:
		if f.UpstreamMessage != "" {
			return fmt.Sprintf("upstream returned status %d: %s", f.StatusCode, f.UpstreamMessage)
		}
		return fmt.Sprintf("upstream returned status %d", f.StatusCode)
	case FailureTimeout:
		return "upstream request deadline exceeded"
	case FailureNetwork:
		if f.Err != nil {
			return fmt.Sprintf("upstream network failure: %v", f.Err)
		}
		return "upstream network failure"
	default:
		if f.Err != nil {
			return fmt.Sprintf("upstream request failed: %v", f.Err)
		}
		return "upstream request failed"
	}
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether the failure is transient and worth
// re-attempting under backoff.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case FailureStatus:
		return retryableStatuses[f.StatusCode]
	case FailureNetwork, FailureTimeout:
		return true
	default:
		return false
	}
}

// upstreamErrorBody matches the conventional JSON error envelope
// {"error": {"message": ..., "code": ...}}. Code may arrive as a string
// or a number depending on the gateway.
type upstreamErrorBody struct {
	Error struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// newStatusFailure builds a Failure from a non-2xx response, extracting the
// structured code/message when the body is JSON-parseable.
func newStatusFailure(statusCode int, body []byte) *Failure {
	f := &Failure{
		Kind:       FailureStatus,
		StatusCode: statusCode,
		RawBody:    string(body),
	}

	var parsed upstreamErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		f.UpstreamMessage = parsed.Error.Message
		if len(parsed.Error.Code) > 0 {
			f.UpstreamCode = strings.Trim(string(parsed.Error.Code), `"`)
		}
	}

	return f
}

// classifyTransportError converts an untyped error from the HTTP stack into
// a Failure with a structured kind. Structured checks (net.Error, syscall
// errnos, context sentinels) run first; the substring heuristics remain only
// as a fallback adapter for errors the networking stack reports as bare text.
func classifyTransportError(err error) *Failure {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: FailureTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Failure{Kind: FailureTimeout, Err: err}
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe):
		return &Failure{Kind: FailureNetwork, Err: err}
	}

	// Fallback: some transport errors only surface as strings.
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"client connection lost",
		"terminated",
		"other side closed",
	} {
		if strings.Contains(msg, fragment) {
			return &Failure{Kind: FailureNetwork, Err: err}
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") {
		return &Failure{Kind: FailureTimeout, Err: err}
	}

	return &Failure{Kind: FailureUnknown, Err: err}
}
