package orchestrator

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pvannier/lumen-api/internal/upstream"
)

// Fixed user-facing error messages. Jobs never carry raw upstream error
// text; every failure is downgraded to one of these before it reaches the
// registry.
const (
	msgConfigMissing       = "API configuration missing, set an API key and endpoint"
	msgAuthFailed          = "Authentication failed, check that the API key is valid"
	msgAuthUnavailable     = "The upstream authentication service is unavailable, please try again later"
	msgRateLimited         = "Too many requests, please try again later"
	msgUpstreamUnavailable = "The generation service is temporarily unavailable, please try again later"
	msgUpstreamTimeout     = "The request timed out, please try again later"
	msgConnection          = "The connection was interrupted, please try again later"
	msgUpstreamServer      = "The generation service reported an internal error, please try again later"
	msgInvalidImage        = "The supplied image could not be processed, please try another image"
	msgEmptyResponse       = "The model returned no content, please adjust the prompt and try again"
	msgRequestFailed       = "Request failed, please try again later"
)

// userFacingMessage maps a transport error to its fixed message. The
// structured failure classification drives the mapping; upstream message
// text is consulted only to distinguish a few well-known proxy conditions
// that share a status code.
func userFacingMessage(err error) string {
	var failure *upstream.Failure
	if !errors.As(err, &failure) {
		return msgRequestFailed
	}

	switch failure.Kind {
	case upstream.FailureTimeout:
		return msgUpstreamTimeout
	case upstream.FailureNetwork:
		return msgConnection
	case upstream.FailureStatus:
		return statusMessage(failure)
	default:
		return msgRequestFailed
	}
}

func statusMessage(failure *upstream.Failure) string {
	detail := strings.ToLower(failure.UpstreamMessage)

	switch {
	case strings.Contains(detail, "auth_unavailable"),
		strings.Contains(detail, "no auth available"):
		return msgAuthUnavailable
	case strings.Contains(detail, "no capacity available"):
		return msgUpstreamUnavailable
	case strings.Contains(detail, "provided image is not valid"):
		return msgInvalidImage
	}

	switch failure.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return msgAuthFailed
	case http.StatusTooManyRequests:
		return msgRateLimited
	case http.StatusServiceUnavailable:
		return msgUpstreamUnavailable
	case http.StatusGatewayTimeout:
		return msgUpstreamTimeout
	case http.StatusBadGateway:
		return msgConnection
	}

	if failure.StatusCode >= 500 {
		return msgUpstreamServer
	}
	return msgRequestFailed
}
