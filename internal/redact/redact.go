// Package redact strips credentials and bulk payload data from strings
// before they are logged. Upstream errors can echo back the request URL
// (which may carry an API key) or inline base64 image data; neither belongs
// in a log line.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedKeyPlaceholder  = "[REDACTED_KEY]"
	RedactedDataPlaceholder = "[REDACTED_DATA]"
)

var (
	// key=... query parameters and header-style key assignments
	queryKeyRegex = regexp.MustCompile(`(?i)([?&]key=|x-goog-api-key[:=]\s*|api[_-]?key['"\s:=]+)[A-Za-z0-9_\-.~]{8,}`)

	// Bearer tokens
	bearerRegex = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/]{8,}=*`)

	// Google API keys appearing bare in error text
	googleKeyRegex = regexp.MustCompile(`\bAIza[A-Za-z0-9_\-]{20,}\b`)

	// Inline base64 payloads (data URIs or long unbroken base64 runs)
	dataURIRegex = regexp.MustCompile(`data:[\w/+.-]+;base64,[A-Za-z0-9+/=]+`)
	base64Regex  = regexp.MustCompile(`\b[A-Za-z0-9+/]{256,}={0,2}\b`)
)

// String returns s with credentials and bulk payloads replaced by
// placeholders.
func String(s string) string {
	s = queryKeyRegex.ReplaceAllString(s, "${1}"+RedactedKeyPlaceholder)
	s = bearerRegex.ReplaceAllString(s, "${1}"+RedactedKeyPlaceholder)
	s = googleKeyRegex.ReplaceAllString(s, RedactedKeyPlaceholder)
	s = dataURIRegex.ReplaceAllString(s, RedactedDataPlaceholder)
	s = base64Regex.ReplaceAllString(s, RedactedDataPlaceholder)
	return s
}

// Error redacts an error's message. Nil-safe.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
