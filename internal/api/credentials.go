package api

import (
	"net/http"
	"strings"

	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/orchestrator"
)

// Headers a caller may use to supply its own upstream credentials per
// request. Absent headers fall back to the server's configured values.
const (
	APIKeyHeader = "X-Api-Key"
	APIURLHeader = "X-Api-Url"
)

// resolveCredentials picks the upstream endpoint and key for one request.
func resolveCredentials(r *http.Request, cfg config.UpstreamConfig) orchestrator.Credentials {
	creds := orchestrator.Credentials{
		APIURL: cfg.APIURL,
		APIKey: cfg.APIKey,
	}
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		creds.APIKey = key
	}
	if url := strings.TrimSpace(r.Header.Get(APIURLHeader)); url != "" {
		creds.APIURL = strings.TrimRight(url, "/")
	}
	return creds
}
