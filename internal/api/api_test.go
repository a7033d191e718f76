package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pvannier/lumen-api/internal/api"
	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/orchestrator"
	"github.com/pvannier/lumen-api/internal/registry"
	"github.com/pvannier/lumen-api/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUpstream is a stand-in for the model provider. It serves a fixed
// catalog and scripted generation responses.
type fakeUpstream struct {
	server *httptest.Server

	generateBody   string
	generateStatus int
	streamBody     string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		generateStatus: http.StatusOK,
		generateBody:   `{"candidates":[{"content":{"parts":[{"text":"edited"}]}}]}`,
		streamBody:     "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"generated\"}]}}]}\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1beta/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.5-flash-image","displayName":"Flash Image","supportedGenerationMethods":["generateContent"]},
			{"name":"models/nano-banana-pro","displayName":"Pro","supportedGenerationMethods":["generateContent"]},
			{"name":"models/nano-banana-pro-4k","displayName":"Pro 4K","supportedGenerationMethods":["generateContent"]},
			{"name":"models/gemini-2.5-flash","displayName":"Flash","supportedGenerationMethods":["generateContent"]}
		]}`))
	})
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		if f.generateStatus != http.StatusOK {
			http.Error(w, `{"error":{"message":"scripted failure"}}`, f.generateStatus)
			return
		}
		if strings.Contains(r.URL.Path, "streamGenerateContent") {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(f.streamBody))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.generateBody))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// env bundles the wired handlers against one fake upstream.
type env struct {
	upstream *fakeUpstream
	registry *registry.Registry
	router   *chi.Mux
}

func newEnv(t *testing.T) *env {
	t.Helper()

	fake := newFakeUpstream(t)

	upstreamCfg := config.UpstreamConfig{
		APIKey:                "test-key",
		APIURL:                fake.server.URL,
		RequestTimeoutSeconds: 5,
		MaxRetries:            0,
		RetryBaseDelayMillis:  1,
	}

	logger := testLogger()
	reg := registry.New(time.Minute, time.Minute, logger)
	t.Cleanup(reg.Stop)

	client, err := upstream.NewClient(upstreamCfg, fake.server.Client(), logger)
	require.NoError(t, err)

	cat := catalog.NewService(fake.server.Client(), logger)

	orch, err := orchestrator.New(reg, client, logger)
	require.NoError(t, err)

	generateHandler := api.NewGenerateHandler(reg, orch, cat, upstreamCfg, logger)
	taskHandler := api.NewTaskHandler(reg)
	editHandler := api.NewEditHandler(client, cat, upstreamCfg, logger)
	modelsHandler := api.NewModelsHandler(cat, upstreamCfg, logger)
	promptHandler := api.NewPromptHandler(client, upstreamCfg, logger)

	r := chi.NewRouter()
	r.Post("/api/generate", generateHandler.Submit)
	r.Get("/api/tasks/{taskID}", taskHandler.GetTask)
	r.Post("/api/edit", editHandler.Edit)
	r.Get("/api/models", modelsHandler.ListModels)
	r.Post("/api/optimize-prompt", promptHandler.OptimizePrompt)

	return &env{upstream: fake, registry: reg, router: r}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
