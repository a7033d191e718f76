// Package catalog fetches the upstream model listing and derives the
// capability profile of each image-generation model. Listings are cached
// briefly per endpoint/key pair and concurrent fetches for the same pair
// are deduplicated.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pvannier/lumen-api/internal/upstream"
)

// cacheTTL is how long a fetched listing stays valid. Short on purpose:
// gateways add and remove models without notice.
const cacheTTL = 30 * time.Second

// ErrModelNotAvailable is returned when a requested model id is not in the
// upstream listing.
var ErrModelNotAvailable = errors.New("model is not currently available from the upstream API")

// Capabilities describes what a single image model supports. The
// orchestrator uses it to decide which request options may be sent.
type Capabilities struct {
	SupportsGenerate        bool   `json:"supports_generate"`
	SupportsEdit            bool   `json:"supports_edit"`
	SupportsAspectRatio     bool   `json:"supports_aspect_ratio"`
	SupportsImageSize       bool   `json:"supports_image_size"`
	ForcedImageSize         string `json:"forced_image_size,omitempty"`
	SupportsSearchGrounding bool   `json:"supports_search_grounding"`
	MaxReferenceImages      int    `json:"max_reference_images"`
}

// Model is one image-capable model from the listing.
type Model struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Capabilities Capabilities `json:"capabilities"`
}

// Listing is the normalized model catalog.
type Listing struct {
	Models       []string  `json:"models"`
	ImageModels  []Model   `json:"image_models"`
	PromptModels []string  `json:"prompt_models"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// FetchError carries the upstream status of a failed listing call so the
// API layer can mirror it.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("model listing request failed with status %d", e.StatusCode)
}

// rawModel is the wire shape of one listing entry.
type rawModel struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

type cacheEntry struct {
	listing   *Listing
	expiresAt time.Time
}

type inflightCall struct {
	done    chan struct{}
	listing *Listing
	err     error
}

// Service fetches and caches model listings.
type Service struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	cache    map[string]cacheEntry
	inflight map[string]*inflightCall
}

// NewService creates a catalog Service. A nil httpClient falls back to a
// default client with a modest timeout; listing calls are cheap and
// deliberately not retried.
func NewService(httpClient *http.Client, logger *slog.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{
		httpClient: httpClient,
		logger:     logger,
		cache:      make(map[string]cacheEntry),
		inflight:   make(map[string]*inflightCall),
	}
}

// Models returns the catalog for the given endpoint and key, serving from
// cache when fresh and joining an in-flight fetch when one exists.
func (s *Service) Models(ctx context.Context, apiURL, apiKey string) (*Listing, error) {
	key := strings.TrimSpace(apiURL) + "::" + strings.TrimSpace(apiKey)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.Unlock()
		return cached.listing, nil
	}
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.listing, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	listing, err := s.fetch(ctx, apiURL, apiKey)

	s.mu.Lock()
	delete(s.inflight, key)
	if err == nil {
		s.cache[key] = cacheEntry{listing: listing, expiresAt: time.Now().Add(cacheTTL)}
	}
	s.mu.Unlock()

	call.listing = listing
	call.err = err
	close(call.done)

	return listing, err
}

// Lookup returns the image model with the given id from the current
// listing, or ErrModelNotAvailable.
func (s *Service) Lookup(ctx context.Context, apiURL, apiKey, modelID string) (Model, error) {
	listing, err := s.Models(ctx, apiURL, apiKey)
	if err != nil {
		return Model{}, err
	}

	for _, model := range listing.ImageModels {
		if model.ID == modelID {
			return model, nil
		}
	}

	return Model{}, ErrModelNotAvailable
}

// fetch performs the listing call and normalizes the response.
func (s *Service) fetch(ctx context.Context, apiURL, apiKey string) (*Listing, error) {
	endpoint := upstream.ModelsEndpoint(apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build model listing request: %w", err)
	}
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model listing request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Debug("failed to close model listing body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model listing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Models []rawModel `json:"models"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode model listing: %w", err)
	}

	return normalize(payload.Models), nil
}

// normalize filters the raw listing to the generation family, splits it
// into image and prompt models, and derives capabilities per image model.
func normalize(raw []rawModel) *Listing {
	modelSet := make(map[string]bool)
	imageByID := make(map[string]Model)

	for _, m := range raw {
		name := normalizeModelName(m.Name)
		if name == "" || !isGenerationFamily(name) || !supportsGenerateContent(m) {
			continue
		}

		modelSet[name] = true
		if isImageModel(m, name) {
			if _, dup := imageByID[name]; !dup {
				display := m.DisplayName
				if display == "" {
					display = name
				}
				imageByID[name] = Model{
					ID:           name,
					DisplayName:  display,
					Capabilities: buildCapabilities(name),
				}
			}
		}
	}

	models := make([]string, 0, len(modelSet))
	for name := range modelSet {
		models = append(models, name)
	}
	sort.Strings(models)

	imageModels := make([]Model, 0, len(imageByID))
	for _, m := range imageByID {
		imageModels = append(imageModels, m)
	}
	sort.Slice(imageModels, func(i, j int) bool { return imageModels[i].ID < imageModels[j].ID })

	promptModels := make([]string, 0, len(models))
	for _, name := range models {
		if _, isImage := imageByID[name]; !isImage {
			promptModels = append(promptModels, name)
		}
	}

	return &Listing{
		Models:       models,
		ImageModels:  imageModels,
		PromptModels: promptModels,
		FetchedAt:    time.Now().UTC(),
	}
}
