package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/domain"
	"github.com/pvannier/lumen-api/internal/registry"
	"github.com/pvannier/lumen-api/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(time.Minute, time.Minute, testLogger())
	t.Cleanup(reg.Stop)
	return reg
}

// scriptedSender plays back a canned response or error and records what it
// was asked to send.
type scriptedSender struct {
	mu       sync.Mutex
	body     []byte
	err      error
	panicMsg string

	calls    int
	endpoint string
	payload  any
}

func (s *scriptedSender) Send(_ context.Context, endpoint, _ string, payload any) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.endpoint = endpoint
	s.payload = payload
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.body, s.err
}

func (s *scriptedSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func validCreds() Credentials {
	return Credentials{APIURL: "https://upstream.example", APIKey: "test-key"}
}

func createJob(t *testing.T, reg *registry.Registry, req domain.GenerationRequest) uuid.UUID {
	t.Helper()
	id, err := reg.Create(req)
	require.NoError(t, err)
	return id
}

func TestProcessCompletesJob(t *testing.T) {
	reg := testRegistry(t)
	sender := &scriptedSender{
		body: []byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"a sunset\"}]}}]}\n" +
			"data: {\"candidates\":[{\"content\":{\"parts\":[{\"inlineData\":{\"mimeType\":\"image/png\",\"data\":\"AAAA\"}}]}}]}\n"),
	}
	o, err := New(reg, sender, testLogger())
	require.NoError(t, err)

	req := domain.GenerationRequest{Prompt: "a sunset", Model: "gemini-2.5-flash-image"}
	id := createJob(t, reg, req)

	o.process(context.Background(), id, req, validCreds(), catalog.Capabilities{SupportsGenerate: true})

	job, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, domain.JobPhaseCompleted, job.Phase)
	require.NotNil(t, job.Result)
	assert.Equal(t, "a sunset", job.Result.Text)
	assert.Equal(t, "data:image/png;base64,AAAA", job.Result.Image)
	assert.Empty(t, job.Error)
	assert.Equal(t, 1, sender.callCount())
	assert.Contains(t, sender.endpoint, "streamGenerateContent")
}

func TestProcessFailsWithoutCredentials(t *testing.T) {
	reg := testRegistry(t)
	sender := &scriptedSender{}
	o, err := New(reg, sender, testLogger())
	require.NoError(t, err)

	req := domain.GenerationRequest{Prompt: "p", Model: "m"}
	id := createJob(t, reg, req)

	o.process(context.Background(), id, req, Credentials{}, catalog.Capabilities{})

	job, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, msgConfigMissing, job.Error)
	assert.Zero(t, sender.callCount(), "no upstream call without credentials")
}

func TestProcessMapsUpstreamFailureToFixedMessage(t *testing.T) {
	reg := testRegistry(t)
	sender := &scriptedSender{
		err: &upstream.Failure{
			Kind:            upstream.FailureStatus,
			StatusCode:      http.StatusTooManyRequests,
			UpstreamMessage: "Resource has been exhausted (e.g. check quota). Details: project 12345",
		},
	}
	o, err := New(reg, sender, testLogger())
	require.NoError(t, err)

	req := domain.GenerationRequest{Prompt: "p", Model: "m"}
	id := createJob(t, reg, req)

	o.process(context.Background(), id, req, validCreds(), catalog.Capabilities{})

	job, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, domain.JobPhaseFailed, job.Phase)
	assert.Equal(t, msgRateLimited, job.Error)
	assert.NotContains(t, job.Error, "quota", "raw upstream text must not leak into the job")
}

func TestProcessFailsOnEmptyResult(t *testing.T) {
	reg := testRegistry(t)
	sender := &scriptedSender{
		body: []byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"\"}]}}]}\n"),
	}
	o, err := New(reg, sender, testLogger())
	require.NoError(t, err)

	req := domain.GenerationRequest{Prompt: "p", Model: "m"}
	id := createJob(t, reg, req)

	o.process(context.Background(), id, req, validCreds(), catalog.Capabilities{})

	job, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, msgEmptyResponse, job.Error)
}

func TestLaunchRecoversFromPanic(t *testing.T) {
	reg := testRegistry(t)
	sender := &scriptedSender{panicMsg: "boom"}
	o, err := New(reg, sender, testLogger())
	require.NoError(t, err)

	req := domain.GenerationRequest{Prompt: "p", Model: "m"}
	id := createJob(t, reg, req)

	o.Launch(id, req, validCreds(), catalog.Capabilities{})

	assert.Eventually(t, func() bool {
		job, ok := reg.Get(id)
		return ok && job.Status == domain.JobStatusFailed
	}, time.Second, 10*time.Millisecond)

	job, _ := reg.Get(id)
	assert.Equal(t, msgRequestFailed, job.Error)
}

func TestLaunchCompletesDetached(t *testing.T) {
	reg := testRegistry(t)
	sender := &scriptedSender{
		body: []byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ok\"}]}}]}\n"),
	}
	o, err := New(reg, sender, testLogger())
	require.NoError(t, err)

	req := domain.GenerationRequest{Prompt: "p", Model: "m"}
	id := createJob(t, reg, req)

	o.Launch(id, req, validCreds(), catalog.Capabilities{})

	assert.Eventually(t, func() bool {
		job, ok := reg.Get(id)
		return ok && job.Status == domain.JobStatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestNewValidatesDependencies(t *testing.T) {
	reg := testRegistry(t)

	_, err := New(nil, &scriptedSender{}, testLogger())
	assert.ErrorIs(t, err, ErrNilRegistry)

	_, err = New(reg, nil, testLogger())
	assert.ErrorIs(t, err, ErrNilSender)

	_, err = New(reg, &scriptedSender{}, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestBuildGenerateContent(t *testing.T) {
	t.Run("aspect ratio only when supported", func(t *testing.T) {
		req := domain.GenerationRequest{Prompt: "p", Model: "m", AspectRatio: "16:9"}

		out := BuildGenerateContent(req, catalog.Capabilities{SupportsAspectRatio: true})
		require.NotNil(t, out.GenerationConfig.ImageConfig)
		assert.Equal(t, "16:9", out.GenerationConfig.ImageConfig.AspectRatio)

		out = BuildGenerateContent(req, catalog.Capabilities{})
		assert.Nil(t, out.GenerationConfig.ImageConfig)
	})

	t.Run("auto aspect ratio is omitted", func(t *testing.T) {
		req := domain.GenerationRequest{Prompt: "p", Model: "m", AspectRatio: "auto"}
		out := BuildGenerateContent(req, catalog.Capabilities{SupportsAspectRatio: true})
		require.NotNil(t, out.GenerationConfig.ImageConfig)
		assert.Empty(t, out.GenerationConfig.ImageConfig.AspectRatio)
	})

	t.Run("forced image size wins over requested", func(t *testing.T) {
		req := domain.GenerationRequest{Prompt: "p", Model: "m", ImageSize: "1K"}
		out := BuildGenerateContent(req, catalog.Capabilities{
			SupportsImageSize: true,
			ForcedImageSize:   "4K",
		})
		assert.Equal(t, "4K", out.GenerationConfig.ImageConfig.ImageSize)
	})

	t.Run("requested image size when supported", func(t *testing.T) {
		req := domain.GenerationRequest{Prompt: "p", Model: "m", ImageSize: "2K"}
		out := BuildGenerateContent(req, catalog.Capabilities{SupportsImageSize: true})
		assert.Equal(t, "2K", out.GenerationConfig.ImageConfig.ImageSize)
	})

	t.Run("search tool gated on grounding support", func(t *testing.T) {
		req := domain.GenerationRequest{Prompt: "p", Model: "m", UseSearch: true}

		out := BuildGenerateContent(req, catalog.Capabilities{SupportsSearchGrounding: true})
		assert.Len(t, out.Tools, 1)

		out = BuildGenerateContent(req, catalog.Capabilities{})
		assert.Empty(t, out.Tools)
	})

	t.Run("reference images follow the prompt", func(t *testing.T) {
		req := domain.GenerationRequest{
			Prompt: "p",
			Model:  "m",
			ReferenceImages: []domain.ReferenceImage{
				{MimeType: "image/png", Data: "AAAA"},
				{MimeType: "image/jpeg", Data: "BBBB"},
			},
		}
		out := BuildGenerateContent(req, catalog.Capabilities{})

		parts := out.Contents[0].Parts
		require.Len(t, parts, 3)
		assert.Equal(t, "p", parts[0].Text)
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
		assert.Equal(t, "BBBB", parts[2].InlineData.Data)
	})
}

func TestUserFacingMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "timeout",
			err:  &upstream.Failure{Kind: upstream.FailureTimeout},
			want: msgUpstreamTimeout,
		},
		{
			name: "network",
			err:  &upstream.Failure{Kind: upstream.FailureNetwork},
			want: msgConnection,
		},
		{
			name: "unauthorized",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusUnauthorized},
			want: msgAuthFailed,
		},
		{
			name: "forbidden",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusForbidden},
			want: msgAuthFailed,
		},
		{
			name: "rate limited",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusTooManyRequests},
			want: msgRateLimited,
		},
		{
			name: "service unavailable",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusServiceUnavailable},
			want: msgUpstreamUnavailable,
		},
		{
			name: "gateway timeout",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusGatewayTimeout},
			want: msgUpstreamTimeout,
		},
		{
			name: "bad gateway",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusBadGateway},
			want: msgConnection,
		},
		{
			name: "internal server error",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusInternalServerError},
			want: msgUpstreamServer,
		},
		{
			name: "auth backend down",
			err: &upstream.Failure{
				Kind:            upstream.FailureStatus,
				StatusCode:      http.StatusInternalServerError,
				UpstreamMessage: "AUTH_UNAVAILABLE: token service unreachable",
			},
			want: msgAuthUnavailable,
		},
		{
			name: "proxy out of capacity",
			err: &upstream.Failure{
				Kind:            upstream.FailureStatus,
				StatusCode:      http.StatusInternalServerError,
				UpstreamMessage: "no capacity available for model",
			},
			want: msgUpstreamUnavailable,
		},
		{
			name: "invalid reference image",
			err: &upstream.Failure{
				Kind:            upstream.FailureStatus,
				StatusCode:      http.StatusBadRequest,
				UpstreamMessage: "Provided image is not valid.",
			},
			want: msgInvalidImage,
		},
		{
			name: "unclassified status",
			err:  &upstream.Failure{Kind: upstream.FailureStatus, StatusCode: http.StatusBadRequest},
			want: msgRequestFailed,
		},
		{
			name: "unknown kind",
			err:  &upstream.Failure{Kind: upstream.FailureUnknown},
			want: msgRequestFailed,
		},
		{
			name: "plain error",
			err:  context.Canceled,
			want: msgRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userFacingMessage(tt.err))
		})
	}
}
