package upstream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pvannier/lumen-api/internal/domain"
)

// streamChunk is one event frame of a chunked generation response. The
// grounding metadata may arrive at the top level or nested in a candidate
// depending on the gateway, so both are read.
type streamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []chunkPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata json.RawMessage `json:"groundingMetadata"`
	} `json:"candidates"`
	GroundingMetadata json.RawMessage `json:"groundingMetadata"`
}

// chunkPart is a single part within a candidate's content.
type chunkPart struct {
	Text       string `json:"text"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData"`
}

// Fold consumes a raw response body and folds it into one logical result.
// The body is either an SSE stream ("data: " prefixed frames, blank lines,
// and a "[DONE]" sentinel) or a single JSON document, which is treated as a
// one-frame stream. Text parts are concatenated in arrival order; the last
// frame carrying an image wins; the last frame carrying grounding metadata
// wins. Unparseable frames are logged and skipped so one malformed chunk
// cannot fail the whole job.
func Fold(body []byte, logger *slog.Logger) domain.GenerationResult {
	var result domain.GenerationResult

	sawFrame := false
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		frame := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if frame == "" || frame == "[DONE]" {
			continue
		}
		sawFrame = true

		var chunk streamChunk
		if err := json.Unmarshal([]byte(frame), &chunk); err != nil {
			logger.Warn("skipping unparseable stream frame",
				"error", err,
				"frame_prefix", truncate(frame, 100))
			continue
		}

		foldChunk(&result, chunk)
	}

	if sawFrame {
		return result
	}

	// Non-streaming variant: the whole body is one frame.
	var chunk streamChunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		logger.Warn("response body is neither an event stream nor a JSON document",
			"error", err,
			"body_prefix", truncate(string(body), 100))
		return result
	}
	foldChunk(&result, chunk)

	return result
}

// foldChunk merges one frame into the running result.
func foldChunk(result *domain.GenerationResult, chunk streamChunk) {
	for _, candidate := range chunk.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				result.Text += part.Text
			}
			if part.InlineData != nil && part.InlineData.Data != "" {
				result.Image = fmt.Sprintf("data:%s;base64,%s",
					part.InlineData.MimeType, part.InlineData.Data)
			}
		}
		if len(candidate.GroundingMetadata) > 0 {
			result.GroundingMetadata = candidate.GroundingMetadata
		}
	}

	if len(chunk.GroundingMetadata) > 0 {
		result.GroundingMetadata = chunk.GroundingMetadata
	}
}

// truncate limits a string for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
