package upstream

import "strings"

// InlineData is a base64-encoded inline media part of an outbound request.
// Field names follow the wire format of the generation API.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Part is one element of a request's content. Exactly one field is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// Content groups the parts of a single turn.
type Content struct {
	Parts []Part `json:"parts"`
}

// ImageConfig constrains the generated image.
type ImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

// GenerationConfig carries output constraints for a request.
type GenerationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *ImageConfig `json:"imageConfig,omitempty"`
	Temperature        *float64     `json:"temperature,omitempty"`
	MaxOutputTokens    int          `json:"maxOutputTokens,omitempty"`
}

// Tool enables an upstream capability such as search grounding.
type Tool struct {
	GoogleSearch struct{} `json:"google_search"`
}

// GenerateContentRequest is the outbound payload for both the streaming and
// non-streaming generation endpoints.
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	Tools            []Tool            `json:"tools,omitempty"`
}

// trimBase removes a trailing slash so endpoint paths join cleanly.
func trimBase(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/")
}

// StreamEndpoint returns the SSE generation endpoint for a model.
func StreamEndpoint(baseURL, model string) string {
	return trimBase(baseURL) + "/v1beta/models/" + model + ":streamGenerateContent?alt=sse"
}

// GenerateEndpoint returns the non-streaming generation endpoint for a model.
func GenerateEndpoint(baseURL, model string) string {
	return trimBase(baseURL) + "/v1beta/models/" + model + ":generateContent"
}

// ModelsEndpoint returns the model catalog listing endpoint.
func ModelsEndpoint(baseURL string) string {
	return trimBase(baseURL) + "/v1beta/models"
}
