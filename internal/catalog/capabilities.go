package catalog

import "strings"

// imageKeywords flag a model as image-capable when they appear in its id,
// display name, or description.
var imageKeywords = []string{"image", "image generation", "nano banana", "nano-banana"}

// defaultImageCapabilities is the conservative profile for image models the
// inference rules below do not recognize.
var defaultImageCapabilities = Capabilities{
	SupportsGenerate:   true,
	SupportsEdit:       true,
	MaxReferenceImages: 3,
}

// normalizeModelName strips the "models/" listing prefix.
func normalizeModelName(name string) string {
	return strings.TrimPrefix(name, "models/")
}

// isGenerationFamily reports whether the model belongs to the family this
// service drives.
func isGenerationFamily(name string) bool {
	normalized := strings.ToLower(name)
	return strings.Contains(normalized, "gemini") ||
		strings.Contains(normalized, "nano-banana") ||
		strings.Contains(normalized, "nanobanana")
}

// supportsGenerateContent checks the advertised generation methods. Some
// compatible gateways omit the field entirely; those models are kept and
// capability inference decides from the name alone.
func supportsGenerateContent(m rawModel) bool {
	if len(m.SupportedGenerationMethods) == 0 {
		return true
	}
	for _, method := range m.SupportedGenerationMethods {
		if method == "generateContent" {
			return true
		}
	}
	return false
}

// isImageModel reports whether the listing entry looks like an image model.
func isImageModel(m rawModel, normalizedName string) bool {
	haystack := strings.ToLower(normalizedName + " " + m.DisplayName + " " + m.Description)
	for _, keyword := range imageKeywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

// parseForcedImageSize extracts a mandated output size from the model id
// suffix, or returns "".
func parseForcedImageSize(modelID string) string {
	normalized := strings.ToLower(modelID)
	switch {
	case strings.Contains(normalized, "-4k"):
		return "4K"
	case strings.Contains(normalized, "-hd"), strings.Contains(normalized, "-2k"):
		return "2K"
	case strings.Contains(normalized, "-1k"):
		return "1K"
	default:
		return ""
	}
}

// buildCapabilities derives a capability profile from the model id.
func buildCapabilities(modelID string) Capabilities {
	forced := parseForcedImageSize(modelID)
	normalized := strings.ToLower(modelID)

	isEditOnly := strings.HasSuffix(normalized, "/edit") ||
		strings.Contains(normalized, "-edit") ||
		strings.Contains(normalized, "_edit")

	isProFamily := strings.Contains(normalized, "gemini-3-pro-image") ||
		strings.Contains(normalized, "nano-banana-pro") ||
		strings.Contains(normalized, "nano-banana-2")

	switch {
	case isEditOnly:
		return Capabilities{
			SupportsEdit:       true,
			SupportsImageSize:  forced != "",
			ForcedImageSize:    forced,
			MaxReferenceImages: 3,
		}
	case isProFamily:
		return Capabilities{
			SupportsGenerate:        true,
			SupportsEdit:            true,
			SupportsAspectRatio:     true,
			SupportsImageSize:       true,
			ForcedImageSize:         forced,
			SupportsSearchGrounding: true,
			MaxReferenceImages:      14,
		}
	case modelID == "gemini-2.5-flash-image":
		return Capabilities{
			SupportsGenerate:    true,
			SupportsEdit:        true,
			SupportsAspectRatio: true,
			MaxReferenceImages:  3,
		}
	default:
		caps := defaultImageCapabilities
		caps.ForcedImageSize = forced
		return caps
	}
}
