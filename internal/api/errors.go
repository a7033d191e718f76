package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/domain"
)

// Capability rejection errors, surfaced at submit time before a job is
// created.
var (
	ErrModelNotGenerative    = errors.New("the selected model does not support image generation")
	ErrModelNotEditable      = errors.New("the selected model does not support image editing")
	ErrTooManyReferences     = errors.New("too many reference images for the selected model")
	ErrReferencesUnsupported = errors.New("the selected model does not accept reference images")
	ErrForcedImageSize       = errors.New("the selected model only outputs a fixed image size")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error text to clients.
func MapErrorToStatusCode(err error) int {
	var fetchErr *catalog.FetchError

	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrModelNotGenerative),
		errors.Is(err, ErrModelNotEditable),
		errors.Is(err, ErrTooManyReferences),
		errors.Is(err, ErrReferencesUnsupported),
		errors.Is(err, ErrForcedImageSize):
		return http.StatusBadRequest

	case errors.Is(err, catalog.ErrModelNotAvailable):
		return http.StatusNotFound

	// The upstream listing call failed; mirror auth failures so the caller
	// can fix the key, collapse everything else into a bad gateway.
	case errors.As(err, &fetchErr):
		if fetchErr.StatusCode == http.StatusUnauthorized ||
			fetchErr.StatusCode == http.StatusForbidden {
			return fetchErr.StatusCode
		}
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// checkGenerateCapabilities validates a generation submission against the
// selected model before any job is created.
func checkGenerateCapabilities(model catalog.Model, refImages int, imageSize string) error {
	caps := model.Capabilities
	if !caps.SupportsGenerate {
		return ErrModelNotGenerative
	}
	if refImages > 0 {
		if caps.MaxReferenceImages == 0 {
			return ErrReferencesUnsupported
		}
		if refImages > caps.MaxReferenceImages {
			return fmt.Errorf("%w: got %d, limit %d",
				ErrTooManyReferences, refImages, caps.MaxReferenceImages)
		}
	}
	return checkForcedImageSize(caps, imageSize)
}

// checkEditCapabilities validates an edit request against the selected
// model.
func checkEditCapabilities(model catalog.Model, images int, imageSize string) error {
	caps := model.Capabilities
	if !caps.SupportsEdit {
		return ErrModelNotEditable
	}
	if caps.MaxReferenceImages > 0 && images > caps.MaxReferenceImages {
		return fmt.Errorf("%w: got %d, limit %d",
			ErrTooManyReferences, images, caps.MaxReferenceImages)
	}
	return checkForcedImageSize(caps, imageSize)
}

// checkForcedImageSize rejects a requested output size that conflicts with
// a size the model mandates.
func checkForcedImageSize(caps catalog.Capabilities, imageSize string) error {
	if caps.ForcedImageSize != "" && imageSize != "" && imageSize != caps.ForcedImageSize {
		return fmt.Errorf("%w: requested %s, model outputs %s",
			ErrForcedImageSize, imageSize, caps.ForcedImageSize)
	}
	return nil
}
