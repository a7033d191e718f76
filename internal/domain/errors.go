package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyJobID is returned when a job has a nil identifier.
	ErrEmptyJobID = errors.New("job ID cannot be empty")

	// ErrEmptyPrompt is returned when a request snapshot has no prompt text.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrEmptyModel is returned when a request snapshot names no model.
	ErrEmptyModel = errors.New("model cannot be empty")

	// ErrInvalidJobStatus is returned when a job status is not a known value.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidJobPhase is returned when a job phase is not a known value.
	ErrInvalidJobPhase = errors.New("invalid job phase")
)
