// Package upstream implements the outbound HTTP client for the generation
// API: a retrying transport with structured failure classification, and the
// aggregator that folds a chunked event-stream response into one result.
package upstream
