package models

import "errors"

// Failure kinds surfaced by the pipeline. Callers match them with errors.Is;
// every failure path wraps exactly one of these.
var (
	// ErrUnsupportedFormat means the extractor cannot decode the payload's
	// MIME type (or the bytes do not match the claimed type).
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrPayloadTooLarge means the payload exceeds the configured upload
	// ceiling. Checked before any parsing starts.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidConfiguration means chunking parameters violate the
	// overlap < size precondition.
	ErrInvalidConfiguration = errors.New("invalid chunking configuration")

	// ErrEmbeddingUnavailable means the embedding capability kept failing
	// after bounded retries. The whole batch is failed; no partial vectors.
	ErrEmbeddingUnavailable = errors.New("embedding capability unavailable")

	// ErrIndexUnavailable means the vector index backing store is
	// unreachable. Never retried here; the caller decides.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrChatUnavailable means the chat capability failed during question
	// condensing or answer synthesis.
	ErrChatUnavailable = errors.New("chat capability unavailable")

	// ErrEmptyQuestion rejects a query request with no question text.
	ErrEmptyQuestion = errors.New("question must not be empty")
)
