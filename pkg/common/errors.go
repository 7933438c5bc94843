package common

import "errors"

var (
	// ErrEncoding is returned when source bytes are not valid UTF-8.
	ErrEncoding = errors.New("invalid text encoding")

	// ErrBudgetExceeded is returned when an ingestion would push stored bytes past the ceiling.
	ErrBudgetExceeded = errors.New("data budget exceeded")

	// ErrUnsupportedSource is returned for file types or URL schemes that cannot be ingested.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrFetch is returned when a URL cannot be fetched or is disallowed.
	ErrFetch = errors.New("fetch failed")

	// ErrExtractionEmpty is returned when no text remains after extraction.
	ErrExtractionEmpty = errors.New("no text content extracted")

	// ErrEmbeddingDimensionMismatch is returned when a vector has the wrong length.
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrGeneration marks a failed generative answer. It triggers the
	// extractive fallback and is never returned to callers of the composer.
	ErrGeneration = errors.New("generation failed")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// IsValidation reports whether err is an ingestion error caused by the
// caller's input rather than an internal failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEncoding) ||
		errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrUnsupportedSource) ||
		errors.Is(err, ErrFetch) ||
		errors.Is(err, ErrExtractionEmpty) ||
		errors.Is(err, ErrInvalidInput)
}
