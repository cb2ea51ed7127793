// Package qa implements the question answering pipeline: retrieval, answer
// generation, evidence candidate scoring, selection, and bbox resolution.
package qa

import "errors"

var (
	// ErrEmptyQuestion is returned when the question is empty after trimming.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrDocumentNotReady is returned when the document exists but has not
	// finished processing successfully.
	ErrDocumentNotReady = errors.New("document is not ready")

	// ErrGenerationInvalid marks a model response that failed the answer
	// contract. It triggers the fallback response, not a hard failure.
	ErrGenerationInvalid = errors.New("generated answer is invalid")
)
