// Package vision defines the boundary to the screenshot analysis model.
//
// An Analyzer turns image bytes into zero or more calendar events. It is the
// slow, failure-prone dependency of the pipeline: calls take seconds and may
// fail for reasons ranging from a transient outage to a safety block.
package vision

import (
	"context"
	"errors"

	"github.com/phrazzld/capture-api/internal/domain"
)

// Errors returned by Analyzer implementations.
var (
	// ErrAnalysisFailed is returned when analysis fails for any general reason
	ErrAnalysisFailed = errors.New("failed to analyze screenshot")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from vision model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by vision model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during screenshot analysis")

	// ErrInvalidConfig is returned when the analyzer configuration is invalid
	ErrInvalidConfig = errors.New("invalid analyzer configuration")

	// ErrEmptyImage is returned when no image bytes were supplied
	ErrEmptyImage = errors.New("image cannot be empty")
)

// Result is the outcome of analyzing one screenshot.
type Result struct {
	// Found is true when at least one valid event was extracted.
	Found bool `json:"found"`

	// Events holds the extracted events in the order the model listed them.
	Events []domain.ExtractedEvent `json:"events"`

	// RawText is the relevant text the model read from the image, if any.
	RawText string `json:"raw_text,omitempty"`
}

// Analyzer extracts calendar events from a screenshot.
type Analyzer interface {
	// Analyze inspects image and returns the events it contains. A screenshot
	// without events is not an error: it yields a Result with Found false.
	Analyze(ctx context.Context, image []byte) (*Result, error)
}
