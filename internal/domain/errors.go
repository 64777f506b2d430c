package domain

import "errors"

var (
	// ErrProviderUnavailable marks a transient provider fault. Callers
	// degrade to serving whatever is cached instead of failing the request.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrConfigurationMissing marks a ticker with no relevance terms
	// configured. Ingestion degrades to not-relevant rather than erroring.
	ErrConfigurationMissing = errors.New("ticker configuration missing")

	// ErrModelUnavailable means no trained model has been activated yet.
	// Surfaced to callers; never silently defaulted to a probability.
	ErrModelUnavailable = errors.New("no trained model available")

	// ErrDataInsufficient means the requested span holds too few labeled
	// rows to train on. A hard failure for the trainer only.
	ErrDataInsufficient = errors.New("insufficient data")
)
