package model

import "errors"

// Failure kinds surfaced by the analysis core. Components wrap these with
// context; callers match with errors.Is.
var (
	// ErrValidation: the batch is empty or structurally unusable.
	ErrValidation = errors.New("validation error")
	// ErrInsufficientFeatures: fewer than two usable columns remain after cleaning.
	ErrInsufficientFeatures = errors.New("insufficient features")
	// ErrSchema: a label column is required but absent.
	ErrSchema = errors.New("schema error")
	// ErrModelNotTrained: importance or prediction requested before training.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrComputation: a numeric computation could not produce a usable result.
	ErrComputation = errors.New("computation error")
)
