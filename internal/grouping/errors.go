package grouping

import "errors"

var (
	// ErrInvalidFeature is returned when the requested gene is not a
	// measurement column of the dataset.
	ErrInvalidFeature = errors.New("grouping: invalid feature")
	// ErrInvalidMode is returned for grouping modes outside 1..7.
	ErrInvalidMode = errors.New("grouping: invalid mode")
	// ErrMissingDimension is returned when a table lacks a dimension column
	// the operation needs (COMP for panel splits).
	ErrMissingDimension = errors.New("grouping: missing dimension column")
)
