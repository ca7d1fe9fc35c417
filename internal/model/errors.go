package model

import "github.com/rotisserie/eris"

// Input-validity errors shared by the feature generators. Callers match them
// with errors.Is; generators wrap them with the offending value.
var (
	ErrEmptyPointSet         = eris.New("empty point set")
	ErrInsufficientReference = eris.New("insufficient reference points")
	ErrInvalidK              = eris.New("k must be at least 1")
	ErrCRSMismatch           = eris.New("coordinate reference systems differ")
	ErrGeographicCRS         = eris.New("geographic coordinate reference system not supported for distances")
	ErrInvalidCoordinate     = eris.New("coordinate is not finite")
	ErrInvalidRadius         = eris.New("radius must be finite and positive")
	ErrInvalidCellSize       = eris.New("cell size must be finite and positive")
	ErrGridTooLarge          = eris.New("grid exceeds the maximum cell count")
	ErrEmptyRegion           = eris.New("region has no area")
)
