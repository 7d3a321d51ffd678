package area

import "github.com/pocotu/oficri-areas/pkg/serrors"

var (
	ErrNotFound        = serrors.NewError("AREA_NOT_FOUND", "area not found", "Areas.Errors.NotFound")
	ErrDuplicateID     = serrors.NewError("AREA_DUPLICATE_ID", "area id already exists", "Areas.Errors.DuplicateID")
	ErrInvalidID       = serrors.NewError("AREA_INVALID_ID", "area id is required", "Areas.Errors.InvalidID")
	ErrCycleRejected   = serrors.NewError("AREA_CYCLE_REJECTED", "area cannot become its own ancestor", "Areas.Errors.CycleRejected")
	ErrInvalidPosition = serrors.NewError("AREA_INVALID_POSITION", "invalid move position", "Areas.Errors.InvalidPosition")
	ErrNonEmptySubtree = serrors.NewError("AREA_NON_EMPTY_SUBTREE", "area has children", "Areas.Errors.NonEmptySubtree")
)
