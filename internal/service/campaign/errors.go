package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrPieceNotFound     = errors.New("creative piece not found")
	ErrReviewNotFound    = errors.New("review not found")
	ErrForbidden         = errors.New("role is not allowed to perform this action")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReviewsNotFinal   = errors.New("not every review unit is finally approved")
	ErrReviewConflict    = errors.New("review was modified concurrently")
	ErrImmutable         = errors.New("campaign content is no longer editable")
)
