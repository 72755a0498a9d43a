package ragged

import "errors"

// Codec errors.
var (
	ErrEmptyList          = errors.New("ragged: empty item list")
	ErrShape              = errors.New("ragged: data does not match shape")
	ErrRankMismatch       = errors.New("ragged: items have different number of dimensions")
	ErrPadSizeRank        = errors.New("ragged: pad size must contain a target size for every dimension")
	ErrPadTooSmall        = errors.New("ragged: item larger than pad size")
	ErrChunkSize          = errors.New("ragged: item count not divisible by leading pad size")
	ErrSplitSizeLength    = errors.New("ragged: split size must be of same length as the first dimension")
	ErrSplitSizeSum       = errors.New("ragged: split sizes do not sum to the packed length")
	ErrSplitSizeRange     = errors.New("ragged: split size exceeds padded extent")
	ErrNonScalarSplit     = errors.New("ragged: only scalar split sizes are supported")
	ErrUnsupportedRank    = errors.New("ragged: unsupported array rank")
	ErrConflictingOptions = errors.New("ragged: only one of split sizes or pad value may be provided")
)
