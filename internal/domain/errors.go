package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

var (
	ErrEmptyQuestion   = errors.New("empty question")
	ErrQuestionTooLong = errors.New("question too long")
	ErrEmptyAnswer     = errors.New("empty answer")
	ErrEmptyThreadID   = errors.New("empty thread id")
	ErrEmptyUserID     = errors.New("empty user id")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Validation run errors. ErrGradingUnavailable is recoverable at the loop
// level; ErrGenerationFailed aborts the run with the best answer so far.
var (
	ErrGradingUnavailable = errors.New("grading capability unavailable")
	ErrGenerationFailed   = errors.New("answer generation failed")
	ErrValidationFailed   = errors.New("validation run failed")
)

var (
	ErrInvalidMaxLoops             = errors.New("max loops must be at least 1")
	ErrMaxLoopsExceeded            = errors.New("max loops cannot exceed 10")
	ErrInvalidPassThreshold        = errors.New("pass threshold must be between 0 and 100")
	ErrInvalidImprovementThreshold = errors.New("score improvement threshold must be non-negative")
)

var (
	ErrEmptyEntityName = errors.New("empty entity name")
	ErrNoDataset       = errors.New("no reference dataset loaded")
)
