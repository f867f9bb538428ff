package domain

import (
	"strings"
	"time"
)

type ValidationState string

const (
	StateApproved   ValidationState = "approved"
	StateClarifying ValidationState = "clarifying"
	StateExhausted  ValidationState = "exhausted"
)

// ValidationLoop records one critique iteration. Created once by the
// controller, never mutated afterwards.
type ValidationLoop struct {
	LoopNumber       int
	Critique         CritiqueResult
	ImprovementHints []string
	ScoreImprovement int
	Timestamp        time.Time
}

// ValidationResult is the final outcome of a feedback-loop run. The embedded
// CritiqueResult holds the fields of the last loop executed.
type ValidationResult struct {
	CritiqueResult

	State            ValidationState
	Loops            []ValidationLoop
	FinalLoop        int
	TotalImprovement int
	BestResponse     string
	BestScores       Scores
	FailurePatterns  []string
	SuccessPatterns  []string
}

const (
	DefaultMaxLoops                  = 2
	DefaultScoreImprovementThreshold = 15
	DefaultPassThreshold             = 85

	MaxLoopsLimit = 10
)

type ValidationConfig struct {
	MaxLoops                  int
	ScoreImprovementThreshold int
	PassThreshold             int
	EnableProgressiveHints    bool
	EnableFailureAnalysis     bool
	EnableLogging             bool
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxLoops:                  DefaultMaxLoops,
		ScoreImprovementThreshold: DefaultScoreImprovementThreshold,
		PassThreshold:             DefaultPassThreshold,
		EnableProgressiveHints:    true,
		EnableFailureAnalysis:     true,
		EnableLogging:             true,
	}
}

func (c *ValidationConfig) Validate() error {
	if c.MaxLoops < 1 {
		return ErrInvalidMaxLoops
	}
	if c.MaxLoops > MaxLoopsLimit {
		return ErrMaxLoopsExceeded
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return ErrInvalidPassThreshold
	}
	if c.ScoreImprovementThreshold < 0 {
		return ErrInvalidImprovementThreshold
	}
	return nil
}

type Message struct {
	Role    string
	Content string
}

// ReviewContext is caller-supplied conversation context for one critique.
// MentionedEntities are subsidies already surfaced in earlier turns; they are
// advisory input for the grader, not an automatic penalty.
type ReviewContext struct {
	HasFilters        bool
	MentionedEntities []string
	PriorMessages     []Message
}

const MaxQuestionLength = 1000

type ValidationRequest struct {
	Question         string
	InitialAnswer    string
	ThreadID         string
	BaseInstructions string
	Context          ReviewContext
}

func (r *ValidationRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(r.Question) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	if strings.TrimSpace(r.InitialAnswer) == "" {
		return ErrEmptyAnswer
	}
	return nil
}
