package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grantseeker/subsidy-bot/internal/domain"
	"github.com/grantseeker/subsidy-bot/internal/extract"
	"github.com/grantseeker/subsidy-bot/internal/generator"
	"github.com/grantseeker/subsidy-bot/internal/metrics"
	"github.com/grantseeker/subsidy-bot/internal/repository"
)

// Critic assesses one candidate answer.
type Critic interface {
	Review(ctx context.Context, question, answer string, rctx domain.ReviewContext) (*domain.CritiqueResult, error)
}

// Hinter derives regeneration instructions from a critique and the loop
// history.
type Hinter interface {
	BuildHints(loopNumber int, critique *domain.CritiqueResult, history []domain.ValidationLoop) *domain.ProgressiveHint
	BuildInstructions(critique *domain.CritiqueResult, hint *domain.ProgressiveHint, history []domain.ValidationLoop) string
}

// Early-exit thresholds. The high-average exit accepts a good-enough answer
// without a full pass; the diminishing-returns exit stops paying for loops
// that no longer move the score. Check order matters: pass, high-average,
// budget/improvement, diminishing returns - reordering changes outcomes on
// boundary inputs.
const (
	highAverageExit    = 85.0
	highAverageMinimum = 65
	diminishingDelta   = 5
	diminishingAverage = 75.0
	duplicateRecap     = 50
)

type ValidationServiceDeps struct {
	Critic    Critic
	Hints     Hinter
	Generator generator.Generator
	Repo      repository.ValidationRepository
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Config    domain.ValidationConfig
}

// ValidationService drives the critique -> regenerate feedback loop for one
// request. All run state is local to Run; instances are safe for concurrent
// use across independent requests.
type ValidationService struct {
	critic    Critic
	hints     Hinter
	generator generator.Generator
	repo      repository.ValidationRepository
	logger    *zap.Logger
	metrics   *metrics.Metrics
	config    domain.ValidationConfig
}

func NewValidationService(deps ValidationServiceDeps) (*ValidationService, error) {
	if deps.Config.MaxLoops == 0 {
		deps.Config = domain.DefaultValidationConfig()
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil || !deps.Config.EnableLogging {
		deps.Logger = zap.NewNop()
	}
	if deps.Hints == nil {
		deps.Hints = NewHintService(deps.Config, deps.Logger)
	}

	return &ValidationService{
		critic:    deps.Critic,
		hints:     deps.Hints,
		generator: deps.Generator,
		repo:      deps.Repo,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		config:    deps.Config,
	}, nil
}

// run holds the mutable state of one validation run.
type run struct {
	req domain.ValidationRequest

	current    string
	best       string
	bestScores domain.Scores
	prevScores domain.Scores

	loops     []domain.ValidationLoop
	failures  []string
	successes []string

	state      domain.ValidationState
	last       *domain.CritiqueResult
	substitute string
}

func (s *ValidationService) Run(ctx context.Context, req domain.ValidationRequest) (*domain.ValidationResult, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		req:        req,
		current:    req.InitialAnswer,
		best:       req.InitialAnswer,
		bestScores: domain.ZeroScores(),
		prevScores: domain.ZeroScores(),
		state:      domain.StateExhausted,
	}

	s.logger.Info("validation run starting",
		zap.String("thread_id", req.ThreadID),
		zap.Int("question_length", len(req.Question)),
		zap.Int("max_loops", s.config.MaxLoops),
	)

	for loopNumber := 1; loopNumber <= s.config.MaxLoops; loopNumber++ {
		if done := s.executeLoop(ctx, r, loopNumber); done {
			break
		}
	}

	result := s.buildResult(r)

	s.persistResult(req, result)
	if s.metrics != nil {
		s.metrics.RecordValidationRun(string(result.State), time.Since(start))
		s.metrics.ObserveValidationLoops(result.FinalLoop)
	}

	s.logger.Info("validation run finished",
		zap.String("state", string(result.State)),
		zap.Int("loops", result.FinalLoop),
		zap.Int("total_improvement", result.TotalImprovement),
		zap.Int("best_sum", result.BestScores.Sum()),
	)

	return result, nil
}

// executeLoop runs one critique iteration. It returns true when the run must
// terminate. The order of the checks is deliberate and load-bearing.
func (s *ValidationService) executeLoop(ctx context.Context, r *run, loopNumber int) bool {
	// a cancelled request keeps the best answer found so far instead of
	// raising: a partial result beats none for the end user
	if ctx.Err() != nil {
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: cancelled before critique", loopNumber))
		return true
	}

	critique, err := s.critic.Review(ctx, r.req.Question, r.current, r.req.Context)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrGradingUnavailable):
		// fatal for this loop only: force a regeneration round and
		// spend one iteration of the budget
		critique = s.gradingFallback()
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: grading unavailable, forcing regeneration", loopNumber))
		s.logger.Warn("grading unavailable, continuing with fallback critique",
			zap.Int("loop", loopNumber),
			zap.Error(err),
		)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: cancelled during critique", loopNumber))
		return true
	default:
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: critique failed: %v", loopNumber, err))
		return true
	}

	// defense in depth: the engine already flags duplicates, but the
	// controller re-scans independently and re-caps a grader that was
	// too generous
	if dups := extract.Duplicates(r.current); len(dups) > 0 && critique.Scores[domain.DimDataAccuracy] > duplicateRecap {
		critique.Scores[domain.DimDataAccuracy] = duplicateRecap
		critique.Action = domain.ActionRegenerate
		critique.Issues = append(critique.Issues, domain.Issue{
			Type:        "duplicate_entities",
			Description: "duplicate subsidy mentions detected by the controller re-check",
			Severity:    domain.SeverityCritical,
		})
		critique.Finalize(s.config.PassThreshold)
	}

	improvement := 0
	if loopNumber > 1 {
		improvement = critique.Scores.Sum() - r.prevScores.Sum()
	}

	// strict > keeps the earliest loop on ties, so best-selection is
	// deterministic
	if critique.Scores.Sum() > r.bestScores.Sum() {
		r.best = r.current
		r.bestScores = critique.Scores.Clone()
	}

	loop := domain.ValidationLoop{
		LoopNumber:       loopNumber,
		Critique:         *critique,
		ImprovementHints: append([]string(nil), critique.RegenerationHints...),
		ScoreImprovement: improvement,
		Timestamp:        time.Now(),
	}
	r.loops = append(r.loops, loop)
	r.last = critique
	s.persistLoop(r.req, loop)

	s.logger.Debug("loop evaluated",
		zap.Int("loop", loopNumber),
		zap.Int("sum", critique.Scores.Sum()),
		zap.Int("improvement", improvement),
		zap.Bool("passed", critique.Passed),
		zap.String("action", string(critique.Action)),
	)

	if critique.Passed {
		r.successes = append(r.successes, fmt.Sprintf("Loop %d: passed all dimensions", loopNumber))
		r.state = domain.StateApproved
		s.noteImprovedResponse(r, critique)
		return true
	}

	if critique.Scores.Average() >= highAverageExit && critique.Lowest.Score >= highAverageMinimum {
		r.successes = append(r.successes, fmt.Sprintf("Loop %d: high average (%.1f), accepted without full pass", loopNumber, critique.Scores.Average()))
		r.state = domain.StateApproved
		s.noteImprovedResponse(r, critique)
		return true
	}

	r.failures = append(r.failures, fmt.Sprintf("Loop %d: %s = %d", loopNumber, critique.Lowest.Dimension, critique.Lowest.Score))

	if loopNumber == s.config.MaxLoops {
		r.state = domain.StateExhausted
		return true
	}
	if loopNumber > 1 && improvement < s.config.ScoreImprovementThreshold {
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: improvement %d below threshold %d", loopNumber, improvement, s.config.ScoreImprovementThreshold))
		r.state = domain.StateExhausted
		return true
	}
	if loopNumber > 1 && improvement < diminishingDelta && critique.Scores.Average() >= diminishingAverage {
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: diminishing returns", loopNumber))
		r.state = domain.StateExhausted
		return true
	}

	if critique.Action != domain.ActionRegenerate {
		if critique.Action == domain.ActionAskClarification {
			r.state = domain.StateClarifying
		} else {
			r.state = domain.StateApproved
			s.noteImprovedResponse(r, critique)
		}
		return true
	}

	hint := s.hints.BuildHints(loopNumber, critique, r.loops)
	instructions := s.hints.BuildInstructions(critique, hint, r.loops)
	if r.req.BaseInstructions != "" {
		instructions = r.req.BaseInstructions + "\n\n" + instructions
	}

	next, err := s.generator.Regenerate(ctx, r.req.ThreadID, instructions)
	if err != nil {
		// generation failure is fatal to the run: abort with the best
		// answer seen so far
		r.failures = append(r.failures, fmt.Sprintf("Loop %d: regeneration aborted: %v", loopNumber, err))
		r.state = domain.StateExhausted
		s.logger.Error("regeneration failed, aborting run",
			zap.Int("loop", loopNumber),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)),
		)
		return true
	}

	r.current = next
	r.prevScores = critique.Scores.Clone()
	return false
}

// noteImprovedResponse substitutes a grader-supplied minor fix for the raw
// candidate when the run ends approved.
func (s *ValidationService) noteImprovedResponse(r *run, critique *domain.CritiqueResult) {
	if critique.Action == domain.ActionApprove && critique.ImprovedResponse != "" {
		r.substitute = critique.ImprovedResponse
	}
}

func (s *ValidationService) gradingFallback() *domain.CritiqueResult {
	c := &domain.CritiqueResult{
		Scores: domain.ZeroScores(),
		Action: domain.ActionRegenerate,
		Issues: []domain.Issue{{
			Type:        "grading_unavailable",
			Description: "the grading capability could not be reached; forcing a regeneration round",
			Severity:    domain.SeverityWarning,
		}},
		RegenerationHints: []string{
			"Answer the question directly and verify every subsidy name and amount against the official catalog.",
		},
	}
	c.Finalize(s.config.PassThreshold)
	return c
}

func (s *ValidationService) buildResult(r *run) *domain.ValidationResult {
	result := &domain.ValidationResult{
		State:           r.state,
		Loops:           r.loops,
		FinalLoop:       len(r.loops),
		BestResponse:    r.best,
		BestScores:      r.bestScores,
		FailurePatterns: r.failures,
		SuccessPatterns: r.successes,
	}

	if r.last != nil {
		result.CritiqueResult = *r.last
	} else {
		result.CritiqueResult = domain.CritiqueResult{Scores: domain.ZeroScores()}
		result.CritiqueResult.Finalize(s.config.PassThreshold)
	}

	if len(r.loops) > 0 {
		result.TotalImprovement = r.bestScores.Sum() - r.loops[0].Critique.Scores.Sum()
	}

	if r.substitute != "" {
		result.BestResponse = r.substitute
	}

	return result
}

// Persistence is fire-and-forget: a failed write must never fail the
// user-facing request.

func (s *ValidationService) persistLoop(req domain.ValidationRequest, loop domain.ValidationLoop) {
	if s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveLoop(ctx, req.ThreadID, req.Question, loop); err != nil {
			if s.metrics != nil {
				s.metrics.RecordPersistenceFailure()
			}
			s.logger.Warn("failed to persist validation loop",
				zap.Error(err),
				zap.String("thread_id", req.ThreadID),
				zap.Int("loop", loop.LoopNumber),
			)
		}
	}()
}

func (s *ValidationService) persistResult(req domain.ValidationRequest, result *domain.ValidationResult) {
	if s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveResult(ctx, req.ThreadID, req.Question, result); err != nil {
			if s.metrics != nil {
				s.metrics.RecordPersistenceFailure()
			}
			s.logger.Warn("failed to persist validation result",
				zap.Error(err),
				zap.String("thread_id", req.ThreadID),
			)
		}
	}()
}
