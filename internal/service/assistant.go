package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantseeker/subsidy-bot/internal/domain"
	"github.com/grantseeker/subsidy-bot/internal/generator"
	"github.com/grantseeker/subsidy-bot/internal/metrics"
	"github.com/grantseeker/subsidy-bot/internal/ratelimit"
)

// Validator runs the critique -> regenerate feedback loop.
type Validator interface {
	Run(ctx context.Context, req domain.ValidationRequest) (*domain.ValidationResult, error)
}

type AssistantConfig struct {
	// BaseInstructions is prepended to every generation and regeneration
	// call, e.g. persona and output-language rules.
	BaseInstructions string
}

type AssistantServiceDeps struct {
	Generator generator.Generator
	Validator Validator
	Limiter   *ratelimit.Limiter
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Config    AssistantConfig
}

// AssistantService is the entry point a request handler calls: rate limit,
// produce the initial answer, validate it, and shape the reply. It degrades
// gracefully: the user always gets the best text available, never a blank
// failure.
type AssistantService struct {
	generator generator.Generator
	validator Validator
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
	config    AssistantConfig
}

func NewAssistantService(deps AssistantServiceDeps) *AssistantService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AssistantService{
		generator: deps.Generator,
		validator: deps.Validator,
		limiter:   deps.Limiter,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		config:    deps.Config,
	}
}

func (s *AssistantService) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskReply, error) {
	start := time.Now()

	req.Sanitize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.limiter != nil && !s.limiter.Allow(req.UserID) {
		if s.metrics != nil {
			s.metrics.RecordRateLimitHit()
		}
		s.logger.Warn("rate limit exceeded", zap.String("user_id", req.UserID))
		return nil, domain.ErrRateLimited
	}

	if s.metrics != nil {
		s.metrics.IncRequestsInFlight()
		defer s.metrics.DecRequestsInFlight()
	}

	threadID := req.ThreadID
	if threadID == "" {
		id, err := s.generator.NewThread(ctx)
		if err != nil {
			s.recordRequest("error", start)
			return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
		}
		threadID = id
	}

	genStart := time.Now()
	initial, err := s.generator.Ask(ctx, threadID, req.Question, s.config.BaseInstructions)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGeneratorRequest("ask", "error", time.Since(genStart))
		}
		s.recordRequest("error", start)
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if s.metrics != nil {
		s.metrics.RecordGeneratorRequest("ask", "success", time.Since(genStart))
	}

	result, err := s.validator.Run(ctx, domain.ValidationRequest{
		Question:         req.Question,
		InitialAnswer:    initial,
		ThreadID:         threadID,
		BaseInstructions: s.config.BaseInstructions,
		Context:          req.Context,
	})
	if err != nil {
		// the unvalidated answer still beats no answer
		s.logger.Error("validation run failed, returning unvalidated answer",
			zap.Error(fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)),
			zap.String("thread_id", threadID),
		)
		s.recordRequest("degraded", start)
		return &domain.AskReply{
			Answer:   initial,
			ThreadID: threadID,
			State:    domain.StateExhausted,
		}, nil
	}

	reply := &domain.AskReply{
		Answer:     result.BestResponse,
		ThreadID:   threadID,
		State:      result.State,
		Validation: result,
	}
	if result.State == domain.StateClarifying && len(result.ClarificationQuestions) > 0 {
		reply.Answer = appendClarifications(reply.Answer, result.ClarificationQuestions)
	}

	s.recordRequest("success", start)
	s.logger.Info("ask handled",
		zap.String("user_id", req.UserID),
		zap.String("thread_id", threadID),
		zap.String("state", string(result.State)),
		zap.Int("loops", result.FinalLoop),
	)

	return reply, nil
}

func (s *AssistantService) recordRequest(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRequest(status, time.Since(start))
	}
}

func appendClarifications(answer string, questions []string) string {
	var sb strings.Builder
	sb.WriteString(answer)
	sb.WriteString("\n\nTo narrow this down, could you tell me:\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(sb.String(), "\n")
}
