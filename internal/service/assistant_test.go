package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/grantseeker/subsidy-bot/internal/domain"
	genmock "github.com/grantseeker/subsidy-bot/internal/generator/mock"
	"github.com/grantseeker/subsidy-bot/internal/ratelimit"
)

// stubValidator returns a fixed result or error.
type stubValidator struct {
	result *domain.ValidationResult
	err    error

	LastRequest domain.ValidationRequest
}

func (v *stubValidator) Run(ctx context.Context, req domain.ValidationRequest) (*domain.ValidationResult, error) {
	v.LastRequest = req
	if v.err != nil {
		return nil, v.err
	}
	return v.result, nil
}

func approvedResult(answer string) *domain.ValidationResult {
	critique := uniformCritique(domain.ActionApprove, 92)
	return &domain.ValidationResult{
		CritiqueResult: *critique,
		State:          domain.StateApproved,
		FinalLoop:      1,
		BestResponse:   answer,
		BestScores:     critique.Scores.Clone(),
	}
}

func askRequest() domain.AskRequest {
	return domain.AskRequest{
		UserID:   "user_1",
		Question: "Which subsidies help with manufacturing equipment?",
	}
}

func TestAssistantService_Ask_ReturnsValidatedAnswer(t *testing.T) {
	gen := genmock.New()
	validator := &stubValidator{result: approvedResult("validated answer")}
	svc := NewAssistantService(AssistantServiceDeps{
		Generator: gen,
		Validator: validator,
		Config:    AssistantConfig{BaseInstructions: "Answer in plain language."},
	})

	reply, err := svc.Ask(context.Background(), askRequest())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if reply.Answer != "validated answer" {
		t.Errorf("Answer = %q, want the validated best response", reply.Answer)
	}
	if reply.State != domain.StateApproved {
		t.Errorf("State = %s, want approved", reply.State)
	}
	if reply.ThreadID == "" {
		t.Error("reply should carry the thread id")
	}
	if gen.AskCount != 1 {
		t.Errorf("AskCount = %d, want 1", gen.AskCount)
	}
	if validator.LastRequest.BaseInstructions != "Answer in plain language." {
		t.Error("base instructions should flow into the validation request")
	}
	if validator.LastRequest.ThreadID != gen.ThreadID {
		t.Errorf("validation thread = %q, want %q", validator.LastRequest.ThreadID, gen.ThreadID)
	}
}

func TestAssistantService_Ask_ReusesExistingThread(t *testing.T) {
	gen := genmock.New()
	validator := &stubValidator{result: approvedResult("answer")}
	svc := NewAssistantService(AssistantServiceDeps{Generator: gen, Validator: validator})

	req := askRequest()
	req.ThreadID = "thread_existing"

	reply, err := svc.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.ThreadID != "thread_existing" {
		t.Errorf("ThreadID = %q, want thread_existing", reply.ThreadID)
	}
}

func TestAssistantService_Ask_RateLimited(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 1})
	defer limiter.Stop()

	svc := NewAssistantService(AssistantServiceDeps{
		Generator: genmock.New(),
		Validator: &stubValidator{result: approvedResult("answer")},
		Limiter:   limiter,
	})

	if _, err := svc.Ask(context.Background(), askRequest()); err != nil {
		t.Fatalf("first Ask() error = %v", err)
	}
	if _, err := svc.Ask(context.Background(), askRequest()); !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("second Ask() error = %v, want ErrRateLimited", err)
	}
}

func TestAssistantService_Ask_GenerationFailure(t *testing.T) {
	gen := genmock.New().WithError(errors.New("assistant unreachable"))
	svc := NewAssistantService(AssistantServiceDeps{
		Generator: gen,
		Validator: &stubValidator{result: approvedResult("answer")},
	})

	_, err := svc.Ask(context.Background(), askRequest())
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("Ask() error = %v, want ErrGenerationFailed", err)
	}
}

func TestAssistantService_Ask_DegradesWhenValidationFails(t *testing.T) {
	gen := genmock.New()
	gen.Answer = "unvalidated but useful answer"
	svc := NewAssistantService(AssistantServiceDeps{
		Generator: gen,
		Validator: &stubValidator{err: domain.ErrEmptyAnswer},
	})

	reply, err := svc.Ask(context.Background(), askRequest())
	if err != nil {
		t.Fatalf("Ask() error = %v, want graceful degradation", err)
	}
	if reply.Answer != "unvalidated but useful answer" {
		t.Errorf("Answer = %q, want the unvalidated answer", reply.Answer)
	}
	if reply.State != domain.StateExhausted {
		t.Errorf("State = %s, want exhausted", reply.State)
	}
}

func TestAssistantService_Ask_AppendsClarificationQuestions(t *testing.T) {
	result := approvedResult("I need a bit more detail.")
	result.State = domain.StateClarifying
	result.ClarificationQuestions = []string{"What industry are you in?", "How many employees do you have?"}

	svc := NewAssistantService(AssistantServiceDeps{
		Generator: genmock.New(),
		Validator: &stubValidator{result: result},
	})

	reply, err := svc.Ask(context.Background(), askRequest())
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !strings.Contains(reply.Answer, "1. What industry are you in?") {
		t.Errorf("Answer = %q, want numbered clarification questions", reply.Answer)
	}
	if !strings.Contains(reply.Answer, "2. How many employees do you have?") {
		t.Errorf("Answer = %q, want both questions", reply.Answer)
	}
}

func TestAssistantService_Ask_RejectsInvalidRequest(t *testing.T) {
	svc := NewAssistantService(AssistantServiceDeps{
		Generator: genmock.New(),
		Validator: &stubValidator{result: approvedResult("answer")},
	})

	req := askRequest()
	req.UserID = ""
	if _, err := svc.Ask(context.Background(), req); !errors.Is(err, domain.ErrEmptyUserID) {
		t.Errorf("Ask() error = %v, want ErrEmptyUserID", err)
	}

	req = askRequest()
	req.Question = "  "
	if _, err := svc.Ask(context.Background(), req); !errors.Is(err, domain.ErrEmptyQuestion) {
		t.Errorf("Ask() error = %v, want ErrEmptyQuestion", err)
	}
}
