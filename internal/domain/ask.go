package domain

import "strings"

// AskRequest is one user turn arriving at the assistant facade.
type AskRequest struct {
	UserID   string
	ThreadID string // empty starts a new conversation thread
	Question string
	Context  ReviewContext
}

func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(r.Question) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	return nil
}

func (r *AskRequest) Sanitize() {
	r.Question = strings.TrimSpace(r.Question)
	if len(r.Question) > MaxQuestionLength {
		r.Question = r.Question[:MaxQuestionLength]
	}
}

// AskReply always carries the best available answer text, even when the
// validation run ended without a full pass.
type AskReply struct {
	Answer     string
	ThreadID   string
	State      ValidationState
	Validation *ValidationResult
}
