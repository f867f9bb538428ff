package llm

import (
	"context"
	"errors"
)

var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRequestFailed = errors.New("request failed")
	ErrEmptyResponse = errors.New("empty response")
	ErrRateLimit     = errors.New("rate limit exceeded")
)

// Client is the opaque grading capability: a chat-completion style model
// invoked with a system rubric and a user payload.
type Client interface {
	CompleteWithSystem(ctx context.Context, system, prompt string) (string, error)
}
