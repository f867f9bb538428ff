package generator

import (
	"context"
	"errors"
)

var (
	ErrRunFailed  = errors.New("assistant run failed")
	ErrRunTimeout = errors.New("assistant run timed out")
	ErrNoAnswer   = errors.New("no assistant answer produced")
)

// Generator is the opaque answer-producing capability. One conversation lives
// on one thread; every call produces a new candidate answer on that thread.
type Generator interface {
	// NewThread opens a fresh conversation thread.
	NewThread(ctx context.Context) (string, error)

	// Ask appends the user question to the thread and produces an answer.
	Ask(ctx context.Context, threadID, question, instructions string) (string, error)

	// Regenerate produces a new answer on the same thread, steered by the
	// accumulated correction instructions, without a new user message.
	Regenerate(ctx context.Context, threadID, instructions string) (string, error)

	// LatestAnswer returns the newest assistant message created after the
	// given message marker, distinguishing fresh output from echoed history.
	LatestAnswer(ctx context.Context, threadID, afterMessageID string) (string, error)
}
