package mock

import (
	"context"

	"github.com/grantseeker/subsidy-bot/internal/generator"
)

// Client is a scripted answer generator. Answers are consumed in order across
// Ask and Regenerate calls; when the script runs out, Answer is returned.
type Client struct {
	Answer  string
	Answers []string
	Error   error
	Errors  []error

	ThreadID         string
	AskCount         int
	RegenerateCount  int
	LastInstructions string
	AllInstructions  []string

	calls int
}

func New() *Client {
	return &Client{
		Answer:   "Here is a matching subsidy: 「IT Adoption Subsidy」.",
		ThreadID: "thread_mock_1",
	}
}

func (c *Client) WithAnswers(answers ...string) *Client {
	c.Answers = answers
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) NewThread(ctx context.Context) (string, error) {
	if c.Error != nil {
		return "", c.Error
	}
	return c.ThreadID, nil
}

func (c *Client) Ask(ctx context.Context, threadID, question, instructions string) (string, error) {
	c.AskCount++
	return c.next(ctx, instructions)
}

func (c *Client) Regenerate(ctx context.Context, threadID, instructions string) (string, error) {
	c.RegenerateCount++
	return c.next(ctx, instructions)
}

func (c *Client) LatestAnswer(ctx context.Context, threadID, afterMessageID string) (string, error) {
	if c.Error != nil {
		return "", c.Error
	}
	if c.calls > 0 && c.calls <= len(c.Answers) {
		return c.Answers[c.calls-1], nil
	}
	return c.Answer, nil
}

func (c *Client) next(ctx context.Context, instructions string) (string, error) {
	call := c.calls
	c.calls++
	c.LastInstructions = instructions
	c.AllInstructions = append(c.AllInstructions, instructions)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if call < len(c.Errors) && c.Errors[call] != nil {
		return "", c.Errors[call]
	}
	if c.Error != nil {
		return "", c.Error
	}
	if call < len(c.Answers) {
		return c.Answers[call], nil
	}
	return c.Answer, nil
}

var _ generator.Generator = (*Client)(nil)
