package mock

import (
	"context"
	"strings"
	"time"

	"github.com/grantseeker/subsidy-bot/internal/llm"
)

// Client is a recording grader mock. Responses can be queued per call; when
// the queue is exhausted the fixed Response is returned.
type Client struct {
	Response  string
	Responses []string
	Error     error
	Errors    []error
	Delay     time.Duration

	CallCount  int
	LastSystem string
	LastPrompt string
	AllCalls   []Call
}

type Call struct {
	System string
	Prompt string
}

func New() *Client {
	return &Client{
		Response: `{"scores":{"relevance":90,"completeness":90,"dataAccuracy":90,"followUp":90,"presentationQuality":90},"action":"approve"}`,
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

func (c *Client) WithResponses(responses ...string) *Client {
	c.Responses = responses
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	call := c.CallCount
	c.CallCount++
	c.LastSystem = system
	c.LastPrompt = prompt
	c.AllCalls = append(c.AllCalls, Call{System: system, Prompt: prompt})

	if c.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.Delay):
		}
	}

	if call < len(c.Errors) && c.Errors[call] != nil {
		return "", c.Errors[call]
	}
	if c.Error != nil {
		return "", c.Error
	}

	if call < len(c.Responses) {
		return c.Responses[call], nil
	}
	return c.Response, nil
}

func (c *Client) Reset() {
	c.CallCount = 0
	c.LastSystem = ""
	c.LastPrompt = ""
	c.AllCalls = nil
}

// PromptContains reports whether any recorded prompt mentions the substring.
func (c *Client) PromptContains(sub string) bool {
	for _, call := range c.AllCalls {
		if strings.Contains(call.Prompt, sub) {
			return true
		}
	}
	return false
}

var _ llm.Client = (*Client)(nil)
