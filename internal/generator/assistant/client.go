// Package assistant implements the answer generator against the OpenAI
// assistants API (threads, messages, runs).
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/grantseeker/subsidy-bot/internal/generator"
)

type Config struct {
	APIKey       string
	AssistantID  string
	BaseURL      string
	Timeout      time.Duration // per HTTP request
	RunTimeout   time.Duration // whole run, message to answer
	PollInterval time.Duration
}

type Client struct {
	apiKey      string
	assistantID string
	baseURL     string
	runTimeout  time.Duration
	poll        time.Duration
	client      *http.Client
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 120 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:      cfg.APIKey,
		assistantID: cfg.AssistantID,
		baseURL:     cfg.BaseURL,
		runTimeout:  cfg.RunTimeout,
		poll:        cfg.PollInterval,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type thread struct {
	ID string `json:"id"`
}

type message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type messageList struct {
	Data []message `json:"data"`
}

type run struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (c *Client) NewThread(ctx context.Context) (string, error) {
	var t thread
	if err := c.do(ctx, http.MethodPost, "/threads", nil, &t); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (c *Client) Ask(ctx context.Context, threadID, question, instructions string) (string, error) {
	marker, err := c.postMessage(ctx, threadID, question)
	if err != nil {
		return "", err
	}
	return c.runAndCollect(ctx, threadID, marker, instructions)
}

func (c *Client) Regenerate(ctx context.Context, threadID, instructions string) (string, error) {
	// no new user message; the marker is whatever the thread's newest
	// message is right now, so only freshly generated output is returned
	marker, err := c.newestMessageID(ctx, threadID)
	if err != nil {
		return "", err
	}
	return c.runAndCollect(ctx, threadID, marker, instructions)
}

func (c *Client) LatestAnswer(ctx context.Context, threadID, afterMessageID string) (string, error) {
	path := fmt.Sprintf("/threads/%s/messages?order=asc", threadID)
	if afterMessageID != "" {
		path += "&after=" + afterMessageID
	}

	var list messageList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}

	for i := len(list.Data) - 1; i >= 0; i-- {
		if list.Data[i].Role != "assistant" {
			continue
		}
		if text := messageText(list.Data[i]); text != "" {
			return text, nil
		}
	}
	return "", generator.ErrNoAnswer
}

func (c *Client) postMessage(ctx context.Context, threadID, content string) (string, error) {
	body := map[string]string{"role": "user", "content": content}

	var msg message
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/threads/%s/messages", threadID), body, &msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *Client) newestMessageID(ctx context.Context, threadID string) (string, error) {
	var list messageList
	path := fmt.Sprintf("/threads/%s/messages?order=desc&limit=1", threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) == 0 {
		return "", nil
	}
	return list.Data[0].ID, nil
}

func (c *Client) runAndCollect(ctx context.Context, threadID, marker, instructions string) (string, error) {
	body := map[string]string{"assistant_id": c.assistantID}
	if instructions != "" {
		body["additional_instructions"] = instructions
	}

	var r run
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/threads/%s/runs", threadID), body, &r); err != nil {
		return "", err
	}

	if err := c.awaitRun(ctx, threadID, r.ID); err != nil {
		return "", err
	}

	return c.LatestAnswer(ctx, threadID, marker)
}

func (c *Client) awaitRun(ctx context.Context, threadID, runID string) error {
	deadline := time.Now().Add(c.runTimeout)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		var r run
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/threads/%s/runs/%s", threadID, runID), nil, &r); err != nil {
			return err
		}

		switch r.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired", "requires_action", "incomplete":
			reason := r.Status
			if r.LastError != nil {
				reason = fmt.Sprintf("%s: %s", r.Status, r.LastError.Message)
			}
			return fmt.Errorf("%w: %s", generator.ErrRunFailed, reason)
		}

		if time.Now().After(deadline) {
			return generator.ErrRunTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", generator.ErrRunFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("assistant request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return fmt.Errorf("%w: status %d", generator.ErrRunFailed, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func messageText(m message) string {
	for _, part := range m.Content {
		if part.Type == "text" && part.Text.Value != "" {
			return part.Text.Value
		}
	}
	return ""
}

var _ generator.Generator = (*Client)(nil)
