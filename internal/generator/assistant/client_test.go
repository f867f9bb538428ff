package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantseeker/subsidy-bot/internal/generator"
)

// fakeAssistant is a minimal threads/runs/messages endpoint. Runs complete
// after a configurable number of polls.
type fakeAssistant struct {
	mu sync.Mutex

	pollsToComplete int
	finalStatus     string
	answer          string
	messages        []map[string]interface{}

	polls          int
	lastRunBody    map[string]string
	lastBetaHeader string
}

func (f *fakeAssistant) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "thread_abc"})
	})

	mux.HandleFunc("POST /threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.messages = append(f.messages, map[string]interface{}{"id": fmt.Sprintf("msg_%d", len(f.messages)+1), "role": "user"})
		id := fmt.Sprintf("msg_%d", len(f.messages))
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("GET /threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		data := []map[string]interface{}{}
		if f.answer != "" {
			data = append(data, map[string]interface{}{
				"id":   "msg_answer",
				"role": "assistant",
				"content": []map[string]interface{}{
					{"type": "text", "text": map[string]string{"value": f.answer}},
				},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})

	mux.HandleFunc("POST /threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastBetaHeader = r.Header.Get("OpenAI-Beta")
		json.NewDecoder(r.Body).Decode(&f.lastRunBody)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": "queued"})
	})

	mux.HandleFunc("GET /threads/{id}/runs/{runID}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		status := "in_progress"
		if f.polls > f.pollsToComplete {
			status = f.finalStatus
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": status})
	})

	return mux
}

func newTestClient(t *testing.T, fake *fakeAssistant) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return New(Config{
		APIKey:       "sk-test",
		AssistantID:  "asst_test",
		BaseURL:      srv.URL,
		RunTimeout:   2 * time.Second,
		PollInterval: 5 * time.Millisecond,
	}, nil)
}

func TestClient_NewThread(t *testing.T) {
	client := newTestClient(t, &fakeAssistant{finalStatus: "completed"})

	id, err := client.NewThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", id)
}

func TestClient_Ask(t *testing.T) {
	fake := &fakeAssistant{finalStatus: "completed", answer: "「IT Adoption Subsidy」 fits your case."}
	client := newTestClient(t, fake)

	answer, err := client.Ask(context.Background(), "thread_abc", "What subsidies fit?", "Answer briefly.")
	require.NoError(t, err)
	assert.Equal(t, "「IT Adoption Subsidy」 fits your case.", answer)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "assistants=v2", fake.lastBetaHeader)
	assert.Equal(t, "asst_test", fake.lastRunBody["assistant_id"])
	assert.Equal(t, "Answer briefly.", fake.lastRunBody["additional_instructions"])
}

func TestClient_Ask_PollsUntilCompleted(t *testing.T) {
	fake := &fakeAssistant{finalStatus: "completed", pollsToComplete: 3, answer: "done"}
	client := newTestClient(t, fake)

	answer, err := client.Ask(context.Background(), "thread_abc", "q", "")
	require.NoError(t, err)
	assert.Equal(t, "done", answer)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.GreaterOrEqual(t, fake.polls, 4)
}

func TestClient_Ask_RunFailed(t *testing.T) {
	fake := &fakeAssistant{finalStatus: "expired", answer: "never returned"}
	client := newTestClient(t, fake)

	_, err := client.Ask(context.Background(), "thread_abc", "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, generator.ErrRunFailed), "err = %v", err)
}

func TestClient_Ask_RunTimeout(t *testing.T) {
	fake := &fakeAssistant{finalStatus: "completed", pollsToComplete: 1 << 30}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := New(Config{
		APIKey:       "sk-test",
		AssistantID:  "asst_test",
		BaseURL:      srv.URL,
		RunTimeout:   30 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, nil)

	_, err := client.Ask(context.Background(), "thread_abc", "q", "")
	assert.True(t, errors.Is(err, generator.ErrRunTimeout), "err = %v", err)
}

func TestClient_Regenerate(t *testing.T) {
	fake := &fakeAssistant{finalStatus: "completed", answer: "broader answer"}
	client := newTestClient(t, fake)

	answer, err := client.Regenerate(context.Background(), "thread_abc", "Cover at least 20 subsidies.")
	require.NoError(t, err)
	assert.Equal(t, "broader answer", answer)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "Cover at least 20 subsidies.", fake.lastRunBody["additional_instructions"])
}

func TestClient_LatestAnswer_NoAssistantMessage(t *testing.T) {
	fake := &fakeAssistant{finalStatus: "completed"} // no answer configured
	client := newTestClient(t, fake)

	_, err := client.LatestAnswer(context.Background(), "thread_abc", "")
	assert.True(t, errors.Is(err, generator.ErrNoAnswer), "err = %v", err)
}

func TestClient_Ask_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := New(Config{APIKey: "sk-test", AssistantID: "asst_test", BaseURL: srv.URL}, nil)
	_, err := client.Ask(context.Background(), "thread_abc", "q", "")
	assert.True(t, errors.Is(err, generator.ErrRunFailed), "err = %v", err)
}
