package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/studyaide/internal/model"
	"github.com/pavelanni/studyaide/internal/prompt"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"canceled", context.Canceled, FailureTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), FailureTimeout},
		{"quota", &openai.APIError{HTTPStatusCode: 429}, FailureQuota},
		{"other api error", &openai.APIError{HTTPStatusCode: 500}, FailureTransport},
		{"plain error", errors.New("connection refused"), FailureTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if got.Kind != tt.want {
				t.Errorf("classify() kind = %q, want %q", got.Kind, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "  The grading is explained on page 3.  "}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, "test-key", "test-model", 100, 0.3)
	payload := &prompt.Payload{
		Topic:   model.TopicCoursework,
		System:  "You are an academic assistant.",
		Excerpt: "==== COURSE MATERIAL BEGIN ====\ngrading criteria\n==== COURSE MATERIAL END ====",
		History: []model.Exchange{
			{Question: "earlier question", Answer: "earlier answer"},
		},
		Question: "What is the grading criteria?",
	}

	answer, err := c.Generate(context.Background(), payload)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "The grading is explained on page 3." {
		t.Errorf("unexpected answer %q", answer)
	}

	// system + 2 history messages + current question
	if len(gotReq.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("first message should be system, got %q", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[1].Content != "earlier question" || gotReq.Messages[2].Content != "earlier answer" {
		t.Error("history not mapped to user/assistant messages in order")
	}
	if gotReq.Messages[3].Content != "What is the grading criteria?" {
		t.Errorf("last message should be the question, got %q", gotReq.Messages[3].Content)
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, "test-key", "test-model", 100, 0.3)
	_, err := c.Generate(context.Background(), &prompt.Payload{Question: "q"})
	var ge *GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if ge.Kind != FailureMalformed {
		t.Errorf("expected malformed failure, got %q", ge.Kind)
	}
}
