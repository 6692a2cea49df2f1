package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/xaenox/support-monitor/internal/models"
)

func TestParseResult(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    models.ClassificationResult
		wantErr string
	}{
		{
			name: "plain json",
			raw:  `{"category":"bug_report","confidence":0.82,"reason":"crash","requires_attention":true}`,
			want: models.ClassificationResult{Category: models.CategoryBugReport, Confidence: 0.82, Reason: "crash", RequiresAttention: true},
		},
		{
			name: "fenced with reasoning",
			raw:  "<think>hmm</think>\n```json\n{\"category\":\"General_Chat\",\"confidence\":0.6,\"reason\":\"hi\",\"requires_attention\":false}\n```",
			want: models.ClassificationResult{Category: models.CategoryGeneralChat, Confidence: 0.6, Reason: "hi"},
		},
		{name: "garbage", raw: "I think it is a bug", wantErr: "not a JSON object"},
		{name: "unknown category", raw: `{"category":"spam","confidence":0.5}`, wantErr: "unknown category"},
		{name: "missing confidence", raw: `{"category":"other"}`, wantErr: "confidence is missing"},
		{name: "confidence out of range", raw: `{"category":"other","confidence":1.5}`, wantErr: "outside [0, 1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseResult(tc.raw)
			if tc.wantErr != "" {
				var outErr *OutputError
				if !errors.As(err, &outErr) || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected OutputError containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

type chatRequest struct {
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []json.RawMessage `json:"tools"`
}

func fakeCompletion(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "qwen3:30b",
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 20, "completion_tokens": 4, "total_tokens": 24},
	})
}

func TestOpenAIPredictorToolLoop(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []chatRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, req)
		n := len(requests)
		mu.Unlock()

		if n == 1 {
			fakeCompletion(w, map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]any{{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": "get_author_context", "arguments": "{}"},
				}},
			})
			return
		}
		fakeCompletion(w, map[string]any{
			"role":    "assistant",
			"content": `{"category":"support_request","confidence":0.9,"reason":"new user asks for help","requires_attention":true}`,
		})
	}))
	defer srv.Close()

	p := NewOpenAIPredictor(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "qwen3:30b", MaxTokens: 256}, nil)
	count := 1
	req := Request{
		System: SystemPrompt,
		Prompt: BuildPrompt("how do I log in?", AuthorContext{Name: "neo"}, ChannelContext{Name: "help"}),
		Tools:  ContextTools(AuthorContext{Name: "neo", MessageCount: &count}, ChannelContext{Name: "help"}),
	}

	pred, err := p.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Result.Category != models.CategorySupportRequest || pred.Result.Confidence != 0.9 {
		t.Fatalf("unexpected result %+v", pred.Result)
	}
	if pred.Usage.Requests != 2 || pred.Usage.InputTokens != 40 || pred.Usage.OutputTokens != 8 {
		t.Fatalf("usage should sum both rounds, got %+v", pred.Usage)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests[0].Tools) != 2 {
		t.Fatalf("expected 2 tools offered, got %d", len(requests[0].Tools))
	}
	second := requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" || !strings.Contains(last.Content, "Activity: low (1 messages)") {
		t.Fatalf("tool result not sent back: %+v", last)
	}
}

func TestOpenAIPredictorCorrectionsAndBadOutput(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fakeCompletion(w, map[string]any{"role": "assistant", "content": "not json"})
	}))
	defer srv.Close()

	p := NewOpenAIPredictor(OpenAIConfig{BaseURL: srv.URL, Model: "m"}, nil)
	_, err := p.Predict(context.Background(), Request{
		System:      SystemPrompt,
		Prompt:      "Message: hi",
		Corrections: []Correction{{Answer: "previous", Instruction: "try again"}},
	})
	var outErr *OutputError
	if !errors.As(err, &outErr) {
		t.Fatalf("expected OutputError, got %v", err)
	}
	roles := make([]string, 0, len(got.Messages))
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,user" {
		t.Fatalf("unexpected message roles %v", roles)
	}
}

func TestOpenAIPredictorTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenAIPredictor(OpenAIConfig{BaseURL: srv.URL, Model: "m"}, nil)
	_, err := p.Predict(context.Background(), Request{Prompt: "Message: hi"})
	var outErr *OutputError
	if err == nil || errors.As(err, &outErr) {
		t.Fatalf("expected a request error, got %v", err)
	}
}

func TestKeywordPredictor(t *testing.T) {
	cases := map[string]models.Category{
		"How do I reset my password? I can't log in.": models.CategorySupportRequest,
		"The app crashed with an error again":          models.CategoryBugReport,
		"This is the worst update, I want a refund":    models.CategoryComplaint,
		"hello everyone, thanks!":                      models.CategoryGeneralChat,
		"pizza tonight":                                models.CategoryOther,
	}
	p := NewKeywordPredictor()
	for content, want := range cases {
		prompt := BuildPrompt(content, AuthorContext{Name: "a"}, ChannelContext{Name: "c"})
		pred, err := p.Predict(context.Background(), Request{Prompt: prompt})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if pred.Result.Category != want {
			t.Errorf("%q: got %s, want %s", content, pred.Result.Category, want)
		}
		if pred.Result.RequiresAttention != want.RequiresAttention() {
			t.Errorf("%q: attention flag mismatch", content)
		}
	}
}
