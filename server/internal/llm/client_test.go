package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"

	"novel-engine/server/internal/config"
)

// TestOpenAIClientComplete 验证 OpenAI 客户端的请求格式与响应解析。
func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer dummy" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Bonjour"}}]}`))
	}))
	defer ts.Close()

	client := NewOpenAIClient(config.LLMProviderConfig{APIURL: ts.URL, APIKey: "dummy", Model: "gpt-5-mini"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := client.Complete(ctx, []Message{{Role: "user", Content: "Hello"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res != "Bonjour" {
		t.Fatalf("unexpected response %q", res)
	}
	if got["reasoning_effort"] != "low" {
		t.Fatalf("expected low reasoning effort for gpt-5 models, got %v", got["reasoning_effort"])
	}
}

// TestOpenAIClientErrorStatus 验证非 200 响应返回错误并带上响应体。
func TestOpenAIClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer ts.Close()

	client := NewOpenAIClient(config.LLMProviderConfig{APIURL: ts.URL, APIKey: "dummy", Model: "gpt-4o"})
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected status error, got %v", err)
	}
}

// TestAnthropicClientSeparatesSystem 验证 system 消息被放进顶层 system 字段。
func TestAnthropicClientSeparatesSystem(t *testing.T) {
	var got struct {
		System   string    `json:"system"`
		Messages []Message `json:"messages"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "dummy" {
			t.Errorf("missing api key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hola"}]}`))
	}))
	defer ts.Close()

	client := NewAnthropicClient(config.LLMProviderConfig{APIURL: ts.URL, APIKey: "dummy", Model: "claude"})
	res, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "Translate."},
		{Role: "user", Content: "Hello"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res != "Hola" {
		t.Fatalf("unexpected response %q", res)
	}
	if got.System != "Translate." || len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

// TestGeminiText 验证 Gemini 响应中文本片段的提取。
func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hal"), genai.Text("lo")}},
		}},
	}
	text, err := geminiText(resp)
	if err != nil || text != "Hallo" {
		t.Fatalf("expected Hallo, got %q %v", text, err)
	}

	if _, err := geminiText(&genai.GenerateContentResponse{}); err == nil {
		t.Fatalf("expected error for empty response")
	}
}

// TestNewClientRejectsUnknownProvider 验证未知提供商返回错误。
func TestNewClientRejectsUnknownProvider(t *testing.T) {
	if _, err := NewClient(context.Background(), config.TranslationConfig{Provider: "babelfish"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
