package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"novel-engine/server/internal/config"
)

// Client LLM 客户端接口
type Client interface {
	// Complete 完成文本生成任务
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Message 消息结构
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// NewClient 按翻译配置创建 LLM 客户端
func NewClient(ctx context.Context, cfg config.TranslationConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAI), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.Anthropic), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.Gemini)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// postJSON 发送 JSON 请求并把 2xx 响应解码到 out，非 2xx 时把响应体带进错误
func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// OpenAIClient 走 Chat Completions 接口
type OpenAIClient struct {
	cfg config.LLMProviderConfig
	hc  *http.Client
}

func NewOpenAIClient(cfg config.LLMProviderConfig) *OpenAIClient {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	payload := map[string]any{
		"model":       c.cfg.Model,
		"messages":    messages,
		"temperature": c.cfg.Temperature,
	}
	if c.cfg.MaxTokens > 0 {
		payload["max_completion_tokens"] = c.cfg.MaxTokens
	}
	// 推理模型会把 token 预算花在 reasoning 上，译文可能为空
	if isReasoningModel(c.cfg.Model) {
		payload["reasoning_effort"] = "low"
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := postJSON(ctx, c.hc, c.cfg.APIURL+"/chat/completions", headers, payload, &result); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	choice := result.Choices[0]
	if choice.Message.Content == "" {
		return "", fmt.Errorf("openai: empty content (finish_reason=%s)", choice.FinishReason)
	}
	return choice.Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// splitSystem 把 system 消息与对话消息分开，多个 system 消息按顺序拼接
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	var rest []Message
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n\n"), rest
}

// AnthropicClient 走 Messages 接口
type AnthropicClient struct {
	cfg config.LLMProviderConfig
	hc  *http.Client
}

func NewAnthropicClient(cfg config.LLMProviderConfig) *AnthropicClient {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.anthropic.com/v1"
	}
	return &AnthropicClient{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, turns := splitSystem(messages)
	maxTokens := c.cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	payload := map[string]any{
		"model":       c.cfg.Model,
		"messages":    turns,
		"max_tokens":  maxTokens,
		"temperature": c.cfg.Temperature,
	}
	if system != "" {
		payload["system"] = system
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}
	if err := postJSON(ctx, c.hc, c.cfg.APIURL+"/messages", headers, payload, &result); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text content in response")
	}
	return sb.String(), nil
}
