package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"novel-engine/server/internal/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient Google Gemini 客户端
type GeminiClient struct {
	client *genai.Client
	config config.LLMProviderConfig
}

// NewGeminiClient 创建 Gemini 客户端，使用完毕后需要 Close
func NewGeminiClient(ctx context.Context, cfg config.LLMProviderConfig) (*GeminiClient, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.APIURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	return &GeminiClient{client: client, config: cfg}, nil
}

// Complete 完成文本生成（Gemini）
func (c *GeminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	model := c.client.GenerativeModel(c.config.Model)
	if c.config.Temperature != 0 {
		model.SetTemperature(float32(c.config.Temperature))
	}
	if c.config.MaxTokens != 0 {
		model.SetMaxOutputTokens(int32(c.config.MaxTokens))
	}

	system, rest := splitSystem(messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	parts := make([]genai.Part, 0, len(rest))
	for _, msg := range rest {
		parts = append(parts, genai.Text(msg.Content))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no user content to send")
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return geminiText(resp)
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// geminiText 取第一个候选的全部文本片段
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty content in response")
	}
	return sb.String(), nil
}
