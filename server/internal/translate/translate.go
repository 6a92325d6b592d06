package translate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"novel-engine/server/internal/config"
	"novel-engine/server/internal/llm"
	"novel-engine/server/internal/model"
)

// Identity 原样返回文本，用于不需要翻译的构建。
type Identity struct{}

func (Identity) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// LLMTranslator 通过 LLM 完成单段文本翻译
type LLMTranslator struct {
	client llm.Client
}

func NewLLMTranslator(client llm.Client) *LLMTranslator {
	return &LLMTranslator{client: client}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: prompt(source, target)},
		{Role: "user", Content: text},
	}
	out, err := t.client.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out, nil
}

func prompt(source, target string) string {
	return fmt.Sprintf(
		"You translate lines of a visual novel script from %s to %s. "+
			"Keep tone, punctuation and line breaks. Reply with the translated line only.",
		languageName(source), languageName(target))
}

// languageName 把语言代码转成英文名称，例如 "pt-BR" → "Brazilian Portuguese"
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// sameLocale 判断两个语言代码是否指向同一种语言
func sameLocale(a, b string) bool {
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return ta == tb
}

type cacheKey struct {
	source, target, text string
}

// Cached 为翻译结果做进程内缓存。
// 空文本与同语言翻译直接返回原文，不调用下游。
type Cached struct {
	next model.Translator

	mu      sync.Mutex
	entries map[cacheKey]string
	hits    int
	misses  int
}

func NewCached(next model.Translator) *Cached {
	return &Cached{next: next, entries: make(map[cacheKey]string)}
}

func (c *Cached) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" || sameLocale(source, target) {
		return text, nil
	}

	key := cacheKey{source: source, target: target, text: text}
	c.mu.Lock()
	if out, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return out, nil
	}
	c.misses++
	c.mu.Unlock()

	out, err := c.next.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = out
	c.mu.Unlock()
	return out, nil
}

// Stats 返回缓存命中与未命中次数
func (c *Cached) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close 释放下游客户端（如 Gemini）持有的连接
func (c *Cached) Close() error {
	if closer, ok := c.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// New 按配置创建带缓存的翻译器
func New(ctx context.Context, cfg config.TranslationConfig) (*Cached, error) {
	if cfg.Provider == "" || cfg.Provider == config.ProviderNone {
		return NewCached(Identity{}), nil
	}
	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewCached(&closingTranslator{LLMTranslator: NewLLMTranslator(client), client: client}), nil
}

// closingTranslator 让 Cached.Close 能关闭底层 LLM 客户端
type closingTranslator struct {
	*LLMTranslator
	client llm.Client
}

func (t *closingTranslator) Close() error {
	if closer, ok := t.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
