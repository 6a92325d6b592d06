package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Game        GameConfig        `yaml:"game"`
	Translation TranslationConfig `yaml:"translation"`
	Storage     StorageConfig     `yaml:"storage"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Logging     LoggingConfig     `yaml:"logging"`
	Paths       PathsConfig       `yaml:"paths"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// GameConfig 描述剧本本身
type GameConfig struct {
	Title      string `yaml:"title"`
	StartScene string `yaml:"start_scene"`
	// Language 是编写剧本使用的语言，也是加载时读取的语言目录
	Language string `yaml:"language"`
	// Languages 是构建时需要输出的全部语言
	Languages      []string `yaml:"languages"`
	ResourceFolder string   `yaml:"resource_folder"`
}

// TranslationConfig 构建阶段的翻译配置
type TranslationConfig struct {
	Provider  string            `yaml:"provider"` // "none", "openai", "anthropic" or "gemini"
	OpenAI    LLMProviderConfig `yaml:"openai"`
	Anthropic LLMProviderConfig `yaml:"anthropic"`
	Gemini    LLMProviderConfig `yaml:"gemini"`
}

// LLMProviderConfig LLM 提供商配置
type LLMProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIURL      string  `yaml:"api_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // "memory" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
}

type GatewayConfig struct {
	QueueCapacity  int           `yaml:"queue_capacity"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Output string `yaml:"output"` // "stdout" 或文件路径
}

type PathsConfig struct {
	// Output 是 build 子命令的输出目录
	Output string `yaml:"output"`
	// Script 是 export 子命令生成的 PDF 路径
	Script string `yaml:"script"`
}

const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Default 返回不依赖配置文件即可运行的默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Game.StartScene == "" {
		c.Game.StartScene = "start"
	}
	if c.Game.Language == "" {
		c.Game.Language = "en"
	}
	if len(c.Game.Languages) == 0 {
		c.Game.Languages = []string{c.Game.Language}
	}
	if c.Game.ResourceFolder == "" {
		c.Game.ResourceFolder = "resources"
	}
	if c.Translation.Provider == "" {
		c.Translation.Provider = ProviderNone
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = 30 * time.Second
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "output"
	}
	if c.Paths.Script == "" {
		c.Paths.Script = "script.pdf"
	}
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	fmt.Printf("📋 Loading config from: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	fmt.Printf("\n📊 Configuration Summary:\n")
	fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Game: %q start=%s language=%s languages=%v\n",
		cfg.Game.Title, cfg.Game.StartScene, cfg.Game.Language, cfg.Game.Languages)
	fmt.Printf("   Resources: %s\n", cfg.Game.ResourceFolder)
	fmt.Printf("   Translation: %s\n", cfg.Translation.Provider)
	fmt.Printf("   Storage: %s\n", cfg.Storage.Driver)
	fmt.Printf("\n")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnv 从环境变量覆盖敏感信息
func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		fmt.Printf("🔑 Using OPENAI_API_KEY from environment variable\n")
		c.Translation.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		fmt.Printf("🔑 Using ANTHROPIC_API_KEY from environment variable\n")
		c.Translation.Anthropic.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Printf("🔑 Using GEMINI_API_KEY from environment variable\n")
		c.Translation.Gemini.APIKey = key
	}
	if lang := os.Getenv("NOVEL_LANGUAGE"); lang != "" {
		fmt.Printf("🌐 Using NOVEL_LANGUAGE from environment: %s\n", lang)
		c.Game.Language = lang
	}
}

// Validate 验证配置，并把语言代码规范化为 BCP 47 形式
func (c *Config) Validate() error {
	lang, err := CanonicalLocale(c.Game.Language)
	if err != nil {
		return fmt.Errorf("game.language: %w", err)
	}
	c.Game.Language = lang

	seen := make(map[string]bool, len(c.Game.Languages))
	languages := make([]string, 0, len(c.Game.Languages))
	for _, l := range c.Game.Languages {
		canonical, err := CanonicalLocale(l)
		if err != nil {
			return fmt.Errorf("game.languages: %w", err)
		}
		if !seen[canonical] {
			seen[canonical] = true
			languages = append(languages, canonical)
		}
	}
	c.Game.Languages = languages

	if c.Game.ResourceFolder == "" {
		return fmt.Errorf("game.resource_folder is required")
	}

	var provider LLMProviderConfig
	switch c.Translation.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		provider = c.Translation.OpenAI
	case ProviderAnthropic:
		provider = c.Translation.Anthropic
	case ProviderGemini:
		provider = c.Translation.Gemini
	default:
		return fmt.Errorf("unsupported translation provider: %s", c.Translation.Provider)
	}
	if c.Translation.Provider != ProviderNone && provider.APIKey == "" {
		return fmt.Errorf("%s API key is required for translation", c.Translation.Provider)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	return nil
}

// CanonicalLocale 把语言代码解析并规范化，例如 "EN-us" → "en-US"
func CanonicalLocale(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("language is required")
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	return tag.String(), nil
}
