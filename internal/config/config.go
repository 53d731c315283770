package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

const (
	ProviderGroq = "groq"
	ProviderArk  = "ark"

	// ContextLatest sends only the newest user message to the provider.
	ContextLatest = "latest"
	// ContextFull sends the whole session history.
	ContextFull = "full"

	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

var defaultModels = []string{"llama-3.3-70b-versatile", "gemma2-9b-it", "compound-beta"}

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Log    LogConfig
}

// Load reads configuration from v. Values come from bound flags, the process
// environment and then defaults, in that order.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	SessionIdleTTL time.Duration
}

func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := getString(v, "PORT")
	if port == "" {
		port = "8080"
	}

	ttl, err := parseDuration(v, "SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return ServerConfig{}, err
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, SessionIdleTTL: ttl}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, SessionIdleTTL: ttl}, nil
}

// AIConfig describes the completion provider.
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Models      []string
	ContextMode string
	Ark         ArkConfig
}

// HasCredential reports whether the selected provider has a key. A missing
// key is not fatal: provider calls fail until one is supplied.
func (c AIConfig) HasCredential() bool {
	if c.Provider == ProviderArk {
		return c.Ark.Enabled()
	}
	return c.APIKey != ""
}

// DefaultModel returns the first allow-listed model.
func (c AIConfig) DefaultModel() string {
	if len(c.Models) == 0 {
		return ""
	}
	return c.Models[0]
}

// ArkConfig 描述火山方舟模型相关配置。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// NewChatModel 使用配置创建一个模型实例。defaultModel is used when a call does
// not pick a model explicitly.
func (c ArkConfig) NewChatModel(ctx context.Context, defaultModel string) (model.ChatModel, error) {
	if !c.Enabled() || defaultModel == "" {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       defaultModel,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault(v, "CHAT_PROVIDER", ProviderGroq))
	if provider != ProviderGroq && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid CHAT_PROVIDER value %q: want %s or %s", provider, ProviderGroq, ProviderArk)
	}

	mode := strings.ToLower(getEnvOrDefault(v, "CHAT_CONTEXT_MODE", ContextLatest))
	if mode != ContextLatest && mode != ContextFull {
		return AIConfig{}, fmt.Errorf("invalid CHAT_CONTEXT_MODE value %q: want %s or %s", mode, ContextLatest, ContextFull)
	}

	models := parseList(getString(v, "CHAT_MODELS"))
	if len(models) == 0 {
		models = append([]string(nil), defaultModels...)
	}

	arkCfg, err := loadArkConfig(v)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      getString(v, "GROQ_API_KEY"),
		BaseURL:     getEnvOrDefault(v, "GROQ_BASE_URL", DefaultGroqBaseURL),
		Models:      models,
		ContextMode: mode,
		Ark:         arkCfg,
	}, nil
}

func loadArkConfig(v *viper.Viper) (ArkConfig, error) {
	temperature, err := parseOptionalFloat(v, "ARK_TEMPERATURE")
	if err != nil {
		return ArkConfig{}, err
	}

	topP, err := parseOptionalFloat(v, "ARK_TOP_P")
	if err != nil {
		return ArkConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:      getString(v, "ARK_API_KEY"),
		AccessKey:   getString(v, "ARK_ACCESS_KEY"),
		SecretKey:   getString(v, "ARK_SECRET_KEY"),
		BaseURL:     getEnvOrDefault(v, "ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault(v, "ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig(v *viper.Viper) (LogConfig, error) {
	format := strings.ToLower(getEnvOrDefault(v, "LOG_FORMAT", "console"))
	if format != "console" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault(v, "LOG_LEVEL", "info")),
		Format: format,
	}, nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func getEnvOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := getString(v, key); value != "" {
		return value
	}
	return defaultValue
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(v *viper.Viper, key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getString(v, key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
