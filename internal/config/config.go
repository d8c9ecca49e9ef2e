package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider names a text-generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderArk    Provider = "ark"
)

// Config aggregates the gateway configuration.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Advisor AdvisorConfig
	Backend BackendConfig
	SMS     SMSConfig
	Chat    ChatConfig
	Storage StorageConfig
	Log     LogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	sms, err := loadSMSConfig()
	if err != nil {
		return nil, err
	}

	greeting, err := parseBoolEnv("CHAT_GREETING", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Advisor: AdvisorConfig{URL: getEnvOrDefault("ADVISOR_URL", "http://localhost:8080/api/ai/respond"), Timeout: backend.Timeout},
		Backend: backend,
		SMS:     sms,
		Chat:    ChatConfig{Greeting: greeting},
		Storage: StorageConfig{DatabasePath: getEnvOrDefault("DATABASE_PATH", "sentinel.db")},
		Log:     LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the text-generation backends.
type AIConfig struct {
	Provider Provider

	GeminiAPIKey    string
	GeminiModel     string
	MaxOutputTokens int

	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// GeminiEnabled reports whether a Gemini key is present.
func (c AIConfig) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Enabled reports whether the Ark credentials are complete.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + Model or an AK/SK pair")
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	maxOutput := 1024
	if override, err := parseOptionalIntEnv("AI_MAX_OUTPUT_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		maxOutput = *override
	}

	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if geminiKey == "" {
		geminiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}

	cfg := AIConfig{
		GeminiAPIKey:    geminiKey,
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxOutputTokens: maxOutput,
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           strings.TrimSpace(os.Getenv("Model")),
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		TopP:            topP,
		MaxTokens:       maxTokens,
	}

	switch provider := Provider(strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))); provider {
	case "":
		// Prefer Gemini when both are configured.
		if cfg.GeminiEnabled() || !cfg.Enabled() {
			cfg.Provider = ProviderGemini
		} else {
			cfg.Provider = ProviderArk
		}
	case ProviderGemini, ProviderArk:
		cfg.Provider = provider
	default:
		return AIConfig{}, fmt.Errorf("unsupported AI_PROVIDER value %q", provider)
	}

	return cfg, nil
}

// AdvisorConfig points HTTP clients at the AI text endpoint.
type AdvisorConfig struct {
	URL     string
	Timeout time.Duration
}

// BackendConfig describes the upstream REST backend.
type BackendConfig struct {
	BaseURL   string
	JWTSecret string
	Timeout   time.Duration
}

func loadBackendConfig() (BackendConfig, error) {
	timeout, err := parseDurationEnv("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return BackendConfig{}, err
	}

	return BackendConfig{
		BaseURL:   strings.TrimRight(getEnvOrDefault("BACKEND_API", "http://localhost:3001"), "/"),
		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		Timeout:   timeout,
	}, nil
}

// SMSConfig describes the SMS provider proxy and inbox polling.
type SMSConfig struct {
	ProxyURL     string
	PollInterval time.Duration
	MaxLength    int
}

// Enabled reports whether an SMS proxy is configured.
func (c SMSConfig) Enabled() bool {
	return c.ProxyURL != ""
}

func loadSMSConfig() (SMSConfig, error) {
	interval, err := parseDurationEnv("SMS_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return SMSConfig{}, err
	}
	if interval <= 0 {
		return SMSConfig{}, fmt.Errorf("SMS_POLL_INTERVAL must be positive, got %s", interval)
	}

	maxLength := 1600
	if override, err := parseOptionalIntEnv("SMS_MAX_LENGTH"); err != nil {
		return SMSConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return SMSConfig{}, fmt.Errorf("SMS_MAX_LENGTH must be positive, got %d", *override)
		}
		maxLength = *override
	}

	return SMSConfig{
		ProxyURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("SMS_PROXY_URL")), "/"),
		PollInterval: interval,
		MaxLength:    maxLength,
	}, nil
}

// ChatConfig tunes conversation views.
type ChatConfig struct {
	Greeting bool
}

// StorageConfig locates the sqlite database.
type StorageConfig struct {
	DatabasePath string
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
