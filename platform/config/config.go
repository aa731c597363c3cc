// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSecretToken is the shared webhook secret expected by the provider and the admin services.
const DefaultSecretToken = "secret"

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// MigrationConfig provides settings for schema migrations.
type MigrationConfig interface {
	DatabaseConfig
	GetMigrationsDir() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetSecretToken() string
}

// TelegramConfig provides settings for the Telegram provider.
type TelegramConfig interface {
	GetTelegramToken() string
	GetTelegramAPIEndpoint() string
	GetBotUsername() string
	GetWebhookDomain() string
	GetWebhookPrefix() string
	GetSecretToken() string
	GetChannelUsername() string
	GetOutboundTimeout() time.Duration
}

// CRMConfig provides settings for the sales CRM mirror.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMToken() string
	GetCRMMainPipelineID() int64
	GetCRMAppealPipelineID() int64
	GetCRMStatusIDs() map[string]int64
	GetCRMUsernameFieldID() int64
	GetCRMLeadSourceFieldID() int64
	GetOutboundTimeout() time.Duration
	IsCRMEnabled() bool
}

// EngagementConfig provides the counter thresholds that move a lead through the pipeline.
type EngagementConfig interface {
	GetThresholdHigh() int
	GetThresholdActive() int
	GetThresholdContact() int
}

// LLMConfig provides settings for the YandexGPT completion client.
type LLMConfig interface {
	GetYandexAPIKey() string
	GetYandexFolderID() string
	GetLLMTemperature() float64
	GetLLMMaxTokens() int
}

// EstateConfig provides the sibling service endpoints.
type EstateConfig interface {
	GetSearchServiceURL() string
	GetCalculatorServiceURL() string
	GetNewsServiceURL() string
	GetOutboundTimeout() time.Duration
}

// RedisConfig provides settings for Redis-backed caches.
type RedisConfig interface {
	GetRedisURL() string
}

// SchedulerConfig provides settings for the alert queue and periodic jobs.
type SchedulerConfig interface {
	RedisConfig
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSearchCleanupInterval() time.Duration
	GetSearchSessionTTL() time.Duration
}

// AlertConfig provides settings for the out-of-band alert channel.
type AlertConfig interface {
	GetSlackToken() string
	GetSlackChannelID() string
	IsAlertEnabled() bool
}

// PromptsConfig provides the location of the prompts catalogue.
type PromptsConfig interface {
	GetPromptsPath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	ServiceName           string
	HTTPAddr              string
	DatabaseURL           string
	MigrationsDir         string
	SecretToken           string
	TelegramToken         string
	TelegramAPIEndpoint   string
	BotUsername           string
	WebhookDomain         string
	WebhookPrefix         string
	ChannelUsername       string
	OutboundTimeout       time.Duration
	CRMBaseURL            string
	CRMToken              string
	CRMMainPipelineID     int64
	CRMAppealPipelineID   int64
	CRMStatusIDs          map[string]int64
	CRMUsernameFieldID    int64
	CRMLeadSourceFieldID  int64
	ThresholdHigh         int
	ThresholdActive       int
	ThresholdContact      int
	YandexAPIKey          string
	YandexFolderID        string
	LLMTemperature        float64
	LLMMaxTokens          int
	SearchServiceURL      string
	CalculatorServiceURL  string
	NewsServiceURL        string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	SearchCleanupInterval time.Duration
	SearchSessionTTL      time.Duration
	SlackToken            string
	SlackChannelID        string
	PromptsPath           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string    { return c.HTTPAddr }
func (c *Config) GetSecretToken() string { return c.SecretToken }

// TelegramConfig implementation
func (c *Config) GetTelegramToken() string          { return c.TelegramToken }
func (c *Config) GetTelegramAPIEndpoint() string    { return c.TelegramAPIEndpoint }
func (c *Config) GetBotUsername() string            { return c.BotUsername }
func (c *Config) GetWebhookDomain() string          { return c.WebhookDomain }
func (c *Config) GetWebhookPrefix() string          { return c.WebhookPrefix }
func (c *Config) GetChannelUsername() string        { return c.ChannelUsername }
func (c *Config) GetOutboundTimeout() time.Duration { return c.OutboundTimeout }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string             { return c.CRMBaseURL }
func (c *Config) GetCRMToken() string               { return c.CRMToken }
func (c *Config) GetCRMMainPipelineID() int64       { return c.CRMMainPipelineID }
func (c *Config) GetCRMAppealPipelineID() int64     { return c.CRMAppealPipelineID }
func (c *Config) GetCRMStatusIDs() map[string]int64 { return c.CRMStatusIDs }
func (c *Config) GetCRMUsernameFieldID() int64      { return c.CRMUsernameFieldID }
func (c *Config) GetCRMLeadSourceFieldID() int64    { return c.CRMLeadSourceFieldID }
func (c *Config) IsCRMEnabled() bool                { return c.CRMBaseURL != "" }

// EngagementConfig implementation
func (c *Config) GetThresholdHigh() int    { return c.ThresholdHigh }
func (c *Config) GetThresholdActive() int  { return c.ThresholdActive }
func (c *Config) GetThresholdContact() int { return c.ThresholdContact }

// LLMConfig implementation
func (c *Config) GetYandexAPIKey() string    { return c.YandexAPIKey }
func (c *Config) GetYandexFolderID() string  { return c.YandexFolderID }
func (c *Config) GetLLMTemperature() float64 { return c.LLMTemperature }
func (c *Config) GetLLMMaxTokens() int       { return c.LLMMaxTokens }

// EstateConfig implementation
func (c *Config) GetSearchServiceURL() string     { return c.SearchServiceURL }
func (c *Config) GetCalculatorServiceURL() string { return c.CalculatorServiceURL }
func (c *Config) GetNewsServiceURL() string       { return c.NewsServiceURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                     { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool               { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string               { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                { return c.AsynqConcurrency }
func (c *Config) GetSearchCleanupInterval() time.Duration { return c.SearchCleanupInterval }
func (c *Config) GetSearchSessionTTL() time.Duration      { return c.SearchSessionTTL }

// AlertConfig implementation
func (c *Config) GetSlackToken() string     { return c.SlackToken }
func (c *Config) GetSlackChannelID() string { return c.SlackChannelID }
func (c *Config) IsAlertEnabled() bool {
	return c.SlackToken != "" && c.SlackChannelID != ""
}

// PromptsConfig implementation
func (c *Config) GetPromptsPath() string { return c.PromptsPath }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	statusIDs, err := parseStatusIDs(getEnv("CRM_STATUS_IDS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		ServiceName:           getEnv("SERVICE_NAME", "real-estate-tg-bot"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		MigrationsDir:         getEnv("MIGRATIONS_DIR", "migrations"),
		SecretToken:           getEnv("TELEGRAM_SECRET_TOKEN", DefaultSecretToken),
		TelegramToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIEndpoint:   getEnv("TELEGRAM_API_ENDPOINT", ""),
		BotUsername:           getEnv("TELEGRAM_BOT_USERNAME", ""),
		WebhookDomain:         getEnv("WEBHOOK_DOMAIN", ""),
		WebhookPrefix:         getEnv("WEBHOOK_PREFIX", ""),
		ChannelUsername:       getEnv("TELEGRAM_CHANNEL_USERNAME", ""),
		OutboundTimeout:       mustDuration(getEnv("OUTBOUND_TIMEOUT", "25s")),
		CRMBaseURL:            strings.TrimRight(getEnv("CRM_BASE_URL", ""), "/"),
		CRMToken:              getEnv("CRM_TOKEN", ""),
		CRMMainPipelineID:     mustInt64(getEnv("CRM_MAIN_PIPELINE_ID", "0")),
		CRMAppealPipelineID:   mustInt64(getEnv("CRM_APPEAL_PIPELINE_ID", "0")),
		CRMStatusIDs:          statusIDs,
		CRMUsernameFieldID:    mustInt64(getEnv("CRM_TG_USERNAME_FIELD_ID", "0")),
		CRMLeadSourceFieldID:  mustInt64(getEnv("CRM_LEAD_SOURCE_FIELD_ID", "0")),
		ThresholdHigh:         int(mustInt64(getEnv("THRESHOLD_HIGH", "10"))),
		ThresholdActive:       int(mustInt64(getEnv("THRESHOLD_ACTIVE", "25"))),
		ThresholdContact:      int(mustInt64(getEnv("THRESHOLD_CONTACT", "3"))),
		YandexAPIKey:          getEnv("YANDEX_GPT_API_KEY", ""),
		YandexFolderID:        getEnv("YANDEX_GPT_FOLDER_ID", ""),
		LLMTemperature:        mustFloat(getEnv("LLM_TEMPERATURE", "0.3")),
		LLMMaxTokens:          int(mustInt64(getEnv("LLM_MAX_TOKENS", "2000"))),
		SearchServiceURL:      strings.TrimRight(getEnv("SEARCH_SERVICE_URL", ""), "/"),
		CalculatorServiceURL:  strings.TrimRight(getEnv("CALCULATOR_SERVICE_URL", ""), "/"),
		NewsServiceURL:        strings.TrimRight(getEnv("NEWS_SERVICE_URL", ""), "/"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "alerts"),
		AsynqConcurrency:      int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "2"))),
		SearchCleanupInterval: mustDuration(getEnv("SEARCH_CLEANUP_INTERVAL", "1h")),
		SearchSessionTTL:      mustDuration(getEnv("SEARCH_SESSION_TTL", "72h")),
		SlackToken:            getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:        getEnv("SLACK_CHANNEL_ID", ""),
		PromptsPath:           getEnv("PROMPTS_PATH", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.OutboundTimeout <= 0 {
		return nil, fmt.Errorf("OUTBOUND_TIMEOUT must be a positive duration")
	}
	if cfg.ThresholdHigh <= 0 || cfg.ThresholdActive <= 0 {
		return nil, fmt.Errorf("THRESHOLD_HIGH and THRESHOLD_ACTIVE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

// parseStatusIDs reads "name=id" pairs, e.g. "chat_with_bot=101,high_engagement=102".
func parseStatusIDs(value string) (map[string]int64, error) {
	result := make(map[string]int64)
	for _, part := range splitCSV(value) {
		name, raw, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("CRM_STATUS_IDS: malformed entry %q", part)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CRM_STATUS_IDS: invalid id for %q: %w", name, err)
		}
		result[strings.TrimSpace(name)] = id
	}
	return result, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
