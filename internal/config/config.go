package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "PROSPECT_SCANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
	openAIKeyEnv      = "OPENAI_API_KEY"
	deepSeekKeyEnv    = "DEEPSEEK_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	redisAddrEnv      = "REDIS_ADDR"
	serverAddrEnv     = "SERVER_ADDR"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// LLM provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Crawler       CrawlerConfig      `yaml:"crawler"`
	Discovery     DiscoveryConfig    `yaml:"discovery"`
	LLM           LLMConfig          `yaml:"llm"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Cache         CacheConfig        `yaml:"cache"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	// Seeds are always crawled by campaigns in addition to discovered URLs.
	Seeds []string `yaml:"seeds"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	AutoMigrate  bool   `yaml:"autoMigrate"`
}

// CrawlerConfig bounds a single-site crawl.
type CrawlerConfig struct {
	MaxPages  int           `yaml:"maxPages"`
	Delay     time.Duration `yaml:"delay"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
	// Workers is the number of seeds crawled concurrently; each site is still crawled sequentially.
	Workers int `yaml:"workers"`
}

// DiscoveryConfig drives the seed-discovery prompt.
type DiscoveryConfig struct {
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"maxTokens"`
	SystemPrompt string  `yaml:"systemPrompt"`
}

// LLMConfig defines how to contact the language model provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"apiKey"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        uint64        `yaml:"maxRetries"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
}

// ScoringConfig tunes the ensemble and its LLM rating call.
type ScoringConfig struct {
	RatingModel       string  `yaml:"ratingModel"`
	ModelPath         string  `yaml:"modelPath"`
	PositiveThreshold float64 `yaml:"positiveThreshold"`
	Seed              int64   `yaml:"seed"`
	Trees             int     `yaml:"trees"`
	BoostingRounds    int     `yaml:"boostingRounds"`
}

// CacheConfig points at the optional Redis rating cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redisAddr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	TTL       time.Duration `yaml:"ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SchedulerConfig defines when campaigns should run.
type SchedulerConfig struct {
	CronExpression      string         `yaml:"cronExpression"`
	Timezone            string         `yaml:"timezone"`
	CampaignDescription string         `yaml:"campaignDescription"`
	MaxOrganizations    int            `yaml:"maxOrganizations"`
	location            *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound digest channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) over the defaults and applies environment overrides.
func Load() Config {
	cfg := base()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.decodeFile(path); err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
			cfg = base()
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg
}

// LoadFile is Load with an explicit YAML path, used by the --config flag.
func LoadFile(path string) Config {
	if path == "" {
		return Load()
	}
	if err := os.Setenv(configPathEnv, path); err != nil {
		log.Printf("config: cannot set %s: %v", configPathEnv, err)
	}
	return Load()
}

func (c *Config) decodeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, c)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(apiKeyEnvFor(c.LLM.Provider))
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.RedisAddr = v
	}

	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func apiKeyEnvFor(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return deepSeekKeyEnv
	case ProviderAnthropic:
		return anthropicKeyEnv
	default:
		return openAIKeyEnv
	}
}

// normalize fills zero values left by partial YAML files and binds the timezone.
func (c *Config) normalize() {
	def := base()

	if c.Crawler.MaxPages <= 0 {
		c.Crawler.MaxPages = def.Crawler.MaxPages
	}
	if c.Crawler.Delay < 0 {
		c.Crawler.Delay = 0
	}
	if c.Crawler.Timeout <= 0 {
		c.Crawler.Timeout = def.Crawler.Timeout
	}
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = def.Crawler.UserAgent
	}
	if c.Crawler.Workers <= 0 {
		c.Crawler.Workers = 1
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = defaultEndpoint(c.LLM.Provider)
	}
	c.fillModels()
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}

	if c.Scoring.PositiveThreshold <= 0 || c.Scoring.PositiveThreshold >= 1 {
		c.Scoring.PositiveThreshold = def.Scoring.PositiveThreshold
	}
	if c.Scoring.Trees <= 0 {
		c.Scoring.Trees = def.Scoring.Trees
	}
	if c.Scoring.BoostingRounds <= 0 {
		c.Scoring.BoostingRounds = def.Scoring.BoostingRounds
	}

	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultEndpoint(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "https://api.deepseek.com/v1/chat/completions"
	case ProviderAnthropic:
		return ""
	default:
		return "https://api.openai.com/v1/chat/completions"
	}
}

// providerModel is the default client model of each provider.
func providerModel(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "deepseek-chat"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	default:
		return "gpt-4o-mini"
	}
}

// fillModels sets unset model names for the selected provider. OpenAI keeps separate models
// for discovery and ratings; other providers reuse the client model.
func (c *Config) fillModels() {
	discovery, rating := "gpt-4", "gpt-3.5-turbo"
	if c.LLM.Model == "" {
		c.LLM.Model = providerModel(c.LLM.Provider)
	}
	if c.LLM.Provider != ProviderOpenAI {
		discovery, rating = c.LLM.Model, c.LLM.Model
	}
	if c.Discovery.Model == "" {
		c.Discovery.Model = discovery
	}
	if c.Scoring.RatingModel == "" {
		c.Scoring.RatingModel = rating
	}
}

// Default returns the built-in configuration for the OpenAI provider.
func Default() Config {
	cfg := base()
	cfg.fillModels()
	return cfg
}

// base is the built-in configuration with model names left for fillModels.
func base() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{DSN: "", MaxOpenConns: 10, AutoMigrate: true},
		Crawler: CrawlerConfig{
			MaxPages:  15,
			Delay:     2 * time.Second,
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			Workers:   1,
		},
		Discovery: DiscoveryConfig{
			Temperature: 0.3,
			MaxTokens:   300,
			SystemPrompt: "You are an expert at finding organizations that would be interested in environmental " +
				"sustainability and beach cleanup initiatives. Return only valid URLs with proper protocols.",
		},
		LLM: LLMConfig{
			Provider:          ProviderOpenAI,
			Timeout:           30 * time.Second,
			MaxRetries:        2,
			RequestsPerMinute: 0,
		},
		Scoring: ScoringConfig{
			ModelPath:         "",
			PositiveThreshold: 0.6,
			Seed:              42,
			Trees:             100,
			BoostingRounds:    100,
		},
		Cache:  CacheConfig{TTL: 7 * 24 * time.Hour},
		Server: ServerConfig{Addr: ":5000"},
		Scheduler: SchedulerConfig{
			CronExpression:      "0 6 * * 1",
			Timezone:            defaultTimezone,
			CampaignDescription: "Corporate partners and foundations supporting ocean conservation and AI-powered beach cleanup.",
			MaxOrganizations:    5,
			location:            tz,
		},
	}
}
