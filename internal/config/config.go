package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "ORCA_RESEARCHER_CONFIG"
	dataDirEnv        = "ORCA_DATA_DIR"
	logLevelEnv       = "LOG_LEVEL"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	llmEndpointEnv    = "LLM_ENDPOINT"
	googleAPIKeyEnv   = "GOOGLE_API_KEY"
	googleCSEIDEnv    = "GOOGLE_CSE_ID"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Supported archive drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig            `yaml:"logging"`
	Storage       StorageConfig            `yaml:"storage"`
	Database      DatabaseConfig           `yaml:"database"`
	LLM           LLMConfig                `yaml:"llm"`
	Search        SearchConfig             `yaml:"search"`
	RateLimits    map[string]time.Duration `yaml:"rateLimits"`
	Research      ResearchConfig           `yaml:"research"`
	Notifications NotificationConfig       `yaml:"notifications"`
	Metrics       MetricsConfig            `yaml:"metrics"`
}

// LoggingConfig selects the slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig lays out the on-disk data directories.
type StorageConfig struct {
	DataDir    string `yaml:"dataDir"`
	ArticleDir string `yaml:"articleDir"`
	SessionDir string `yaml:"sessionDir"`
	OutputDir  string `yaml:"outputDir"`
}

// DatabaseConfig describes the session archive connection. An empty DSN
// disables the archive.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LLMConfig defines how to contact the chat-completions API.
type LLMConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"apiKey"`
	SystemPrompt   string        `yaml:"systemPrompt"`
	MaxConcurrency int           `yaml:"maxConcurrency"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	CacheSize      int           `yaml:"cacheSize"`
	Timeout        time.Duration `yaml:"timeout"`
}

// SearchConfig holds the web search providers.
type SearchConfig struct {
	GoogleAPIKey       string `yaml:"googleApiKey"`
	GoogleCSEID        string `yaml:"googleCseId"`
	GoogleEndpoint     string `yaml:"googleEndpoint"`
	DuckDuckGoEndpoint string `yaml:"duckduckgoEndpoint"`
	BraveEndpoint      string `yaml:"braveEndpoint"`
	NewsEndpoint       string `yaml:"newsEndpoint"`
	MaxRetries         int    `yaml:"maxRetries"`
	BypassThreshold    int    `yaml:"bypassThreshold"`
}

// ResearchConfig tunes the pipeline itself.
type ResearchConfig struct {
	CitationStyle string        `yaml:"citationStyle"`
	MaxSubtopics  int           `yaml:"maxSubtopics"`
	SubtopicBatch int           `yaml:"subtopicBatch"`
	ArticleMaxAge int           `yaml:"articleMaxAgeDays"`
	ArxivEndpoint string        `yaml:"arxivEndpoint"`
	CrossrefURL   string        `yaml:"crossrefEndpoint"`
	WikipediaURL  string        `yaml:"wikipediaEndpoint"`
	MailTo        string        `yaml:"mailTo"`
	FetchTimeout  time.Duration `yaml:"fetchTimeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads an optional .env file and YAML configuration (if present) and
// applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindStorage()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env string
		dst *string
	}{
		{dataDirEnv, &c.Storage.DataDir},
		{logLevelEnv, &c.Logging.Level},
		{databaseDSNEnv, &c.Database.DSN},
		{databaseDriverEnv, &c.Database.Driver},
		{llmAPIKeyEnv, &c.LLM.APIKey},
		{llmModelEnv, &c.LLM.Model},
		{llmEndpointEnv, &c.LLM.Endpoint},
		{googleAPIKeyEnv, &c.Search.GoogleAPIKey},
		{googleCSEIDEnv, &c.Search.GoogleCSEID},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// bindStorage derives unset directories from the data dir.
func (c *Config) bindStorage() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.ArticleDir == "" {
		c.Storage.ArticleDir = filepath.Join(c.Storage.DataDir, "articles")
	}
	if c.Storage.SessionDir == "" {
		c.Storage.SessionDir = filepath.Join(c.Storage.DataDir, "sessions")
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = filepath.Join(c.Storage.DataDir, "papers")
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	mergeString(&base.Storage.DataDir, override.Storage.DataDir)
	mergeString(&base.Storage.ArticleDir, override.Storage.ArticleDir)
	mergeString(&base.Storage.SessionDir, override.Storage.SessionDir)
	mergeString(&base.Storage.OutputDir, override.Storage.OutputDir)

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	mergeString(&base.LLM.Endpoint, override.LLM.Endpoint)
	mergeString(&base.LLM.Model, override.LLM.Model)
	mergeString(&base.LLM.APIKey, override.LLM.APIKey)
	mergeString(&base.LLM.SystemPrompt, override.LLM.SystemPrompt)
	mergeInt(&base.LLM.MaxConcurrency, override.LLM.MaxConcurrency)
	mergeInt(&base.LLM.CacheSize, override.LLM.CacheSize)
	mergeDuration(&base.LLM.CacheTTL, override.LLM.CacheTTL)
	mergeDuration(&base.LLM.Timeout, override.LLM.Timeout)

	mergeString(&base.Search.GoogleAPIKey, override.Search.GoogleAPIKey)
	mergeString(&base.Search.GoogleCSEID, override.Search.GoogleCSEID)
	mergeString(&base.Search.GoogleEndpoint, override.Search.GoogleEndpoint)
	mergeString(&base.Search.DuckDuckGoEndpoint, override.Search.DuckDuckGoEndpoint)
	mergeString(&base.Search.BraveEndpoint, override.Search.BraveEndpoint)
	mergeString(&base.Search.NewsEndpoint, override.Search.NewsEndpoint)
	mergeInt(&base.Search.MaxRetries, override.Search.MaxRetries)
	mergeInt(&base.Search.BypassThreshold, override.Search.BypassThreshold)

	if len(override.RateLimits) > 0 {
		if base.RateLimits == nil {
			base.RateLimits = map[string]time.Duration{}
		}
		for name, d := range override.RateLimits {
			base.RateLimits[name] = d
		}
	}

	mergeString(&base.Research.CitationStyle, override.Research.CitationStyle)
	mergeInt(&base.Research.MaxSubtopics, override.Research.MaxSubtopics)
	mergeInt(&base.Research.SubtopicBatch, override.Research.SubtopicBatch)
	mergeInt(&base.Research.ArticleMaxAge, override.Research.ArticleMaxAge)
	mergeString(&base.Research.ArxivEndpoint, override.Research.ArxivEndpoint)
	mergeString(&base.Research.CrossrefURL, override.Research.CrossrefURL)
	mergeString(&base.Research.WikipediaURL, override.Research.WikipediaURL)
	mergeString(&base.Research.MailTo, override.Research.MailTo)
	mergeDuration(&base.Research.FetchTimeout, override.Research.FetchTimeout)

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)

	mergeString(&base.Metrics.Addr, override.Metrics.Addr)

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Storage:  StorageConfig{DataDir: "data"},
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: ""},
		LLM: LLMConfig{
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			Model:          "gpt-4o-mini",
			SystemPrompt:   "You are a careful academic research assistant.",
			MaxConcurrency: 5,
			CacheTTL:       time.Hour,
			CacheSize:      1024,
			Timeout:        60 * time.Second,
		},
		Search: SearchConfig{
			GoogleEndpoint:     "https://www.googleapis.com/customsearch/v1",
			DuckDuckGoEndpoint: "https://lite.duckduckgo.com/lite/",
			BraveEndpoint:      "https://search.brave.com/search",
			NewsEndpoint:       "https://news.google.com/rss/search",
			MaxRetries:         2,
			BypassThreshold:    3,
		},
		RateLimits: map[string]time.Duration{},
		Research: ResearchConfig{
			CitationStyle: "apa",
			MaxSubtopics:  5,
			SubtopicBatch: 2,
			ArticleMaxAge: 30,
			ArxivEndpoint: "https://export.arxiv.org/api/query",
			CrossrefURL:   "https://api.crossref.org/works",
			WikipediaURL:  "https://en.wikipedia.org/api/rest_v1/page/summary/",
			FetchTimeout:  20 * time.Second,
		},
		Metrics: MetricsConfig{Addr: ""},
	}
}
