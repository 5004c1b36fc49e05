package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

type Config struct {
	Sources  []domain.SourceDescriptor
	Scraper  ScraperConfig
	Retry    RetryConfig
	Timeouts TimeoutConfig
	Pipeline PipelineConfig
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
	Sheets   SheetsConfig
	Output   OutputConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	RequestTimeout    time.Duration
	RequestInterval   time.Duration
	ItemConcurrency   int
	SourceConcurrency int
	UserAgent         string
}

type RetrySettings struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type RetryConfig struct {
	Fetch  RetrySettings
	Stage  RetrySettings
	Source RetrySettings
	Batch  RetrySettings
}

type TimeoutConfig struct {
	Run    time.Duration
	Source time.Duration
	Team   time.Duration
	Stage  time.Duration
	Batch  time.Duration
}

type PipelineConfig struct {
	TeamConcurrency int
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
}

type OutputConfig struct {
	Dir string
}

type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sources, err := loadSources(getEnv("SOURCES_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Sources: sources,
		Scraper: ScraperConfig{
			RequestTimeout:    getEnvDuration("SCRAPE_REQUEST_TIMEOUT", constants.TimeoutDefaults.Request),
			RequestInterval:   getEnvDuration("SCRAPE_REQUEST_INTERVAL", constants.ConcurrencyDefaults.RequestInterval),
			ItemConcurrency:   getEnvInt("SCRAPE_ITEM_CONCURRENCY", constants.ConcurrencyDefaults.ItemsPerSource),
			SourceConcurrency: getEnvInt("SCRAPE_SOURCE_CONCURRENCY", constants.ConcurrencyDefaults.Sources),
			UserAgent:         getEnv("SCRAPE_USER_AGENT", constants.ScraperConfig.UserAgent),
		},
		Retry: RetryConfig{
			Fetch: RetrySettings{
				MaxAttempts:     getEnvInt("FETCH_RETRY_ATTEMPTS", constants.RetryDefaults.FetchAttempts),
				InitialInterval: getEnvDuration("FETCH_RETRY_INITIAL", constants.RetryDefaults.FetchInitial),
				MaxInterval:     getEnvDuration("FETCH_RETRY_MAX", constants.RetryDefaults.FetchMaxInterval),
			},
			Stage: RetrySettings{
				MaxAttempts:     getEnvInt("STAGE_RETRY_ATTEMPTS", constants.RetryDefaults.StageAttempts),
				InitialInterval: getEnvDuration("STAGE_RETRY_INITIAL", constants.RetryDefaults.StageInitial),
				MaxInterval:     getEnvDuration("STAGE_RETRY_MAX", constants.RetryDefaults.StageMaxInterval),
			},
			Source: RetrySettings{
				MaxAttempts:     getEnvInt("SOURCE_RETRY_ATTEMPTS", constants.RetryDefaults.SourceAttempts),
				InitialInterval: getEnvDuration("SOURCE_RETRY_INITIAL", constants.RetryDefaults.SourceInitial),
				MaxInterval:     getEnvDuration("SOURCE_RETRY_MAX", constants.RetryDefaults.SourceMaxInterval),
			},
			Batch: RetrySettings{
				MaxAttempts:     getEnvInt("BATCH_RETRY_ATTEMPTS", constants.RetryDefaults.BatchAttempts),
				InitialInterval: getEnvDuration("BATCH_RETRY_INITIAL", constants.RetryDefaults.StageInitial),
				MaxInterval:     getEnvDuration("BATCH_RETRY_MAX", constants.RetryDefaults.StageMaxInterval),
			},
		},
		Timeouts: TimeoutConfig{
			Run:    getEnvDuration("RUN_TIMEOUT", constants.TimeoutDefaults.Run),
			Source: getEnvDuration("SOURCE_TIMEOUT", constants.TimeoutDefaults.Source),
			Team:   getEnvDuration("TEAM_TIMEOUT", constants.TimeoutDefaults.Team),
			Stage:  getEnvDuration("STAGE_TIMEOUT", constants.TimeoutDefaults.Stage),
			Batch:  getEnvDuration("BATCH_TIMEOUT", constants.TimeoutDefaults.Batch),
		},
		Pipeline: PipelineConfig{
			TeamConcurrency: getEnvInt("TEAM_CONCURRENCY", constants.ConcurrencyDefaults.Teams),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", constants.AnalysisConfig.DefaultGeminiModel),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", constants.AnalysisConfig.DefaultOpenAIModel),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("GOOGLE_SHEET_ID", ""),
			CredentialsFile: getEnv("GOOGLE_SHEETS_CREDENTIALS_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", "data"),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvBool("POSTGRES_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "roster"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "roster"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("ANALYSIS_CACHE_TTL", constants.AnalysisConfig.CacheTTL),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: getEnv("METRICS_PUSHGATEWAY_URL", ""),
			Job:            getEnv("METRICS_JOB", "roster_aggregator"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks settings every entry point needs.
func (c *Config) Validate() error {
	if c.Scraper.ItemConcurrency <= 0 {
		return fatal("SCRAPE_ITEM_CONCURRENCY must be positive")
	}
	if c.Scraper.SourceConcurrency <= 0 {
		return fatal("SCRAPE_SOURCE_CONCURRENCY must be positive")
	}
	if c.Pipeline.TeamConcurrency <= 0 {
		return fatal("TEAM_CONCURRENCY must be positive")
	}
	for name, r := range map[string]RetrySettings{
		"FETCH": c.Retry.Fetch, "STAGE": c.Retry.Stage, "SOURCE": c.Retry.Source, "BATCH": c.Retry.Batch,
	} {
		if r.MaxAttempts <= 0 {
			return fatal(name + "_RETRY_ATTEMPTS must be positive")
		}
	}
	if c.Timeouts.Run <= 0 {
		return fatal("RUN_TIMEOUT must be positive")
	}
	return nil
}

// ValidateAggregation checks the settings the full run needs on top of Validate:
// analysis and spreadsheet credentials.
func (c *Config) ValidateAggregation() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Gemini.APIKey == "" && c.OpenAI.APIKey == "" {
		return fatal("GEMINI_API_KEY or OPENAI_API_KEY is required")
	}
	if c.Sheets.SpreadsheetID == "" {
		return fatal("GOOGLE_SHEET_ID is required")
	}
	if c.Sheets.CredentialsFile == "" {
		return fatal("GOOGLE_SHEETS_CREDENTIALS_FILE is required")
	}
	if c.Output.Dir == "" {
		return fatal("OUTPUT_DIR is required")
	}
	return nil
}

// FindSource looks a configured source up by name or division tag.
func (c *Config) FindSource(name, division string) (domain.SourceDescriptor, error) {
	if name != "" {
		for _, src := range c.Sources {
			if strings.EqualFold(src.Name, name) {
				return src, nil
			}
		}
		return domain.SourceDescriptor{}, errors.NewConfigError("unknown source: "+name, "source", errors.KindFatal)
	}

	div, err := domain.ParseDivision(division)
	if err != nil {
		return domain.SourceDescriptor{}, errors.NewConfigError("unknown division: "+division, "division", errors.KindFatal)
	}
	for _, src := range c.Sources {
		if src.Division == div {
			return src, nil
		}
	}
	return domain.SourceDescriptor{}, errors.NewConfigError("no source configured for division "+string(div), "division", errors.KindFatal)
}

func fatal(message string) error {
	return errors.NewConfigError(message, "", errors.KindFatal)
}

type sourceFileEntry struct {
	Name     string `json:"name"`
	Division string `json:"division"`
	BaseURL  string `json:"base_url"`
}

func loadSources(path string) ([]domain.SourceDescriptor, error) {
	if path == "" {
		return domain.DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("failed to read sources file", "SOURCES_FILE", errors.KindFatal).WithCause(err)
	}
	return parseSources(data)
}

func parseSources(data []byte) ([]domain.SourceDescriptor, error) {
	var entries []sourceFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.NewConfigError("failed to parse sources file", "SOURCES_FILE", errors.KindFatal).WithCause(err)
	}

	sources := make([]domain.SourceDescriptor, 0, len(entries))
	for _, entry := range entries {
		// Unknown divisions are kept so the run can skip that source and continue.
		division, err := domain.ParseDivision(entry.Division)
		if err != nil {
			division = domain.Division(strings.ToUpper(strings.TrimSpace(entry.Division)))
		}
		sources = append(sources, domain.SourceDescriptor{
			Name:     strings.TrimSpace(entry.Name),
			Division: division,
			BaseURL:  strings.TrimSpace(entry.BaseURL),
		})
	}
	return sources, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
