package constants

import "time"

// RetryDefaults holds the per-layer retry policies. Each layer has its own budget.
var RetryDefaults = struct {
	FetchAttempts       int
	FetchInitial        time.Duration
	FetchMaxInterval    time.Duration
	StageAttempts       int
	StageInitial        time.Duration
	StageMaxInterval    time.Duration
	SourceAttempts      int
	SourceInitial       time.Duration
	SourceMaxInterval   time.Duration
	BatchAttempts       int
	Multiplier          float64
	RandomizationFactor float64
}{
	FetchAttempts:       2,
	FetchInitial:        500 * time.Millisecond,
	FetchMaxInterval:    5 * time.Second,
	StageAttempts:       3,                // analyze / persist
	StageInitial:        1 * time.Second,  // 1s → 5s capped
	StageMaxInterval:    5 * time.Second,
	SourceAttempts:      3,
	SourceInitial:       1 * time.Second,  // doubling
	SourceMaxInterval:   10 * time.Minute,
	BatchAttempts:       3,
	Multiplier:          2.0,
	RandomizationFactor: 0.1,
}

var TimeoutDefaults = struct {
	Run        time.Duration
	Source     time.Duration
	Team       time.Duration
	Stage      time.Duration
	Batch      time.Duration
	Request    time.Duration
	Startup    time.Duration
	MetricPush time.Duration
}{
	Run:        2 * time.Hour,
	Source:     30 * time.Minute,
	Team:       10 * time.Minute,
	Stage:      5 * time.Minute,
	Batch:      5 * time.Minute,
	Request:    15 * time.Second,
	Startup:    30 * time.Second,
	MetricPush: 10 * time.Second,
}

var ConcurrencyDefaults = struct {
	Sources         int
	ItemsPerSource  int
	Teams           int
	RequestInterval time.Duration
}{
	Sources:         3,
	ItemsPerSource:  4,
	Teams:           4,
	RequestInterval: 250 * time.Millisecond,
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
}{
	FailureThreshold:    5,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    5 * time.Minute,
	HealthCheckInterval: 2 * time.Minute,
}

var ScraperConfig = struct {
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
}{
	UserAgent:      "Mozilla/5.0 (compatible; RosterAggregator/1.0)",
	AcceptLanguage: "en-US,en;q=0.8,fr-CA;q=0.6",
	MaxBodyBytes:   8 << 20,
}

var AnalysisConfig = struct {
	DefaultGeminiModel string
	DefaultOpenAIModel string
	Temperature        float32
	MaxOutputTokens    int
	CacheTTL           time.Duration
}{
	DefaultGeminiModel: "gemini-2.5-flash",
	DefaultOpenAIModel: "gpt-4.1",
	Temperature:        0.7,
	MaxOutputTokens:    1000,
	CacheTTL:           24 * time.Hour,
}

var OutputConfig = struct {
	FilePrefix      string
	TimestampLayout string
}{
	FilePrefix:      "volleyball_teams_",
	TimestampLayout: "20060102_150405",
}
