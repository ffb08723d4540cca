package model

import "time"

// Config is the complete qidlink configuration
type Config struct {
	Resolve      ResolveConfig     `yaml:"resolve" mapstructure:"resolve"`
	Wikidata     WikidataConfig    `yaml:"wikidata" mapstructure:"wikidata"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// ResolveConfig holds the acceptance rules
type ResolveConfig struct {
	Threshold    float64 `yaml:"threshold" mapstructure:"threshold"`         // minimum accepted confidence (inclusive)
	FallbackSize int     `yaml:"fallback_size" mapstructure:"fallback_size"` // diagnostic candidates kept when unresolved
}

// WikidataConfig describes the knowledge-base endpoints
type WikidataConfig struct {
	SearchURL   string `yaml:"search_url" mapstructure:"search_url"`
	EntityURL   string `yaml:"entity_url" mapstructure:"entity_url"` // %s is replaced by the entity id
	Language    string `yaml:"language" mapstructure:"language"`
	SearchLimit int    `yaml:"search_limit" mapstructure:"search_limit"`
	SitelinkKey string `yaml:"sitelink_key" mapstructure:"sitelink_key"` // canonical page site, e.g. enwiki
}

// HTTPConfig holds transport settings shared by both endpoints
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff       time.Duration `yaml:"backoff" mapstructure:"backoff"` // multiplied by the attempt number
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// RateLimitConfig bounds request rate per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls how rows are scheduled
type ConcurrencyConfig struct {
	Workers int           `yaml:"workers" mapstructure:"workers"`
	Pacing  time.Duration `yaml:"pacing" mapstructure:"pacing"` // minimum spacing between resolved rows
}

// CacheConfig controls the per-run entity detail memo
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls artifacts and console output
type OutputConfig struct {
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
	JSONPath    string `yaml:"json_path" mapstructure:"json_path"`
	MetricsFile string `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
	LogJSON     bool   `yaml:"log_json" mapstructure:"log_json"`
}

// LLMConfig configures the optional review hint for unresolved rows.
// Review hints never change an identifier or a confidence.
type LLMConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Provider  string        `yaml:"provider" mapstructure:"provider"` // openai or ollama
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Resolve: ResolveConfig{
			Threshold:    0.80,
			FallbackSize: 3,
		},
		Wikidata: WikidataConfig{
			SearchURL:   "https://www.wikidata.org/w/api.php",
			EntityURL:   "https://www.wikidata.org/wiki/Special:EntityData/%s.json",
			Language:    "en",
			SearchLimit: 10,
			SitelinkKey: "enwiki",
		},
		HTTP: HTTPConfig{
			Timeout:     20 * time.Second,
			UserAgent:   "qidlink/0.1 (+https://github.com/ppiankov/qidlink)",
			MaxAttempts: 3,
			Backoff:     500 * time.Millisecond,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 1,
			Pacing:  200 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Output: OutputConfig{
			CSVPath:  "taxonomy_wikidata.csv",
			JSONPath: "taxonomy_wikidata.json",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   30 * time.Second,
			MaxTokens: 200,
		},
	}
}
