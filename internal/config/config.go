// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration from the
// environment and an optional YAML file. Environment variables win over
// file values so container deployments can override a mounted config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIVersion is the Content Safety REST api-version used when none is configured.
const DefaultAPIVersion = "2024-09-01"

// UpstreamConfig holds the Azure Content Safety connection settings.
type UpstreamConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Key        string        `yaml:"-"` // never read from file, env only
	APIVersion string        `yaml:"apiVersion"`
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rateLimit"` // requests per second against the upstream
	RateBurst  int           `yaml:"rateBurst"`
}

// LLMConfig holds the chat-completions adjudicator settings.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"-"`
}

// OpenAIConfig holds the Azure OpenAI resource used for groundedness reasoning.
type OpenAIConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
}

// RedisConfig holds the optional Redis decision-cache settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

// PipelineConfig tunes the moderation pipeline.
type PipelineConfig struct {
	Blocklist     string        `yaml:"blocklist"`     // blocklist fed by confirmed-harmful content
	SeedFile      string        `yaml:"seedFile"`      // optional declarative blocklist seed (YAML)
	FailOpen      bool          `yaml:"failOpen"`      // allow content when a stage errors (default: reject)
	CacheTTL      time.Duration `yaml:"cacheTTL"`      // decision cache TTL
	MaxTextChars  int           `yaml:"maxTextChars"`  // request size cap for text analysis
	MaxImageBytes int           `yaml:"maxImageBytes"` // request size cap for decoded image payloads
}

// TelemetryConfig controls the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Listen         string          `yaml:"listen"`
	APIToken       string          `yaml:"-"`
	DataDir        string          `yaml:"dataDir"`
	LogLevel       string          `yaml:"logLevel"`
	TrustedProxies string          `yaml:"trustedProxies"` // CSV of CIDRs
	RequestsPerMin int             `yaml:"requestsPerMin"` // per-IP API rate limit
	Upstream       UpstreamConfig  `yaml:"upstream"`
	LLM            LLMConfig       `yaml:"llm"`
	OpenAI         OpenAIConfig    `yaml:"openai"`
	Redis          RedisConfig     `yaml:"redis"`
	Pipeline       PipelineConfig  `yaml:"pipeline"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the baseline configuration before env and file overrides.
func Defaults() AppConfig {
	return AppConfig{
		Listen:         ":8080",
		DataDir:        "./data",
		LogLevel:       "info",
		RequestsPerMin: 120,
		Upstream: UpstreamConfig{
			APIVersion: DefaultAPIVersion,
			Timeout:    30 * time.Second,
			RateLimit:  10,
			RateBurst:  20,
		},
		Pipeline: PipelineConfig{
			Blocklist:     "ModerationBlocklist",
			CacheTTL:      10 * time.Minute,
			MaxTextChars:  10000,
			MaxImageBytes: 4 << 20,
		},
		Telemetry: TelemetryConfig{
			SamplingRate: 0.1,
			Environment:  "development",
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (empty means no file), then environment variables.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	mergeEnv(&cfg)
	return cfg, nil
}

func mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-provided path
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.Listen = ParseString("CONTENTSAFETY_LISTEN", cfg.Listen)
	cfg.APIToken = ParseString("CONTENTSAFETY_API_TOKEN", cfg.APIToken)
	cfg.DataDir = ParseString("CONTENTSAFETY_DATA", cfg.DataDir)
	cfg.LogLevel = ParseString("CONTENTSAFETY_LOG_LEVEL", cfg.LogLevel)
	cfg.TrustedProxies = ParseString("CONTENTSAFETY_TRUSTED_PROXIES", cfg.TrustedProxies)
	cfg.RequestsPerMin = ParseInt("CONTENTSAFETY_REQUESTS_PER_MIN", cfg.RequestsPerMin)

	// Upstream credentials use the canonical Azure variable names.
	cfg.Upstream.Endpoint = ParseString("AZURE_CONTENTSAFETY_ENDPOINT", cfg.Upstream.Endpoint)
	cfg.Upstream.Key = ParseString("AZURE_CONTENTSAFETY_KEY", cfg.Upstream.Key)
	cfg.Upstream.APIVersion = ParseString("AZURE_CONTENTSAFETY_API_VERSION", cfg.Upstream.APIVersion)
	cfg.Upstream.Timeout = ParseDuration("CONTENTSAFETY_UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.RateLimit = ParseFloat("CONTENTSAFETY_UPSTREAM_RPS", cfg.Upstream.RateLimit)
	cfg.Upstream.RateBurst = ParseInt("CONTENTSAFETY_UPSTREAM_BURST", cfg.Upstream.RateBurst)

	cfg.LLM.Endpoint = ParseString("CONTENTSAFETY_LLM_ENDPOINT", cfg.LLM.Endpoint)
	cfg.LLM.Key = ParseString("CONTENTSAFETY_LLM_KEY", cfg.LLM.Key)

	cfg.OpenAI.Endpoint = ParseString("AZURE_OPENAI_ENDPOINT", cfg.OpenAI.Endpoint)
	cfg.OpenAI.Deployment = ParseString("AZURE_OPENAI_DEPLOYMENT_ID", cfg.OpenAI.Deployment)

	cfg.Redis.Addr = ParseString("CONTENTSAFETY_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("CONTENTSAFETY_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("CONTENTSAFETY_REDIS_DB", cfg.Redis.DB)

	cfg.Pipeline.Blocklist = ParseString("CONTENTSAFETY_BLOCKLIST", cfg.Pipeline.Blocklist)
	cfg.Pipeline.SeedFile = ParseString("CONTENTSAFETY_BLOCKLIST_SEED", cfg.Pipeline.SeedFile)
	cfg.Pipeline.FailOpen = ParseBool("CONTENTSAFETY_FAIL_OPEN", cfg.Pipeline.FailOpen)
	cfg.Pipeline.CacheTTL = ParseDuration("CONTENTSAFETY_CACHE_TTL", cfg.Pipeline.CacheTTL)
	cfg.Pipeline.MaxTextChars = ParseInt("CONTENTSAFETY_MAX_TEXT_CHARS", cfg.Pipeline.MaxTextChars)
	cfg.Pipeline.MaxImageBytes = ParseInt("CONTENTSAFETY_MAX_IMAGE_BYTES", cfg.Pipeline.MaxImageBytes)

	cfg.Telemetry.Enabled = ParseBool("CONTENTSAFETY_TRACING", cfg.Telemetry.Enabled)
	cfg.Telemetry.OTLPEndpoint = ParseString("CONTENTSAFETY_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("CONTENTSAFETY_TRACE_SAMPLING", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString("CONTENTSAFETY_ENVIRONMENT", cfg.Telemetry.Environment)
}
