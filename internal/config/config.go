package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/medlens/internal/domain"
)

// Database drivers.
const (
	DriverRueidis = "rueidis"
	DriverGoRedis = "goredis"
)

// Storage backends for diagnosis records.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Classifier providers.
const (
	ProviderNone        = "none"
	ProviderModelServer = "modelserver"
	ProviderOpenAI      = "openai"
)

// Config holds the medlens API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings. Redis backs the diagnosis
// store (storage.backend=redis) and the classifier cache.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // rueidis, goredis (default: rueidis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	PoolSize         int      `yaml:"pool_size"` // goredis only
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig selects where diagnosis records live.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // redis, postgres (default: redis)
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
}

// PostgresConfig holds Postgres settings, used when storage.backend=postgres.
type PostgresConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// KnowledgeConfig locates the knowledge-base tables.
type KnowledgeConfig struct {
	Dir       string   `yaml:"dir"`
	Format    string   `yaml:"format"` // csv, parquet (default: csv)
	AllowList []string `yaml:"allow_list"`
}

// ClassifierConfig holds image classifier settings.
type ClassifierConfig struct {
	Provider    string            `yaml:"provider"` // none, modelserver, openai (default: none)
	TimeoutSec  int               `yaml:"timeout_sec"`
	Labels      map[string]string `yaml:"labels"` // classifier label -> knowledge-base disease
	ModelServer ModelServerConfig `yaml:"modelserver"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Cache       CacheConfig       `yaml:"cache"`
}

// ModelServerConfig points at a model-serving sidecar.
type ModelServerConfig struct {
	PredictURL string `yaml:"predict_url"`
	HealthURL  string `yaml:"health_url"`
}

// OpenAIConfig holds OpenAI-compatible vision model settings.
type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// CacheConfig holds classifier result cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first so its
// values feed ${VAR} expansion. Variables already set in the environment win.
func Load(env string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates one YAML config file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRueidis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendRedis
	}
	if c.Storage.DefaultPageSize <= 0 {
		c.Storage.DefaultPageSize = 20
	}
	if c.Storage.MaxPageSize <= 0 {
		c.Storage.MaxPageSize = 100
	}
	if c.Postgres.MaxOpenConns <= 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns <= 0 {
		c.Postgres.MaxIdleConns = 5
	}
	if c.Postgres.ConnMaxLifetimeSec <= 0 {
		c.Postgres.ConnMaxLifetimeSec = 300
	}
	if c.Knowledge.Dir == "" {
		c.Knowledge.Dir = "data"
	}
	if c.Knowledge.Format == "" {
		c.Knowledge.Format = "csv"
	}
	defaults := domain.DefaultEngineConfig()
	if len(c.Knowledge.AllowList) == 0 {
		c.Knowledge.AllowList = defaults.AllowList
	}
	if c.Classifier.Provider == "" {
		c.Classifier.Provider = ProviderNone
	}
	if c.Classifier.TimeoutSec <= 0 {
		c.Classifier.TimeoutSec = 30
	}
	if c.Classifier.Labels == nil {
		c.Classifier.Labels = defaults.ImageLabels
	}
	if c.Classifier.OpenAI.MaxTokens <= 0 {
		c.Classifier.OpenAI.MaxTokens = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Storage.Backend {
	case BackendRedis:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when storage.backend is postgres")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendRedis, BackendPostgres, c.Storage.Backend)
	}

	if c.NeedsRedis() {
		switch c.Database.Driver {
		case DriverRueidis, DriverGoRedis:
		default:
			return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRueidis, DriverGoRedis, c.Database.Driver)
		}
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required")
		}
	}

	switch c.Knowledge.Format {
	case "csv", "parquet":
	default:
		return fmt.Errorf("knowledge.format must be \"csv\" or \"parquet\", got %q", c.Knowledge.Format)
	}

	return c.validateClassifier()
}

func (c *Config) validateClassifier() error {
	cc := c.Classifier
	switch cc.Provider {
	case ProviderNone:
	case ProviderModelServer:
		if cc.ModelServer.PredictURL == "" {
			return errors.New("classifier.modelserver.predict_url is required")
		}
	case ProviderOpenAI:
		if cc.OpenAI.APIKey == "" || cc.OpenAI.Model == "" {
			return errors.New("classifier.openai.api_key and classifier.openai.model are required")
		}
	default:
		return fmt.Errorf("classifier.provider must be none, modelserver or openai, got %q", cc.Provider)
	}

	if cc.Cache.TTLSec < 0 {
		return fmt.Errorf("classifier.cache.ttl_sec must be >= 0, got %d", cc.Cache.TTLSec)
	}

	for label, disease := range cc.Labels {
		if !slices.Contains(c.Knowledge.AllowList, strings.TrimSpace(disease)) {
			return fmt.Errorf("classifier.labels[%q] maps to %q, which is not on knowledge.allow_list", label, disease)
		}
	}
	return nil
}

// NeedsRedis reports whether any component is backed by Redis.
func (c *Config) NeedsRedis() bool {
	return c.Storage.Backend == BackendRedis ||
		(c.Classifier.Provider != ProviderNone && c.Classifier.Cache.Enabled)
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
