package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the suggest API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Index     IndexConfig     `yaml:"index"`
	Explain   ExplainConfig   `yaml:"explain"`
	Query     QueryConfig     `yaml:"query"`
	Recommend RecommendConfig `yaml:"recommend"`
	Audit     AuditConfig     `yaml:"audit"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
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

// Database drivers. Both speak RESP through rueidis.
const (
	DriverNone   = "none"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// DatabaseConfig holds the optional Redis/Valkey connection used for the embedding cache,
// KNN catalogue indices and the audit trail.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // none (default), redis, valkey
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.Driver != DriverNone }

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	User       string `yaml:"user"`
	MaxBatch   int    `yaml:"max_batch"`
	Cache      bool   `yaml:"cache"` // requires database
}

// Catalogue backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// CatalogueConfig lists the categories loaded at boot.
type CatalogueConfig struct {
	Categories []CategoryConfig `yaml:"categories"`
}

// CategoryConfig describes one category's document directory and search backend.
type CategoryConfig struct {
	Name           string   `yaml:"name"`
	Dir            string   `yaml:"dir"`
	Backend        string   `yaml:"backend"`    // memory (default), redis
	IndexName      string   `yaml:"index_name"` // redis backend only
	Metric         string   `yaml:"metric"`     // cosine (default), ip, l2
	Stopwords      []string `yaml:"stopwords"`  // default list when empty
	ChunkMaxLength int      `yaml:"chunk_max_length"`
}

// IndexConfig holds HNSW settings for the redis catalogue backend.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// ExplainConfig holds reason generation parameters.
type ExplainConfig struct {
	Threshold    *float64 `yaml:"threshold"` // default 0.7; 0 counts every positive similarity
	QueryTopN    int      `yaml:"query_top_n"`
	DocumentTopN int      `yaml:"document_top_n"`
	NgramMin     int      `yaml:"ngram_min"`
	NgramMax     int      `yaml:"ngram_max"`
}

// DefaultSharedThreshold is the keyword similarity used when explain.threshold is unset.
const DefaultSharedThreshold = 0.7

// SharedThreshold returns the similarity a keyword pair must exceed to count as shared.
func (e ExplainConfig) SharedThreshold() float64 {
	if e.Threshold == nil {
		return DefaultSharedThreshold
	}
	return *e.Threshold
}

// QueryConfig holds query builder settings.
type QueryConfig struct {
	ExactAge bool `yaml:"exact_age"`
}

// RecommendConfig holds engine settings.
type RecommendConfig struct {
	TopK int `yaml:"top_k"`
}

// Audit drivers.
const (
	AuditFile  = "file"
	AuditRedis = "redis"
	AuditNone  = "none"
)

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Driver     string `yaml:"driver"` // file (default), redis, none
	Path       string `yaml:"path"`
	PerRequest bool   `yaml:"per_request"`
	Required   *bool  `yaml:"required"` // default true
	TTLSec     int    `yaml:"ttl_sec"`  // redis driver, 0 = no expiry
}

// IsRequired reports whether a failed audit write fails the request.
func (a AuditConfig) IsRequired() bool { return a.Required == nil || *a.Required }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverNone
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.MaxBatch <= 0 {
		c.Embedding.MaxBatch = 256
	}
	for i := range c.Catalogue.Categories {
		cat := &c.Catalogue.Categories[i]
		if cat.Backend == "" {
			cat.Backend = BackendMemory
		}
		if cat.Metric == "" {
			cat.Metric = "cosine"
		}
		if cat.ChunkMaxLength <= 0 {
			cat.ChunkMaxLength = 512
		}
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Explain.Threshold == nil {
		t := DefaultSharedThreshold
		c.Explain.Threshold = &t
	}
	if c.Explain.QueryTopN <= 0 {
		c.Explain.QueryTopN = 10
	}
	if c.Explain.DocumentTopN <= 0 {
		c.Explain.DocumentTopN = 30
	}
	if c.Explain.NgramMin <= 0 {
		c.Explain.NgramMin = 1
	}
	if c.Explain.NgramMax <= 0 {
		c.Explain.NgramMax = 2
	}
	if c.Recommend.TopK <= 0 {
		c.Recommend.TopK = 3
	}
	if c.Audit.Driver == "" {
		c.Audit.Driver = AuditFile
	}
	if c.Audit.Driver == AuditFile && c.Audit.Path == "" {
		if c.Audit.PerRequest {
			c.Audit.Path = "audit"
		} else {
			c.Audit.Path = "recommendations.json"
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverNone:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required")
		}
	default:
		return fmt.Errorf("database.driver must be \"none\", \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}

	if c.Embedding.APIKey == "" {
		return errors.New("embedding.api_key is required")
	}
	if c.Embedding.Cache && !c.Database.Enabled() {
		return errors.New("embedding.cache requires a database")
	}

	if err := c.validateCatalogue(); err != nil {
		return err
	}

	if t := c.Explain.SharedThreshold(); t < -1 || t > 1 {
		return fmt.Errorf("explain.threshold must be within [-1, 1], got %v", t)
	}
	if c.Explain.NgramMin > c.Explain.NgramMax {
		return fmt.Errorf("explain.ngram_min (%d) exceeds explain.ngram_max (%d)",
			c.Explain.NgramMin, c.Explain.NgramMax)
	}

	switch c.Audit.Driver {
	case AuditNone, AuditFile:
	case AuditRedis:
		if !c.Database.Enabled() {
			return errors.New("audit.driver \"redis\" requires a database")
		}
	default:
		return fmt.Errorf("audit.driver must be \"file\", \"redis\" or \"none\", got %q", c.Audit.Driver)
	}
	return nil
}

func (c *Config) validateCatalogue() error {
	if len(c.Catalogue.Categories) == 0 {
		return errors.New("catalogue.categories must list at least one category")
	}
	seen := make(map[string]struct{}, len(c.Catalogue.Categories))
	for i, cat := range c.Catalogue.Categories {
		if cat.Name == "" {
			return fmt.Errorf("catalogue.categories[%d].name is required", i)
		}
		if _, dup := seen[cat.Name]; dup {
			return fmt.Errorf("catalogue.categories[%d]: duplicate category %q", i, cat.Name)
		}
		seen[cat.Name] = struct{}{}
		if cat.Dir == "" {
			return fmt.Errorf("catalogue.categories[%d].dir is required", i)
		}
		switch cat.Metric {
		case "cosine", "ip", "l2":
		default:
			return fmt.Errorf("catalogue.categories[%d].metric must be cosine, ip or l2, got %q", i, cat.Metric)
		}
		switch cat.Backend {
		case BackendMemory:
		case BackendRedis:
			if !c.Database.Enabled() {
				return fmt.Errorf("catalogue.categories[%d]: backend \"redis\" requires a database", i)
			}
		default:
			return fmt.Errorf("catalogue.categories[%d].backend must be \"memory\" or \"redis\", got %q",
				i, cat.Backend)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests run from a package directory
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
