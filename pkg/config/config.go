// Package config loads loomdb's configuration from environment variables,
// with an optional YAML file whose values override the environment-loaded
// ones.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.ApplyYAMLFile("loomdb.yaml"); err != nil {
//		log.Fatalf("loading config file: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables:
//
//	LOOMDB_HTTP_ADDRESS, LOOMDB_HTTP_PORT   - HTTP server bind address/port
//	LOOMDB_JWT_SECRET                       - HMAC secret for bearer tokens
//	LOOMDB_ALLOW_ANONYMOUS                  - allow unscoped engine access
//	LOOMDB_MCP_ADDRESS, LOOMDB_MCP_PORT     - MCP tool server bind address/port
//	LOOMDB_EMBEDDING_PROVIDER               - "ollama" or "openai"
//	LOOMDB_EMBEDDING_MODEL                  - embedding model name
//	LOOMDB_EMBEDDING_API_URL                - embedding provider endpoint
//	LOOMDB_EMBEDDING_API_KEY                - embedding provider API key
//	LOOMDB_EMBEDDING_DIMENSIONS             - embedding vector width
//	LOOMDB_AUDIT_ENABLED                    - enable the audit log
//	LOOMDB_AUDIT_LOG_PATH                   - audit log output path
//	LOOMDB_LOG_LEVEL, LOOMDB_LOG_FORMAT     - logging verbosity/format
//	LOOMDB_MEMORY_LIMIT, LOOMDB_GC_PERCENT  - Go runtime memory tuning
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all loomdb configuration.
type Config struct {
	Server    ServerConfig
	MCP       MCPConfig
	Embedding EmbeddingConfig
	Audit     AuditConfig
	Logging   LoggingConfig
	Runtime   RuntimeConfig
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Address        string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	JWTSecret      string
	AllowAnonymous bool
}

// MCPConfig holds MCP tool server settings.
type MCPConfig struct {
	Enabled bool
	Address string
	Port    int
}

// EmbeddingConfig holds embedding provider settings, mirroring embed.Config.
type EmbeddingConfig struct {
	Provider   string // "ollama" or "openai"
	Model      string
	APIURL     string
	APIKey     string // OpenAI only
	Dimensions int
	// CacheSize is loaded from LOOMDB_EMBEDDING_CACHE_SIZE; no code in this
	// module reads it.
	CacheSize int
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Enabled bool
	LogPath string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // json, text
	Output string // stdout, stderr, or a file path
}

// RuntimeConfig holds Go runtime memory tuning settings.
type RuntimeConfig struct {
	// MemoryLimitStr is the human-readable soft memory limit (e.g. "2GB").
	// Empty or "0" leaves GOMEMLIMIT at the runtime default.
	MemoryLimitStr string
	// MemoryLimit is MemoryLimitStr parsed to bytes; 0 means unlimited.
	MemoryLimit int64
	// GCPercent controls GOGC. 100 is the Go default; lower trades CPU for
	// lower peak memory.
	GCPercent int
}

// LoadFromEnv loads configuration from environment variables, applying
// defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Server.Address = getEnv("LOOMDB_HTTP_ADDRESS", "0.0.0.0")
	cfg.Server.Port = getEnvInt("LOOMDB_HTTP_PORT", 8080)
	cfg.Server.ReadTimeout = getEnvDuration("LOOMDB_HTTP_READ_TIMEOUT", 30*time.Second)
	cfg.Server.WriteTimeout = getEnvDuration("LOOMDB_HTTP_WRITE_TIMEOUT", 30*time.Second)
	cfg.Server.IdleTimeout = getEnvDuration("LOOMDB_HTTP_IDLE_TIMEOUT", 120*time.Second)
	cfg.Server.JWTSecret = getEnv("LOOMDB_JWT_SECRET", "")
	cfg.Server.AllowAnonymous = getEnvBool("LOOMDB_ALLOW_ANONYMOUS", false)

	cfg.MCP.Enabled = getEnvBool("LOOMDB_MCP_ENABLED", true)
	cfg.MCP.Address = getEnv("LOOMDB_MCP_ADDRESS", "0.0.0.0")
	cfg.MCP.Port = getEnvInt("LOOMDB_MCP_PORT", 8081)

	cfg.Embedding.Provider = getEnv("LOOMDB_EMBEDDING_PROVIDER", "ollama")
	cfg.Embedding.Model = getEnv("LOOMDB_EMBEDDING_MODEL", "mxbai-embed-large")
	cfg.Embedding.APIURL = getEnv("LOOMDB_EMBEDDING_API_URL", "http://localhost:11434")
	cfg.Embedding.APIKey = getEnv("LOOMDB_EMBEDDING_API_KEY", "")
	cfg.Embedding.Dimensions = getEnvInt("LOOMDB_EMBEDDING_DIMENSIONS", 1024)
	cfg.Embedding.CacheSize = getEnvInt("LOOMDB_EMBEDDING_CACHE_SIZE", 10000)

	cfg.Audit.Enabled = getEnvBool("LOOMDB_AUDIT_ENABLED", true)
	cfg.Audit.LogPath = getEnv("LOOMDB_AUDIT_LOG_PATH", "./logs/audit.log")

	cfg.Logging.Level = getEnv("LOOMDB_LOG_LEVEL", "INFO")
	cfg.Logging.Format = getEnv("LOOMDB_LOG_FORMAT", "text")
	cfg.Logging.Output = getEnv("LOOMDB_LOG_OUTPUT", "stdout")

	cfg.Runtime.MemoryLimitStr = getEnv("LOOMDB_MEMORY_LIMIT", "0")
	cfg.Runtime.MemoryLimit = parseMemorySize(cfg.Runtime.MemoryLimitStr)
	cfg.Runtime.GCPercent = getEnvInt("LOOMDB_GC_PERCENT", 100)

	return cfg
}

// yamlConfig mirrors Config's shape for YAML decoding. Only fields present
// in the file override the receiver; omitted fields keep their current
// (environment-loaded) value.
type yamlConfig struct {
	Server *struct {
		Address        *string `yaml:"address"`
		Port           *int    `yaml:"port"`
		JWTSecret      *string `yaml:"jwtSecret"`
		AllowAnonymous *bool   `yaml:"allowAnonymous"`
	} `yaml:"server"`
	MCP *struct {
		Enabled *bool   `yaml:"enabled"`
		Address *string `yaml:"address"`
		Port    *int    `yaml:"port"`
	} `yaml:"mcp"`
	Embedding *struct {
		Provider   *string `yaml:"provider"`
		Model      *string `yaml:"model"`
		APIURL     *string `yaml:"apiURL"`
		APIKey     *string `yaml:"apiKey"`
		Dimensions *int    `yaml:"dimensions"`
	} `yaml:"embedding"`
	Audit *struct {
		Enabled *bool   `yaml:"enabled"`
		LogPath *string `yaml:"logPath"`
	} `yaml:"audit"`
	Logging *struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"logging"`
}

// ApplyYAMLFile overlays settings from a YAML file onto c. A missing file is
// not an error; it is treated as an empty override set.
func (c *Config) ApplyYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if y.Server != nil {
		applyString(&c.Server.Address, y.Server.Address)
		applyInt(&c.Server.Port, y.Server.Port)
		applyString(&c.Server.JWTSecret, y.Server.JWTSecret)
		applyBool(&c.Server.AllowAnonymous, y.Server.AllowAnonymous)
	}
	if y.MCP != nil {
		applyBool(&c.MCP.Enabled, y.MCP.Enabled)
		applyString(&c.MCP.Address, y.MCP.Address)
		applyInt(&c.MCP.Port, y.MCP.Port)
	}
	if y.Embedding != nil {
		applyString(&c.Embedding.Provider, y.Embedding.Provider)
		applyString(&c.Embedding.Model, y.Embedding.Model)
		applyString(&c.Embedding.APIURL, y.Embedding.APIURL)
		applyString(&c.Embedding.APIKey, y.Embedding.APIKey)
		applyInt(&c.Embedding.Dimensions, y.Embedding.Dimensions)
	}
	if y.Audit != nil {
		applyBool(&c.Audit.Enabled, y.Audit.Enabled)
		applyString(&c.Audit.LogPath, y.Audit.LogPath)
	}
	if y.Logging != nil {
		applyString(&c.Logging.Level, y.Logging.Level)
		applyString(&c.Logging.Format, y.Logging.Format)
	}
	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// Validate checks the configuration for logical errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("config: invalid http port: %d", c.Server.Port)
	}
	if c.MCP.Enabled && c.MCP.Port <= 0 {
		return fmt.Errorf("config: invalid mcp port: %d", c.MCP.Port)
	}
	if !c.Server.AllowAnonymous && c.Server.JWTSecret == "" {
		return fmt.Errorf("config: JWT secret required unless anonymous access is allowed")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("config: invalid embedding dimensions: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.Provider != "openai" {
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}

// String returns a safe string representation of the Config, omitting
// secrets such as the JWT signing key and embedding API key.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{HTTP: %s:%d, MCP: %s:%d (enabled=%v), Embedding: %s/%s, Audit: %v}",
		c.Server.Address, c.Server.Port,
		c.MCP.Address, c.MCP.Port, c.MCP.Enabled,
		c.Embedding.Provider, c.Embedding.Model,
		c.Audit.Enabled,
	)
}

// ApplyRuntimeMemory applies the runtime memory settings to the Go runtime.
// Call early in main(), before heavy allocations.
func (c *RuntimeConfig) ApplyRuntimeMemory() {
	if c.MemoryLimit > 0 {
		debug.SetMemoryLimit(c.MemoryLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports "1024", "1KB", "1MB", "1GB", "1TB", "0", and "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
