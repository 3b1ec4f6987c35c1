package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gregoryerrl/pgtoolset/types"
)

// WriteMode controls whether mutating statements are allowed.
type WriteMode string

const (
	WriteBlocked WriteMode = "blocked"
	WriteAllowed WriteMode = "allowed"
)

const (
	DefaultSchema         = "public"
	DefaultMaxRows        = 100
	DefaultTimeoutSeconds = 30
	DefaultSampleRows     = 3
	DefaultEngine         = "postgres"
	DefaultModel          = "gemini-2.0-flash"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
	// Registry is an optional path to a named-statement registry file.
	Registry string `yaml:"registry,omitempty"`
}

type DatabaseConfig struct {
	Engine           string    `yaml:"engine"`
	ConnectionString string    `yaml:"connection_string"`
	WriteMode        WriteMode `yaml:"write_mode"`
	DefaultSchema    string    `yaml:"default_schema"`
	MaxRows          int       `yaml:"max_rows"`
	TimeoutSeconds   int       `yaml:"timeout_seconds"`
	SampleRows       int       `yaml:"sample_rows"`
}

type LLMConfig struct {
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Timeout returns the statement timeout as a duration.
func (d *DatabaseConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Load builds the configuration from an optional yaml file with environment
// variables filling any value the file leaves empty. A .env file is honored
// outside production. The connection string is the only required value;
// loading fails with a configuration error when it cannot be resolved.
func Load(configPath string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// Missing .env is the normal case; a broken one should not take the
		// server down either.
		_ = godotenv.Load()
	}

	var cfg Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, types.WrapError(types.KindConfiguration, err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, types.WrapError(types.KindConfiguration, err, "failed to parse config file")
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Database.ConnectionString == "" {
		return nil, types.NewError(types.KindConfiguration,
			"missing connection string: set database.connection_string or the PGTOOLSET_URI / POSTGRES_URI environment variable")
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = firstEnv("PGTOOLSET_URI", "POSTGRES_URI", "POSTGRES_CONNECTION_STRING")
	}
	if c.Database.Engine == "" {
		c.Database.Engine = os.Getenv("PGTOOLSET_ENGINE")
	}
	if c.Database.WriteMode == "" {
		if mode := os.Getenv("POSTGRES_WRITE_MODE"); mode != "" {
			c.Database.WriteMode = WriteMode(mode)
		}
	}
	if c.Database.DefaultSchema == "" {
		c.Database.DefaultSchema = os.Getenv("POSTGRES_DEFAULT_SCHEMA")
	}
	if c.Database.MaxRows == 0 {
		c.Database.MaxRows = envInt("POSTGRES_MAX_ROWS", 0)
	}
	if c.Database.TimeoutSeconds == 0 {
		c.Database.TimeoutSeconds = envInt("POSTGRES_TIMEOUT", 0)
	}
	if c.LLM.Model == "" {
		c.LLM.Model = os.Getenv("GEMINI_MODEL")
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
}

func (c *Config) applyDefaults() {
	if c.Database.Engine == "" {
		c.Database.Engine = DefaultEngine
	}
	// Anything that is not explicitly "allowed" means blocked.
	if strings.ToLower(string(c.Database.WriteMode)) == string(WriteAllowed) {
		c.Database.WriteMode = WriteAllowed
	} else {
		c.Database.WriteMode = WriteBlocked
	}
	if c.Database.DefaultSchema == "" {
		c.Database.DefaultSchema = DefaultSchema
	}
	if c.Database.MaxRows <= 0 {
		c.Database.MaxRows = DefaultMaxRows
	}
	if c.Database.TimeoutSeconds <= 0 {
		c.Database.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Database.SampleRows <= 0 {
		c.Database.SampleRows = DefaultSampleRows
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
