// Package config loads recordcached settings: defaults, then an optional YAML
// file named by CONFIG_FILE, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`
	Backend  string         `yaml:"backend"` // memory | redis | sql | dynamodb
	Redis    RedisConfig    `yaml:"redis"`
	SQL      SQLConfig      `yaml:"sql"`
	Dynamo   DynamoConfig   `yaml:"dynamo"`
	Sequence SequenceConfig `yaml:"sequence"`
	Seed     SeedConfig     `yaml:"seed"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // zap | logrus | slog
	Level   string `yaml:"level"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Provider   string        `yaml:"provider"` // sturdyc | ristretto | bigcache | redis | memory
	TTL        time.Duration `yaml:"ttl"`
	Codec      string        `yaml:"codec"` // json | msgpack | cbor
	MaxEntries int           `yaml:"maxEntries"`
	// MaxEntryBytes bounds decoded cache payloads; 0 disables the check.
	MaxEntryBytes int `yaml:"maxEntryBytes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLConfig struct {
	Driver string `yaml:"driver"` // sqlite3 | postgres
	DSN    string `yaml:"dsn"`
}

type DynamoConfig struct {
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	UsersTable     string `yaml:"usersTable"`
	SequencesTable string `yaml:"sequencesTable"`
}

type SequenceConfig struct {
	Seed int64 `yaml:"seed"`
}

type SeedConfig struct {
	File    string        `yaml:"file"`
	APIURL  string        `yaml:"apiUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

var (
	Backends  = []string{"memory", "redis", "sql", "dynamodb"}
	Providers = []string{"sturdyc", "ristretto", "bigcache", "redis", "memory"}
	Codecs    = []string{"json", "msgpack", "cbor"}
	LogKinds  = []string{"zap", "logrus", "slog"}
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Address: ":8080", ShutdownTimeout: 10 * time.Second, AllowedOrigins: []string{"*"}},
		Log:      LogConfig{Backend: "zap", Level: "info"},
		Cache:    CacheConfig{Enabled: true, Provider: "sturdyc", TTL: 10 * time.Minute, Codec: "json", MaxEntries: 10_000},
		Backend:  "memory",
		Redis:    RedisConfig{Addr: "localhost:6379"},
		SQL:      SQLConfig{Driver: "sqlite3", DSN: "file:recordcache.db?cache=shared"},
		Dynamo:   DynamoConfig{Region: "us-west-2", UsersTable: "users", SequencesTable: "sequences"},
		Sequence: SequenceConfig{Seed: 100},
		Seed:     SeedConfig{APIURL: "https://dummyjson.com/users", Timeout: 10 * time.Second},
	}
}

// LoadConfig loads configuration from CONFIG_FILE (if set) and the environment.
func LoadConfig() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Log.Backend = getEnv("LOG_BACKEND", c.Log.Backend)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	c.Cache.Enabled = getEnvBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Provider = getEnv("CACHE_PROVIDER", c.Cache.Provider)
	c.Cache.TTL = getEnvDuration("CACHE_TTL", c.Cache.TTL)
	c.Cache.Codec = getEnv("CACHE_CODEC", c.Cache.Codec)
	c.Cache.MaxEntries = getEnvInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)
	c.Cache.MaxEntryBytes = getEnvInt("CACHE_MAX_ENTRY_BYTES", c.Cache.MaxEntryBytes)

	c.Backend = getEnv("BACKEND", c.Backend)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.SQL.Driver = getEnv("SQL_DRIVER", c.SQL.Driver)
	c.SQL.DSN = getEnv("SQL_DSN", c.SQL.DSN)

	c.Dynamo.Region = getEnv("AWS_REGION", c.Dynamo.Region)
	c.Dynamo.Endpoint = getEnv("DYNAMODB_ENDPOINT", c.Dynamo.Endpoint)
	c.Dynamo.UsersTable = getEnv("USERS_TABLE", c.Dynamo.UsersTable)
	c.Dynamo.SequencesTable = getEnv("SEQUENCES_TABLE", c.Dynamo.SequencesTable)

	c.Sequence.Seed = int64(getEnvInt("SEQUENCE_SEED", int(c.Sequence.Seed)))

	c.Seed.File = getEnv("SEED_FILE", c.Seed.File)
	c.Seed.APIURL = getEnv("SEED_API_URL", c.Seed.APIURL)
	c.Seed.Timeout = getEnvDuration("SEED_TIMEOUT", c.Seed.Timeout)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}
	if !oneOf(c.Backend, Backends) {
		return fmt.Errorf("BACKEND must be one of %v, got %q", Backends, c.Backend)
	}
	if !oneOf(c.Log.Backend, LogKinds) {
		return fmt.Errorf("LOG_BACKEND must be one of %v, got %q", LogKinds, c.Log.Backend)
	}
	if c.Cache.Enabled {
		if !oneOf(c.Cache.Provider, Providers) {
			return fmt.Errorf("CACHE_PROVIDER must be one of %v, got %q", Providers, c.Cache.Provider)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("CACHE_TTL must be positive")
		}
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("CACHE_MAX_ENTRIES must be positive")
		}
	}
	if !oneOf(c.Cache.Codec, Codecs) {
		return fmt.Errorf("CACHE_CODEC must be one of %v, got %q", Codecs, c.Cache.Codec)
	}
	if c.Sequence.Seed < 0 {
		return fmt.Errorf("SEQUENCE_SEED must not be negative")
	}
	switch c.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case "sql":
		if c.SQL.DSN == "" {
			return fmt.Errorf("SQL_DSN is required for the sql backend")
		}
	case "dynamodb":
		if c.Dynamo.UsersTable == "" || c.Dynamo.SequencesTable == "" {
			return fmt.Errorf("USERS_TABLE and SEQUENCES_TABLE are required for the dynamodb backend")
		}
	}
	if c.Cache.Enabled && c.Cache.Provider == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis cache provider")
	}
	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getEnvDuration accepts Go duration syntax ("30s", "5m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
