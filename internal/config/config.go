package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all service configuration. Values come from defaults, then
// an optional TOML file, then the environment (including a .env file).
type Config struct {
	Port           string   `toml:"port"`
	DatabaseDriver string   `toml:"database_driver"`
	PostgresDSN    string   `toml:"postgres_dsn"`
	SQLitePath     string   `toml:"sqlite_path"`
	MongoURI       string   `toml:"mongo_uri"`
	MongoDB        string   `toml:"mongo_db"`
	RedisAddr      string   `toml:"redis_addr"`
	RedisPassword  string   `toml:"redis_password"`
	RedisDB        int      `toml:"redis_db"`
	MinioEndpoint  string   `toml:"minio_endpoint"`
	MinioAccessKey string   `toml:"minio_access_key"`
	MinioSecretKey string   `toml:"minio_secret_key"`
	MinioBucket    string   `toml:"minio_bucket"`
	MinioUseSSL    bool     `toml:"minio_use_ssl"`
	MinioPublicURL string   `toml:"minio_public_url"`
	SessionSecret  string   `toml:"session_secret"`
	AllowedOrigins []string `toml:"allowed_origins"`
	LogLevel       string   `toml:"log_level"`
	// StayOnFailedDelete keeps the user on the book page when a delete is
	// not confirmed instead of returning to the dashboard.
	StayOnFailedDelete bool `toml:"stay_on_failed_delete"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           "8080",
		DatabaseDriver: "postgres",
		SQLitePath:     "bookshelf.db",
		MongoDB:        "bookshelf",
		RedisAddr:      "redis:6379",
		MinioEndpoint:  "minio:9000",
		MinioBucket:    "bookcovers",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		LogLevel:       "info",
	}
}

// Load builds the configuration. path may be empty to skip the TOML file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PORT":             &c.Port,
		"DATABASE_DRIVER":  &c.DatabaseDriver,
		"POSTGRES_DSN":     &c.PostgresDSN,
		"SQLITE_PATH":      &c.SQLitePath,
		"MONGO_URI":        &c.MongoURI,
		"MONGO_DB":         &c.MongoDB,
		"REDIS_ADDR":       &c.RedisAddr,
		"REDIS_PASSWORD":   &c.RedisPassword,
		"MINIO_ENDPOINT":   &c.MinioEndpoint,
		"MINIO_ACCESS_KEY": &c.MinioAccessKey,
		"MINIO_SECRET_KEY": &c.MinioSecretKey,
		"MINIO_BUCKET":     &c.MinioBucket,
		"MINIO_PUBLIC_URL": &c.MinioPublicURL,
		"SESSION_SECRET":   &c.SessionSecret,
		"LOG_LEVEL":        &c.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"MINIO_USE_SSL":         &c.MinioUseSSL,
		"STAY_ON_FAILED_DELETE": &c.StayOnFailedDelete,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations no command can run with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	return nil
}

// ValidateServe adds the checks only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return nil
}
