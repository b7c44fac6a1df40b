// Package config loads client configuration from a YAML file with environment
// overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full client configuration.
type Config struct {
	ClinicID string `yaml:"clinic_id" env:"DENTSYNC_CLINIC_ID"`

	Remote  Remote  `yaml:"remote"`
	Local   Local   `yaml:"local"`
	Storage Storage `yaml:"storage"`
}

// Remote configures the hosted backend connection.
type Remote struct {
	DSN         string        `yaml:"dsn" env:"DENTSYNC_REMOTE_DSN"`
	SignKey     string        `yaml:"sign_key" env:"DENTSYNC_SIGN_KEY"`
	AccessTTL   time.Duration `yaml:"access_ttl" env-default:"15m"`
	PageSize    int           `yaml:"page_size" env-default:"500"`
	CallTimeout time.Duration `yaml:"call_timeout" env-default:"10s"`
}

// Local configures the on-disk mirror and offline sessions.
type Local struct {
	DBPath     string        `yaml:"db_path" env:"DENTSYNC_DB_PATH"`
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"24h"`
}

// Storage configures the S3-compatible object store for medical images.
type Storage struct {
	Endpoint  string `yaml:"endpoint" env:"DENTSYNC_S3_ENDPOINT"`
	Region    string `yaml:"region" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"DENTSYNC_S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"DENTSYNC_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"DENTSYNC_S3_SECRET_KEY"`
}

// Dir returns the dentsync config directory, honoring XDG_CONFIG_HOME.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "dentsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dentsync")
}

// DefaultPath is the config file location used when no -config flag is given.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// Load reads the config file at path (env vars override). A missing file is
// not an error: env-only configuration is allowed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Local.DBPath == "" {
		cfg.Local.DBPath = filepath.Join(Dir(), "mirror.db")
	}
	return &cfg, nil
}
