package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tracker/internal/util"
)

// Config is the recognized configuration surface of the tracker.
type Config struct {
	DatabasePath     string        `yaml:"database_path"`
	MutexTimeout     time.Duration `yaml:"-"`
	MutexTimeoutSecs int           `yaml:"database_mutex_timeout"`
	AllowNewAccounts bool          `yaml:"allow_new_accounts"`
	PasswordSalt     string        `yaml:"password_salt"`
	Addr             string        `yaml:"addr"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		DatabasePath:     "tracker.db",
		MutexTimeout:     30 * time.Second,
		MutexTimeoutSecs: 30,
		AllowNewAccounts: true,
		PasswordSalt:     "Asalt",
		Addr:             ":8080",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment (including a .env file in the working directory). Later sources win.
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.DatabasePath = util.EnvOrDefault("DATABASE_PATH", cfg.DatabasePath)
	cfg.MutexTimeout = util.EnvSeconds("DATABASE_MUTEX_TIMEOUT", time.Duration(cfg.MutexTimeoutSecs)*time.Second)
	cfg.MutexTimeoutSecs = int(cfg.MutexTimeout / time.Second)
	cfg.AllowNewAccounts = util.EnvBool("ALLOW_NEW_ACCOUNTS", cfg.AllowNewAccounts)
	cfg.PasswordSalt = util.EnvOrDefault("PASSWORD_SALT", cfg.PasswordSalt)
	cfg.Addr = util.EnvOrDefault("TRACKER_ADDR", cfg.Addr)
	cfg.LogLevel = util.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = util.EnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	c.MutexTimeout = time.Duration(c.MutexTimeoutSecs) * time.Second
	return nil
}

// Validate rejects configurations the core cannot honor.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.MutexTimeout <= 0 {
		return fmt.Errorf("database mutex timeout must be positive")
	}
	return nil
}
