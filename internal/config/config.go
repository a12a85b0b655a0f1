// Package config resolves lorena-wallet settings.
//
// Sources are applied in order, later ones winning: built-in defaults, the
// YAML file (~/.lorena/config.yaml), a .env file, and LORENA_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lorena-ssi/wallet-fs/pkg/storage"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LORENA_"

const (
	// DirName is the per-user directory holding wallets, config and audit logs.
	DirName = ".lorena"

	FileName  = "config.yaml"
	DBName    = "wallets.db"
	AuditName = "audit"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the resolved settings.
type Config struct {
	// Root is the directory under which .lorena/wallets lives.
	Root    string `yaml:"root" env:"ROOT"`
	Storage string `yaml:"storage" env:"STORAGE"`
	Silent  bool   `yaml:"silent" env:"SILENT"`

	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// AuditDir holds the audit journal. Empty disables journaling.
	AuditDir string `yaml:"audit_dir" env:"AUDIT_DIR"`

	home string
}

// Sources locates the inputs of Load. Zero fields select the defaults.
type Sources struct {
	// Home replaces the user's home directory.
	Home string

	// File is the YAML config file. Defaults to <home>/.lorena/config.yaml.
	File string

	// EnvFile is the .env file. Defaults to ".env" in the working directory.
	EnvFile string

	// Environ replaces os.Environ, in "KEY=value" form.
	Environ []string
}

// Default returns the built-in settings for home.
func Default(home string) *Config {
	dir := filepath.Join(home, DirName)
	return &Config{
		home:       home,
		Root:       home,
		Storage:    string(storage.KindFS),
		SQLitePath: filepath.Join(dir, DBName),
		RedisAddr:  "localhost:6379",
		LogLevel:   logrus.InfoLevel.String(),
		AuditDir:   filepath.Join(dir, AuditName),
	}
}

// Load resolves the configuration from src. Missing files are skipped.
func Load(src Sources) (*Config, error) {
	home := src.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: failed to resolve home directory: %w", err)
		}
		home = h
	}

	cfg := Default(home)

	file := src.File
	if file == "" {
		file = filepath.Join(home, DirName, FileName)
	}
	if err := cfg.loadFile(file); err != nil {
		return nil, err
	}

	environ, err := mergeEnv(src.EnvFile, src.Environ)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}

	cfg.Root = cfg.ExpandHome(cfg.Root)
	cfg.SQLitePath = cfg.ExpandHome(cfg.SQLitePath)
	cfg.AuditDir = cfg.ExpandHome(cfg.AuditDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// mergeEnv returns the .env values overlaid with the process environment,
// so a variable already set in the environment is never replaced.
func mergeEnv(envFile string, environ []string) (map[string]string, error) {
	if envFile == "" {
		envFile = ".env"
	}
	merged, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to read %s: %w", envFile, err)
		}
		merged = map[string]string{}
	}

	if environ == nil {
		environ = os.Environ()
	}
	for k, v := range env.ToMap(environ) {
		merged[k] = v
	}
	return merged, nil
}

// ExpandHome replaces a leading "~" in path with the home directory the
// configuration was resolved for.
func (c *Config) ExpandHome(path string) string {
	return expandHome(path, c.home)
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks the storage kind and log level.
func (c *Config) Validate() error {
	if _, err := storage.ParseKind(c.Storage); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Root == "" {
		return fmt.Errorf("%w: root must not be empty", ErrInvalidConfig)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("%w: redis_db must not be negative", ErrInvalidConfig)
	}
	return nil
}

// StorageConfig returns the settings for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	kind, _ := storage.ParseKind(c.Storage)
	return storage.Config{
		Kind:          kind,
		SQLitePath:    c.SQLitePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
