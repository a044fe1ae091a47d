package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "REBASE_MIGRATIONS_"

// Config represents the application configuration
type Config struct {
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	LogFile     string   `yaml:"log_file"`
	Output      string   `yaml:"output"`
	Color       string   `yaml:"color"`
	AllDirs     bool     `yaml:"all_dirs"`
	Exclude     []string `yaml:"exclude"`
	Journal     bool     `yaml:"journal"`
	JournalPath string   `yaml:"journal_path"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Output:    "table",
		Color:     "auto",
		Journal:   true,
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/rebase-migrations/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := Defaults()

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	configPath, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		configPath = path
	}
	if err := loadYAMLConfig(cfg, configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.JournalPath == "" {
		path, err := DefaultJournalPath()
		if err != nil {
			return nil, err
		}
		cfg.JournalPath = path
	}
	if cfg.JournalPath, err = homedir.Expand(cfg.JournalPath); err != nil {
		return nil, fmt.Errorf("failed to expand journal path: %w", err)
	}
	if cfg.LogFile, err = homedir.Expand(cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to expand log file: %w", err)
	}

	return cfg, nil
}

// DefaultConfigPath returns ~/.config/rebase-migrations/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "rebase-migrations", "config.yaml"), nil
}

// DefaultJournalPath returns ~/.local/share/rebase-migrations/journal.db
func DefaultJournalPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "rebase-migrations", "journal.db"), nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":    &cfg.LogLevel,
		"LOG_FORMAT":   &cfg.LogFormat,
		"LOG_FILE":     &cfg.LogFile,
		"OUTPUT":       &cfg.Output,
		"COLOR":        &cfg.Color,
		"JOURNAL_PATH": &cfg.JournalPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"ALL_DIRS": &cfg.AllDirs,
		"JOURNAL":  &cfg.Journal,
	}
	for key, dst := range bools {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, v, err)
		}
		*dst = b
	}

	if v := os.Getenv(EnvPrefix + "EXCLUDE"); v != "" {
		cfg.Exclude = nil
		for _, pattern := range strings.Split(v, ",") {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				cfg.Exclude = append(cfg.Exclude, pattern)
			}
		}
	}
	return nil
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := homedir.Dir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
