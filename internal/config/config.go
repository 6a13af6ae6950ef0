package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for fetchbot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Telegram  TelegramConfig  `json:"telegram"`
	Storage   StorageConfig   `json:"storage"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel             string `json:"logLevel"`
	LogFile              string `json:"logFile,omitempty"` // optional log file path
	MaxConcurrentFetches int    `json:"maxConcurrentFetches"`
}

type TelegramConfig struct {
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"` // user IDs; empty = allow all
	ParseMode string         `json:"parseMode"`
	FetchChat string         `json:"fetchChat,omitempty"` // chat used to materialize deep-linked posts; defaults to first allowFrom
}

type StorageConfig struct {
	DBPath      string `json:"dbPath"`
	DownloadDir string `json:"downloadDir"`
}

type RetrievalConfig struct {
	YtdlpPath     string `json:"ytdlpPath"`               // binary name or absolute path
	RateLimit     string `json:"rateLimit,omitempty"`     // e.g. "500K"; avoids provider throttling
	TimeoutSec    int    `json:"timeoutSeconds"`          // per download
	BrowserProbe  bool   `json:"browserProbe"`            // fall back to headless Chrome for metadata
	ProfileDir    string `json:"profileDir,omitempty"`    // Chrome user data dir for the probe
	PlatformRules string `json:"platformRules,omitempty"` // optional YAML host-rules file
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.fetchbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fetchbot"
	}
	return filepath.Join(home, ".fetchbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.DBPath = ExpandPath(cfg.Storage.DBPath)
	cfg.Storage.DownloadDir = ExpandPath(cfg.Storage.DownloadDir)
	cfg.Retrieval.ProfileDir = ExpandPath(cfg.Retrieval.ProfileDir)
	cfg.Retrieval.PlatformRules = ExpandPath(cfg.Retrieval.PlatformRules)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentFetches < 1 || cfg.General.MaxConcurrentFetches > 50 {
		errs = append(errs, "general.maxConcurrentFetches must be between 1 and 50")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath is required")
	}
	if cfg.Storage.DownloadDir == "" {
		errs = append(errs, "storage.downloadDir is required")
	}

	if cfg.Retrieval.YtdlpPath == "" {
		errs = append(errs, "retrieval.ytdlpPath is required")
	}
	if cfg.Retrieval.TimeoutSec < 1 {
		errs = append(errs, "retrieval.timeoutSeconds must be >= 1")
	}
	if cfg.Retrieval.RateLimit != "" && !rateLimitPattern.MatchString(cfg.Retrieval.RateLimit) {
		errs = append(errs, "retrieval.rateLimit must be a number with optional K/M/G suffix (e.g. 500K)")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

var rateLimitPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[KMGkmg]?$`)

// Sanitize returns a copy with secrets redacted, for display.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	if out.Telegram.Token != "" {
		out.Telegram.Token = "***"
	}
	return &out
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
