package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for ColdChat.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Oracle   OracleConfig   `json:"oracle"`
	Channels ChannelsConfig `json:"channels"`
	Archive  ArchiveConfig  `json:"archive"`
}

type GeneralConfig struct {
	LogLevel    string `json:"logLevel"`
	PersonaFile string `json:"personaFile,omitempty"` // empty = built-in persona
}

// OracleConfig selects and configures the response-generation oracle.
type OracleConfig struct {
	Provider string `json:"provider"` // "gemini" | "scripted"
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model,omitempty"`
}

type ChannelsConfig struct {
	CLI      CLIConfig      `json:"cli"`
	Telegram TelegramConfig `json:"telegram"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
	// ShowDebug renders interest levels and oracle thoughts inline,
	// like the QA view of the original client.
	ShowDebug bool `json:"showDebug"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"` // chat IDs permitted to talk to the persona
}

// ArchiveConfig configures the write-only transcript archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// DefaultConfigDir returns the default config directory (~/.coldchat).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coldchat"
	}
	return filepath.Join(home, ".coldchat")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Oracle: OracleConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
		},
		Channels: ChannelsConfig{
			CLI: CLIConfig{Enabled: true},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			DBPath:  "~/.coldchat/transcript.db",
		},
	}
}

// Load reads and validates a config file. A missing path loads defaults
// plus environment overrides, so the binary works without any setup.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(expandPath(path))
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.General.PersonaFile = expandPath(cfg.General.PersonaFile)
	cfg.Archive.DBPath = expandPath(cfg.Archive.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COLDCHAT_GEMINI_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("COLDCHAT_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
	}
}

// Validate rejects configurations that cannot produce a working session.
func Validate(cfg *Config) error {
	switch cfg.Oracle.Provider {
	case "gemini", "scripted":
	default:
		return fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		return fmt.Errorf("telegram channel enabled but no token configured")
	}
	if cfg.Archive.Enabled && cfg.Archive.DBPath == "" {
		return fmt.Errorf("archive enabled but no dbPath configured")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvVars substitutes ${VAR} and ${VAR:-default} in raw config text.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[3]
	})
}

// expandPath resolves a leading ~/ against the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Sanitize returns a copy of the config with sensitive values masked.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var copy Config
	if err := json.Unmarshal(data, &copy); err != nil {
		return cfg
	}
	if copy.Oracle.APIKey != "" {
		copy.Oracle.APIKey = maskString(copy.Oracle.APIKey)
	}
	if copy.Channels.Telegram.Token != "" {
		copy.Channels.Telegram.Token = maskString(copy.Channels.Telegram.Token)
	}
	return &copy
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
