// Package config loads runtime settings from flags, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides, e.g. MAMANXUE_SERVER_ADDR.
const EnvPrefix = "MAMANXUE_"

// ConfigFlag names the flag holding the YAML config file path.
const ConfigFlag = "config"

// Config holds all runtime settings.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Review   ReviewConfig   `koanf:"review"`
	Sources  SourcesConfig  `koanf:"sources"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ReviewConfig tunes queue building. A NewCardLimit of 0 or -1 admits no
// new cards.
type ReviewConfig struct {
	NewCardLimit int `koanf:"new_card_limit" validate:"gte=-1,lte=1000"`
}

// SessionNewCardLimit converts NewCardLimit to session.Options semantics,
// where 0 selects the default and a negative limit admits none.
func (r ReviewConfig) SessionNewCardLimit() int {
	if r.NewCardLimit <= 0 {
		return -1
	}
	return r.NewCardLimit
}

type SourcesConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"addr":           "server.addr",
	"db":             "database.path",
	"new-card-limit": "review.new_card_limit",
	"repos-dir":      "sources.repos_dir",
	"log-level":      "log.level",
}

// RegisterFlags adds the config flags, with their defaults, to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFlag, "mamanxue.yaml", "Path to a YAML config file")
	flags.String("addr", "localhost:8080", "HTTP listen address")
	flags.String("db", "mamanxue.db", "Path to the SQLite database file")
	flags.Int("new-card-limit", 10, "Maximum new cards per session (-1 for none)")
	flags.String("repos-dir", "repos", "Directory git sources are cloned into")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
}

// Load builds the config. Later layers win: .env and YAML file, then
// MAMANXUE_ environment variables, then flags set on the command line.
// Flag defaults fill whatever is still unset.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if path, err := flags.GetString(ConfigFlag); err == nil && path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// The default file is optional; an explicit one is not.
			if !errors.Is(err, os.ErrNotExist) || flags.Changed(ConfigFlag) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// NEW_CARD_LIMIT is honored unprefixed for compatibility.
	if err := k.Load(env.Provider("NEW_CARD_LIMIT", ".", func(s string) string {
		if s != "NEW_CARD_LIMIT" {
			return ""
		}
		return "review.new_card_limit"
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, interface{}) {
		return flagKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps MAMANXUE_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return ""
	}
	return section + "." + key
}

// Logger builds a text logger at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
