package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sonroyaalmerol/feedplay/internal/filesystem"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"data_dir":               "./data",
	"progress_backend":       BackendSQLite,
	"progress_file":          "",
	"resolve_enabled":        true,
	"resolve_ttl":            "5h",
	"ytdlp_format":           "bv*[height<=720]+ba/b[height<=720]/best",
	"buffer_frames":          60,
	"buffer_report_interval": "500ms",
	"log_level":              "info",
}

// LoadConfig reads settings from the environment (DATA_DIR, PROGRESS_BACKEND,
// ...) and from an optional feedplay.toml inside the data directory.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(nil)
}

// LoadConfigFrom is LoadConfig with command-line flags on top. A flag named
// like a key with dashes (data-dir, log-level) overrides it when set.
func LoadConfigFrom(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(filesystem.API().Fs)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
		if flags == nil {
			continue
		}
		if f := flags.Lookup(strings.ReplaceAll(k, "_", "-")); f != nil {
			if err := v.BindPFlag(k, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	dataDir := v.GetString("data_dir")
	v.SetConfigName("feedplay")
	v.SetConfigType("toml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DataDir:              dataDir,
		ProgressBackend:      strings.ToLower(v.GetString("progress_backend")),
		ProgressFile:         v.GetString("progress_file"),
		ResolveEnabled:       v.GetBool("resolve_enabled"),
		ResolveTTL:           v.GetDuration("resolve_ttl"),
		YtdlpFormat:          v.GetString("ytdlp_format"),
		BufferFrames:         v.GetInt("buffer_frames"),
		BufferReportInterval: v.GetDuration("buffer_report_interval"),
		LogLevel:             v.GetString("log_level"),
	}
	if cfg.ProgressFile == "" {
		cfg.ProgressFile = filepath.Join(cfg.DataDir, "progress.json")
	}

	switch cfg.ProgressBackend {
	case BackendSQLite, BackendFile:
	default:
		return nil, ErrConfig("PROGRESS_BACKEND must be sqlite or file")
	}
	if cfg.BufferFrames < 2 {
		return nil, ErrConfig("BUFFER_FRAMES must be at least 2")
	}
	if cfg.BufferReportInterval <= 0 {
		return nil, ErrConfig("BUFFER_REPORT_INTERVAL must be positive")
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}

	_ = filesystem.API().MkdirAll(cfg.DataDir, 0o755)
	return cfg, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, ErrConfig("LOG_LEVEL must be debug, info, warn or error")
	}
	return lvl, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
