package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything atlas reads from its config file.
type Config struct {
	APIBaseURL        string
	DataDir           string
	RequestTimeout    time.Duration
	SearchDebounce    time.Duration
	RefreshEvery      time.Duration
	RequestsPerSecond float64
	MetricsAddr       string
	LogLevel          string
	MapsEmbedKey      string
}

const (
	defaultConfigPath        = "~/.config/atlas/config.toml"
	defaultDataDir           = "~/.local/share/atlas"
	defaultAPIBaseURL        = "https://restcountries.com/v3.1"
	defaultRequestTimeout    = 10 * time.Second
	defaultSearchDebounce    = 400 * time.Millisecond
	defaultRefreshEvery      = time.Hour
	defaultRequestsPerSecond = 5
	defaultLogLevel          = "info"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBaseURL:        defaultAPIBaseURL,
		DataDir:           mustExpand(defaultDataDir),
		RequestTimeout:    defaultRequestTimeout,
		SearchDebounce:    defaultSearchDebounce,
		RefreshEvery:      defaultRefreshEvery,
		RequestsPerSecond: defaultRequestsPerSecond,
		LogLevel:          defaultLogLevel,
	}
}

// Load locates and parses the atlas config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBaseURL        string  `toml:"api_base_url"`
		DataDir           string  `toml:"data_dir"`
		RequestTimeout    string  `toml:"request_timeout"`
		SearchDebounceMS  int     `toml:"search_debounce_ms"`
		RefreshMinutes    int     `toml:"refresh_minutes"`
		RequestsPerSecond float64 `toml:"requests_per_second"`
		MetricsAddr       string  `toml:"metrics_addr"`
		LogLevel          string  `toml:"log_level"`
		MapsEmbedKey      string  `toml:"maps_embed_key"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimRight(strings.TrimSpace(raw.APIBaseURL), "/"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.RequestTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: request_timeout %q: %w", v, err)
		}
		if timeout > 0 {
			cfg.RequestTimeout = timeout
		}
	}
	if raw.SearchDebounceMS > 0 {
		cfg.SearchDebounce = time.Duration(raw.SearchDebounceMS) * time.Millisecond
	}
	if raw.RefreshMinutes > 0 {
		cfg.RefreshEvery = time.Duration(raw.RefreshMinutes) * time.Minute
	}
	if raw.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = raw.RequestsPerSecond
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}
	cfg.MapsEmbedKey = strings.TrimSpace(raw.MapsEmbedKey)

	return cfg, nil
}

// StorePath returns the SQLite file holding sessions and favorites.
func (c Config) StorePath() string {
	return filepath.Join(c.dataDir(), "atlas.db")
}

// LogPath returns the path of the structured log file.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "atlas.log")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
