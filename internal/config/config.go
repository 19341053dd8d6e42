// Package config loads the optional JSON config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"duview/pkg/utils"
)

type Config struct {
	Format           string   `json:"format"`
	Concurrency      int      `json:"concurrency"`
	FollowSymlinks   bool     `json:"followSymlinks"`
	CrossFilesystems bool     `json:"crossFilesystems"`
	Excludes         []string `json:"exclude"`
	LogFile          string   `json:"logFile"`
	LogLevel         string   `json:"logLevel"`
	LogFormat        string   `json:"logFormat"`
	DryRun           bool     `json:"dryRun"`
}

// Default is the configuration used when no file sets a value.
func Default() Config {
	return Config{
		Format:           utils.FormatMetric.String(),
		CrossFilesystems: true,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// ResolvePath picks the config file to load. explicit wins; otherwise the
// first existing default path. The bool reports whether a file was found.
func ResolvePath(root, explicit string) (string, bool, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", false, fmt.Errorf("config %s: not a readable file", explicit)
		}
		return explicit, true, nil
	}
	for _, candidate := range defaultPaths(root) {
		if fileExists(candidate) {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// Load reads path on top of Default.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultPaths(root string) []string {
	paths := []string{}
	if root != "" {
		paths = append(paths, filepath.Join(root, ".duview.json"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "duview", "config.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "duview", "config.json"))
	}
	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Normalize validates cfg and drops empty exclude patterns.
func Normalize(cfg Config) (Config, error) {
	if cfg.Concurrency < 0 {
		return Config{}, errors.New("config: concurrency must be >= 0")
	}
	if _, err := utils.ParseByteFormat(cfg.Format); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("config: unknown log level %q", cfg.LogLevel)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "json", "console":
	default:
		return Config{}, fmt.Errorf("config: unknown log format %q", cfg.LogFormat)
	}
	excludes := cfg.Excludes[:0:0]
	for _, p := range cfg.Excludes {
		if p = strings.TrimSpace(p); p != "" {
			excludes = append(excludes, p)
		}
	}
	cfg.Excludes = excludes
	return cfg, nil
}

// ByteFormat returns the parsed Format. Call Normalize first.
func (c Config) ByteFormat() utils.ByteFormat {
	f, _ := utils.ParseByteFormat(c.Format)
	return f
}
