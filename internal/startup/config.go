package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"asset-browser/internal/logging"
)

// FileConfig is the shape of the optional TOML config file. Every field
// can be overridden by its environment variable.
type FileConfig struct {
	AssetRoot         string `toml:"asset_root"`
	DataDir           string `toml:"data_dir"`
	CacheDir          string `toml:"cache_dir"`
	Port              string `toml:"port"`
	MetricsPort       string `toml:"metrics_port"`
	ScanInterval      string `toml:"scan_interval"`
	ThumbnailInterval string `toml:"thumbnail_interval"`
	ThumbnailSize     int    `toml:"thumbnail_size"`
	LogHealthChecks   *bool  `toml:"log_health_checks"`
	MetricsEnabled    *bool  `toml:"metrics_enabled"`
}

// Config holds the resolved application configuration.
type Config struct {
	AssetRoot         string
	DataDir           string
	CacheDir          string
	Port              string
	MetricsPort       string
	ScanInterval      time.Duration
	ThumbnailInterval time.Duration
	ThumbnailSize     int
	LogHealthChecks   bool
	MetricsEnabled    bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string
}

// ConfigFilePath returns the config file location: ASSET_BROWSER_CONFIG
// if set, else $XDG_CONFIG_HOME/asset-browser/config.toml (with the usual
// ~/.config fallback).
func ConfigFilePath() string {
	if path := os.Getenv("ASSET_BROWSER_CONFIG"); path != "" {
		return path
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "asset-browser", "config.toml")
}

// loadFileConfig decodes the TOML file at path. A missing file is not an
// error; a malformed one is.
func loadFileConfig(path string, info logFunc) (*FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return &cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	info("  Config file:         %s", path)
	return &cfg, nil
}

type logFunc func(format string, args ...interface{})

// LoadConfig resolves configuration from the TOML file and environment,
// logs it, and prepares directories. The data directory must be writable;
// a read-only cache directory is fatal too since every scan writes
// thumbnails.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	return loadConfig(logging.Info)
}

// LoadConfigQuiet resolves the same configuration without the startup
// banner or per-setting log lines. Used by one-shot CLI commands.
func LoadConfigQuiet() (*Config, error) {
	return loadConfig(logging.Debug)
}

func loadConfig(info logFunc) (*Config, error) {
	file, err := loadFileConfig(ConfigFilePath(), info)
	if err != nil {
		return nil, err
	}

	assetRoot := getEnv("ASSET_ROOT", fileOr(file.AssetRoot, ""))
	dataDir := getEnv("DATA_DIR", fileOr(file.DataDir, defaultDataDir()))
	cacheDir := getEnv("CACHE_DIR", fileOr(file.CacheDir, defaultCacheDir()))
	port := getEnv("PORT", fileOr(file.Port, "8080"))
	metricsPort := getEnv("METRICS_PORT", fileOr(file.MetricsPort, "9090"))
	scanIntervalStr := getEnv("SCAN_INTERVAL", fileOr(file.ScanInterval, "30m"))
	thumbIntervalStr := getEnv("THUMBNAIL_INTERVAL", fileOr(file.ThumbnailInterval, "6h"))
	thumbSize := getEnvInt("THUMBNAIL_SIZE", intOr(file.ThumbnailSize, 256))
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", boolOr(file.LogHealthChecks, false))
	metricsEnabled := getEnvBool("METRICS_ENABLED", boolOr(file.MetricsEnabled, true))

	info("  ASSET_ROOT:          %s", orUnset(assetRoot))
	info("  DATA_DIR:            %s", dataDir)
	info("  CACHE_DIR:           %s", cacheDir)
	info("  PORT:                %s", port)
	info("  METRICS_PORT:        %s", metricsPort)
	info("  METRICS_ENABLED:     %v", metricsEnabled)
	info("  SCAN_INTERVAL:       %s", scanIntervalStr)
	info("  THUMBNAIL_INTERVAL:  %s", thumbIntervalStr)
	info("  THUMBNAIL_SIZE:      %d", thumbSize)
	info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	info("  LOG_LEVEL:           %s", logging.GetLevel())

	scanInterval, err := time.ParseDuration(scanIntervalStr)
	if err != nil {
		logging.Warn("  Invalid SCAN_INTERVAL, using default: 30m")
		scanInterval = 30 * time.Minute
	}
	thumbInterval, err := time.ParseDuration(thumbIntervalStr)
	if err != nil {
		logging.Warn("  Invalid THUMBNAIL_INTERVAL, using default: 6h")
		thumbInterval = 6 * time.Hour
	}
	if thumbSize < 16 || thumbSize > 2048 {
		logging.Warn("  THUMBNAIL_SIZE %d out of range, using default: 256", thumbSize)
		thumbSize = 256
	}

	info("")
	info("------------------------------------------------------------")
	info("DIRECTORY SETUP")
	info("------------------------------------------------------------")

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	info("  Data directory (absolute):  %s", dataDir)

	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	info("  Cache directory (absolute): %s", cacheDir)

	if assetRoot != "" {
		assetRoot, err = filepath.Abs(assetRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve asset root path: %w", err)
		}
		// Missing asset root is a warning: the CLI scans arbitrary folders
		// and serve mode can fall back to the last scanned root.
		if err := ensureDirectory(assetRoot, "asset root"); err != nil {
			logging.Warn("  Asset root issue: %v", err)
		}
	}

	config := &Config{
		AssetRoot:         assetRoot,
		DataDir:           dataDir,
		CacheDir:          cacheDir,
		Port:              port,
		MetricsPort:       metricsPort,
		ScanInterval:      scanInterval,
		ThumbnailInterval: thumbInterval,
		ThumbnailSize:     thumbSize,
		LogHealthChecks:   logHealthChecks,
		MetricsEnabled:    metricsEnabled,
		DatabasePath:      filepath.Join(dataDir, "catalog.db"),
		ThumbnailDir:      filepath.Join(cacheDir, "thumbnails"),
	}

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for catalog): %w", err)
	}
	info("  [OK] Data directory is writable")

	if err := ensureDirectory(config.ThumbnailDir, "thumbnail cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(config.ThumbnailDir); err != nil {
		return nil, fmt.Errorf("thumbnail cache directory is not writable: %w", err)
	}
	info("  [OK] Thumbnail cache directory is writable")

	return config, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "asset-browser")
}

func defaultCacheDir() string {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return filepath.Join(base, "asset-browser")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./cache"
	}
	return filepath.Join(home, ".cache", "asset-browser")
}

func fileOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func intOr(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func boolOr(value *bool, fallback bool) bool {
	if value != nil {
		return *value
	}
	return fallback
}

func orUnset(value string) string {
	if value == "" {
		return "(unset)"
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
