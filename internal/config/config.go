// Package config loads pane-relay configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (PANE_RELAY_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order (YAML or TOML, decided by extension):
//  1. .pane-relay.yaml, .pane-relay.toml in current directory
//  2. ~/.config/pane-relay/config.yaml, ~/.config/pane-relay/config.toml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all pane-relay configuration.
type Config struct {
	// Pane selection
	Filter          string   `yaml:"filter" toml:"filter"`
	ExcludeSessions []string `yaml:"exclude_sessions" toml:"exclude_sessions"` // exact names or "prefix*" globs
	Parallel        int      `yaml:"parallel" toml:"parallel"`

	// Polling and lookup caches. Durations are Go duration strings.
	Refresh         string `yaml:"refresh" toml:"refresh"`
	BranchCacheTTL  string `yaml:"branch_cache_ttl" toml:"branch_cache_ttl"`
	PRCacheTTL      string `yaml:"pr_cache_ttl" toml:"pr_cache_ttl"`
	CacheMaxEntries int    `yaml:"cache_max_entries" toml:"cache_max_entries"`
	LookupTimeout   string `yaml:"lookup_timeout" toml:"lookup_timeout"`
	SingleFlight    bool   `yaml:"single_flight" toml:"single_flight"` // share one lookup among concurrent misses

	// Event socket path; empty means events.SocketPath("").
	EventSocket string `yaml:"event_socket" toml:"event_socket"`

	// Theme for highlighted output: "auto" (default, follows the terminal background), "dark" or "light"
	Theme string `yaml:"theme" toml:"theme"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint" toml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers" toml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not read from the file, set after loading)
	RefreshDuration        time.Duration `yaml:"-" toml:"-"`
	BranchCacheTTLDuration time.Duration `yaml:"-" toml:"-"`
	PRCacheTTLDuration     time.Duration `yaml:"-" toml:"-"`
	LookupTimeoutDuration  time.Duration `yaml:"-" toml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-" toml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Parallel:        8,
		Refresh:         "2s",
		BranchCacheTTL:  "3s",
		PRCacheTTL:      "60s",
		CacheMaxEntries: 256,
		LookupTimeout:   "2s",
		Theme:           "auto",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		if err := cfg.mergeFileData(path, data); err != nil {
			return nil, err
		}
	}
	return cfg.finish()
}

// LoadFile is Load with an explicit config file instead of the search order.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Defaults()
	if err := cfg.mergeFileData(path, data); err != nil {
		return nil, err
	}
	return cfg.finish()
}

func (cfg *Config) mergeFileData(path string, data []byte) error {
	var fileCfg Config
	if err := unmarshalFile(path, data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.ConfigFile = path
	mergeFile(cfg, &fileCfg)
	return nil
}

func unmarshalFile(path string, data []byte, dst *Config) error {
	if filepath.Ext(path) == ".toml" {
		return toml.Unmarshal(data, dst)
	}
	return yaml.Unmarshal(data, dst)
}

func (cfg *Config) finish() (*Config, error) {
	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) parseDurations() error {
	durations := []struct {
		name     string
		raw      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"refresh interval", cfg.Refresh, 2 * time.Second, &cfg.RefreshDuration},
		{"branch cache TTL", cfg.BranchCacheTTL, 3 * time.Second, &cfg.BranchCacheTTLDuration},
		{"PR cache TTL", cfg.PRCacheTTL, 60 * time.Second, &cfg.PRCacheTTLDuration},
		{"lookup timeout", cfg.LookupTimeout, 2 * time.Second, &cfg.LookupTimeoutDuration},
	}
	for _, d := range durations {
		v, err := parseDurationOrDisable(d.raw, d.fallback)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

// searchPaths lists candidate config files in priority order.
func searchPaths() []string {
	paths := []string{".pane-relay.yaml", ".pane-relay.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "pane-relay")
		paths = append(paths, filepath.Join(dir, "config.yaml"), filepath.Join(dir, "config.toml"))
	}
	return paths
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	for _, path := range searchPaths() {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Filter != "" {
		cfg.Filter = file.Filter
	}
	if len(file.ExcludeSessions) > 0 {
		cfg.ExcludeSessions = file.ExcludeSessions
	}
	if file.Parallel > 0 {
		cfg.Parallel = file.Parallel
	}
	if file.Refresh != "" {
		cfg.Refresh = file.Refresh
	}
	if file.BranchCacheTTL != "" {
		cfg.BranchCacheTTL = file.BranchCacheTTL
	}
	if file.PRCacheTTL != "" {
		cfg.PRCacheTTL = file.PRCacheTTL
	}
	if file.CacheMaxEntries > 0 {
		cfg.CacheMaxEntries = file.CacheMaxEntries
	}
	if file.LookupTimeout != "" {
		cfg.LookupTimeout = file.LookupTimeout
	}
	if file.SingleFlight {
		cfg.SingleFlight = true
	}
	if file.EventSocket != "" {
		cfg.EventSocket = file.EventSocket
	}
	if file.Theme != "" {
		cfg.Theme = file.Theme
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("PANE_RELAY_FILTER"); v != "" {
		cfg.Filter = v
	}
	if v := os.Getenv("PANE_RELAY_EXCLUDE_SESSIONS"); v != "" {
		cfg.ExcludeSessions = splitList(v)
	}
	if v := os.Getenv("PANE_RELAY_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid PANE_RELAY_PARALLEL %q", v)
		}
		cfg.Parallel = n
	}
	if v := os.Getenv("PANE_RELAY_REFRESH"); v != "" {
		cfg.Refresh = v
	}
	if v := os.Getenv("PANE_RELAY_BRANCH_CACHE_TTL"); v != "" {
		cfg.BranchCacheTTL = v
	}
	if v := os.Getenv("PANE_RELAY_PR_CACHE_TTL"); v != "" {
		cfg.PRCacheTTL = v
	}
	if v := os.Getenv("PANE_RELAY_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid PANE_RELAY_CACHE_MAX_ENTRIES %q", v)
		}
		cfg.CacheMaxEntries = n
	}
	if v := os.Getenv("PANE_RELAY_LOOKUP_TIMEOUT"); v != "" {
		cfg.LookupTimeout = v
	}
	if v := os.Getenv("PANE_RELAY_SINGLE_FLIGHT"); v == "true" || v == "1" {
		cfg.SingleFlight = true
	}
	if v := os.Getenv("PANE_RELAY_EVENT_SOCKET"); v != "" {
		cfg.EventSocket = v
	}
	if v := os.Getenv("PANE_RELAY_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
	return nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// MatchesExcludeList reports whether name matches any pattern. A pattern is
// either an exact session name or a prefix ending in "*".
func MatchesExcludeList(name string, patterns []string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if name == p {
			return true
		}
	}
	return false
}
