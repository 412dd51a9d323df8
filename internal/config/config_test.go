package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Parallel != 8 {
		t.Errorf("Parallel: got %d, want %d", cfg.Parallel, 8)
	}
	if cfg.Refresh != "2s" {
		t.Errorf("Refresh: got %q, want %q", cfg.Refresh, "2s")
	}
	if cfg.BranchCacheTTL != "3s" {
		t.Errorf("BranchCacheTTL: got %q, want %q", cfg.BranchCacheTTL, "3s")
	}
	if cfg.PRCacheTTL != "60s" {
		t.Errorf("PRCacheTTL: got %q, want %q", cfg.PRCacheTTL, "60s")
	}
	if cfg.CacheMaxEntries != 256 {
		t.Errorf("CacheMaxEntries: got %d, want %d", cfg.CacheMaxEntries, 256)
	}
	if cfg.SingleFlight {
		t.Errorf("SingleFlight: got true, want false")
	}
}

func TestMatchesExcludeList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		patterns []string
		want     bool
	}{
		{
			name:     "exact match",
			input:    "my-session",
			patterns: []string{"my-session"},
			want:     true,
		},
		{
			name:     "exact no match",
			input:    "my-session",
			patterns: []string{"other-session"},
			want:     false,
		},
		{
			name:     "prefix glob match",
			input:    "AIGGTM-1234-feature",
			patterns: []string{"AIGGTM-*"},
			want:     true,
		},
		{
			name:     "prefix glob no match",
			input:    "my-session",
			patterns: []string{"AIGGTM-*"},
			want:     false,
		},
		{
			name:     "prefix glob exact prefix",
			input:    "AIGGTM-",
			patterns: []string{"AIGGTM-*"},
			want:     true,
		},
		{
			name:     "empty patterns",
			input:    "anything",
			patterns: []string{},
			want:     false,
		},
		{
			name:     "nil patterns",
			input:    "anything",
			patterns: nil,
			want:     false,
		},
		{
			name:     "multiple patterns first match",
			input:    "AIGGTM-999",
			patterns: []string{"foo", "AIGGTM-*", "bar"},
			want:     true,
		},
		{
			name:     "multiple patterns last match",
			input:    "bar",
			patterns: []string{"foo", "AIGGTM-*", "bar"},
			want:     true,
		},
		{
			name:     "star only matches everything",
			input:    "anything",
			patterns: []string{"*"},
			want:     true,
		},
		{
			name:     "empty name with star",
			input:    "",
			patterns: []string{"*"},
			want:     true,
		},
		{
			name:     "empty name no match",
			input:    "",
			patterns: []string{"foo"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesExcludeList(tt.input, tt.patterns)
			if got != tt.want {
				t.Errorf("MatchesExcludeList(%q, %v) = %v, want %v",
					tt.input, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDisable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMs  int64 // milliseconds, -1 means check error
		wantErr bool
	}{
		{"empty returns fallback", "", 5000, false},
		{"zero disables", "0", 0, false},
		{"off disables", "off", 0, false},
		{"disable disables", "disable", 0, false},
		{"valid duration", "30s", 30000, false},
		{"valid short duration", "500ms", 500, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDurationOrDisable(tt.input, 5000*1e6) // 5s fallback in ns
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDurationOrDisable(%q): error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Milliseconds() != tt.wantMs {
				t.Errorf("parseDurationOrDisable(%q) = %v, want %dms", tt.input, got, tt.wantMs)
			}
		})
	}
}

var relayEnv = []string{
	"PANE_RELAY_FILTER", "PANE_RELAY_EXCLUDE_SESSIONS", "PANE_RELAY_PARALLEL",
	"PANE_RELAY_REFRESH", "PANE_RELAY_BRANCH_CACHE_TTL", "PANE_RELAY_PR_CACHE_TTL",
	"PANE_RELAY_CACHE_MAX_ENTRIES", "PANE_RELAY_LOOKUP_TIMEOUT", "PANE_RELAY_SINGLE_FLIGHT",
	"PANE_RELAY_EVENT_SOCKET", "PANE_RELAY_THEME",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
}

// chdirWithConfig writes content to .pane-relay.yaml in a temp dir and
// changes into it for the duration of the test.
func chdirWithConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".pane-relay.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	origDir, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(origDir) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	clearRelayEnv(t)
}

func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range relayEnv {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile(t *testing.T) {
	chdirWithConfig(t, `parallel: 5
refresh: "10s"
branch_cache_ttl: off
pr_cache_ttl: "2m"
cache_max_entries: 32
single_flight: true
theme: light
exclude_sessions:
  - "AIGGTM-*"
  - "private"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ConfigFile != ".pane-relay.yaml" {
		t.Errorf("ConfigFile: got %q, want %q", cfg.ConfigFile, ".pane-relay.yaml")
	}
	if cfg.Parallel != 5 {
		t.Errorf("Parallel: got %d, want %d", cfg.Parallel, 5)
	}
	if cfg.RefreshDuration != 10*time.Second {
		t.Errorf("RefreshDuration: got %v, want 10s", cfg.RefreshDuration)
	}
	if cfg.BranchCacheTTLDuration != 0 {
		t.Errorf("BranchCacheTTLDuration: got %v, want 0 (disabled)", cfg.BranchCacheTTLDuration)
	}
	if cfg.PRCacheTTLDuration != 2*time.Minute {
		t.Errorf("PRCacheTTLDuration: got %v, want 2m", cfg.PRCacheTTLDuration)
	}
	if cfg.LookupTimeoutDuration != 2*time.Second {
		t.Errorf("LookupTimeoutDuration: got %v, want default 2s", cfg.LookupTimeoutDuration)
	}
	if cfg.CacheMaxEntries != 32 {
		t.Errorf("CacheMaxEntries: got %d, want %d", cfg.CacheMaxEntries, 32)
	}
	if !cfg.SingleFlight {
		t.Errorf("SingleFlight: got false, want true")
	}
	if cfg.Theme != "light" {
		t.Errorf("Theme: got %q, want %q", cfg.Theme, "light")
	}
	if len(cfg.ExcludeSessions) != 2 {
		t.Fatalf("ExcludeSessions: got %d entries, want 2", len(cfg.ExcludeSessions))
	}
	if cfg.ExcludeSessions[0] != "AIGGTM-*" {
		t.Errorf("ExcludeSessions[0]: got %q, want %q", cfg.ExcludeSessions[0], "AIGGTM-*")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	chdirWithConfig(t, `parallel: 5
filter: "^work"
exclude_sessions: ["a"]
`)

	t.Setenv("PANE_RELAY_PARALLEL", "3")
	t.Setenv("PANE_RELAY_FILTER", "^play")
	t.Setenv("PANE_RELAY_EXCLUDE_SESSIONS", "x, y* ,")
	t.Setenv("PANE_RELAY_SINGLE_FLIGHT", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Parallel != 3 {
		t.Errorf("Parallel: got %d, want %d (env should override file)", cfg.Parallel, 3)
	}
	if cfg.Filter != "^play" {
		t.Errorf("Filter: got %q, want %q (env should override file)", cfg.Filter, "^play")
	}
	if !reflect.DeepEqual(cfg.ExcludeSessions, []string{"x", "y*"}) {
		t.Errorf("ExcludeSessions: got %q, want [x y*]", cfg.ExcludeSessions)
	}
	if !cfg.SingleFlight {
		t.Errorf("SingleFlight: got false, want true")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad duration", file: "refresh: soon\n"},
		{name: "bad parallel env", env: map[string]string{"PANE_RELAY_PARALLEL": "many"}},
		{name: "zero cache size env", env: map[string]string{"PANE_RELAY_CACHE_MAX_ENTRIES": "0"}},
		{name: "bad yaml", file: "parallel: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirWithConfig(t, tt.file)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile_TOML(t *testing.T) {
	clearRelayEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `parallel = 4
refresh = "5s"
branch_cache_ttl = "off"
exclude_sessions = ["scratch", "tmp-*"]
theme = "dark"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile: got %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Parallel != 4 {
		t.Errorf("Parallel: got %d, want %d", cfg.Parallel, 4)
	}
	if cfg.RefreshDuration != 5*time.Second {
		t.Errorf("RefreshDuration: got %v, want 5s", cfg.RefreshDuration)
	}
	if cfg.BranchCacheTTLDuration != 0 {
		t.Errorf("BranchCacheTTLDuration: got %v, want 0 (disabled)", cfg.BranchCacheTTLDuration)
	}
	if !reflect.DeepEqual(cfg.ExcludeSessions, []string{"scratch", "tmp-*"}) {
		t.Errorf("ExcludeSessions: got %q", cfg.ExcludeSessions)
	}
	if cfg.Theme != "dark" {
		t.Errorf("Theme: got %q, want %q", cfg.Theme, "dark")
	}
}

func TestLoad_FindsTOMLInWorkingDir(t *testing.T) {
	chdirWithConfig(t, "")
	if err := os.Remove(".pane-relay.yaml"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".pane-relay.toml", []byte("parallel = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != ".pane-relay.toml" {
		t.Errorf("ConfigFile: got %q, want %q", cfg.ConfigFile, ".pane-relay.toml")
	}
	if cfg.Parallel != 2 {
		t.Errorf("Parallel: got %d, want %d", cfg.Parallel, 2)
	}
}

func TestLoadFile_BadTOML(t *testing.T) {
	clearRelayEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("parallel = [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearRelayEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("parallel: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { got <- cfg }, nil)
	}()

	// The watcher registers asynchronously; keep rewriting until a reload lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			// a truncated file mid-write reloads as defaults
			if cfg.Parallel != 6 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned error: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("parallel: 6\n"), 0644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatch_ReportsInvalidReload(t *testing.T) {
	clearRelayEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("parallel: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 16)
	go Watch(ctx, path, func(*Config) {}, func(err error) { errs <- err })

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-errs:
			if err == nil {
				t.Error("expected non-nil reload error")
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("refresh: soon\n"), 0644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload error")
		}
	}
}
