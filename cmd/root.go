package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/timvw/pane-relay/internal/activity"
	"github.com/timvw/pane-relay/internal/config"
	"github.com/timvw/pane-relay/internal/events"
	"github.com/timvw/pane-relay/internal/lookup"
	"github.com/timvw/pane-relay/internal/monitor"
	"github.com/timvw/pane-relay/internal/mux"
	telem "github.com/timvw/pane-relay/internal/otel"
	"github.com/timvw/pane-relay/internal/screen"
)

// Version is injected at build time with -ldflags "-X github.com/timvw/pane-relay/cmd.Version=...".
var Version = "dev"

var (
	// Global flags.
	flagMux      string
	flagFilter   string
	flagParallel int
)

var rootCmd = &cobra.Command{
	Use:   "pane-relay",
	Short: "Mirror and monitor terminal panes running coding agents",
	Long: `pane-relay watches terminal multiplexer panes running interactive coding
agents. It reports each pane's branch, pull request and activity state, and
keeps viewers in sync with the pane's screen through small line deltas.

Configuration is loaded from .pane-relay.yaml (or .pane-relay.toml),
~/.config/pane-relay/config.yaml (or config.toml) and PANE_RELAY_*
environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = Version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("PANE_RELAY_MUX", ""), "terminal multiplexer: tmux (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagFilter, "filter", "", "regex pattern to filter by session name (default: config filter)")
	rootCmd.PersistentFlags().IntVar(&flagParallel, "parallel", 0, "number of panes to process concurrently (default: config parallel)")
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer() (mux.Multiplexer, error) {
	return mux.FromName(flagMux)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// runtime is the wiring shared by the commands that need more than the
// multiplexer.
type runtime struct {
	cfg     *config.Config
	tel     *telem.Telemetry
	monitor *monitor.Monitor
}

// newRuntime loads configuration, starts telemetry and builds the monitor.
// Callers must call close.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "config: loaded %s\n", cfg.ConfigFile)
	}
	if flagFilter != "" {
		cfg.Filter = flagFilter
	}
	if flagParallel > 0 {
		cfg.Parallel = flagParallel
	}

	m, err := getMultiplexer()
	if err != nil {
		return nil, fmt.Errorf("no supported terminal multiplexer found: %w", err)
	}

	telem.Version = Version
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint:   cfg.OTELEndpoint,
		Headers:    cfg.OTELHeaders,
		Attributes: map[string]string{"pane_relay.mux": m.Name()},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
	}
	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	resolver := lookup.NewResolver(lookup.ExecRunner{}, lookup.Config{
		BranchTTL:    cfg.BranchCacheTTLDuration,
		PRTTL:        cfg.PRCacheTTLDuration,
		MaxEntries:   cfg.CacheMaxEntries,
		Timeout:      cfg.LookupTimeoutDuration,
		SingleFlight: cfg.SingleFlight,
	}, metrics)

	return &runtime{
		cfg: cfg,
		tel: tel,
		monitor: &monitor.Monitor{
			Mux:             m,
			Lookups:         resolver,
			Suppressor:      activity.New(),
			Activity:        events.NewStore(10 * time.Minute),
			Screens:         screen.NewPublisher(),
			Filter:          cfg.Filter,
			ExcludeSessions: cfg.ExcludeSessions,
			Parallel:        cfg.Parallel,
			SelfTarget:      resolveSelfTarget(),
			Metrics:         metrics,
		},
	}, nil
}

func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.tel.Shutdown(ctx)
}

func (r *runtime) socketPath() string {
	return events.SocketPath(r.cfg.EventSocket)
}

// resolveSelfTarget returns the tmux target (session:window.pane) for the pane
// running this process. Uses TMUX_PANE env var and tmux display-message.
// Returns empty string if not running inside tmux or resolution fails.
func resolveSelfTarget() string {
	paneID := os.Getenv("TMUX_PANE")
	if paneID == "" {
		return ""
	}
	cmd := exec.Command("tmux", "display-message", "-t", paneID,
		"-p", "#{session_name}:#{window_index}.#{pane_index}")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// sendFocus tells a running collector that target gained focus.
func sendFocus(socketPath, target string) error {
	return events.Send(socketPath, events.NewFocus(target, time.Now()))
}
