package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-relay/internal/config"
	"github.com/timvw/pane-relay/internal/events"
	"github.com/timvw/pane-relay/internal/model"
	"github.com/timvw/pane-relay/internal/monitor"
	telem "github.com/timvw/pane-relay/internal/otel"
	"github.com/timvw/pane-relay/internal/screen"
)

var flagEventSocket string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Collect hook events and stream pane status and screen updates",
	Long: `Listen for focus and activity events on a unix datagram socket and poll
all panes every refresh interval. Each poll writes JSON lines to stdout:

  {"type":"status","statuses":[...]}
  {"type":"screen","update":{"target":"s:0.1","seq":3,"kind":"delta","deltas":[...]}}

Screen updates are only written for panes whose content changed; the first
update for a pane carries its full buffer.

Changes to the loaded config file's filter, exclude_sessions and parallel
settings are picked up without a restart.

Hook events are JSON datagrams:
  {"kind":"focus","target":"s:0.1","ts":"2026-02-27T12:00:00Z"}
  {"kind":"activity","target":"s:0.1","ts":"...","state":"waiting_input"}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		socketPath := flagEventSocket
		if socketPath == "" {
			socketPath = rt.socketPath()
		}
		collector := events.NewCollector(func(e events.Event) {
			rt.monitor.HandleEvent(e)
		}, socketPath)
		collector.OnDrop = func(err error) {
			fmt.Fprintf(os.Stderr, "warning: hook event dropped: %v\n", err)
		}
		if err := collector.Start(ctx); err != nil {
			return fmt.Errorf("hook collector: %w", err)
		}
		fmt.Fprintf(os.Stderr, "hook collector: listening on %s\n", collector.SocketPath())

		gauges := telem.Gauges{
			MirroredPanes: func() int { return len(rt.monitor.Screens.Targets()) },
			FocusTracked:  rt.monitor.Suppressor.Tracked,
			Datagrams:     collector.Stats,
		}
		if err := rt.monitor.Metrics.RegisterGauges(gauges); err != nil {
			fmt.Fprintf(os.Stderr, "warning: otel gauges: %v\n", err)
		}

		interval := rt.cfg.RefreshDuration
		if interval <= 0 {
			interval = 2 * time.Second
		}

		var reload chan *config.Config
		if rt.cfg.ConfigFile != "" {
			reload = make(chan *config.Config, 1)
			go watchConfig(ctx, rt.cfg.ConfigFile, reload)
		}
		return serveLoop(ctx, rt.monitor, interval, os.Stdout, reload)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagEventSocket, "event-socket", "",
		"Unix datagram socket path for hook events")
	rootCmd.AddCommand(serveCmd)
}

type serveMessage struct {
	Type      string             `json:"type"`
	Statuses  []model.PaneStatus `json:"statuses,omitempty"`
	Attention []string           `json:"attention,omitempty"`
	Update    *screen.Update     `json:"update,omitempty"`
}

// watchConfig forwards reloaded configs to reload, keeping only the newest
// one pending.
func watchConfig(ctx context.Context, path string, reload chan *config.Config) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		select {
		case <-reload:
		default:
		}
		reload <- cfg
	}, func(err error) {
		fmt.Fprintf(os.Stderr, "warning: config reload: %v\n", err)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: config watch disabled: %v\n", err)
	}
}

// applyReload copies the pane selection settings of cfg into m. Values set
// by command-line flags win over the file.
func applyReload(m *monitor.Monitor, cfg *config.Config) {
	if flagFilter == "" {
		m.Filter = cfg.Filter
	}
	if flagParallel <= 0 {
		m.Parallel = cfg.Parallel
	}
	m.ExcludeSessions = cfg.ExcludeSessions
}

// serveLoop polls until ctx is cancelled. Poll errors are reported and the
// loop keeps going. Configs received on reload are applied between polls.
func serveLoop(ctx context.Context, m *monitor.Monitor, interval time.Duration, out io.Writer, reload <-chan *config.Config) error {
	enc := json.NewEncoder(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := m.Poll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: poll: %v\n", err)
		} else if err := writePoll(enc, res); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case cfg := <-reload:
			applyReload(m, cfg)
			fmt.Fprintf(os.Stderr, "config: reloaded %s\n", cfg.ConfigFile)
		case <-ticker.C:
		}
	}
}

func writePoll(enc *json.Encoder, res *monitor.PollResult) error {
	if err := enc.Encode(serveMessage{Type: "status", Statuses: res.Statuses, Attention: res.Attention}); err != nil {
		return err
	}
	for i := range res.Updates {
		if err := enc.Encode(serveMessage{Type: "screen", Update: &res.Updates[i]}); err != nil {
			return err
		}
	}
	return nil
}
