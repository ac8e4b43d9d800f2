package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LabPy/lantz-core/backends/message"
	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/driver"
	"github.com/LabPy/lantz-core/feature"
	"github.com/LabPy/lantz-core/monitor"
)

// MonitorCmd represents the monitor command
var MonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll instrument features and serve updates over websocket",
	Long: `monitor — Follow instrument values live

Features are declared as name=QUERY pairs; each is polled at the
configured interval and changes are pushed to websocket clients on
/ws.

Examples:
  lantz monitor -r fungen -f amplitude=VOLT? -f frequency=FREQ?`,
	RunE: runMonitor,
}

var (
	monitorResource string
	monitorFeatures []string
	monitorInterval time.Duration
)

func init() {
	MonitorCmd.Flags().StringVarP(&monitorResource, "resource", "r", "", "Resource name or alias (required)")
	MonitorCmd.Flags().StringArrayVarP(&monitorFeatures, "feature", "f", nil, "Feature as name=QUERY (repeatable, required)")
	MonitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 0, "Poll interval (default from config)")
	MonitorCmd.MarkFlagRequired("resource")
	MonitorCmd.MarkFlagRequired("feature")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d, err := message.ViaResource("monitor", monitorResource, nil, config.CommSettings{})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", monitorResource, err)
	}
	defer driver.Release(d.ResourceName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer d.Finalize()

	names := make([]string, 0, len(monitorFeatures))
	for _, pair := range monitorFeatures {
		name, query, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid feature %q, expected name=QUERY", pair)
		}
		d.AddFeature(feature.Str(name, feature.Getter(query)))
		names = append(names, name)
	}

	interval := monitorInterval
	if interval == 0 {
		interval = time.Duration(cfg.GetMonitorPollInterval()) * time.Millisecond
	}

	m := monitor.New(interval)
	m.Watch(d, names...)
	m.Start(ctx)
	defer m.Stop()

	ws := monitor.NewServer(m, cfg.Monitor.AllowedOrigins)
	ws.Start(ctx)
	defer ws.Stop()

	mux := http.NewServeMux()
	mux.Handle("/ws", ws)

	addr := fmt.Sprintf(":%d", cfg.GetMonitorPort())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			pterm.Error.Printf("Monitor server failed: %v\n", err)
			cancel()
		}
	}()

	pterm.Success.Printf("Monitoring %s on ws://localhost%s/ws\n", monitorResource, addr)
	pterm.Info.Printf("Polling %d features every %s\n", len(names), interval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
