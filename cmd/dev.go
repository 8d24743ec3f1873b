package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/kit"
	"github.com/conneroisu/pagegen/internal/metrics"
	"github.com/conneroisu/pagegen/internal/reload"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"w", "watch"},
	Short:   "Generate and regenerate on changes",
	Long: `Generate router modules, then watch the project and regenerate when pages
or layouts are added or removed. Bursts of file events are coalesced into a
single pass.

With --addr the command also serves Prometheus metrics on /metrics and a
WebSocket on /_pagegen/ws that announces the files written by every pass.

Examples:
  pagegen dev
  pagegen dev --debounce 500ms
  pagegen dev --addr :9090 --origin "localhost:*"`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().Duration("debounce", 200*time.Millisecond, "quiet window before regenerating")
	devCmd.Flags().String("addr", "", "address to serve metrics and reload notifications on")
	devCmd.Flags().StringSlice("origin", nil, "origin patterns allowed to open the reload socket")
	_ = viper.BindPFlag("watch.debounce", devCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("dev.addr", devCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("dev.origins", devCmd.Flags().Lookup("origin"))
}

func runDev(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := loadProject(ctx, afero.NewOsFs())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(registry))

	if addr := p.config.Dev.Addr; addr != "" {
		hub := reload.NewHub(p.logger, p.config.Dev.Origins...)
		defer hub.Shutdown()
		hooks.On(p.session.Hooks, kit.HookTemplatesGenerated, hub.OnGenerated)

		srv := &http.Server{
			Addr:              addr,
			Handler:           devMux(registry, hub),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.logger.Error(ctx, err, "Dev server failed", "addr", addr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		p.logger.Info(ctx, "Serving metrics and reload socket", "addr", addr)
	}

	b, err := p.builder(collector)
	if err != nil {
		return err
	}
	if err := b.GenerateApp(ctx); err != nil {
		// The first pass may fail on a half-written page; keep watching so
		// the next change can fix it.
		p.errors.Handle(ctx, err)
	}

	fw, err := b.Watch(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = fw.Stop() }()

	<-ctx.Done()
	p.logger.Info(context.Background(), "Shutting down")
	return nil
}

func devMux(registry *prometheus.Registry, hub *reload.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.Handle(reload.Path, hub)
	return mux
}
