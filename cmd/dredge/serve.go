package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"dredge/internal/adapters/httpapi"
	"dredge/internal/blob"
	"dredge/internal/core"
	promrecorder "dredge/internal/infra/metrics/prometheus"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve comparisons, bins and display tables over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			loader, err := s.loader(ctx, core.WithMetrics(promrecorder.NewRecorder(reg)))
			if err != nil {
				return err
			}
			store, err := blob.Open(ctx)
			if err != nil {
				return err
			}
			worker := httpapi.NewWorker(loader, store, s.logger)
			worker.Start()

			api := httpapi.NewHandler(loader)
			api.Exports = worker
			api.Logger = s.logger
			srv := &http.Server{Addr: addr, Handler: newMux(api, reg), ReadHeaderTimeout: 10 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				s.logger.Info("listening", "addr", addr, "project", s.project.Key(), "blob_driver", string(store.Driver()))
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					_ = worker.Stop(context.Background())
					return err
				}
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.logger.Info("shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return worker.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	return cmd
}

func newMux(api http.Handler, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}
