package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/resourcectl/internal/api/middleware"
	"github.com/pratik-mahalle/resourcectl/internal/worker"
)

func newResourceWatchCmd(a *app) *cobra.Command {
	var schedule, metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll resource status and print every change until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if schedule == "" {
				schedule = a.cfg.PollSchedule
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.MetricsAddr
			}

			poller, err := worker.NewStatusPoller(a.manager, schedule, a.log, a.metrics)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			poller.OnTransition(func(t worker.Transition) {
				line := fmt.Sprintf("%s  %s", time.Now().Format(time.RFC3339), t)
				if t.Error != nil && t.Error.Tip != "" {
					line += "  (" + t.Error.Tip + ")"
				}
				fmt.Fprintln(out, line)
			})

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := a.metricsServer(metricsAddr)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.ErrorWithErr(err, "Metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				a.log.Infof("Serving metrics on %s/metrics", metricsAddr)
			}

			if err := poller.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching resources (%s), press Ctrl-C to stop\n", schedule)

			<-ctx.Done()
			poller.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "poll schedule, e.g. '@every 30s' (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func (a *app) metricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(a.log))
	r.Handle("/metrics", a.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
