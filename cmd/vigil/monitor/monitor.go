// Package monitorcmd implements "vigil monitor": the long-running
// assessment and healing loop.
package monitorcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"vigil/cmd/vigil/cmdutil"
	"vigil/internal/telemetry"
)

// Cmd returns the "vigil monitor" command.
func Cmd(cfg *cmdutil.ConfigFlag) *cobra.Command {
	var (
		interval time.Duration
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Continuously assess all teams and heal per policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := cfg.LoadSet()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTraces, err := telemetry.Setup(ctx)
			if err != nil {
				return fmt.Errorf("tracing setup: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTraces(shutdownCtx); err != nil {
					slog.Warn("trace shutdown", "err", err)
				}
			}()

			rt, err := cmdutil.BuildRuntime(ctx, set, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			go rt.Clock.Run(ctx)
			go serveMetrics(ctx, listen, rt)
			go reloadOnHUP(ctx, cfg, rt)
			go heartbeat(ctx, rt)

			if interval <= 0 {
				interval = set.Settings.Interval()
			}
			err = rt.Engine.Run(ctx, interval, set.Settings.Concurrency())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Assessment interval (default from policy settings)")
	cmd.Flags().StringVar(&listen, "listen", ":9815", "Metrics listen address")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, rt *cmdutil.Runtime) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Sink.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics endpoint failed", "err", err)
	}
}

// heartbeat periodically marks the daemon alive in the state store so
// one-shot commands can tell remediation is already owned by a running
// monitor.
func heartbeat(ctx context.Context, rt *cmdutil.Runtime) {
	ticker := time.NewTicker(cmdutil.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := rt.Store.SaveHeartbeat(time.Now()); err != nil {
			slog.Warn("heartbeat write failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reloadOnHUP re-reads the policy file on SIGHUP and applies it without
// restarting the loop. A document that fails validation keeps the
// running set.
func reloadOnHUP(ctx context.Context, cfg *cmdutil.ConfigFlag, rt *cmdutil.Runtime) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			set, err := cfg.LoadSet()
			if err != nil {
				slog.Error("policy reload rejected", "err", err)
				continue
			}
			rt.Engine.Reload(set)
			slog.Info("policy reloaded", "teams", len(set.Teams))
		}
	}
}
