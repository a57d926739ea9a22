/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/telekom/rbac-evaluator/internal/system"
	"github.com/telekom/rbac-evaluator/internal/webhook"
	"github.com/telekom/rbac-evaluator/pkg/metrics"
	"github.com/telekom/rbac-evaluator/pkg/policy"
	"github.com/telekom/rbac-evaluator/pkg/tracing"
)

var (
	bindAddr            string
	maxQPS              float64
	tracingEnabled      bool
	tracingEndpoint     string
	tracingSamplingRate float64
	tracingInsecure     bool
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a SubjectAccessReview endpoint over the loaded policy set",
	Long: `Run an HTTP server answering authorization.k8s.io/v1 SubjectAccessReview
requests on /authorize against the loaded policy set, with Prometheus metrics
on /metrics and health probes on /healthz and /readyz.

SIGHUP reloads the policy files atomically; in-flight evaluations keep the
snapshot they started with, and a failed reload keeps the previous store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(policyPaths) == 0 {
			return fmt.Errorf("no policy manifests given, use --filename")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		provider := policy.NewProvider(setupLog.WithName("store"), policyPaths...)
		if err := provider.Load(); err != nil {
			return err
		}

		tracerProvider, err := tracing.Setup(ctx, tracing.Config{
			Enabled:      tracingEnabled,
			Endpoint:     tracingEndpoint,
			SamplingRate: tracingSamplingRate,
			Insecure:     tracingInsecure,
		}, system.Version)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() { _ = tracerProvider.Shutdown(ctx) }()

		var limiter *rate.Limiter
		if maxQPS > 0 {
			burst := int(maxQPS)
			if burst < 1 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(maxQPS), burst)
		}

		mux := http.NewServeMux()
		mux.Handle("/authorize", &webhook.Handler{
			Provider: provider,
			Log:      setupLog.WithName("authorizer"),
			Limiter:  limiter,
			Tracer:   tracerProvider.Tracer(),
		})
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, "ok")
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
			if provider.Store() == nil {
				http.Error(w, "policy store not loaded", http.StatusServiceUnavailable)
				return
			}
			fmt.Fprintln(w, "ok")
		})

		server := &http.Server{
			Addr:              bindAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		defer func() {
			signal.Stop(reload)
			close(reload)
		}()
		go reloadOnSignal(reload, provider)

		serveErr := make(chan error, 1)
		go func() {
			setupLog.Info("starting server", "address", bindAddr)
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		setupLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

// reloadOnSignal reloads the provider for every signal received and returns
// when the channel is closed. A failed reload keeps the previous store.
func reloadOnSignal(signals <-chan os.Signal, provider *policy.Provider) {
	for range signals {
		setupLog.Info("reloading policy store")
		if err := provider.Load(); err != nil {
			setupLog.Error(err, "policy reload failed, keeping previous store")
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&bindAddr, "bind-address", ":8080", "The address the server binds to")
	serveCmd.Flags().Float64Var(&maxQPS, "max-qps", 0, "Maximum request rate per second (0 disables limiting)")
	serveCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing")
	serveCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC collector endpoint")
	serveCmd.Flags().Float64Var(&tracingSamplingRate, "tracing-sampling-rate", 1.0, "Trace sampling ratio (0.0-1.0)")
	serveCmd.Flags().BoolVar(&tracingInsecure, "tracing-insecure", false, "Disable TLS for the OTLP exporter connection")
}
