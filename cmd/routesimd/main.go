// Command routesimd runs the distance-vector routing simulator
// (component C8): it loads a topology, wires the network coordinator,
// and serves the debug/control HTTP surface and Prometheus metrics
// until signaled to stop.
//
// Flag and logging setup follows telemetry/gnmi-writer/cmd/gnmi-writer/main.go
// (tint-based slog handler, a dedicated metrics listener, signal-driven
// graceful shutdown), with the command surface itself built on cobra
// rather than bare pflag, per SPEC_FULL.md's CLI enrichment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/routelab/ripsim/internal/httpapi"
	"github.com/routelab/ripsim/internal/metrics"
	"github.com/routelab/ripsim/internal/network"
	"github.com/routelab/ripsim/internal/topology"
)

// Exit codes: 0 clean shutdown, 1 configuration/startup error, 2
// runtime failure after the engine started.
const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	seed        int64
	topology    string
	httpAddr    string
	metricsAddr string
	verbose     bool
	width       int
	height      int
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "routesimd",
		Short: "Run a distance-vector routing protocol simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.Int64Var(&opts.seed, "seed", 0, "seed for the engine's random source (0 = time-based)")
	flags.StringVar(&opts.topology, "topology", "", "path to a topology JSON file (empty = built-in default)")
	flags.StringVar(&opts.httpAddr, "http-addr", "127.0.0.1:8080", "address for the debug/control HTTP surface")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "127.0.0.1:9090", "address for Prometheus metrics (empty disables)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug-level logging")
	flags.IntVar(&opts.width, "width", 0, "display-only canvas width hint for the front-end (engine ignores it)")
	flags.IntVar(&opts.height, "height", 0, "display-only canvas height hint for the front-end (engine ignores it)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		var rtErr runtimeError
		if errors.As(err, &rtErr) {
			fmt.Fprintln(os.Stderr, err)
			return exitRuntime
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	return exitOK
}

// runtimeError marks an error that occurred after the engine was
// already running, distinguishing it from a configuration/startup
// failure for the process exit code.
type runtimeError struct{ err error }

func (e runtimeError) Error() string { return e.err.Error() }
func (e runtimeError) Unwrap() error { return e.err }

func serve(ctx context.Context, opts *options) error {
	log := newLogger(opts.verbose)
	slog.SetDefault(log)

	doc, err := loadTopology(opts.topology)
	if err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	n, err := network.New(doc, network.WithSeed(opts.seed), network.WithMetrics(m), network.WithDisplayDims(opts.width, opts.height))
	if err != nil {
		return fmt.Errorf("constructing network: %w", err)
	}

	var metricsErrCh <-chan error
	if opts.metricsAddr != "" {
		metricsErrCh = startMetricsServer(ctx, log, opts.metricsAddr, reg)
	}

	var httpErrCh <-chan error
	if opts.httpAddr != "" {
		httpErrCh = startHTTPServer(ctx, log, opts.httpAddr, n)
	}

	n.Start(ctx)
	log.Info("routesimd started",
		"version", version,
		"routers", len(n.RouterIDs()),
		"http_addr", opts.httpAddr,
		"metrics_addr", opts.metricsAddr,
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			n.Stop()
			return nil
		case err, ok := <-metricsErrCh:
			if ok && err != nil {
				n.Stop()
				return runtimeError{fmt.Errorf("metrics server: %w", err)}
			}
			metricsErrCh = nil
		case err, ok := <-httpErrCh:
			if ok && err != nil {
				n.Stop()
				return runtimeError{fmt.Errorf("http server: %w", err)}
			}
			httpErrCh = nil
		}
	}
}

func loadTopology(path string) (topology.Document, error) {
	if path == "" {
		return topology.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return topology.Document{}, err
	}
	defer f.Close()
	return topology.Decode(f)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}))
}

func startMetricsServer(ctx context.Context, log *slog.Logger, addr string, reg *prometheus.Registry) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			errCh <- err
			return
		}
		log.Info("prometheus metrics listening", "address", listener.Addr().String())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux}

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func startHTTPServer(ctx context.Context, log *slog.Logger, addr string, n *network.Network) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			errCh <- err
			return
		}
		log.Info("debug/control HTTP surface listening", "address", listener.Addr().String())

		srv := &http.Server{Handler: httpapi.NewRouter(n)}

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}
