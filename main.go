package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/df07/go-flatnuts/pkg/config"
	"github.com/df07/go-flatnuts/pkg/problems"
	"github.com/df07/go-flatnuts/pkg/runner"
)

// options holds the command line flags shared by run and trace
type options struct {
	configPath   string
	sampler      string
	problem      string
	trajectories int
	seed         int64
	metricsAddr  string
	logLevel     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "flatnuts",
		Short:         "Reflective trajectory sampling inside likelihood contours",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&opts.sampler, "sampler", "", "Sampler: nuts, step or bisect")
	flags.StringVar(&opts.problem, "problem", "", "Problem id (see 'flatnuts problems')")
	flags.Int64Var(&opts.seed, "seed", 0, "Base random seed")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	run := &cobra.Command{
		Use:   "run",
		Short: "Draw independent samples from many trajectories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSamples(cmd, opts)
		},
	}
	run.Flags().IntVar(&opts.trajectories, "trajectories", 0, "Number of trajectories")
	run.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	trace := &cobra.Command{
		Use:   "trace",
		Short: "Print every recorded node of one trajectory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return traceTrajectory(cmd, opts)
		},
	}

	list := &cobra.Command{
		Use:   "problems",
		Short: "List the available problems",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, info := range problems.List() {
				fmt.Fprintf(out, "%-16s %dD  %s\n", info.ID, info.Dim, info.Description)
			}
		},
	}

	root.AddCommand(run, trace, list)
	return root
}

// resolveConfig loads the config file, if any, and applies explicit flags
func resolveConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("sampler") {
		cfg.Runner.Sampler = opts.sampler
	}
	if flags.Changed("problem") {
		cfg.Runner.Problem = opts.problem
	}
	if flags.Changed("seed") {
		cfg.Runner.Seed = opts.seed
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("trajectories") {
		cfg.Runner.Trajectories = opts.trajectories
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, level string) *slog.Logger {
	parsed, err := config.ParseLevel(level)
	if err != nil {
		parsed = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parsed}))
}

func runSamples(cmd *cobra.Command, opts *options) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

	registry := prometheus.NewRegistry()
	metrics := runner.NewMetrics(registry)
	if cfg.Metrics.Addr != "" {
		server := serveMetrics(cfg.Metrics.Addr, registry, logger)
		defer shutdown(server)
	}

	r, err := runner.New(cfg.Runner, logger, metrics)
	if err != nil {
		return err
	}
	results, summary, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, result := range results {
		fmt.Fprintf(out, "%s  #%-4d index=%-5d logl=%-10.4f dist=%.4f evals=%d point=%v\n",
			result.ID.String()[:8], result.Trajectory, result.Sample.Index, result.Sample.LogL,
			result.Distance, result.Stats.Evaluations, result.Sample.Point)
	}
	fmt.Fprintf(out, "\naccepted %d/%d (%.1f%%), mean evaluations %.1f, mean distance %.4f ± %.4f, in %v\n",
		summary.Accepted, summary.Trajectories, 100*summary.AcceptanceRate,
		summary.MeanEvaluations, summary.MeanDistance, summary.StdDistance, summary.Duration)
	return nil
}

func traceTrajectory(cmd *cobra.Command, opts *options) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

	r, err := runner.New(cfg.Runner, logger, nil)
	if err != nil {
		return err
	}
	result := r.Trace(0)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "trajectory %s from %v\n", result.ID, result.Start)
	for _, node := range result.Nodes {
		marker := " "
		if node.Index == result.Sample.Index {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %5d  x=%v  v=%v  logl=%.4f\n", marker, node.Index, node.Point, node.Velocity, node.LogL)
	}
	for _, node := range result.Rejected {
		fmt.Fprintf(out, "x %5d  x=%v  v=%v  (terminal)\n", node.Index, node.Point, node.Velocity)
	}
	fmt.Fprintf(out, "reflections=%d rejections=%d evaluations=%d\n",
		result.Stats.Reflections, result.Stats.Rejections, result.Stats.Evaluations)
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return server
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
