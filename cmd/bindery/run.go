package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/vango-dev/bindery/internal/config"
	"github.com/vango-dev/bindery/internal/errors"
	"github.com/vango-dev/bindery/internal/scenario"
	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type runOptions struct {
	configPath string
	json       bool
	metrics    bool
	trace      bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario",
		Long: `Build the property graph a scenario declares and run its steps.

Each step is printed with the events the bus dispatched while it ran and
the checks that did not hold. The command exits with status 1 when any
step fails.

Configuration is read from --config, or from bindery.json in the current
directory when present.

Examples:
  bindery run cross_validation.yaml
  bindery run signup.yaml --json
  bindery run signup.yaml --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to bindery.json")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print bus metrics after the report")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Log a span per firing at debug level")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" && config.Exists(".") {
		return config.Load(".")
	}
	return config.LoadOrDefault(path)
}

func runScenario(ctx context.Context, out, errOut io.Writer, path string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if opts.trace && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	logger.Debug("config loaded", "path", cfg.Path(), "settings", cfg.String())

	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	var busOpts []bus.Option
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled || opts.metrics {
		registry = prometheus.NewRegistry()
		busOpts = append(busOpts, bus.WithObserver(telemetry.NewMetrics(
			telemetry.WithRegistry(registry),
			telemetry.WithNamespace(cfg.Metrics.Namespace),
			telemetry.WithSubsystem(cfg.Metrics.Subsystem),
		)))
	}
	if cfg.Tracing.Enabled || opts.trace {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&logProcessor{logger: logger}))
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
		busOpts = append(busOpts, bus.WithObserver(telemetry.NewTracing(
			telemetry.WithTracerProvider(tp),
			telemetry.WithTracerName(cfg.Tracing.TracerName),
			telemetry.WithContext(ctx),
		)))
	}

	rep, err := scenario.Run(ctx, sc,
		scenario.WithLogger(logger),
		scenario.WithBusOptions(busOpts...),
		scenario.WithScopeOptions(cfg.ScopeOptions()...),
	)
	if err != nil {
		return errors.Classify(err, "X002")
	}

	if opts.json {
		err = rep.WriteJSON(out)
	} else {
		err = rep.WriteText(out)
	}
	if err != nil {
		return errors.New("X002").Wrap(err)
	}

	if registry != nil && !opts.json {
		if err := writeMetrics(out, registry); err != nil {
			return errors.New("X002").Wrap(err)
		}
	}

	if !rep.OK() {
		return errFailed
	}
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// logProcessor logs every finished span at debug level.
type logProcessor struct {
	logger *slog.Logger
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	args := []any{
		"trace", s.SpanContext().TraceID().String(),
		"span", s.SpanContext().SpanID().String(),
		"duration", s.EndTime().Sub(s.StartTime()),
		"status", s.Status().Code.String(),
	}
	if s.Parent().IsValid() {
		args = append(args, "parent", s.Parent().SpanID().String())
	}
	for _, kv := range s.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	p.logger.Debug(s.Name(), args...)
}

func (p *logProcessor) Shutdown(context.Context) error { return nil }

func (p *logProcessor) ForceFlush(context.Context) error { return nil }
