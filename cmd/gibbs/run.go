package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/gibbs/internal/logging"
	"github.com/aretw0/gibbs/internal/runcfg"
	redissink "github.com/aretw0/gibbs/pkg/adapters/redis"
	"github.com/aretw0/gibbs/pkg/adapters/sqlite"
	"github.com/aretw0/gibbs/pkg/models/hsdem"
	"github.com/aretw0/gibbs/pkg/models/hse"
	"github.com/aretw0/gibbs/pkg/observability"
	"github.com/aretw0/gibbs/pkg/ports"
	"github.com/aretw0/gibbs/pkg/sampler"
)

var runCmd = &cobra.Command{
	Use:   "run [config]",
	Short: "Sample a hierarchical spatial model",
	Long: `Loads the run configuration, builds the model, and samples from its joint
posterior. SIGINT stops the run between draws; completed draws are kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		if !cmd.Flags().Changed("config") && len(args) > 0 {
			cfgPath = args[0]
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		return runSampling(cfgPath, verbose)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "run.yaml", "Run configuration file")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
}

func runSampling(cfgPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(level)

	cfg, err := runcfg.Load(cfgPath)
	if err != nil {
		return err
	}
	inputs, err := runcfg.LoadInputs(cfg.Data)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := buildModel(cfg, inputs)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	opts := []sampler.Option{
		sampler.WithLogger(logger),
		sampler.WithRecorder(metrics),
	}
	if cfg.Run.Seed != 0 {
		opts = append(opts, sampler.WithSeed(cfg.Run.Seed))
	}
	sink, err := buildSink(ctx, cfg.Sink)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		opts = append(opts, sampler.WithSink(sink))
		if cfg.Sink.Compact {
			opts = append(opts, sampler.WithCompaction())
		}
	}

	s := sampler.New(model, opts...)

	if cfg.Listen != "" {
		handler := observability.Handler(metrics, func() observability.Status {
			return observability.Status{
				Model:   cfg.Model,
				Chains:  max(1, len(s.ChainModels())),
				Cycles:  s.Cycles(),
				Elapsed: s.Elapsed().Seconds(),
			}
		})
		go observability.Serve(ctx, cfg.Listen, handler, logger)
	}

	logger.Info("sampling",
		"model", cfg.Model, "samples", cfg.Run.Samples, "jobs", cfg.Run.Jobs,
		"observations", len(inputs.Y))
	if err := s.Sample(ctx, cfg.Run.Samples, cfg.Run.Jobs); err != nil {
		return fmt.Errorf("sampling: %w", err)
	}
	publishTuning(metrics, s.Model(), logger)
	logger.Info("sampling finished", "cycles", s.Cycles(), "elapsed", s.Elapsed())

	if cfg.Output != "" {
		if err := s.Trace().ToCSV(cfg.Output); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
		logger.Info("trace written", "path", cfg.Output, "chains", s.Trace().NChains())
	}
	return nil
}

func buildModel(cfg *runcfg.Config, in *runcfg.Inputs) (sampler.Model, error) {
	switch cfg.Model {
	case "hse":
		return hse.New(in.Y, in.X, in.W, in.M, in.Z,
			hse.WithMembership(in.Membership),
			hse.WithTuning(cfg.Run.Tuning),
			hse.WithJump(cfg.Run.Jump))
	case "hsdem":
		opts := []hsdem.Option{
			hsdem.WithMembership(in.Membership),
			hsdem.WithTuning(cfg.Run.Tuning),
			hsdem.WithJump(cfg.Run.Jump),
		}
		if cfg.Run.SpatialLags != nil {
			opts = append(opts, hsdem.WithSpatialLags(*cfg.Run.SpatialLags))
		}
		return hsdem.New(in.Y, in.X, in.W, in.M, in.Z, opts...)
	default:
		return nil, fmt.Errorf("unknown model %q", cfg.Model)
	}
}

func buildSink(ctx context.Context, cfg runcfg.Sink) (ports.TraceSink, error) {
	switch cfg.Kind {
	case "":
		return nil, nil
	case "sqlite":
		return sqlite.New(cfg.Path)
	case "redis":
		return redissink.New(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.Name)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}

// publishTuning pushes the final Metropolis tuning state to the metrics and
// the log, so acceptance rates are visible after the run.
func publishTuning(metrics *observability.Metrics, m sampler.Model, logger *slog.Logger) {
	report := func(name string, cfg interface {
		AcceptanceRate() float64
	}) {
		logger.Info("metropolis tuning", "parameter", name, "acceptance_rate", cfg.AcceptanceRate())
	}
	switch model := m.(type) {
	case *hse.Model:
		metrics.ObserveMetropolis("Rho", model.RhoConfig())
		metrics.ObserveMetropolis("Lambda", model.LambdaConfig())
		report("Rho", model.RhoConfig())
		report("Lambda", model.LambdaConfig())
	case *hsdem.Model:
		metrics.ObserveMetropolis("Lambda", model.LambdaConfig())
		report("Lambda", model.LambdaConfig())
	}
}
