package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/fanin"
	"github.com/aixgo-dev/fanin/aggregator"
	"github.com/aixgo-dev/fanin/internal/logger"
	tracing "github.com/aixgo-dev/fanin/internal/observability"
	"github.com/aixgo-dev/fanin/pkg/config"
	"github.com/aixgo-dev/fanin/pkg/observability"
)

type runOptions struct {
	policy      string
	fallback    string
	timeout     time.Duration
	metricsPort int
	logMode     string
	logLevel    string
	linger      bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one aggregation described by the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return run(cmd, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.policy, "policy", "", "Override the aggregation policy ("+policyList()+")")
	flags.StringVar(&opts.fallback, "fallback", "", "Override the fail-soft fallback value")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Override how long to wait for the aggregate")
	flags.IntVar(&opts.metricsPort, "metrics-port", getEnvInt("PORT", 0), "Serve metrics and health on this port (0 disables)")
	flags.StringVar(&opts.logMode, "log-mode", "", "Log mode: development or production")
	flags.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", ""), "Log level")
	flags.BoolVar(&opts.linger, "linger", false, "Keep serving metrics after the aggregation until interrupted")

	return cmd
}

// apply copies explicitly set flags over the file configuration
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = o.policy
	}
	if flags.Changed("fallback") {
		cfg.Fallback = o.fallback
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("metrics-port") || o.metricsPort > 0 {
		cfg.Runtime.MetricsPort = o.metricsPort
	}
	if o.logMode != "" {
		cfg.Runtime.LogMode = o.logMode
	}
}

func run(cmd *cobra.Command, cfg *config.Config, opts *runOptions) error {
	log, err := logger.New(cfg.Runtime.LogMode, opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := tracing.Init(cfg.Tracing(), log); err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	runner, err := fanin.NewRunner(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *observability.Server
	if cfg.Runtime.MetricsPort > 0 {
		observability.InitMetrics()
		server = observability.NewServer(cfg.Runtime.MetricsPort, runner.Health())
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if server != nil {
		g.Go(func() error {
			log.Info("starting HTTP server", zap.Int("port", cfg.Runtime.MetricsPort))
			if err := server.Start(); err != nil {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-done:
				if opts.linger {
					<-gctx.Done()
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	var report *fanin.Report
	g.Go(func() error {
		defer close(done)
		r, err := runner.Run(gctx)
		if err != nil {
			return err
		}
		report = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.String())
	return nil
}

func policyList() string {
	s := ""
	for i, p := range aggregator.Policies {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	return s
}
