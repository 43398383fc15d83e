package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/uemux/uemux/config"
	"github.com/uemux/uemux/flow"
	"github.com/uemux/uemux/log"
	"github.com/uemux/uemux/metric"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "uemux",
		Short:         "multi-UE signal combining and distribution pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd())
	return root
}

func runCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a topology until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "uemux.yaml", "topology configuration file")
	return cmd
}

func run(parent context.Context, configPath string) error {
	logger := log.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("uemux"))
	if err != nil {
		return err
	}
	defer conn.Close()

	registry := metric.New()
	f, err := flow.Build(cfg, conn, flow.WithLogger(logger), flow.WithMetric(registry))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: registry.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics listener failed: ", err)
			}
		}()
		defer server.Close()
	}

	logger.Info("running ", f.Branches(), " branches, sample rate ", cfg.SampleRate)
	err = f.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
