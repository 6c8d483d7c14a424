package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/varpsim/varp/pkg"

	"github.com/varpsim/varp/components/dashboard/internal/bootstrap"
)

func main() {
	var (
		host         string
		port         int64
		interval     int64
		rabbitmqHost string
		rabbitmqPort string
		verbose      bool
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:           "dashboard",
		Short:         "Monitoring dashboard of the distributed Monte Carlo simulation fabric",
		Long:          "Aggregates telemetry and results from the broker in the background and serves snapshots and exports over HTTP.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				os.Setenv("LOG_LEVEL", "debug")
			} else if quiet {
				os.Setenv("LOG_LEVEL", "error")
			}

			pkg.InitLocalEnvConfig()

			app := bootstrap.InitDashboard(bootstrap.Overrides{
				Host:            host,
				Port:            port,
				RefreshInterval: interval,
				RabbitMQHost:    rabbitmqHost,
				RabbitMQPort:    rabbitmqPort,
			})
			defer func() {
				_ = app.Logger.Sync()
			}()

			app.DataManager.Start()
			defer app.DataManager.Stop()
			defer app.Pool.Close()

			errCh := make(chan error, 1)

			go func() {
				errCh <- app.Server.Listen(app.BindAddress)
			}()

			select {
			case <-cmd.Context().Done():
				_ = app.Server.Shutdown()

				return cmd.Context().Err()
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind address (default: from environment)")
	cmd.Flags().Int64Var(&port, "port", 0, "bind port (default: from environment)")
	cmd.Flags().Int64Var(&interval, "interval", 0, "front end refresh interval in milliseconds")
	cmd.Flags().StringVar(&rabbitmqHost, "rabbitmq-host", "", "RabbitMQ host (default: from environment)")
	cmd.Flags().StringVar(&rabbitmqPort, "rabbitmq-port", "", "RabbitMQ port (default: from environment)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "errors only")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}

		os.Exit(1)
	}
}
