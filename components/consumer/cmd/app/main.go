package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/varpsim/varp/pkg"

	"github.com/varpsim/varp/components/consumer/internal/bootstrap"
)

func main() {
	var (
		consumerID    string
		host          string
		port          string
		maxEscenarios int64
		verbose       bool
		quiet         bool
	)

	cmd := &cobra.Command{
		Use:           "consumidor",
		Short:         "Consumer of the distributed Monte Carlo simulation fabric",
		Long:          "Loads the current model, consumes scenarios, evaluates the payload in a sandbox and publishes results.",
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

			app := bootstrap.InitConsumer(bootstrap.Overrides{
				ConsumerID:    consumerID,
				RabbitMQHost:  host,
				RabbitMQPort:  port,
				MaxEscenarios: maxEscenarios,
			})
			defer func() {
				_ = app.Logger.Sync()
			}()

			if err := app.Client.Connect(); err != nil {
				app.Logger.Errorf("Could not connect to RabbitMQ: %v", err)

				return err
			}
			defer func() {
				_ = app.Client.Disconnect()
			}()

			return app.Consumer.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&consumerID, "id", "", "consumer identity (default: generated)")
	cmd.Flags().StringVar(&host, "host", "", "RabbitMQ host (default: from environment)")
	cmd.Flags().StringVar(&port, "port", "", "RabbitMQ port (default: from environment)")
	cmd.Flags().Int64Var(&maxEscenarios, "max-escenarios", 0, "stop after processing this many scenarios (0 = unlimited)")
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
