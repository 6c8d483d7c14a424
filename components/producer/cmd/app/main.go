package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/varpsim/varp/pkg"

	"github.com/varpsim/varp/components/producer/internal/bootstrap"
)

func main() {
	var (
		escenarios int64
		host       string
		port       string
		verbose    bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:           "productor <modelo.ini>",
		Short:         "Producer of the distributed Monte Carlo simulation fabric",
		Long:          "Parses a model file, publishes it to the broker and streams its scenarios to the scenario queue.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				os.Setenv("LOG_LEVEL", "debug")
			} else if quiet {
				os.Setenv("LOG_LEVEL", "error")
			}

			pkg.InitLocalEnvConfig()

			app := bootstrap.InitProducer(bootstrap.Overrides{
				RabbitMQHost: host,
				RabbitMQPort: port,
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

			return app.Producer.Run(cmd.Context(), args[0], escenarios)
		},
	}

	cmd.Flags().Int64VarP(&escenarios, "escenarios", "n", 0, "number of scenarios to generate (overrides the model file)")
	cmd.Flags().StringVar(&host, "host", "", "RabbitMQ host (default: from environment)")
	cmd.Flags().StringVar(&port, "port", "", "RabbitMQ port (default: from environment)")
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
