package bootstrap

import (
	"time"

	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/mrabbitmq"
	"github.com/varpsim/varp/pkg/mzap"

	"github.com/varpsim/varp/components/consumer/internal/services"
)

const ApplicationName = "consumidor"

// Config is the top level configuration struct for the consumer application.
type Config struct {
	EnvName                   string `env:"ENV_NAME"`
	LogLevel                  string `env:"LOG_LEVEL"`
	RabbitMQHost              string `env:"RABBITMQ_HOST"`
	RabbitMQPort              string `env:"RABBITMQ_PORT"`
	RabbitMQUser              string `env:"RABBITMQ_USER"`
	RabbitMQPass              string `env:"RABBITMQ_PASS"`
	RabbitMQVHost             string `env:"RABBITMQ_VHOST"`
	RabbitMQHeartbeat         int64  `env:"RABBITMQ_HEARTBEAT"`
	RabbitMQConnectionTimeout int64  `env:"RABBITMQ_CONNECTION_TIMEOUT"`
	StatsInterval             int64  `env:"CONSUMER_STATS_INTERVAL"`
	PrefetchCount             int64  `env:"CONSUMER_PREFETCH_COUNT"`
	ExecTimeout               int64  `env:"CONSUMER_TIMEOUT"`
	MaxRetries                int64  `env:"CONSUMER_MAX_RETRIES"`
	RetryDelay                int64  `env:"CONSUMER_RETRY_DELAY"`
}

// Overrides carries the command line overrides applied on top of the
// environment.
type Overrides struct {
	ConsumerID    string
	RabbitMQHost  string
	RabbitMQPort  string
	MaxEscenarios int64
}

// ConsumerApp wires the consumer use case with its broker client.
type ConsumerApp struct {
	Consumer *services.Consumer
	Client   *mrabbitmq.Client
	Logger   mlog.Logger
}

// InitConsumer initiates the consumer application from environment variables
// plus command line overrides.
func InitConsumer(overrides Overrides) *ConsumerApp {
	cfg := &Config{}

	if err := pkg.SetConfigFromEnvVars(cfg); err != nil {
		panic(err)
	}

	if overrides.RabbitMQHost != "" {
		cfg.RabbitMQHost = overrides.RabbitMQHost
	}

	if overrides.RabbitMQPort != "" {
		cfg.RabbitMQPort = overrides.RabbitMQPort
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = 1
	}

	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30
	}

	logger := mzap.InitializeLogger()

	client := mrabbitmq.NewClient(mrabbitmq.Config{
		Host:        cfg.RabbitMQHost,
		Port:        cfg.RabbitMQPort,
		User:        cfg.RabbitMQUser,
		Pass:        cfg.RabbitMQPass,
		VHost:       cfg.RabbitMQVHost,
		Heartbeat:   time.Duration(cfg.RabbitMQHeartbeat) * time.Second,
		DialTimeout: time.Duration(cfg.RabbitMQConnectionTimeout) * time.Second,
	}, logger)

	consumer := services.NewConsumer(client, logger, services.Config{
		ConsumerID:    overrides.ConsumerID,
		MaxRetries:    int(cfg.MaxRetries),
		PrefetchCount: int(cfg.PrefetchCount),
		ExecTimeout:   time.Duration(cfg.ExecTimeout) * time.Second,
		MaxEscenarios: overrides.MaxEscenarios,
	})

	return &ConsumerApp{
		Consumer: consumer,
		Client:   client,
		Logger:   logger,
	}
}
