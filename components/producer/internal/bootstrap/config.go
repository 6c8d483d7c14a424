package bootstrap

import (
	"os"
	"strconv"
	"time"

	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/mrabbitmq"
	"github.com/varpsim/varp/pkg/mzap"

	"github.com/varpsim/varp/components/producer/internal/services"
)

const ApplicationName = "productor"

// Config is the top level configuration struct for the producer application.
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
	StatsInterval             int64  `env:"PRODUCER_STATS_INTERVAL"`
	DefaultNumEscenarios      int64  `env:"DEFAULT_NUM_ESCENARIOS"`
}

// Overrides carries the command line overrides applied on top of the
// environment.
type Overrides struct {
	RabbitMQHost string
	RabbitMQPort string
}

// ProducerApp wires the producer use case with its broker client.
type ProducerApp struct {
	Producer *services.Producer
	Client   *mrabbitmq.Client
	Logger   mlog.Logger
}

// InitProducer initiates the producer application from environment variables
// plus command line overrides.
func InitProducer(overrides Overrides) *ProducerApp {
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

	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 5
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

	producer := services.NewProducer(client, logger, time.Duration(cfg.StatsInterval)*time.Second)

	if raw, ok := os.LookupEnv("DEFAULT_RANDOM_SEED"); ok {
		if seed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			producer.DefaultSeed = &seed
		} else {
			logger.Warnf("Invalid DEFAULT_RANDOM_SEED %q, ignoring", raw)
		}
	}

	return &ProducerApp{
		Producer: producer,
		Client:   client,
		Logger:   logger,
	}
}
