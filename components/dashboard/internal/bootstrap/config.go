package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/mrabbitmq"
	"github.com/varpsim/varp/pkg/mzap"

	"github.com/varpsim/varp/components/dashboard/internal/services"
)

const ApplicationName = "dashboard"

// Config is the top level configuration struct for the dashboard application.
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
	PoolSize                  int64  `env:"RABBITMQ_POOL_SIZE"`
	PoolMaxOverflow           int64  `env:"RABBITMQ_POOL_MAX_OVERFLOW"`
	PoolTimeout               int64  `env:"RABBITMQ_POOL_TIMEOUT"`
	PoolRecycle               int64  `env:"RABBITMQ_POOL_RECYCLE"`
	DashboardHost             string `env:"DASHBOARD_HOST"`
	DashboardPort             int64  `env:"DASHBOARD_PORT"`
	RefreshIntervalMillis     int64  `env:"DASHBOARD_REFRESH_INTERVAL"`
}

// Overrides carries the command line overrides applied on top of the
// environment.
type Overrides struct {
	Host            string
	Port            int64
	RefreshInterval int64
	RabbitMQHost    string
	RabbitMQPort    string
}

// DashboardApp wires the aggregator, the connection pool and the HTTP server.
type DashboardApp struct {
	DataManager *services.DataManager
	Pool        *mrabbitmq.Pool
	Server      *Server
	Logger      mlog.Logger
	BindAddress string
}

// InitDashboard initiates the dashboard application from environment
// variables plus command line overrides.
func InitDashboard(overrides Overrides) *DashboardApp {
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

	if overrides.Host != "" {
		cfg.DashboardHost = overrides.Host
	}

	if overrides.Port > 0 {
		cfg.DashboardPort = overrides.Port
	}

	if overrides.RefreshInterval > 0 {
		cfg.RefreshIntervalMillis = overrides.RefreshInterval
	}

	if cfg.DashboardHost == "" {
		cfg.DashboardHost = "0.0.0.0"
	}

	if cfg.DashboardPort <= 0 {
		cfg.DashboardPort = 8050
	}

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}

	if cfg.PoolMaxOverflow <= 0 {
		cfg.PoolMaxOverflow = 2
	}

	logger := mzap.InitializeLogger()

	brokerCfg := mrabbitmq.Config{
		Host:        cfg.RabbitMQHost,
		Port:        cfg.RabbitMQPort,
		User:        cfg.RabbitMQUser,
		Pass:        cfg.RabbitMQPass,
		VHost:       cfg.RabbitMQVHost,
		Heartbeat:   time.Duration(cfg.RabbitMQHeartbeat) * time.Second,
		DialTimeout: time.Duration(cfg.RabbitMQConnectionTimeout) * time.Second,
	}

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{
		Size:        int(cfg.PoolSize),
		MaxOverflow: int(cfg.PoolMaxOverflow),
		Timeout:     time.Duration(cfg.PoolTimeout) * time.Second,
		Recycle:     time.Duration(cfg.PoolRecycle) * time.Second,
	}, mrabbitmq.ClientFactory(brokerCfg, logger), logger)

	borrow := func(ctx context.Context, fn func(services.BrokerRepository) error) error {
		return pool.WithClient(ctx, func(client *mrabbitmq.Client) error {
			return fn(client)
		})
	}

	dataManager := services.NewDataManager(borrow, logger, services.Options{
		PollPeriod: 500 * time.Millisecond,
	})

	server := NewServer(dataManager, pool, logger)

	return &DashboardApp{
		DataManager: dataManager,
		Pool:        pool,
		Server:      server,
		Logger:      logger,
		BindAddress: fmt.Sprintf("%s:%d", cfg.DashboardHost, cfg.DashboardPort),
	}
}
