package configs

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/onflow/flow-go-sdk"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "WALLET_"

type Config struct {
	// -- Logging --

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// -- Server --

	Host                 string        `env:"HOST"`
	Port                 int           `env:"PORT" envDefault:"3000"`
	ServerRequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`

	// -- Database --

	DatabaseDSN  string `env:"DATABASE_DSN" envDefault:"wallet.db"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`

	// -- Worker pool --

	// Number of workers running adapter construction and refresh tasks.
	WorkerCount uint `env:"WORKER_COUNT" envDefault:"4"`
	// Capacity of the worker pool job queue.
	WorkerQueueCapacity uint `env:"WORKER_QUEUE_CAPACITY" envDefault:"256"`

	// Maximum number of adapter refresh calls per second across all adapters.
	RefreshMaxRate int `env:"REFRESH_MAX_RATE" envDefault:"10"`

	// -- Assets --

	// Seed entries for the asset catalog, for example
	// "bitcoin|native;Bitcoin;BTC;8,ethereum|native;Ethereum;ETH;18".
	EnabledAssets []string `env:"ENABLED_ASSETS" envSeparator:","`

	// -- Chains --

	FlowAccessAPIHost      string       `env:"FLOW_ACCESS_API_HOST"`
	FlowChainID            flow.ChainID `env:"FLOW_CHAIN_ID" envDefault:"flow-emulator"`
	GrpcMaxCallRecvMsgSize int          `env:"GRPC_MAX_CALL_RECV_MSG_SIZE" envDefault:"16777216"`

	// Node endpoints for EVM chains, entries of the form "blockchain=url".
	EvmRpcURLs []string `env:"EVM_RPC_URLS" envSeparator:","`

	// Interval between sync passes of the polling adapters.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"30s"`
	// Upper bound for the backoff after a failed sync pass.
	SyncMaxBackoff time.Duration `env:"SYNC_MAX_BACKOFF" envDefault:"5m"`

	// -- Accounts --

	// Level whose active account drives the active wallet set on startup.
	DefaultLevel int `env:"DEFAULT_LEVEL" envDefault:"0"`

	// -- Tracing --

	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
	ProjectID       string  `env:"PROJECT_ID"`
}

type Options struct {
	EnvFilePath string
}

// Parse parses environment variables and flags to a valid Config.
func Parse() (*Config, error) {
	return ParseConfig(nil)
}

// ParseConfig optionally loads an env file before parsing the environment.
// Variables already present in the environment take precedence.
func ParseConfig(opt *Options) (*Config, error) {
	if opt != nil && opt.EnvFilePath != "" {
		if err := godotenv.Load(opt.EnvFilePath); err != nil {
			return nil, fmt.Errorf("error while loading env file %q: %w", opt.EnvFilePath, err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, err
	}

	switch cfg.DatabaseType {
	case "sqlite", "psql", "mysql":
	default:
		return nil, fmt.Errorf("database type %q not supported", cfg.DatabaseType)
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1")
	}

	if cfg.RefreshMaxRate < 1 {
		return nil, fmt.Errorf("refresh max rate must be at least 1")
	}

	return &cfg, nil
}

func ConfigureLogger(level, format string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.
			WithFields(log.Fields{"level": level, "error": err}).
			Warn("invalid log level, falling back to info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
