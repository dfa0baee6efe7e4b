package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// TraceIDHeaderName is the HTTP header an inbound event carries its
// caller-supplied trace id in, threaded through to its deliveries.
const TraceIDHeaderName = "X-RingRelay-Trace-Id"

type contextKey string

// TraceIDKey is the context key the request's trace id is stored under.
const TraceIDKey contextKey = "trace_id"

const (
	DefaultConfigName     = "ringrelay"
	DefaultConfigDir      = "."
	defaultConfigTemplate = `# Configuration file for ringrelay
[listener]
http.port = 8082
http.queue_size = 1024
http.workers = 4

[api]
port = 8081
addr = ":8081"

[local_worker]
min_threads = 1
max_threads = -1
result_handlers_threads = 10
queue_size = 200000  # distributed b/w worker and result queue

[queue_worker]
addr = "127.0.0.1:6379"
db = 0
concurrency = 10

[pubsub_worker]
addr = "127.0.0.1:6379"
db = 0
channel = "ringrelay.deliveries"
queue_size = 4096
threads = 4

[metrics]
enabled = true
worker_addr = ":2112"  # worker metrics address

[logging]
log_level = "info"  # possible values: "debug", "info", "warn", "error" (default=info)
log_format = "json"  # possible values: "json", "console" (default=json)

[redis_queue]
addr = "127.0.0.1:6379"
db = 0

[wal]
path = "./data/wal"
format = "2006-01-02_15-04"

[ring]
capacity = 4096
producer = "multi"
wait_strategy = "blocking"
batch_size = 256

[subscription.database]
scheme = "mysql"
host = "127.0.0.1"
port = 3306
database = "ringrelay"
username = "root"
set_max_open_connections = 10
set_conn_max_lifetime = 300

[delivery.database]
scheme = "mysql"
host = "127.0.0.1"
port = 3306
database = "ringrelay"
username = "root"
set_max_open_connections = 10
set_conn_max_lifetime = 300
`
)

type HttpListenerConfig struct {
	Port      int `mapstructure:"port"`
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

type ListenerConfig struct {
	Http HttpListenerConfig `mapstructure:"http"`
}

type ApiConfig struct {
	Port int    `mapstructure:"port"`
	Addr string `mapstructure:"addr"`
}

// LocalWorkerConfig sizes the in-process worker pool that drives the
// ring directly.
type LocalWorkerConfig struct {
	MinThreads           int `mapstructure:"min_threads"`
	MaxThreads           int `mapstructure:"max_threads"`
	ResultHandlerThreads int `mapstructure:"result_handlers_threads"`
	QueueSize            int `mapstructure:"queue_size"`
}

type QueueWorkerConfig struct {
	Addr        string `mapstructure:"addr"`
	Db          int    `mapstructure:"db"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Concurrency int    `mapstructure:"concurrency"`
}

type PubsubWorkerConfig struct {
	Addr      string `mapstructure:"addr"`
	Db        int    `mapstructure:"db"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Channel   string `mapstructure:"channel"`
	QueueSize int    `mapstructure:"queue_size"`
	Threads   int    `mapstructure:"threads"`
}

type RedisQueueConfig struct {
	Addr     string `mapstructure:"addr"`
	Db       int    `mapstructure:"db"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WorkerAddr string `mapstructure:"worker_addr"`
}

type LoggingConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// WalConfig locates and names the SQLite write-ahead-log the listener
// persists events to before they ever reach the ring.
type WalConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// RingConfig sizes the ring buffer, sequencer and batch event
// processor the local worker wires up; the core library itself never
// reads configuration.
type RingConfig struct {
	Capacity     int64  `mapstructure:"capacity"`
	Producer     string `mapstructure:"producer"` // "single" or "multi"
	WaitStrategy string `mapstructure:"wait_strategy"`
	BatchSize    int64  `mapstructure:"batch_size"`
}

// DatabaseConfiguration describes one logical database (primary or a
// read replica). Subscription storage and delivery storage each carry
// their own instance so they can live on different hosts or engines.
type DatabaseConfiguration struct {
	Username              string                  `mapstructure:"username"`
	Password              string                  `mapstructure:"password"`
	Host                  string                  `mapstructure:"host"`
	Port                  int                     `mapstructure:"port"`
	Database              string                  `mapstructure:"database"`
	Scheme                string                  `mapstructure:"scheme"`
	ReadReplicas          []DatabaseConfiguration `mapstructure:"read_replicas"`
	SetMaxOpenConnections int                     `mapstructure:"set_max_open_connections"`
	SetConnMaxLifetime    int                     `mapstructure:"set_conn_max_lifetime"`
}

// BuildDsn renders a postgres-style DSN. MySQL builds its own DSN from
// the same fields via go-sql-driver's own Config type.
func (d DatabaseConfiguration) BuildDsn() string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s",
		d.Scheme, d.Username, d.Password, d.Host, d.Port, d.Database,
	)
}

type SubscriptionConfig struct {
	Database DatabaseConfiguration `mapstructure:"database"`
}

type DeliveryConfig struct {
	Database DatabaseConfiguration `mapstructure:"database"`
}

type Config struct {
	Listener     ListenerConfig     `mapstructure:"listener"`
	Api          ApiConfig          `mapstructure:"api"`
	LocalWorker  LocalWorkerConfig  `mapstructure:"local_worker"`
	QueueWorker  QueueWorkerConfig  `mapstructure:"queue_worker"`
	PubsubWorker PubsubWorkerConfig `mapstructure:"pubsub_worker"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	RedisQueue   RedisQueueConfig   `mapstructure:"redis_queue"`
	WalConfig    WalConfig          `mapstructure:"wal"`
	Ring         RingConfig         `mapstructure:"ring"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`

	IsWorker bool
}

var HRConfig Config

// LoadConfig merges an optional file at customConfigPath over the
// embedded default template and unmarshals the result into Config. It
// both returns the typed Config and updates the package-level
// HRConfig, which the WAL still reads directly.
func LoadConfig(customConfigPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewBuffer([]byte(defaultConfigTemplate))); err != nil {
		log.Printf("failed to load default configuration: %s", err)
		return nil, err
	}

	if customConfigPath != "" {
		v.SetConfigFile(customConfigPath)
		log.Printf("Using custom configuration file: %s\n", customConfigPath)
	}

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && customConfigPath == "" {
			log.Println("Configuration file not found, using default configuration")
		} else {
			log.Printf("error reading configuration file: %s", err)
			return nil, errors.New("error reading configuration file")
		}
	}

	if err := v.Unmarshal(&HRConfig); err != nil {
		log.Printf("error unmarshaling configuration: %s", err)
		return nil, errors.New("error unmarshaling configuration")
	}

	return &HRConfig, nil
}
