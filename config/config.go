package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Report transports
const (
	TransportKafkaGo = "kafka-go"
	TransportSarama  = "sarama"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	Server struct {
		HTTPAddr        string        `yaml:"http_addr"`
		LogLevel        string        `yaml:"log_level"`
		LogFormat       string        `yaml:"log_format"`
		DefaultDesk     string        `yaml:"default_desk"`
		MaxGenerate     int           `yaml:"max_generate"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Generator core.GeneratorConfig `yaml:"generator"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Postgres struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"postgres"`

	Kafka struct {
		Enabled   bool     `yaml:"enabled"`
		Transport string   `yaml:"transport"`
		Brokers   []string `yaml:"brokers"`
		Topic     string   `yaml:"topic"`
		GroupID   string   `yaml:"group_id"`
		PoolSize  int      `yaml:"pool_size"`
		Consume   bool     `yaml:"consume"`
	} `yaml:"kafka"`

	Otel struct {
		Enabled        bool   `yaml:"enabled"`
		Endpoint       string `yaml:"endpoint"`
		ServiceName    string `yaml:"service_name"`
		RuntimeMetrics bool   `yaml:"runtime_metrics"`
	} `yaml:"otel"`

	Compare struct {
		Sizes []int `yaml:"sizes"`
		Runs  int   `yaml:"runs"`
	} `yaml:"compare"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	config := &Config{}
	config.Server.HTTPAddr = ":8080"
	config.Server.LogLevel = "info"
	config.Server.LogFormat = "pretty"
	config.Server.DefaultDesk = "default"
	config.Server.MaxGenerate = 100_000
	config.Server.ShutdownTimeout = 5 * time.Second
	config.Generator = core.DefaultGeneratorConfig()
	config.Redis.Addr = "localhost:6379"
	config.Kafka.Transport = TransportKafkaGo
	config.Kafka.Brokers = []string{"localhost:9092"}
	config.Kafka.Topic = "orderlab-runs"
	config.Kafka.GroupID = "orderlab-dev"
	config.Kafka.PoolSize = 4
	config.Otel.Endpoint = "localhost:4317"
	config.Otel.ServiceName = "order-dispatcher"
	config.Compare.Sizes = []int{10, 50, 100, 200, 500}
	config.Compare.Runs = 3
	return config
}

// LoadConfig builds the configuration from command line flags, an optional
// YAML file and ORDERLAB_* environment variables, in that order
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("orderlab", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (YAML)")
	httpPort := fs.Int("http_port", 8080, "The HTTP server port")
	logLevel := fs.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat := fs.String("log_format", "pretty", "Log format: json, pretty")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config := Default()
	config.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
	config.Server.LogLevel = *logLevel
	config.Server.LogFormat = *logFormat

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix("ORDERLAB")
	v.AutomaticEnv()

	if v.IsSet("HTTP_ADDR") {
		config.Server.HTTPAddr = v.GetString("HTTP_ADDR")
	}
	if v.IsSet("LOG_LEVEL") {
		config.Server.LogLevel = v.GetString("LOG_LEVEL")
	}
	if v.IsSet("LOG_FORMAT") {
		config.Server.LogFormat = v.GetString("LOG_FORMAT")
	}
	if v.IsSet("DEFAULT_DESK") {
		config.Server.DefaultDesk = v.GetString("DEFAULT_DESK")
	}
	if v.IsSet("MAX_GENERATE") {
		config.Server.MaxGenerate = v.GetInt("MAX_GENERATE")
	}
	if v.IsSet("GENERATOR_SEED") {
		config.Generator.Seed = v.GetInt64("GENERATOR_SEED")
	}
	if v.IsSet("COURIER_PROBABILITY") {
		config.Generator.CourierProbability = v.GetFloat64("COURIER_PROBABILITY")
	}
	if v.IsSet("REDIS_ADDR") {
		config.Redis.Addr = v.GetString("REDIS_ADDR")
	}
	if v.IsSet("REDIS_PASSWORD") {
		config.Redis.Password = v.GetString("REDIS_PASSWORD")
	}
	if v.IsSet("REDIS_DB") {
		config.Redis.DB = v.GetInt("REDIS_DB")
	}
	if v.IsSet("POSTGRES_URL") {
		config.Postgres.URL = v.GetString("POSTGRES_URL")
	}
	if v.IsSet("KAFKA_ENABLED") {
		config.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	}
	if v.IsSet("KAFKA_TRANSPORT") {
		config.Kafka.Transport = v.GetString("KAFKA_TRANSPORT")
	}
	if v.IsSet("KAFKA_BROKERS") {
		config.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	}
	if v.IsSet("KAFKA_TOPIC") {
		config.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	}
	if v.IsSet("OTEL_ENABLED") {
		config.Otel.Enabled = v.GetBool("OTEL_ENABLED")
	}
	if v.IsSet("OTEL_ENDPOINT") {
		config.Otel.Endpoint = v.GetString("OTEL_ENDPOINT")
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first inconsistent setting
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("%w: server.http_addr is empty", ErrInvalidConfig)
	}
	if c.Server.DefaultDesk == "" {
		return fmt.Errorf("%w: server.default_desk is empty", ErrInvalidConfig)
	}
	if c.Server.MaxGenerate <= 0 {
		return fmt.Errorf("%w: server.max_generate must be positive", ErrInvalidConfig)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("%w: generator: %w", ErrInvalidConfig, err)
	}
	if len(c.Compare.Sizes) == 0 {
		return fmt.Errorf("%w: compare.sizes is empty", ErrInvalidConfig)
	}
	for _, size := range c.Compare.Sizes {
		if size <= 0 {
			return fmt.Errorf("%w: compare size %d must be positive", ErrInvalidConfig, size)
		}
	}
	if c.Compare.Runs <= 0 {
		return fmt.Errorf("%w: compare.runs must be positive", ErrInvalidConfig)
	}
	if c.Kafka.Enabled {
		if c.Kafka.Transport != TransportKafkaGo && c.Kafka.Transport != TransportSarama {
			return fmt.Errorf("%w: unknown kafka transport %q", ErrInvalidConfig, c.Kafka.Transport)
		}
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka needs brokers and a topic", ErrInvalidConfig)
		}
	}
	return nil
}
