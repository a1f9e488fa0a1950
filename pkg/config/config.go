package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxRetries     int           `yaml:"max_retries"`
		RetryBackoff   time.Duration `yaml:"retry_backoff"`
		RateCapacity   float64       `yaml:"rate_capacity"`
		RateRefill     float64       `yaml:"rate_refill_per_sec"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"finnhub"`
	Symbols struct {
		Defaults  []string `yaml:"defaults"`
		Watchlist []string `yaml:"watchlist"`
	} `yaml:"symbols"`
	Train struct {
		At             string        `yaml:"at"` // daily wall-clock time, e.g. "08:00"
		LookbackDays   int           `yaml:"lookback_days"`
		MinRows        int           `yaml:"min_rows"`
		Trees          int           `yaml:"trees"`
		MaxDepth       int           `yaml:"max_depth"`
		Seed           int64         `yaml:"seed"`
		ModelDir       string        `yaml:"model_dir"`
		AccuracyWindow int           `yaml:"accuracy_window"`
		CycleTimeout   time.Duration `yaml:"cycle_timeout"`
	} `yaml:"train"`
	Aggregator struct {
		RefreshEvery time.Duration `yaml:"refresh_every"`
		SnapshotTTL  time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"aggregator"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"kafka"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	return finalize(c)
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Overrides are applied before validation so a value like the
// API key may come from the environment alone.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols.Defaults = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Train.ModelDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		host, port := splitHostPort(v, c.Redis.Port)
		c.Redis.Host, c.Redis.Port = host, port
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return finalize(c)
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func finalize(c *Config) (*Config, error) {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Finnhub.BaseURL == "" {
		c.Finnhub.BaseURL = "https://finnhub.io/api/v1"
	}
	if c.Finnhub.RequestTimeout <= 0 {
		c.Finnhub.RequestTimeout = 5 * time.Second
	}
	if c.Finnhub.MaxRetries <= 0 {
		c.Finnhub.MaxRetries = 3
	}
	if c.Finnhub.RetryBackoff <= 0 {
		c.Finnhub.RetryBackoff = time.Second
	}
	if c.Finnhub.RateCapacity <= 0 {
		c.Finnhub.RateCapacity = 30
	}
	if c.Finnhub.RateRefill <= 0 {
		c.Finnhub.RateRefill = 0.5
	}
	if len(c.Symbols.Defaults) == 0 {
		c.Symbols.Defaults = []string{"AAPL", "MSFT", "NVDA", "GOOGL", "AMZN"}
	}
	if len(c.Symbols.Watchlist) == 0 {
		c.Symbols.Watchlist = []string{"SPY", "QQQ", "DIA"}
	}
	if c.Train.At == "" {
		c.Train.At = "08:00"
	}
	if c.Train.LookbackDays <= 0 {
		c.Train.LookbackDays = 365
	}
	if c.Train.MinRows <= 0 {
		c.Train.MinRows = 30
	}
	if c.Train.Trees <= 0 {
		c.Train.Trees = 100
	}
	if c.Train.MaxDepth <= 0 {
		c.Train.MaxDepth = 10
	}
	if c.Train.Seed == 0 {
		c.Train.Seed = 42
	}
	if c.Train.ModelDir == "" {
		c.Train.ModelDir = "models"
	}
	if c.Train.AccuracyWindow <= 0 {
		c.Train.AccuracyWindow = 30
	}
	if c.Train.CycleTimeout <= 0 {
		c.Train.CycleTimeout = 2 * time.Minute
	}
	if c.Aggregator.RefreshEvery <= 0 {
		c.Aggregator.RefreshEvery = 5 * time.Minute
	}
	if c.Aggregator.SnapshotTTL <= 0 {
		c.Aggregator.SnapshotTTL = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if len(c.Symbols.Defaults) == 0 {
		return fmt.Errorf("symbols.defaults cannot be empty")
	}
	if _, err := time.Parse("15:04", c.Train.At); err != nil {
		return fmt.Errorf("train.at must be HH:MM: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	return nil
}

func splitHostPort(addr string, defPort int) (string, int) {
	host := addr
	port := defPort
	if i := strings.LastIndex(addr, ":"); i > 0 {
		host = addr[:i]
		var p int
		if _, err := fmt.Sscanf(addr[i+1:], "%d", &p); err == nil {
			port = p
		}
	}
	if port == 0 {
		port = 6379
	}
	return host, port
}
