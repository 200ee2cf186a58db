package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/backtest"
	"RegimeFlow/internal/services/blend"
	"RegimeFlow/internal/services/regime"
	"RegimeFlow/internal/services/signals"
	"RegimeFlow/internal/services/sizing"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/util"
)

type Config struct {
	Environment    string           `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	PeriodsPerYear float64          `yaml:"periods_per_year" default:"252" validate:"gt=0"`
	Logger         applogger.Config `yaml:"logger"`
	Data           DataConfig       `yaml:"data"`
	Cache          CacheConfig      `yaml:"cache"`
	Strategy       StrategyConfig   `yaml:"strategy"`
	Backtest       BacktestConfig   `yaml:"backtest"`
	Server         ServerConfig     `yaml:"server"`
	Metrics        MetricsConfig    `yaml:"metrics"`
	Kafka          KafkaConfig      `yaml:"kafka"`
	ClickHouse     ClickHouseConfig `yaml:"clickhouse"`
	Redis          RedisConfig      `yaml:"redis"`
}

// DataConfig selects the universe and where prices come from.
type DataConfig struct {
	Tickers   []string `yaml:"tickers" default:"[\"SPY\",\"QQQ\",\"TLT\",\"GLD\",\"XLE\",\"USO\"]" validate:"min=1,dive,required"`
	VIXTicker string   `yaml:"vix_ticker" default:"^VIX" validate:"required"`
	Start     string   `yaml:"start" default:"2014-01-01" validate:"datetime=2006-01-02"`
	End       string   `yaml:"end" default:"2024-12-31" validate:"omitempty,datetime=2006-01-02"`
	MaxRows   int      `yaml:"max_rows" validate:"gte=0"`

	PreferDownload bool          `yaml:"prefer_download" default:"true"`
	ForceRefresh   bool          `yaml:"force_refresh"`
	DownloadURL    string        `yaml:"download_url" validate:"omitempty,url"`
	Retries        int           `yaml:"retries" default:"3" validate:"gte=1,lte=10"`
	Backoff        time.Duration `yaml:"backoff" default:"1s"`
	Pause          time.Duration `yaml:"pause" default:"2s"`
	RequestsPerSec float64       `yaml:"requests_per_second" default:"2" validate:"gt=0"`
	Timeout        time.Duration `yaml:"timeout" default:"30s"`

	SyntheticMode string `yaml:"synthetic_mode" default:"random_walk" validate:"oneof=random_walk trend"`
	SyntheticSeed uint64 `yaml:"synthetic_seed" default:"42"`
}

// StartDate and EndDate parse the validated bounds. A missing end is open.
func (d DataConfig) StartDate() time.Time { return util.ParseDateDefault(d.Start, time.Time{}) }
func (d DataConfig) EndDate() time.Time   { return util.ParseDateDefault(d.End, time.Time{}) }

// CacheConfig enables the panel cache tiers, tried in order: redis, csv.
type CacheConfig struct {
	Dir      string        `yaml:"dir" default:"data/cache"`
	CSV      bool          `yaml:"csv" default:"true"`
	Redis    bool          `yaml:"redis"`
	Memory   bool          `yaml:"memory"`
	TTL      time.Duration `yaml:"ttl" default:"24h"`
	MaxItems int           `yaml:"max_items" default:"16" validate:"gte=1"`
}

type StrategyConfig struct {
	Regime     regime.Config            `yaml:"regime"`
	Momentum   signals.MomentumConfig   `yaml:"momentum"`
	Pairs      signals.PairsConfig      `yaml:"pairs"`
	TimeSeries signals.TimeSeriesConfig `yaml:"timeseries"`
	Defensive  signals.DefensiveConfig  `yaml:"defensive"`
	Blend      blend.Config             `yaml:"blend"`
	Sizing     sizing.Config            `yaml:"sizing"`
}

type BacktestConfig struct {
	backtest.Config `yaml:",inline"`
	EquityCurvePath string `yaml:"equity_curve_path"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled" default:"true"`
	PushGateway string `yaml:"push_gateway" validate:"omitempty,url"`
	Job         string `yaml:"job" default:"regimeflow_backtest"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"regimeflow.backtest.reports"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Source           bool          `yaml:"source"`
	StoreReports     bool          `yaml:"store_reports" default:"true"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"regimeflow" validate:"required,alphanum"`
	Table            string        `yaml:"table" default:"daily_closes" validate:"required"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"regimeflow"`
}

var validate = validator.New()

// Load reads a YAML file. Defaults are applied first so explicit zero values
// in the file win; collections left out of the file get the strategy
// defaults afterwards.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse builds a Config from YAML bytes.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fillCollections()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns the configuration of an empty file.
func Default() *Config {
	c, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("REGIMEFLOW_CACHE_DIR"); ok && v != "" {
		c.Cache.Dir = v
	}
	if v, ok := lookup("REGIMEFLOW_FORCE_REFRESH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REGIMEFLOW_FORCE_REFRESH: %w", err)
		}
		c.Data.ForceRefresh = b
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR: bad port %q", port)
			}
			c.Redis.Port = p
		}
		c.Cache.Redis = true
	}
	return nil
}

func (c *Config) fillCollections() {
	s := &c.Strategy
	if s.Pairs.Pairs == nil {
		s.Pairs.Pairs = signals.DefaultPairsConfig().Pairs
	}
	if s.TimeSeries.Lookbacks == nil {
		s.TimeSeries.Lookbacks = signals.DefaultTimeSeriesConfig().Lookbacks
	}
	if s.Defensive.Allocation == nil {
		s.Defensive.Allocation = signals.DefaultDefensiveConfig().Allocation
	}
}

// Validate runs the struct tags, then the cross-field rules of every
// strategy component.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.NewConfigError(strings.ToLower(fe.Namespace()), "failed %q (%v)", fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return models.NewConfigError("kafka.brokers", "required when kafka is enabled")
	}
	if end := c.Data.EndDate(); !end.IsZero() && end.Before(c.Data.StartDate()) {
		return models.NewConfigError("data.end", "%s is before start %s", c.Data.End, c.Data.Start)
	}
	checks := []func() error{
		c.RegimeConfig().Validate,
		c.Strategy.Momentum.Validate,
		c.Strategy.Pairs.Validate,
		c.Strategy.TimeSeries.Validate,
		c.Strategy.Defensive.Validate,
		c.Strategy.Blend.Validate,
		c.SizingConfig().Validate,
		c.BacktestConfig().Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// RegimeConfig, SizingConfig and BacktestConfig carry the shared
// annualisation factor into the component configs.
func (c *Config) RegimeConfig() regime.Config {
	rc := c.Strategy.Regime
	rc.PeriodsPerYear = c.PeriodsPerYear
	return rc
}

func (c *Config) SizingConfig() sizing.Config {
	sc := c.Strategy.Sizing
	sc.PeriodsPerYear = c.PeriodsPerYear
	return sc
}

func (c *Config) BacktestConfig() backtest.Config {
	bc := c.Backtest.Config
	bc.PeriodsPerYear = c.PeriodsPerYear
	return bc
}
