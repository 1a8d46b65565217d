// Package config loads the ledger configuration from config.toml, a .env
// file and STOCK_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig selects the ledger store. Pool lifetimes are in minutes.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int           `mapstructure:"conn_max_idle_time"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// DSN returns the postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds the reorder status cache connection
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	BusyRetryAfter   time.Duration `mapstructure:"busy_retry_after"` // Retry-After sent with 409 RESOURCE_BUSY
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// LedgerConfig holds the stock ledger and reorder tunables
type LedgerConfig struct {
	NearExpiryHorizon  time.Duration `mapstructure:"near_expiry_horizon"`
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout"`
	AllocationStrategy string        `mapstructure:"allocation_strategy"`
	SafetyFloor        int64         `mapstructure:"safety_floor"`
	FastCapacityShare  float64       `mapstructure:"fast_capacity_share"`
	FastMinimum        int64         `mapstructure:"fast_minimum"`
	FastCap            int64         `mapstructure:"fast_cap"`
	PeakMultiplier     float64       `mapstructure:"peak_multiplier"`
	DisplayMultiplier  int64         `mapstructure:"display_multiplier"`
	CapacityFloor      int64         `mapstructure:"capacity_floor"`
	SalesWindow        time.Duration `mapstructure:"sales_window"`
	AlertCooldown      time.Duration `mapstructure:"alert_cooldown"`
	ReorderCacheTTL    time.Duration `mapstructure:"reorder_cache_ttl"`
}

// ReorderPolicy converts the ledger settings into the calculator policy
func (l *LedgerConfig) ReorderPolicy() inventory.ReorderPolicy {
	return inventory.ReorderPolicy{
		SafetyFloor:       l.SafetyFloor,
		FastCapacityShare: decimal.NewFromFloat(l.FastCapacityShare),
		FastMinimum:       l.FastMinimum,
		FastCap:           l.FastCap,
		PeakMultiplier:    decimal.NewFromFloat(l.PeakMultiplier),
		DisplayMultiplier: l.DisplayMultiplier,
		CapacityFloor:     l.CapacityFloor,
	}
}

type SchedulerConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	AlertRetractInterval   time.Duration `mapstructure:"alert_retract_interval"`
	ExpiryWriteOffEnabled  bool          `mapstructure:"expiry_writeoff_enabled"`
	ExpiryWriteOffInterval time.Duration `mapstructure:"expiry_writeoff_interval"`
	JobTimeout             time.Duration `mapstructure:"job_timeout"`
}

// KafkaConfig controls forwarding of stock events
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// setDefaults registers every key. Viper only consults the environment for
// keys it knows, so a key without a default cannot be set by STOCK_ variables.
func setDefaults(v *viper.Viper) {
	policy := inventory.DefaultReorderPolicy()
	for key, value := range map[string]any{
		"app.name": "stock-ledger",
		"app.env":  "development",
		"app.port": "8080",

		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.user":               "postgres",
		"database.password":           "",
		"database.dbname":             "stock",
		"database.sslmode":            "disable",
		"database.sqlite_path":        "stock.db",
		"database.auto_migrate":       false,
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  60,
		"database.conn_max_idle_time": 30,
		"database.slow_query":         200 * time.Millisecond,

		"redis.enabled":  false,
		"redis.host":     "localhost",
		"redis.port":     6379,
		"redis.password": "",
		"redis.db":       0,

		"log.level":  "info",
		"log.format": "console",
		"log.output": "stdout",

		"http.read_timeout":       15 * time.Second,
		"http.write_timeout":      15 * time.Second,
		"http.idle_timeout":       60 * time.Second,
		"http.max_header_bytes":   1 << 20,
		"http.max_body_size":      1 << 20,
		"http.busy_retry_after":   time.Second,
		"http.cors_allow_origins": []string{},
		"http.trusted_proxies":    []string{},

		"ledger.near_expiry_horizon": inventory.DefaultNearExpiryHorizon,
		"ledger.lock_timeout":        2 * time.Second,
		"ledger.operation_timeout":   5 * time.Second,
		"ledger.allocation_strategy": string(inventory.AllocationStrategyExpiryFirst),
		"ledger.safety_floor":        policy.SafetyFloor,
		"ledger.fast_capacity_share": policy.FastCapacityShare.InexactFloat64(),
		"ledger.fast_minimum":        policy.FastMinimum,
		"ledger.fast_cap":            policy.FastCap,
		"ledger.peak_multiplier":     policy.PeakMultiplier.InexactFloat64(),
		"ledger.display_multiplier":  policy.DisplayMultiplier,
		"ledger.capacity_floor":      policy.CapacityFloor,
		"ledger.sales_window":        inventory.DefaultSalesWindow,
		"ledger.alert_cooldown":      time.Hour,
		"ledger.reorder_cache_ttl":   time.Minute,

		"scheduler.enabled":                  false,
		"scheduler.alert_retract_interval":   5 * time.Minute,
		"scheduler.expiry_writeoff_enabled":  false,
		"scheduler.expiry_writeoff_interval": time.Hour,
		"scheduler.job_timeout":              2 * time.Minute,

		"kafka.enabled":       false,
		"kafka.brokers":       []string{"localhost:9092"},
		"kafka.topic":         "stock-events",
		"kafka.batch_timeout": 50 * time.Millisecond,

		"telemetry.enabled":                 false,
		"telemetry.collector_endpoint":      "localhost:4317",
		"telemetry.sampling_ratio":          1.0,
		"telemetry.service_name":            "stock-ledger",
		"telemetry.insecure":                false,
		"telemetry.metrics_enabled":         false,
		"telemetry.metrics_interval":        30 * time.Second,
		"telemetry.db_trace_enabled":        false,
		"telemetry.db_log_full_sql":         false,
		"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	} {
		v.SetDefault(key, value)
	}
}

// Load reads config.toml from ., ./configs or /app, then applies STOCK_
// variables (STOCK_DATABASE_HOST overrides database.host). An optional .env
// file is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.SetEnvPrefix("STOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with every key at its default value
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// env lists arrive as one comma separated string
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.HTTP.CORSAllowOrigins = splitList(cfg.HTTP.CORSAllowOrigins)
	cfg.HTTP.TrustedProxies = splitList(cfg.HTTP.TrustedProxies)
	cfg.Ledger.AllocationStrategy = strings.ToUpper(cfg.Ledger.AllocationStrategy)
	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return errors.New("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns must be between 0 and max_open_conns (%d), got %d",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	}

	if err := c.Ledger.validate(); err != nil {
		return err
	}

	if c.Kafka.Enabled && (c.Kafka.Topic == "" || len(c.Kafka.Brokers) == 0) {
		return errors.New("kafka.topic and kafka.brokers are required when kafka is enabled")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		switch {
		case c.Database.Driver == "sqlite":
			return errors.New("database.driver cannot be sqlite in production")
		case c.Database.Password == "":
			return errors.New("database.password is required in production")
		case c.Telemetry.DBLogFullSQL:
			return errors.New("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if l.LockTimeout < 0 || l.OperationTimeout < 0 {
		return errors.New("ledger.lock_timeout and ledger.operation_timeout cannot be negative")
	}
	// a lock wait must give up before the whole operation does
	if l.LockTimeout > l.OperationTimeout {
		return fmt.Errorf("ledger.lock_timeout (%s) cannot exceed ledger.operation_timeout (%s)",
			l.LockTimeout, l.OperationTimeout)
	}
	if _, err := inventory.NewAllocationStrategy(inventory.AllocationStrategyType(l.AllocationStrategy), l.NearExpiryHorizon); err != nil {
		return fmt.Errorf("ledger.allocation_strategy: %w", err)
	}
	if err := l.ReorderPolicy().Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if l.SalesWindow <= 0 {
		return errors.New("ledger.sales_window must be positive")
	}
	if l.AlertCooldown < 0 || l.ReorderCacheTTL < 0 {
		return errors.New("ledger.alert_cooldown and ledger.reorder_cache_ttl cannot be negative")
	}
	return nil
}
