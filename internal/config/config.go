package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dwq/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Tables     model.Tables     `yaml:"tables" mapstructure:"tables"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
}

// StoreConfig configures the record store.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PipelineConfig configures the daily load.
type PipelineConfig struct {
	Source             string `yaml:"source" mapstructure:"source"` // synthetic | feed
	TransactionsPerRun int    `yaml:"transactions_per_run" mapstructure:"transactions_per_run"`
	CustomersPerRun    int    `yaml:"customers_per_run" mapstructure:"customers_per_run"`
	CustomerMode       string `yaml:"customer_mode" mapstructure:"customer_mode"` // full | incremental
	StageTimeoutSecs   int    `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	EntityConcurrency  int    `yaml:"entity_concurrency" mapstructure:"entity_concurrency"`
	Seed               uint64 `yaml:"seed" mapstructure:"seed"`
}

// StageTimeout returns the per-stage deadline; zero disables it.
func (p PipelineConfig) StageTimeout() time.Duration {
	return time.Duration(p.StageTimeoutSecs) * time.Second
}

// SourceConfig configures the upstream feed used when pipeline.source is feed.
type SourceConfig struct {
	TransactionsURL string  `yaml:"transactions_url" mapstructure:"transactions_url"`
	CustomersURL    string  `yaml:"customers_url" mapstructure:"customers_url"`
	Format          string  `yaml:"format" mapstructure:"format"` // json | csv
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	AuthToken       string  `yaml:"auth_token" mapstructure:"auth_token"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// QualityConfig configures the check battery.
type QualityConfig struct {
	RegistryPath     string `yaml:"registry_path" mapstructure:"registry_path"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	CheckTimeoutSecs int    `yaml:"check_timeout_secs" mapstructure:"check_timeout_secs"`
}

// CheckTimeout returns the per-check deadline; zero disables it.
func (q QualityConfig) CheckTimeout() time.Duration {
	return time.Duration(q.CheckTimeoutSecs) * time.Second
}

// ReportConfig configures where quality reports are written.
type ReportConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Postgres bool   `yaml:"postgres" mapstructure:"postgres"`
	Table    string `yaml:"table" mapstructure:"table"`
}

// MonitoringConfig configures alerting and the status summary.
type MonitoringConfig struct {
	WebhookURL       string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackHours    int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	FailureRateAlert float64 `yaml:"failure_rate_alert" mapstructure:"failure_rate_alert"`
}

// MetricsConfig configures the Prometheus push target.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ScheduleConfig holds cron expressions for serve mode. Empty disables.
type ScheduleConfig struct {
	LoadCron  string `yaml:"load_cron" mapstructure:"load_cron"`
	CheckCron string `yaml:"check_cron" mapstructure:"check_cron"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DWQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	tables := model.DefaultTables()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// env-overridable key gets a default here.
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tables.transactions", tables.Transactions)
	v.SetDefault("tables.customers", tables.Customers)
	v.SetDefault("tables.branches", tables.Branches)
	v.SetDefault("tables.products", tables.Products)
	v.SetDefault("pipeline.source", "synthetic")
	v.SetDefault("pipeline.transactions_per_run", 1000)
	v.SetDefault("pipeline.customers_per_run", 500)
	v.SetDefault("pipeline.customer_mode", "full")
	v.SetDefault("pipeline.stage_timeout_secs", 600)
	v.SetDefault("pipeline.entity_concurrency", 2)
	v.SetDefault("pipeline.seed", 0)
	v.SetDefault("source.transactions_url", "")
	v.SetDefault("source.customers_url", "")
	v.SetDefault("source.format", "json")
	v.SetDefault("source.user_agent", "dwq/1.0")
	v.SetDefault("source.auth_token", "")
	v.SetDefault("source.timeout_secs", 60)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.rate_limit_per_sec", 5.0)
	v.SetDefault("quality.registry_path", "")
	v.SetDefault("quality.concurrency", 4)
	v.SetDefault("quality.check_timeout_secs", 120)
	v.SetDefault("report.path", "quality_report.json")
	v.SetDefault("report.postgres", false)
	v.SetDefault("report.table", "dwq.quality_report")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.failure_rate_alert", 0.5)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "dwq")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("schedule.load_cron", "")
	v.SetDefault("schedule.check_cron", "")
}

// InitLogger builds the process logger. Components receive it (or a child
// of it) at construction.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}

	return logger, nil
}

// Validate checks the settings a given command needs. Mode is one of
// load, check, run, or serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "load", "check", "run", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "load" || mode == "run" || mode == "serve" {
		errs = append(errs, c.validatePipeline()...)
	}
	if mode == "check" || mode == "run" || mode == "serve" {
		if c.Quality.Concurrency < 1 || c.Quality.Concurrency > 64 {
			errs = append(errs, "quality.concurrency must be between 1 and 64")
		}
		if c.Report.Postgres && c.Report.Table == "" {
			errs = append(errs, "report.table is required when report.postgres is set")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string
	switch c.Pipeline.Source {
	case "synthetic":
		if c.Pipeline.TransactionsPerRun < 0 || c.Pipeline.CustomersPerRun < 0 {
			errs = append(errs, "pipeline per-run counts must be >= 0")
		}
	case "feed":
		if c.Source.TransactionsURL == "" {
			errs = append(errs, "source.transactions_url is required for the feed source")
		}
		if c.Source.CustomersURL == "" {
			errs = append(errs, "source.customers_url is required for the feed source")
		}
		if c.Source.Format != "json" && c.Source.Format != "csv" {
			errs = append(errs, "source.format must be json or csv")
		}
	default:
		errs = append(errs, "pipeline.source must be synthetic or feed")
	}
	if c.Pipeline.CustomerMode != "full" && c.Pipeline.CustomerMode != "incremental" {
		errs = append(errs, "pipeline.customer_mode must be full or incremental")
	}
	if c.Pipeline.EntityConcurrency < 1 {
		errs = append(errs, "pipeline.entity_concurrency must be >= 1")
	}
	return errs
}
