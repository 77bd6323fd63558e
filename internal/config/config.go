package config

import (
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // profiles name IANA zones; hosts may lack zoneinfo

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/reference"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig          `yaml:"log" mapstructure:"log"`
	Reference  ReferenceConfig    `yaml:"reference" mapstructure:"reference"`
	Store      StoreConfig        `yaml:"store" mapstructure:"store"`
	Loader     LoaderConfig       `yaml:"loader" mapstructure:"loader"`
	Server     ServerConfig       `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig        `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Profiles   map[string]Profile `yaml:"profiles" mapstructure:"profiles"`
}

// ReferenceConfig locates the holiday calendar and the branch → channel table.
// DatabaseURL enables the query variants of both sources.
type ReferenceConfig struct {
	DatabaseURL string                  `yaml:"database_url" mapstructure:"database_url"`
	Holidays    reference.HolidaySource `yaml:"holidays" mapstructure:"holidays"`
	Channels    reference.ChannelSource `yaml:"channels" mapstructure:"channels"`
}

// StoreConfig configures the run ledger.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LoaderConfig configures bulk loading of accepted datasets into Postgres.
type LoaderConfig struct {
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Table       string      `yaml:"table" mapstructure:"table"`
	Retry       RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig holds the loader retry schedule.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP batch endpoint.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// BatchConfig configures multi-file runs.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
}

// MonitoringConfig configures the ledger alert checker run by serve.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	RejectRateThreshold float64 `yaml:"reject_rate_threshold" mapstructure:"reject_rate_threshold"`
	MinRuns             int     `yaml:"min_runs" mapstructure:"min_runs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Profile is the configuration of one report: which columns identify a
// sale, which are product lines, how channels and SLA are computed, and
// how the output is named.
type Profile struct {
	Input         InputConfig    `yaml:"input" mapstructure:"input"`
	HeaderFields  []string       `yaml:"header_fields" mapstructure:"header_fields"`
	ProductFields []string       `yaml:"product_fields" mapstructure:"product_fields"`
	Slots         int            `yaml:"slots" mapstructure:"slots"`
	SlotOrder     string         `yaml:"slot_order" mapstructure:"slot_order"`
	PriceField    string         `yaml:"price_field" mapstructure:"price_field"`
	Fields        model.FieldMap `yaml:"fields" mapstructure:"fields"`
	DateLayouts   []string       `yaml:"date_layouts" mapstructure:"date_layouts"`
	WeekendPolicy string         `yaml:"weekend_policy" mapstructure:"weekend_policy"`
	SLAOffset     int            `yaml:"sla_offset" mapstructure:"sla_offset"`
	Timezone      string         `yaml:"timezone" mapstructure:"timezone"`
	LinkedOrders  bool           `yaml:"linked_orders" mapstructure:"linked_orders"`
	RulesFile     string         `yaml:"rules_file" mapstructure:"rules_file"`
	Columns       OutputColumns  `yaml:"columns" mapstructure:"columns"`
}

// InputConfig tells the reader how to open an export.
type InputConfig struct {
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Charset   string `yaml:"charset" mapstructure:"charset"`
}

// OutputColumns names the computed output columns.
type OutputColumns struct {
	Code         string `yaml:"code" mapstructure:"code"`
	Channel      string `yaml:"channel" mapstructure:"channel"`
	BusinessDays string `yaml:"business_days" mapstructure:"business_days"`
	SLA          string `yaml:"sla" mapstructure:"sla"`
	Range        string `yaml:"range" mapstructure:"range"`
}

// Profile defaults.
const (
	DefaultSlots    = 3
	DefaultTimezone = "America/Bogota"
)

// DefaultDateLayouts are tried in order when a date cell is text.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04",
	"2/1/2006",
	time.RFC3339,
}

// DefaultColumns are the computed column names used when a profile names none.
var DefaultColumns = OutputColumns{
	Code:         "CODIGO_TRANSACCION",
	Channel:      "CANAL_VENTA",
	BusinessDays: "DIAS_HABILES",
	SLA:          "SLA",
	Range:        "DIAS_RANGO",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALESOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "salesops.db")
	v.SetDefault("loader.database_url", "")
	v.SetDefault("loader.table", "reporting.ventas")
	v.SetDefault("loader.retry.max_attempts", 3)
	v.SetDefault("loader.retry.initial_backoff_ms", 1000)
	v.SetDefault("loader.retry.max_backoff_ms", 15000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("batch.max_concurrent_files", 4)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.reject_rate_threshold", 0.2)
	v.SetDefault("monitoring.min_runs", 5)
	v.SetDefault("reference.database_url", "")
	v.SetDefault("reference.holidays.path", "")
	v.SetDefault("reference.holidays.column", "FECHA")
	v.SetDefault("reference.channels.path", "")
	v.SetDefault("reference.channels.branch_column", "SEDE")
	v.SetDefault("reference.channels.channel_column", "CANAL")

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

	for name, p := range cfg.Profiles {
		cfg.Profiles[name] = p.withDefaults()
	}

	return &cfg, nil
}

func (p Profile) withDefaults() Profile {
	if p.Slots <= 0 {
		p.Slots = DefaultSlots
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if len(p.DateLayouts) == 0 {
		p.DateLayouts = DefaultDateLayouts
	}
	c := &p.Columns
	if c.Code == "" {
		c.Code = DefaultColumns.Code
	}
	if c.Channel == "" {
		c.Channel = DefaultColumns.Channel
	}
	if c.BusinessDays == "" {
		c.BusinessDays = DefaultColumns.BusinessDays
	}
	if c.SLA == "" {
		c.SLA = DefaultColumns.SLA
	}
	if c.Range == "" {
		c.Range = DefaultColumns.Range
	}
	return p
}

// ErrUnknownProfile reports a profile name missing from the configuration.
var ErrUnknownProfile = eris.New("unknown profile")

// Profile returns the named profile. Profile names are case-insensitive.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[strings.ToLower(name)]
	if !ok {
		return Profile{}, eris.Wrapf(ErrUnknownProfile, "config: profile %q (available: %s)",
			name, strings.Join(c.ProfileNames(), ", "))
	}
	if err := p.Validate(); err != nil {
		return Profile{}, eris.Wrapf(err, "config: profile %q", name)
	}
	return p, nil
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for n := range c.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the fields every run needs.
func (p Profile) Validate() error {
	if len(p.HeaderFields) == 0 {
		return eris.New("header_fields is required")
	}
	if len(p.ProductFields) == 0 {
		return eris.New("product_fields is required")
	}
	if p.Fields.Branch == "" {
		return eris.New("fields.branch is required")
	}
	if p.WeekendPolicy == "" {
		return eris.New("weekend_policy is required (sunday or saturday_sunday)")
	}
	if p.SlotOrder == "price_desc" && p.PriceField == "" {
		return eris.New("price_field is required with slot_order price_desc")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return eris.Wrapf(err, "timezone %q", p.Timezone)
	}
	return nil
}

// Location returns the profile time zone.
func (p Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the settings a command mode depends on: "run", "load" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	if c.Batch.MaxConcurrentFiles < 1 || c.Batch.MaxConcurrentFiles > 32 {
		errs = append(errs, "batch.max_concurrent_files must be between 1 and 32")
	}
	if c.Store.Driver != "" && c.Store.Driver != "sqlite" && c.Store.Driver != "none" {
		errs = append(errs, "store.driver must be sqlite or none")
	}

	switch mode {
	case "run":
	case "load":
		if c.Loader.DatabaseURL == "" {
			errs = append(errs, "loader.database_url is required")
		}
		if c.Loader.Table == "" {
			errs = append(errs, "loader.table is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
		if m := c.Monitoring; m.Enabled && (m.RejectRateThreshold <= 0 || m.RejectRateThreshold > 1) {
			errs = append(errs, "monitoring.reject_rate_threshold must be in (0, 1]")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
