package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	ERP       ERPConfig
	Mail      MailConfig
	Dunning   DunningConfig
	Scheduler SchedulerConfig
	PDF       PDFConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// ERPConfig holds settings for the upstream order system API
type ERPConfig struct {
	BaseURL        string
	APIKey         string
	PageSize       int
	RequestTimeout time.Duration
	RequestDelay   time.Duration // pause between consecutive API calls
	BatchPause     time.Duration // pause between enrichment batches
	MaxRetries     int
	SyncWindowDays int // how far back open invoices are fetched
}

// MailConfig holds SMTP delivery settings
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	ReplyTo     string
}

// DunningConfig holds campaign safety and rendering settings
type DunningConfig struct {
	DailySendCap      int
	HourlySendCap     int
	CooldownHours     int
	TestRecipient     string
	TestSendCap       int
	PaymentURLPattern string // supports {REF}, {CONTACT_ID}, {ORDER_ID}
	OptOutBaseURL     string
	OptOutSecret      string
	MinDunnableDays   int
}

// SchedulerConfig holds the daily run loop configuration
type SchedulerConfig struct {
	Enabled       bool
	TickInterval  time.Duration
	RunHourUTC    int // hour of day the cron trigger fires
	RunLockTTL    time.Duration
	NoteStaleness time.Duration
}

// PDFConfig holds invoice PDF rendering settings
type PDFConfig struct {
	Enabled       bool
	RenderTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ARFLOW_ prefix (e.g., ARFLOW_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ARFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		ERP: ERPConfig{
			BaseURL:        v.GetString("erp.base_url"),
			APIKey:         v.GetString("erp.api_key"),
			PageSize:       v.GetInt("erp.page_size"),
			RequestTimeout: v.GetDuration("erp.request_timeout"),
			RequestDelay:   v.GetDuration("erp.request_delay"),
			BatchPause:     v.GetDuration("erp.batch_pause"),
			MaxRetries:     v.GetInt("erp.max_retries"),
			SyncWindowDays: v.GetInt("erp.sync_window_days"),
		},
		Mail: MailConfig{
			Host:        v.GetString("mail.host"),
			Port:        v.GetInt("mail.port"),
			Username:    v.GetString("mail.username"),
			Password:    v.GetString("mail.password"),
			FromName:    v.GetString("mail.from_name"),
			FromAddress: v.GetString("mail.from_address"),
			ReplyTo:     v.GetString("mail.reply_to"),
		},
		Dunning: DunningConfig{
			DailySendCap:      v.GetInt("dunning.daily_send_cap"),
			HourlySendCap:     v.GetInt("dunning.hourly_send_cap"),
			CooldownHours:     v.GetInt("dunning.cooldown_hours"),
			TestRecipient:     v.GetString("dunning.test_recipient"),
			TestSendCap:       v.GetInt("dunning.test_send_cap"),
			PaymentURLPattern: v.GetString("dunning.payment_url_pattern"),
			OptOutBaseURL:     v.GetString("dunning.opt_out_base_url"),
			OptOutSecret:      v.GetString("dunning.opt_out_secret"),
			MinDunnableDays:   v.GetInt("dunning.min_dunnable_days"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			TickInterval:  v.GetDuration("scheduler.tick_interval"),
			RunHourUTC:    v.GetInt("scheduler.run_hour_utc"),
			RunLockTTL:    v.GetDuration("scheduler.run_lock_ttl"),
			NoteStaleness: v.GetDuration("scheduler.note_staleness"),
		},
		PDF: PDFConfig{
			Enabled:       v.GetBool("pdf.enabled"),
			RenderTimeout: v.GetDuration("pdf.render_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "arflow-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "arflow"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.ERP.PageSize == 0 {
		cfg.ERP.PageSize = 50
	}
	if cfg.ERP.RequestTimeout == 0 {
		cfg.ERP.RequestTimeout = 30 * time.Second
	}
	if cfg.ERP.RequestDelay == 0 {
		cfg.ERP.RequestDelay = 250 * time.Millisecond
	}
	if cfg.ERP.BatchPause == 0 {
		cfg.ERP.BatchPause = 2 * time.Second
	}
	if cfg.ERP.MaxRetries == 0 {
		cfg.ERP.MaxRetries = 3
	}
	if cfg.ERP.SyncWindowDays == 0 {
		cfg.ERP.SyncWindowDays = 365
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Dunning.DailySendCap == 0 {
		cfg.Dunning.DailySendCap = 200
	}
	if cfg.Dunning.HourlySendCap == 0 {
		cfg.Dunning.HourlySendCap = 50
	}
	if cfg.Dunning.CooldownHours == 0 {
		cfg.Dunning.CooldownHours = 24
	}
	if cfg.Dunning.TestSendCap == 0 {
		cfg.Dunning.TestSendCap = 5
	}
	if cfg.Dunning.MinDunnableDays == 0 {
		cfg.Dunning.MinDunnableDays = 30
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = time.Minute
	}
	if cfg.Scheduler.RunHourUTC == 0 {
		cfg.Scheduler.RunHourUTC = 6
	}
	if cfg.Scheduler.RunLockTTL == 0 {
		cfg.Scheduler.RunLockTTL = 2 * time.Hour
	}
	if cfg.Scheduler.NoteStaleness == 0 {
		cfg.Scheduler.NoteStaleness = 24 * time.Hour
	}
	if cfg.PDF.RenderTimeout == 0 {
		cfg.PDF.RenderTimeout = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "arflow-backend"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.ERP.BaseURL == "" {
			return fmt.Errorf("erp.base_url is required in production")
		}
		if c.ERP.APIKey == "" {
			return fmt.Errorf("erp.api_key is required in production")
		}
		if c.Dunning.OptOutSecret == "" {
			return fmt.Errorf("dunning.opt_out_secret is required in production")
		}
		if len(c.Dunning.OptOutSecret) > 0 && len(c.Dunning.OptOutSecret) < 32 {
			return fmt.Errorf("dunning.opt_out_secret must be at least 32 characters in production")
		}
	}

	if c.Dunning.HourlySendCap > c.Dunning.DailySendCap {
		return fmt.Errorf("dunning.hourly_send_cap (%d) cannot exceed dunning.daily_send_cap (%d)",
			c.Dunning.HourlySendCap, c.Dunning.DailySendCap)
	}
	if c.Scheduler.RunHourUTC < 0 || c.Scheduler.RunHourUTC > 23 {
		return fmt.Errorf("scheduler.run_hour_utc must be between 0 and 23, got %d", c.Scheduler.RunHourUTC)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
