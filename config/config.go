package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	AdminToken     string        `mapstructure:"admin_token"`
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	ClientIPHeader string        `mapstructure:"client_ip_header"`
	CountryHeader  string        `mapstructure:"country_header"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RateLimitConfig holds the contact form rate limit windows
type RateLimitConfig struct {
	Backend     string        `mapstructure:"backend"`
	MaxEntries  int           `mapstructure:"max_entries"`
	ShortLimit  int           `mapstructure:"short_limit"`
	ShortWindow time.Duration `mapstructure:"short_window"`
	DailyLimit  int           `mapstructure:"daily_limit"`
	DailyWindow time.Duration `mapstructure:"daily_window"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotifierConfig holds outbound notification configuration
type NotifierConfig struct {
	Driver       string        `mapstructure:"driver"`
	Recipient    string        `mapstructure:"recipient"`
	Sender       string        `mapstructure:"sender"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RatePerSec   float64       `mapstructure:"rate_per_sec"`
	Burst        int           `mapstructure:"burst"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RefreshToken string        `mapstructure:"refresh_token"`
}

// IntakeConfig holds contact pipeline configuration
type IntakeConfig struct {
	MaxInFlight int `mapstructure:"max_in_flight"`
}

// SweeperConfig holds the stale message sweeper configuration
type SweeperConfig struct {
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	BatchSize       int           `mapstructure:"batch_size"`
}

// LoadConfig loads configuration from .env, environment variables and config file
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.trust_proxy", false)
	viper.SetDefault("server.country_header", "CF-IPCountry")

	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 50)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.max_size_mb", 50)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)

	viper.SetDefault("ratelimit.backend", "memory")
	viper.SetDefault("ratelimit.max_entries", 500)
	viper.SetDefault("ratelimit.short_limit", 5)
	viper.SetDefault("ratelimit.short_window", "10m")
	viper.SetDefault("ratelimit.daily_limit", 20)
	viper.SetDefault("ratelimit.daily_window", "24h")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("notifier.driver", "log")
	viper.SetDefault("notifier.timeout", "30s")
	viper.SetDefault("notifier.rate_per_sec", 1.0)
	viper.SetDefault("notifier.burst", 5)

	viper.SetDefault("intake.max_in_flight", 64)

	viper.SetDefault("sweeper.interval_minutes", 15)
	viper.SetDefault("sweeper.stale_after", "1h")
	viper.SetDefault("sweeper.batch_size", 100)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.admin_token", "ADMIN_TOKEN")
	viper.BindEnv("server.trust_proxy", "SERVER_TRUST_PROXY")
	viper.BindEnv("server.client_ip_header", "SERVER_CLIENT_IP_HEADER")
	viper.BindEnv("server.country_header", "SERVER_COUNTRY_HEADER")
	viper.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")

	// Database
	viper.BindEnv("database.driver", "DB_DRIVER")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Logging
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")
	viper.BindEnv("log.file_path", "LOG_FILE")

	// Rate limiting
	viper.BindEnv("ratelimit.backend", "RATELIMIT_BACKEND")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	// Notifier
	viper.BindEnv("notifier.driver", "NOTIFIER_DRIVER")
	viper.BindEnv("notifier.recipient", "NOTIFIER_RECIPIENT")
	viper.BindEnv("notifier.sender", "NOTIFIER_SENDER")
	viper.BindEnv("notifier.timeout", "NOTIFIER_TIMEOUT")
	viper.BindEnv("notifier.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("notifier.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("notifier.refresh_token", "GMAIL_REFRESH_TOKEN")

	viper.BindEnv("intake.max_in_flight", "INTAKE_MAX_IN_FLIGHT")

	// Sweeper
	viper.BindEnv("sweeper.interval_minutes", "SWEEPER_INTERVAL_MINUTES")
	viper.BindEnv("sweeper.stale_after", "SWEEPER_STALE_AFTER")
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin is required")
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	switch strings.ToLower(c.RateLimit.Backend) {
	case "memory":
		if c.RateLimit.MaxEntries <= 0 {
			return fmt.Errorf("ratelimit max_entries must be greater than 0")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when ratelimit backend is redis")
		}
	default:
		return fmt.Errorf("unsupported ratelimit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.ShortLimit <= 0 || c.RateLimit.DailyLimit <= 0 {
		return fmt.Errorf("ratelimit limits must be greater than 0")
	}
	if c.RateLimit.ShortWindow <= 0 || c.RateLimit.DailyWindow <= 0 {
		return fmt.Errorf("ratelimit windows must be greater than 0")
	}

	switch c.Notifier.Driver {
	case "log":
	case "gmail":
		if c.Notifier.ClientID == "" || c.Notifier.ClientSecret == "" || c.Notifier.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when notifier driver is gmail")
		}
		if c.Notifier.Recipient == "" || c.Notifier.Sender == "" {
			return fmt.Errorf("notifier recipient and sender are required when notifier driver is gmail")
		}
	default:
		return fmt.Errorf("unsupported notifier driver %q", c.Notifier.Driver)
	}
	if c.Notifier.Timeout <= 0 {
		return fmt.Errorf("notifier timeout must be greater than 0")
	}

	if c.Intake.MaxInFlight <= 0 {
		return fmt.Errorf("intake max_in_flight must be greater than 0")
	}

	if c.Sweeper.IntervalMinutes <= 0 {
		return fmt.Errorf("sweeper interval must be greater than 0")
	}
	if c.Sweeper.StaleAfter <= c.Notifier.Timeout {
		return fmt.Errorf("sweeper stale_after must be longer than the notifier timeout")
	}

	return nil
}
