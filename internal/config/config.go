package config

import (
	"strings"

	"github.com/spf13/viper"
)

// MinRefreshSec is the floor for the periodic valuation interval. Anything
// lower would outrun the quote provider's rate limit.
const MinRefreshSec = 15

// Config holds all configuration for the application.
type Config struct {
	Provider  Provider  `mapstructure:"provider"`
	Portfolio Portfolio `mapstructure:"portfolio"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
}

// Provider holds the configuration for the market quote provider.
type Provider struct {
	Name string `mapstructure:"name"`
	// BaseURL is the root of the provider's quote API.
	BaseURL string `mapstructure:"base_url"`
	ApiKey  string `mapstructure:"api_key"`
	// RequestIntervalSec is the mandatory gap between consecutive quote
	// requests. The default respects a ~5 requests/minute provider limit.
	RequestIntervalSec int `mapstructure:"request_interval_sec"`
}

// Portfolio holds the accounting settings.
type Portfolio struct {
	StartingCash float64 `mapstructure:"starting_cash"`
	RefreshSec   int     `mapstructure:"refresh_sec"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EffectiveRefreshSec returns the configured refresh interval clamped to
// the MinRefreshSec floor.
func (p Portfolio) EffectiveRefreshSec() int {
	if p.RefreshSec < MinRefreshSec {
		return MinRefreshSec
	}
	return p.RefreshSec
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("provider.request_interval_sec", 13) // ~5 requests/minute
	viper.SetDefault("portfolio.refresh_sec", 60)
	viper.SetDefault("portfolio.starting_cash", 0)
	viper.SetDefault("database.dsn", "portfolio.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
