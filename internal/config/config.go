// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Security   SecurityConfig    `mapstructure:"security"`
	Logging    LoggingConfig     `mapstructure:"logging"`
	App        AppConfig         `mapstructure:"app"`
	Projectors []ProjectorConfig `mapstructure:"projectors"`
	Polling    PollingConfig     `mapstructure:"polling"`
	Commands   CommandConfig     `mapstructure:"commands"`
	Catalog    CatalogConfig     `mapstructure:"catalog"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// ProjectorConfig describes one controlled projector
type ProjectorConfig struct {
	ID             string        `mapstructure:"id"`
	Name           string        `mapstructure:"name"`
	Brand          string        `mapstructure:"brand"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	SerialPort     int           `mapstructure:"serial_port"`
	TimeoutScale   float64       `mapstructure:"timeout_scale"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// PollingConfig controls the background status and property pollers
type PollingConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	PowerInterval      time.Duration `mapstructure:"power_interval"`
	PropertiesInterval time.Duration `mapstructure:"properties_interval"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	InterReadDelay     time.Duration `mapstructure:"inter_read_delay"`
}

// CommandConfig controls how inbound commands wait for a busy projector
type CommandConfig struct {
	BusyRetryDelay  time.Duration `mapstructure:"busy_retry_delay"`
	BusyWaitTimeout time.Duration `mapstructure:"busy_wait_timeout"`
}

// CatalogConfig points at an optional catalog override file
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from an optional YAML file and the environment.
// An empty path searches for config.yaml in the working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix("PROJECTOR_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.applyProjectorDefaults()

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "projector-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Polling defaults
	v.SetDefault("polling.enabled", true)
	v.SetDefault("polling.power_interval", "10s")
	v.SetDefault("polling.properties_interval", "10s")
	v.SetDefault("polling.reconnect_delay", "5s")
	v.SetDefault("polling.inter_read_delay", "10ms")

	v.SetDefault("commands.busy_retry_delay", "500ms")
	v.SetDefault("commands.busy_wait_timeout", "60s")

	v.SetDefault("catalog.path", "")
}

const (
	defaultControlPort    = 3629
	defaultSerialPort     = 3620
	defaultConnectTimeout = 10 * time.Second
)

func (c *Config) applyProjectorDefaults() {
	for i := range c.Projectors {
		p := &c.Projectors[i]
		if p.Brand == "" {
			p.Brand = "EPSON"
		}
		p.Brand = strings.ToUpper(p.Brand)
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.Port == 0 {
			p.Port = defaultControlPort
		}
		if p.SerialPort == 0 {
			p.SerialPort = defaultSerialPort
		}
		if p.TimeoutScale <= 0 {
			p.TimeoutScale = 1
		}
		if p.ConnectTimeout <= 0 {
			p.ConnectTimeout = defaultConnectTimeout
		}
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	seen := make(map[string]bool, len(config.Projectors))
	for i, p := range config.Projectors {
		if p.ID == "" {
			return fmt.Errorf("projectors[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("projectors[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Host == "" {
			return fmt.Errorf("projectors[%d].host is required", i)
		}
		if p.Port < 1 || p.Port > 65535 {
			return fmt.Errorf("projectors[%d].port out of range: %d", i, p.Port)
		}
	}

	if config.Polling.Enabled {
		if config.Polling.PowerInterval <= 0 || config.Polling.PropertiesInterval <= 0 {
			return fmt.Errorf("polling intervals must be positive")
		}
	}
	if config.Commands.BusyRetryDelay <= 0 {
		return fmt.Errorf("commands.busy_retry_delay must be positive")
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
