package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Signaling SignalingConfig `yaml:"signaling"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port" env:"SERVER_PORT"`
	Interface    string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	// InstanceID identifies this router instance in the shared store.
	// Defaults to the hostname.
	InstanceID string `yaml:"instance_id" env:"SERVER_INSTANCE_ID"`
}

// RedisConfig holds coordination store configuration
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     string `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Addr returns the host:port address for the Redis client
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// AuthConfig holds handshake authentication configuration
type AuthConfig struct {
	// Enabled toggles token verification; when false a synthetic
	// principal is generated per connection (development mode).
	Enabled           bool   `yaml:"enabled" env:"AUTH_ENABLED"`
	JWTSecret         string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	ExpirationSeconds int    `yaml:"expiration_seconds" env:"AUTH_EXPIRATION_SECONDS"`
	// DevTokenEndpoint exposes POST /token/generate for local
	// development so a single binary can mint signaling tokens.
	DevTokenEndpoint bool   `yaml:"dev_token_endpoint" env:"AUTH_DEV_TOKEN_ENDPOINT"`
	DevAppSecret     string `yaml:"dev_app_secret" env:"AUTH_DEV_APP_SECRET"`
}

// SignalingConfig holds channel and connection tuning
type SignalingConfig struct {
	MaxChannelMembers int           `yaml:"max_channel_members" env:"SIGNALING_MAX_CHANNEL_MEMBERS"`
	StateTTL          time.Duration `yaml:"state_ttl" env:"SIGNALING_STATE_TTL"`
	SendBufferSize    int           `yaml:"send_buffer_size" env:"SIGNALING_SEND_BUFFER_SIZE"`
	ReadLimitBytes    int64         `yaml:"read_limit_bytes" env:"SIGNALING_READ_LIMIT_BYTES"`
	PongWait          time.Duration `yaml:"pong_wait" env:"SIGNALING_PONG_WAIT"`
	WriteWait         time.Duration `yaml:"write_wait" env:"SIGNALING_WRITE_WAIT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			InstanceID:   hostname,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			Password: "",
			DB:       0,
		},
		Auth: AuthConfig{
			Enabled:           true,
			JWTSecret:         "",
			ExpirationSeconds: 86400,
			DevTokenEndpoint:  false,
			DevAppSecret:      "",
		},
		Signaling: SignalingConfig{
			MaxChannelMembers: 100,
			StateTTL:          24 * time.Hour,
			SendBufferSize:    256,
			ReadLimitBytes:    64 * 1024,
			PongWait:          60 * time.Second,
			WriteWait:         10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            true,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Auth.DevTokenEndpoint && c.Auth.DevAppSecret == "" {
		return fmt.Errorf("auth.dev_app_secret is required when the dev token endpoint is enabled")
	}
	if c.Signaling.MaxChannelMembers <= 0 {
		return fmt.Errorf("signaling.max_channel_members must be positive")
	}
	if c.Signaling.StateTTL <= 0 {
		return fmt.Errorf("signaling.state_ttl must be positive")
	}
	return nil
}

// loadFromYAML loads configuration values from a YAML file
func loadFromYAML(config *Config, configFile string) error {
	data, err := os.ReadFile(configFile) // #nosec G304 - path comes from the operator's -config flag
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}
	return nil
}

// overrideWithEnv walks the config struct and overrides any field whose
// env tag names a set environment variable
func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a reflect.Value from its string representation
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration fields accept Go duration syntax
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}
