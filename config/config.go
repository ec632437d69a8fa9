package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	FormatAuto   = "auto"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// EnvPrefix is prepended to every environment variable consulted by Load.
const EnvPrefix = "IRIS"

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	Environment     string `mapstructure:"environment"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	IdleTimeout     string `mapstructure:"idle_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// Address joins host and port into a dialable listen address.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type DatasetConfig struct {
	Input           string `mapstructure:"input"`
	Format          string `mapstructure:"format"`
	VerifyOnStartup bool   `mapstructure:"verify_on_startup"`
	CheckInterval   string `mapstructure:"check_interval"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// Enabled reports whether the metrics listener should be started.
func (m MetricsConfig) Enabled() bool {
	return m.Address != ""
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Enabled reports whether requests on the main listener are rate limited.
func (r RateLimitConfig) Enabled() bool {
	return r.RPS > 0
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// Error reports a configuration that cannot be used to start the server.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"input":        "dataset.input",
	"format":       "dataset.format",
	"host":         "server.host",
	"port":         "server.port",
	"env":          "server.environment",
	"log-level":    "logging.level",
	"metrics-addr": "metrics.address",
	"rate-limit":   "rate_limit.rps",
	"rate-burst":   "rate_limit.burst",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("dataset.format", FormatAuto)
	v.SetDefault("dataset.verify_on_startup", true)
	v.SetDefault("dataset.check_interval", "30s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("metrics.address", "")
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
}

// Load builds the configuration from defaults, an optional YAML file,
// IRIS_* environment variables and the given command line flags, in
// increasing order of precedence. configFile may be empty, in which case
// config.yaml is searched for in ./config and the working directory.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, &Error{Op: "read", Err: err}
		}
		slog.Debug("config file not found, using defaults, environment and flags")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, &Error{Op: "bind " + name, Err: err}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, &Error{Op: "unmarshal", Err: err}
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, &Error{Op: "validate", Err: err}
	}

	return &cfg, nil
}

// normalize lower-cases the enumerated settings so that flag, env and file
// values match regardless of case.
func (c *Config) normalize() {
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	c.Dataset.Format = strings.ToLower(strings.TrimSpace(c.Dataset.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Host,
						validation.Required,
						validation.By(validateHost),
					),
					validation.Field(&sc.Port,
						validation.Required,
						validation.By(validatePort),
					),
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.ShutdownTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Dataset,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DatasetConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DatasetConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.Input, validation.Required),
					validation.Field(&dc.Format,
						validation.Required,
						validation.In(FormatAuto, FormatJSON, FormatNDJSON),
					),
					validation.Field(&dc.CheckInterval, validation.By(validateOptionalDuration)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Address, validation.By(validateHostPort)),
				)
			}),
		),
		validation.Field(&c.RateLimit,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RateLimitConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.RPS, validation.Min(0.0)),
					validation.Field(&rc.Burst, validation.When(rc.RPS > 0, validation.Required, validation.Min(1))),
				)
			}),
		),
	)
}

// Durations returns the parsed server timeouts. It must only be called on a
// validated configuration.
func (s ServerConfig) Durations() (read, write, idle, shutdown time.Duration) {
	read, _ = time.ParseDuration(s.ReadTimeout)
	write, _ = time.ParseDuration(s.WriteTimeout)
	idle, _ = time.ParseDuration(s.IdleTimeout)
	shutdown, _ = time.ParseDuration(s.ShutdownTimeout)
	return read, write, idle, shutdown
}

// CheckEvery returns the dataset probe interval, zero when probing is disabled.
func (d DatasetConfig) CheckEvery() time.Duration {
	if d.CheckInterval == "" {
		return 0
	}
	interval, _ := time.ParseDuration(d.CheckInterval)
	return interval
}

func validateHost(value interface{}) error {
	host, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if err := is.Host.Validate(host); err != nil {
		return validation.NewError("validation_invalid_host", "invalid host")
	}

	return nil
}

func validatePort(value interface{}) error {
	portStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return validation.NewError("validation_invalid_port", "must be a number between 1 and 65535")
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateOptionalDuration(value interface{}) error {
	if s, ok := value.(string); ok && s == "" {
		return nil
	}
	return validateDuration(value)
}
