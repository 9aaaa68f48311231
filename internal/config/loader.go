package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ROWPIPE"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"workers":       "pipeline.workers",
	"task-buffer":   "pipeline.task_buffer",
	"ordered":       "pipeline.ordered",
	"capture":       "pipeline.capture",
	"capture-limit": "pipeline.capture_limit",
	"rate-limit":    "pipeline.rate_limit",
	"rate-burst":    "pipeline.rate_burst",
	"await-timeout": "pipeline.await_timeout",
	"separator":     "pipeline.separator",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"no-color":      "logging.no_color",
}

// LoaderConfig holds optional overrides for Load.
type LoaderConfig struct {
	ConfigFile string
	EnvFile    string
	Flags      *pflag.FlagSet
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithFlags binds the known flags of fs. Only flags the user changed
// override other sources.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(lc *LoaderConfig) { lc.Flags = fs }
}

// Load resolves, validates and returns the configuration.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	envFile := lc.EnvFile
	if envFile == "" && fileExists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if lc.ConfigFile != "" {
		v.SetConfigFile(lc.ConfigFile)
	} else {
		v.SetConfigName("rowpipe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if lc.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if lc.Flags != nil {
		for name, key := range flagKeys {
			if f := lc.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that environment variables are picked
// up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.task_buffer", -1)
	v.SetDefault("pipeline.ordered", true)
	v.SetDefault("pipeline.capture", false)
	v.SetDefault("pipeline.capture_limit", 0)
	v.SetDefault("pipeline.rate_limit", 0.0)
	v.SetDefault("pipeline.rate_burst", 0)
	v.SetDefault("pipeline.await_timeout", "0s")
	v.SetDefault("pipeline.separator", ",")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.no_color", false)
	v.SetDefault("logging.timestamp", true)
	v.SetDefault("logging.caller", false)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
