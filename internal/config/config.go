// Package config loads dagsort settings from an optional config file,
// DAGSORT_ environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/sim"
	"github.com/dimitar-ivanov-93/dag-sorting/internal/state"
)

// Keys understood by the loader.
const (
	KeyCores     = "cores"
	KeyPool      = "pool"
	KeyStateDir  = "state_dir"
	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogFile   = "log.file"
	KeyNoColor   = "no_color"
)

const (
	envPrefix  = "DAGSORT"
	configName = ".dagsort"
)

// Config is the resolved configuration.
type Config struct {
	Cores    int       `mapstructure:"cores"`
	Pool     string    `mapstructure:"pool"`
	StateDir string    `mapstructure:"state_dir"`
	Log      LogConfig `mapstructure:"log"`
	NoColor  bool      `mapstructure:"no_color"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// New returns a viper instance with defaults and environment binding set up.
// Flags are bound to it by the caller before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyCores, 0)
	v.SetDefault(KeyPool, string(sim.PoolSingle))
	v.SetDefault(KeyStateDir, state.DefaultDir)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyNoColor, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Options select the config file. File wins over SearchDir; with neither
// set the working directory is searched for .dagsort.yaml.
type Options struct {
	File      string
	SearchDir string
}

// Load reads the config file, if any, and returns the validated config.
// A missing config file is not an error unless it was named explicitly.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		dir := opts.SearchDir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that do not depend on the command being run.
func (c *Config) Validate() error {
	var errs []error
	if c.Cores < 0 {
		errs = append(errs, fmt.Errorf("cores %d: %w", c.Cores, sim.ErrInvalidCores))
	}
	if _, err := sim.ParsePoolPolicy(c.Pool); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (use text or json)", c.Log.Format))
	}
	return errors.Join(errs...)
}

// PoolPolicy returns the parsed pool policy.
func (c *Config) PoolPolicy() sim.PoolPolicy {
	p, err := sim.ParsePoolPolicy(c.Pool)
	if err != nil {
		return sim.PoolSingle
	}
	return p
}
