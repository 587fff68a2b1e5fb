package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/cfxwasm/wasmhost/wasmhost"
)

// envPrefix marks environment variables that override the config file.
// WASMHOST_LOG__LEVEL sets log.level.
const envPrefix = "WASMHOST_"

const defaultTickInterval = 50 * time.Millisecond

// Config is the runner configuration.
type Config struct {
	// Module is the path of the guest binary.
	Module string `mapstructure:"module"`
	// WASI enables WASI preview1 for the guest.
	WASI bool `mapstructure:"wasi"`
	// Resource and Instance name the script for reference names.
	Resource string `mapstructure:"resource"`
	Instance uint32 `mapstructure:"instance"`

	// TickInterval is the time between ticks.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// Ticks stops the runner after that many ticks. 0 runs until interrupted.
	Ticks int `mapstructure:"ticks"`

	Log  LogConfig       `mapstructure:"log"`
	Host wasmhost.Config `mapstructure:"host"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// Dev switches to zap's development logger.
	Dev bool `mapstructure:"dev"`
}

// Default sets default values for unset fields.
func (cfg *Config) Default() {
	if cfg.Resource == "" {
		cfg.Resource = "script"
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Host.Default()
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Module == "" {
		errs = append(errs, errors.New("module: path is required"))
	}
	if cfg.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick_interval: %s is negative", cfg.TickInterval))
	}
	if cfg.Ticks < 0 {
		errs = append(errs, fmt.Errorf("ticks: %d is negative", cfg.Ticks))
	}
	if err := cfg.Host.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("host: %w", err))
	}
	return errors.Join(errs...)
}

// loadConfig reads path, when set, and overlays WASMHOST_ environment
// variables. Unset fields are left zero.
func loadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	err = k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "mapstructure",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "mapstructure",
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
