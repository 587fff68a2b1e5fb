package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		configPath string
		events     []string
		source     string
		flags      Config
	)

	cmd := &cobra.Command{
		Use:   "wasmhost [flags] [module.wasm]",
		Short: "Run a cfx guest script",
		Long: `Run a cfx guest script.

Configuration is read from --config, then WASMHOST_ environment variables
(WASMHOST_HOST__RUNTIME__MODE=compiled sets host.runtime.mode), then flags.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Module = args[0]
			}
			overrideFromFlags(cmd, &cfg, flags)
			cfg.Default()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			scriptEvents, err := parseEvents(events, source)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, scriptEvents, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	f.StringArrayVarP(&events, "event", "e", nil, "deliver name[=value] after loading; value is YAML (repeatable)")
	f.StringVar(&source, "source", "", "source of the --event events, e.g. net:1")
	f.BoolVar(&flags.WASI, "wasi", false, "enable WASI preview1")
	f.StringVar(&flags.Resource, "resource", "", "resource name (default \"script\")")
	f.Uint32Var(&flags.Instance, "instance", 0, "resource instance")
	f.DurationVar(&flags.TickInterval, "tick-interval", defaultTickInterval, "time between ticks")
	f.IntVar(&flags.Ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	f.StringVar(&flags.Log.Level, "log-level", "info", "log level")
	f.BoolVar(&flags.Log.Dev, "log-dev", false, "use the development logger")
	f.StringVar(&flags.Host.Runtime.Mode, "mode", "", "engine mode: interpreter or compiled")
	f.StringVar(&flags.Host.Runtime.NestedEvents, "nested-events", "", "inline or deferred delivery of events raised by the script (compiled mode requires deferred)")

	cmd.AddCommand(newBuildCommand())
	return cmd
}

// overrideFromFlags copies the flags the user set onto cfg.
func overrideFromFlags(cmd *cobra.Command, cfg *Config, flags Config) {
	set := cmd.Flags().Changed
	if set("wasi") {
		cfg.WASI = flags.WASI
	}
	if set("resource") {
		cfg.Resource = flags.Resource
	}
	if set("instance") {
		cfg.Instance = flags.Instance
	}
	if set("tick-interval") {
		cfg.TickInterval = flags.TickInterval
	}
	if set("ticks") {
		cfg.Ticks = flags.Ticks
	}
	if set("log-level") {
		cfg.Log.Level = flags.Log.Level
	}
	if set("log-dev") {
		cfg.Log.Dev = flags.Log.Dev
	}
	if set("mode") {
		cfg.Host.Runtime.Mode = flags.Host.Runtime.Mode
	}
	if set("nested-events") {
		cfg.Host.Runtime.NestedEvents = flags.Host.Runtime.NestedEvents
	}
}

