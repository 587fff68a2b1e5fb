package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cfxwasm/wasmhost/natives"
	"github.com/cfxwasm/wasmhost/wasmhost"
)

// ErrScriptDiscarded is returned when a fault unloads the script.
var ErrScriptDiscarded = errors.New("script discarded")

// runner hosts one script with the built-in natives.
type runner struct {
	cfg      Config
	logger   *zap.Logger
	rt       *wasmhost.Runtime
	registry *natives.Registry
	start    time.Time
}

func newRunner(ctx context.Context, cfg Config, logger *zap.Logger) (*runner, error) {
	rt, err := wasmhost.NewRuntime(ctx, wasmhost.WithLogger(logger), wasmhost.WithConfig(cfg.Host))
	if err != nil {
		return nil, err
	}

	r := &runner{cfg: cfg, logger: logger, rt: rt, start: time.Now()}
	r.registry, err = natives.NewRegistry(
		natives.WithLogger(logger.Named("natives")),
		natives.WithMiddleware(
			natives.PanicRecoveryMiddleware(),
			natives.LoggingMiddleware(logger.Named("natives")),
		),
		natives.Builtins(rt, natives.BuiltinConfig{
			Resource: cfg.Resource,
			Instance: cfg.Instance,
			Clock:    r.gameTime,
		}),
	)
	if err != nil {
		return nil, multierr.Append(err, rt.Close(ctx))
	}

	rt.SetNativeInvoker(r.registry.Invoke)
	rt.SetCanonicalizer(natives.Canonicalizer(cfg.Resource, cfg.Instance))
	return r, nil
}

func (r *runner) gameTime() time.Duration {
	return time.Since(r.start)
}

// load reads and loads the module.
func (r *runner) load(ctx context.Context) error {
	binary, err := os.ReadFile(r.cfg.Module)
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}
	if err := r.rt.LoadModule(ctx, binary, r.cfg.WASI); err != nil {
		return fmt.Errorf("loading %s: %w", r.cfg.Module, err)
	}
	r.logger.Info("script loaded",
		zap.String("module", r.cfg.Module),
		zap.String("resource", r.cfg.Resource),
		zap.Uint32("memory_pages", r.rt.MemorySize()),
		zap.Strings("natives", r.registry.Names()))
	return nil
}

func (r *runner) deliver(ctx context.Context, events []scriptEvent) error {
	for _, ev := range events {
		if err := r.rt.TriggerEvent(ctx, ev.Name, ev.Payload, ev.Source); err != nil {
			return fmt.Errorf("event %s: %w", ev.Name, err)
		}
		r.logger.Debug("event delivered", zap.String("event", ev.Name), zap.Int("bytes", len(ev.Payload)))
	}
	return nil
}

// loop ticks the script until ctx is done, the tick budget is spent or the
// script is discarded.
func (r *runner) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for n := 0; r.cfg.Ticks == 0 || n < r.cfg.Ticks; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := r.rt.Tick(ctx); err != nil {
			return fmt.Errorf("tick %d: %w", n, err)
		}
		if !r.rt.Loaded() {
			return ErrScriptDiscarded
		}
	}
	return nil
}

func (r *runner) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

func run(ctx context.Context, cfg Config, events []scriptEvent, logger *zap.Logger) (err error) {
	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.Close(context.WithoutCancel(ctx)))
	}()

	if err := r.load(ctx); err != nil {
		return err
	}
	if err := r.deliver(ctx, events); err != nil {
		return err
	}
	return r.loop(ctx)
}
