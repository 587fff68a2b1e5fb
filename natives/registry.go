// Package natives provides a native table for embedding hosts: natives are
// registered by name, dispatched by hash and wrapped in middleware.
package natives

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/wasmhost"
)

// Failure codes carried in the low bits of a failing invoker status.
const (
	CodeUnknownNative uint32 = 1
	CodeNativeError   uint32 = 2
)

var (
	ErrEmptyName      = errors.New("native name cannot be empty")
	ErrDuplicate      = errors.New("duplicate native")
	ErrUnknownNative  = errors.New("unknown native")
	ErrNativePanicked = errors.New("native panicked")
	ErrBadArguments   = errors.New("bad native arguments")
)

// Handler implements a native. A returned error fails the call, which
// discards the calling script.
type Handler func(nctx *wasmhost.NativeContext) error

// Registry is an immutable native table. Once built by NewRegistry natives
// cannot be added or removed.
type Registry struct {
	handlers map[uint64]entry
	names    []string
	logger   *zap.Logger
}

type entry struct {
	name    string
	handler Handler
}

type registryBuilder struct {
	handlers   map[uint64]entry
	middleware []Middleware
	logger     *zap.Logger
	errors     []error
}

// Option configures a Registry.
type Option func(*registryBuilder)

// NewRegistry builds a Registry. It fails when a name or hash is registered
// twice.
//
//	reg, err := natives.NewRegistry(
//	    natives.WithMiddleware(natives.PanicRecoveryMiddleware()),
//	    natives.WithNative("GET_GAME_TIMER", gameTimer),
//	)
func NewRegistry(opts ...Option) (*Registry, error) {
	b := &registryBuilder{
		handlers: make(map[uint64]entry),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.handlers))
	wrapped := make(map[uint64]entry, len(b.handlers))
	for hash, e := range b.handlers {
		names = append(names, e.name)
		h := e.handler
		// First middleware wraps outermost.
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](e.name, h)
		}
		wrapped[hash] = entry{name: e.name, handler: h}
	}
	sort.Strings(names)

	return &Registry{handlers: wrapped, names: names, logger: b.logger}, nil
}

// WithNative registers h under name, hashed with abi.NativeHash.
func WithNative(name string, h Handler) Option {
	return WithNativeHash(name, abi.NativeHash(name), h)
}

// WithNativeHash registers h under an explicit hash. name is used for
// diagnostics only.
func WithNativeHash(name string, hash uint64, h Handler) Option {
	return func(b *registryBuilder) {
		if err := b.add(name, hash, h); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware. Middleware runs in the order added.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// WithLogger sets the logger native failures are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(b *registryBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOptions applies a group of options, such as Builtins.
func WithOptions(opts ...Option) Option {
	return func(b *registryBuilder) {
		for _, opt := range opts {
			opt(b)
		}
	}
}

func (b *registryBuilder) add(name string, hash uint64, h Handler) error {
	if name == "" {
		return ErrEmptyName
	}
	if h == nil {
		return fmt.Errorf("native %q has no handler", name)
	}
	if prev, ok := b.handlers[hash]; ok {
		return fmt.Errorf("%w: %q collides with %q (%#016x)", ErrDuplicate, name, prev.name, hash)
	}
	b.handlers[hash] = entry{name: strings.ToUpper(name), handler: h}
	return nil
}

// Invoke dispatches nctx to its native. It has the wasmhost.NativeInvoker
// signature and is installed with Runtime.SetNativeInvoker.
func (r *Registry) Invoke(nctx *wasmhost.NativeContext) uint32 {
	e, ok := r.handlers[nctx.Hash]
	if !ok {
		r.logger.Error("native invocation failed",
			zap.String("hash", fmt.Sprintf("%#016x", nctx.Hash)),
			zap.Error(ErrUnknownNative))
		return abi.Failed(CodeUnknownNative)
	}
	if err := e.handler(nctx); err != nil {
		r.logger.Error("native invocation failed", zap.String("native", e.name), zap.Error(err))
		return abi.Failed(CodeNativeError)
	}
	return 0
}

// Has reports whether a native is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[abi.NativeHash(name)]
	return ok
}

// Name returns the name registered for hash.
func (r *Registry) Name(hash uint64) (string, bool) {
	e, ok := r.handlers[hash]
	return e.name, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
