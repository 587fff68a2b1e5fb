package natives

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cfxwasm/wasmhost/wasmhost"
)

// Middleware wraps the handler of the native called name.
type Middleware func(name string, next Handler) Handler

// PanicRecoveryMiddleware turns a panicking native into a failed call.
func PanicRecoveryMiddleware() Middleware {
	return func(name string, next Handler) Handler {
		return func(nctx *wasmhost.NativeContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %s: %v", ErrNativePanicked, name, r)
				}
			}()
			return next(nctx)
		}
	}
}

// LoggingMiddleware logs every invocation at debug level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(name string, next Handler) Handler {
		return func(nctx *wasmhost.NativeContext) error {
			start := time.Now()
			err := next(nctx)
			logger.Debug("native invoked",
				zap.String("native", name),
				zap.Int("args", nctx.ArgCount()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return err
		}
	}
}

// MinArgs fails natives called with fewer than n arguments.
func MinArgs(n int, h Handler) Handler {
	return func(nctx *wasmhost.NativeContext) error {
		if nctx.ArgCount() < n {
			return fmt.Errorf("%w: want at least %d, got %d", ErrBadArguments, n, nctx.ArgCount())
		}
		return h(nctx)
	}
}
