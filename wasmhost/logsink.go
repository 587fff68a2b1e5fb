package wasmhost

import (
	"strings"

	"go.uber.org/zap"
)

// NewZapLogSink returns a LogSink writing script output to logger at info
// level, one entry per line.
func NewZapLogSink(logger *zap.Logger) LogSink {
	return func(msg string) {
		msg = strings.TrimRight(msg, "\r\n")
		if msg == "" {
			return
		}
		for _, line := range strings.Split(msg, "\n") {
			logger.Info(strings.TrimRight(line, "\r"))
		}
	}
}
