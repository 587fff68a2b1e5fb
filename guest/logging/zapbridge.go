package logging

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cfxwasm/wasmhost/guest/internal/imports"
)

// NewHostBridgeLogger creates a zap.Logger whose entries are written to the
// host script log, one message per entry. Entries below level are dropped
// in the guest.
func NewHostBridgeLogger(level zapcore.LevelEnabler) *zap.Logger {
	if level == nil {
		level = zapcore.DebugLevel
	}
	return zap.New(&hostBridgeCore{LevelEnabler: level})
}

// hostBridgeCore renders entries as "LEVEL logger: message key=value ..."
// and forwards them through script_log.
type hostBridgeCore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
}

func (c *hostBridgeCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &hostBridgeCore{LevelEnabler: c.LevelEnabler}
	clone.fields = append(append(clone.fields, c.fields...), fields...)
	return clone
}

func (c *hostBridgeCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *hostBridgeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var b strings.Builder
	b.WriteString(entry.Level.CapitalString())
	b.WriteByte(' ')
	if entry.LoggerName != "" {
		b.WriteString(entry.LoggerName)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}

	imports.Log(b.String())
	return nil
}

func (c *hostBridgeCore) Sync() error { return nil }
