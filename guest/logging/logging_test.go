//go:build !wasm

package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cfxwasm/wasmhost/guest/internal/hosttest"
)

func TestPrint(t *testing.T) {
	h := hosttest.Install(t, &hosttest.Host{})

	Print("players: ", 3)
	Printf("%s joined", "alice")
	Println("a", 1)

	assert.Equal(t, []string{"players: 3", "alice joined", "a 1"}, h.Logs)
}

func TestHostBridgeLogger(t *testing.T) {
	tests := []struct {
		name string
		log  func(*zap.Logger)
		want []string
	}{
		{
			name: "message only",
			log:  func(l *zap.Logger) { l.Info("ready") },
			want: []string{"INFO ready"},
		},
		{
			name: "fields sorted by key",
			log: func(l *zap.Logger) {
				l.Warn("slow tick", zap.Int("tasks", 4), zap.String("event", "chat"))
			},
			want: []string{"WARN slow tick event=chat tasks=4"},
		},
		{
			name: "named logger with context",
			log: func(l *zap.Logger) {
				l.Named("events").With(zap.Bool("net", true)).Error("dropped", zap.Error(errors.New("scope")))
			},
			want: []string{"ERROR events: dropped error=scope net=true"},
		},
		{
			name: "below level",
			log:  func(l *zap.Logger) { l.Debug("hidden") },
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hosttest.Install(t, &hosttest.Host{})
			tt.log(NewHostBridgeLogger(zapcore.InfoLevel))
			assert.Equal(t, tt.want, h.Logs)
		})
	}
}

func TestHostBridgeLoggerDefaultLevel(t *testing.T) {
	h := hosttest.Install(t, &hosttest.Host{})
	NewHostBridgeLogger(nil).Debug("visible")
	assert.Equal(t, []string{"DEBUG visible"}, h.Logs)
}
