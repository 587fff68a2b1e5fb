package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfxwasm/wasmhost/payload"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		spec     string
		wantName string
		wantArgs []any
	}{
		{spec: "ping", wantName: "ping"},
		{spec: "chat:message=hello", wantName: "chat:message", wantArgs: []any{"hello"}},
		{spec: "score=42", wantName: "score", wantArgs: []any{int8(42)}},
		{spec: `join={"name": "ann"}`, wantName: "join", wantArgs: []any{map[string]any{"name": "ann"}}},
		{spec: "list=[1, 2]", wantName: "list", wantArgs: []any{[]any{int8(1), int8(2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			ev, err := parseEvent(tt.spec, "net:1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, ev.Name)
			assert.Equal(t, "net:1", ev.Source)

			var args []any
			require.NoError(t, payload.Unmarshal(ev.Payload, &args))
			if tt.wantArgs == nil {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestParseEventErrors(t *testing.T) {
	_, err := parseEvent("=1", "")
	assert.ErrorContains(t, err, "missing name")

	_, err = parseEvent("bad=[1", "")
	assert.Error(t, err)

	_, err = parseEvents([]string{"ok", "=x"}, "")
	assert.Error(t, err)
}

func TestParseEventMatchesScriptEmit(t *testing.T) {
	ev, err := parseEvent("chat:echo=x", "")
	require.NoError(t, err)

	emitted, err := payload.Args("x")
	require.NoError(t, err)
	assert.Equal(t, emitted, ev.Payload)

	var texts []string
	require.NoError(t, payload.Unmarshal(ev.Payload, &texts))
	assert.Equal(t, []string{"x"}, texts)
}
