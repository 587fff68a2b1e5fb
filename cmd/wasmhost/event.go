package main

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cfxwasm/wasmhost/payload"
)

// scriptEvent is an event delivered to the script after it loads.
type scriptEvent struct {
	Name    string
	Payload []byte
	Source  string
}

// parseEvent parses name[=value]. The value is YAML, so JSON works too, and
// is encoded as a one-element argument list, the payload shape scripts
// produce with events.Emit. Without a value the argument list is empty.
func parseEvent(spec, source string) (scriptEvent, error) {
	name, value, hasValue := strings.Cut(spec, "=")
	if name == "" {
		return scriptEvent{}, fmt.Errorf("event %q: missing name", spec)
	}

	var args []any
	if hasValue {
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return scriptEvent{}, fmt.Errorf("event %s: %w", name, err)
		}
		args = append(args, v)
	}
	data, err := payload.Args(args...)
	if err != nil {
		return scriptEvent{}, fmt.Errorf("event %s: %w", name, err)
	}
	return scriptEvent{Name: name, Payload: data, Source: source}, nil
}

func parseEvents(specs []string, source string) ([]scriptEvent, error) {
	events := make([]scriptEvent, 0, len(specs))
	for _, spec := range specs {
		ev, err := parseEvent(spec, source)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
