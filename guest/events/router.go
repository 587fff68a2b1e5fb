// Package events routes host events to guest handlers.
//
// Every event name has at most one subscription, either a callback or a
// Stream polled by a task. Subscriptions carry a Scope: Local ones ignore
// events from network peers, Network ones accept everything. After each
// dispatch the executor is drained so tasks woken by the event run before
// control returns to the host.
//
// Event payloads are MessagePack argument lists, whether they come from Emit,
// from another script or from the runner's --event flag. Typed
// subscriptions decode the whole list, so T is a slice or a struct tagged
// `msgpack:",as_array"` with one field per argument.
package events

import (
	"fmt"

	"github.com/cfxwasm/wasmhost/abi"
	"github.com/cfxwasm/wasmhost/guest/natives"
	"github.com/cfxwasm/wasmhost/guest/scheduler"
	"github.com/cfxwasm/wasmhost/payload"
)

// Scope limits which events reach a subscription.
type Scope int

const (
	// Local subscriptions receive events raised in this host and events the
	// host relays internally.
	Local Scope = iota
	// Network subscriptions also receive events from remote peers.
	Network
)

// Accepts reports whether an event from src is delivered under s.
func (s Scope) Accepts(src Source) bool {
	return s == Network || src.Origin != OriginNetwork
}

// Event is one delivered event.
type Event struct {
	Name    string
	Payload []byte
	Source  Source
}

// Handler is called for each accepted event.
type Handler func(Event)

type subscription struct {
	scope   Scope
	handler Handler
	stream  *Stream
}

// Router delivers events to subscriptions.
type Router struct {
	exec *scheduler.Executor
	subs map[string]*subscription
}

// NewRouter returns a router draining exec after every dispatch.
func NewRouter(exec *scheduler.Executor) *Router {
	return &Router{exec: exec, subs: make(map[string]*subscription)}
}

// SetHandler subscribes h to name, replacing any existing subscription.
func (r *Router) SetHandler(name string, scope Scope, h Handler) {
	r.subs[name] = &subscription{scope: scope, handler: h}
}

// Subscribe replaces any subscription for name with a stream.
func (r *Router) Subscribe(name string, scope Scope) *Stream {
	s := &Stream{}
	r.subs[name] = &subscription{scope: scope, stream: s}
	return s
}

// Unsubscribe removes the subscription for name.
func (r *Router) Unsubscribe(name string) {
	delete(r.subs, name)
}

// Dispatch delivers an event and then drains the executor. The router
// takes ownership of payload. It reports whether a subscription accepted
// the event.
func (r *Router) Dispatch(name string, data []byte, rawSource string) bool {
	defer r.exec.RunUntilStalled()

	sub, ok := r.subs[name]
	if !ok {
		return false
	}
	ev := Event{Name: name, Payload: data, Source: ParseSource(rawSource)}
	if !sub.scope.Accepts(ev.Source) {
		return false
	}
	if sub.stream != nil {
		sub.stream.q.Push(ev)
	} else {
		sub.handler(ev)
	}
	return true
}

// Emit encodes args as an argument list and raises it as a local event
// through the host.
func Emit(name string, args ...any) error {
	data, err := payload.Args(args...)
	if err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return EmitRaw(name, data)
}

// EmitRaw raises an already encoded event through the host.
func EmitRaw(name string, data []byte) error {
	err := natives.NewHash(abi.TriggerEventHash).
		String(name).
		Bytes(data).
		Uint(uint32(len(data))).
		Invoke()
	if err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}
