package events

import (
	"github.com/cfxwasm/wasmhost/guest/scheduler"
	"github.com/cfxwasm/wasmhost/payload"
)

// Stream queues the events of one subscription for a task to consume.
type Stream struct {
	q scheduler.Queue[Event]
}

// Next suspends the task until an event arrives.
func (s *Stream) Next(ctx *scheduler.Context) Event {
	return s.q.Pop(ctx)
}

// TryNext returns a queued event without waiting.
func (s *Stream) TryNext() (Event, bool) {
	return s.q.TryPop()
}

// Len returns the number of queued events.
func (s *Stream) Len() int {
	return s.q.Len()
}

// TypedStream decodes the payloads of a Stream into T.
type TypedStream[T any] struct {
	raw *Stream
}

// SubscribeTyped subscribes to name and decodes each payload into T.
func SubscribeTyped[T any](r *Router, name string, scope Scope) *TypedStream[T] {
	return &TypedStream[T]{raw: r.Subscribe(name, scope)}
}

// Next suspends the task until an event whose payload decodes into T
// arrives. Events that fail to decode are skipped.
func (s *TypedStream[T]) Next(ctx *scheduler.Context) (T, Source) {
	for {
		ev := s.raw.Next(ctx)
		var v T
		if err := payload.Unmarshal(ev.Payload, &v); err == nil {
			return v, ev.Source
		}
	}
}

// SetTypedHandler subscribes fn to name. Events that fail to decode into T
// are dropped.
func SetTypedHandler[T any](r *Router, name string, scope Scope, fn func(T, Source)) {
	r.SetHandler(name, scope, func(ev Event) {
		var v T
		if err := payload.Unmarshal(ev.Payload, &v); err != nil {
			return
		}
		fn(v, ev.Source)
	})
}
