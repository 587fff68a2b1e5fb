// Package refs exports guest closures to the host as numbered function
// references and calls references the host hands back.
//
// A reference starts with one owner. The host adds owners with Duplicate
// and releases them with Remove; the entry is deleted when the last owner
// releases it. Ids are never reused within a table.
package refs

import "github.com/cfxwasm/wasmhost/payload"

// Func receives encoded arguments and returns an encoded result. A nil
// result means no value.
type Func func(args []byte) []byte

// Canonicalizer names a reference id in the host's "resource:instance:id"
// form.
type Canonicalizer func(id uint32) (string, error)

// Ref is a registered reference.
type Ref struct {
	ID uint32
	// Name is the canonical name, empty when no canonicalizer is set or it
	// failed.
	Name string
}

type entry struct {
	fn   Func
	refs int32
}

// Table holds the guest's exported references.
type Table struct {
	entries map[uint32]*entry
	next    uint32
	canon   Canonicalizer
	retval  []byte
}

// NewTable returns an empty table. canon may be nil.
func NewTable(canon Canonicalizer) *Table {
	return &Table{entries: make(map[uint32]*entry), next: 1, canon: canon}
}

// Register exports fn and returns its reference.
func (t *Table) Register(fn Func) Ref {
	id := t.next
	t.next++
	t.entries[id] = &entry{fn: fn, refs: 1}

	ref := Ref{ID: id}
	if t.canon != nil {
		if name, err := t.canon(id); err == nil {
			ref.Name = name
		}
	}
	return ref
}

// RegisterTyped exports fn, decoding its argument from and encoding its
// result to the payload format. Calls whose arguments do not decode into A
// return no value.
func RegisterTyped[A, R any](t *Table, fn func(A) R) Ref {
	return t.Register(func(args []byte) []byte {
		var a A
		if err := payload.Unmarshal(args, &a); err != nil {
			return nil
		}
		out, err := payload.Marshal(fn(a))
		if err != nil {
			return nil
		}
		return out
	})
}

// Call runs reference id. The result is held in a buffer owned by the table
// and stays valid until the next Call. Unknown ids return nil.
func (t *Table) Call(id uint32, args []byte) []byte {
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	out := e.fn(args)
	if out == nil {
		return nil
	}
	t.retval = append(t.retval[:0], out...)
	return t.retval
}

// Duplicate adds an owner to id and returns id unchanged. An id that is not
// registered gains no entry.
func (t *Table) Duplicate(id uint32) uint32 {
	if e, ok := t.entries[id]; ok {
		e.refs++
	}
	return id
}

// Remove releases one owner of id, deleting the entry with the last one.
func (t *Table) Remove(id uint32) {
	e, ok := t.entries[id]
	if !ok {
		return
	}
	if e.refs <= 1 {
		delete(t.entries, id)
		return
	}
	e.refs--
}

// Count returns the owner count of id, 0 when absent.
func (t *Table) Count(id uint32) int32 {
	if e, ok := t.entries[id]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live references.
func (t *Table) Len() int {
	return len(t.entries)
}
