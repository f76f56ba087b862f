// Package table implements the open-addressed, linear-probing,
// tombstone-aware hash table used both for string interning and for
// the VM's global variables.
//
// Table is generic over a Key interface rather than over the object
// package's *object.String concretely, so this package stays a leaf:
// object depends on table, not the other way around.
package table

import "github.com/kristofer/loxvm/pkg/value"

// Key is anything hashable and content-comparable that can live in a
// Table. *object.String implements it.
type Key interface {
	Hash() uint32
	Bytes() []byte
}

const maxLoad = 0.75
const minCapacity = 8

type entry struct {
	key   Key
	value value.Value
}

func (e *entry) empty() bool     { return e.key == nil && e.value.IsNil() }
func (e *entry) tombstone() bool { return e.key == nil && !e.value.IsNil() }

// Table is an open-addressed hash map from Key to value.Value.
type Table struct {
	count   int // occupied slots: live entries plus tombstones
	entries []entry
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Count reports the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	live := 0
	for i := range t.entries {
		if t.entries[i].key != nil {
			live++
		}
	}
	return live
}

// Get looks up key, returning its value and whether it was present.
func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return value.Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value. It returns true if the slot
// landed on was previously empty or a tombstone (i.e. key is new).
func (t *Table) Set(key Key, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = v
	return isNew
}

// Delete removes key, leaving a tombstone so later probes still skip
// past this slot. The load-factor counter (count) is deliberately not
// decremented, matching the reference table's tombstone accounting;
// Count() reports one fewer live entry.
func (t *Table) Delete(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.Bool(true)
	return true
}

// AddAll copies every live entry of t into dst.
func (t *Table) AddAll(dst *Table) {
	for i := range t.entries {
		if t.entries[i].key != nil {
			dst.Set(t.entries[i].key, t.entries[i].value)
		}
	}
}

// FindString performs the specialized probe used by string interning:
// it compares by length, hash, then byte content so the caller can
// decide whether to allocate a new string object. It returns the
// already-interned Key if one with identical content exists.
func (t *Table) FindString(chars []byte, hash uint32) (Key, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	capacity := len(t.entries)
	index := int(hash) % capacity
	for {
		e := &t.entries[index]
		if e.key == nil {
			if e.empty() {
				return nil, false
			}
			// Tombstone: keep probing.
		} else if e.key.Hash() == hash && len(e.key.Bytes()) == len(chars) && bytesEqual(e.key.Bytes(), chars) {
			return e.key, true
		}
		index = (index + 1) % capacity
	}
}

// findEntry locates key's slot, or the first tombstone seen on the
// probe path if key is absent, so inserts reuse tombstones while
// lookups still skip past them.
func findEntry(entries []entry, key Key) *entry {
	capacity := len(entries)
	index := int(key.Hash()) % capacity
	var tombstone *entry
	for {
		e := &entries[index]
		if e.key == nil {
			if e.empty() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key || (e.key.Hash() == key.Hash() && bytesEqual(e.key.Bytes(), key.Bytes())) {
			return e
		}
		index = (index + 1) % capacity
	}
}

func growCapacity(capacity int) int {
	if capacity < minCapacity {
		return minCapacity
	}
	return capacity * 2
}

func (t *Table) grow(capacity int) {
	newEntries := make([]entry, capacity)
	newCount := 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.key == nil {
			continue // drop tombstones
		}
		dst := findEntry(newEntries, e.key)
		dst.key = e.key
		dst.value = e.value
		newCount++
	}
	t.entries = newEntries
	t.count = newCount
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
