// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtab

import (
	"fmt"
	"strings"
	"unsafe"
)

const (
	debug = false

	defaultOpenAddressingCapacity = 10000
)

// Each slot in an OpenAddressing table has a control byte recording its
// state. A slot is only ever read as a Slot when its control byte is
// ctrlFull.
type ctrl uint8

const (
	ctrlEmpty ctrl = iota
	ctrlFull
	ctrlDeleted
)

// Slot holds a key and value.
type Slot[K comparable, V any] struct {
	key   K
	value V
}

// OpenAddressing is a hash table that stores every entry directly in a slot
// array. When the slot at a key's hash index is taken, the table walks the
// key's probe sequence (see probeSeq) until it finds the key or a free slot.
// Put, Get and Delete walk the identical sequence for a given key.
//
// The load factor (live entries / capacity) never exceeds 1/2 after a Put
// returns: Put grows the table to the smallest prime >= 2*capacity before
// placing an entry that would cross it. Deleted slots are marked with a
// tombstone which Get and Delete probe past and Put reuses. When live entries
// plus tombstones would cross 1/2 the table is rehashed without growing to
// drop the tombstones.
//
// An OpenAddressing table is NOT goroutine-safe.
type OpenAddressing[K comparable, V any] struct {
	hasher     *Hasher[K]
	probe      ProbeStrategy
	allocator  Allocator[K, V]
	tombstones bool
	onRehash   func(oldCapacity, newCapacity int)

	// ctrls and slots are capacity in length.
	ctrls []ctrl
	slots []Slot[K, V]
	// The total number of slots. Owned by this table; every table sizes
	// itself independently.
	capacity uintptr
	// The number of ctrlFull slots (i.e. the number of entries).
	used int
	// The number of ctrlDeleted slots.
	deleted int
	// The number of rehashes performed so far.
	rehashes int
}

// NewOpenAddressing constructs an open addressing table with the specified
// initial capacity, hash strategy and probe strategy. A capacity of 0
// selects a default of 10000 slots. The capacity is used as given for the
// initial slot array; only rehashing rounds capacities to primes.
func NewOpenAddressing[K comparable, V any](
	capacity int, hash HashStrategy, probe ProbeStrategy, options ...option[K, V],
) (*OpenAddressing[K, V], error) {
	if capacity < 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	if capacity == 0 {
		capacity = defaultOpenAddressingCapacity
	}
	if !probe.valid() {
		return nil, fmt.Errorf("probe strategy %d: %w", uint8(probe), ErrUnknownStrategy)
	}
	c := makeConfig(options)
	h, err := NewHasher[K](hash, c.seed)
	if err != nil {
		return nil, err
	}
	t := &OpenAddressing[K, V]{
		hasher:     h,
		probe:      probe,
		allocator:  c.allocator,
		tombstones: c.tombstones,
		onRehash:   c.onRehash,
	}
	t.alloc(uintptr(capacity))
	t.checkInvariants()
	return t, nil
}

// Close closes the table, releasing any memory back to its configured
// allocator. It is unnecessary to close a table using the default allocator.
// It is invalid to use a table after it has been closed, though Close itself
// is idempotent.
func (t *OpenAddressing[K, V]) Close() {
	if t.capacity > 0 {
		t.free()
		t.capacity = 0
		t.used = 0
		t.deleted = 0
	}
	t.ctrls = nil
	t.slots = nil
}

// Put inserts an entry into the table, overwriting an existing value if an
// entry with the same key already exists. Put returns an error wrapping
// ErrProbeExhausted if the key's probe sequence visits capacity slots
// without finding the key or a free slot; the table is unchanged in that
// case.
func (t *OpenAddressing[K, V]) Put(key K, value V) error {
	// Before performing the insertion we may decide the table is getting
	// overcrowded. The check counts the entry about to be placed so that the
	// load factor is at most 1/2 once Put returns, whatever the parity of
	// the capacity.
	if 2*(t.used+1) > int(t.capacity) {
		if err := t.rehash(nextPrime(2 * t.capacity)); err != nil {
			return err
		}
	} else if 2*(t.used+t.deleted+1) > int(t.capacity) {
		if err := t.rehash(nextPrime(t.capacity)); err != nil {
			return err
		}
	}
	if err := t.put(key, value); err != nil {
		return err
	}
	t.checkInvariants()
	return nil
}

// put is the placement routine shared by Put and rehash. It walks the probe
// sequence until it finds the key (update in place) or an empty slot. The
// first tombstone passed on the way is reused for a new entry.
func (t *OpenAddressing[K, V]) put(key K, value V) error {
	seq := t.probeSeq(&key)
	if debug {
		fmt.Printf("put(%v): %s\n", key, seq)
	}

	var tombstone uintptr
	var haveTombstone bool
	for ; !seq.done(); seq = seq.next() {
		i := seq.offset
		switch t.ctrls[i] {
		case ctrlEmpty:
			if haveTombstone {
				i = tombstone
			}
			t.place(i, key, value)
			return nil

		case ctrlDeleted:
			if !haveTombstone {
				tombstone, haveTombstone = i, true
			}

		case ctrlFull:
			if slot := &t.slots[i]; slot.key == key {
				if debug {
					fmt.Printf("put(updating): index=%d key=%v\n", i, key)
				}
				slot.value = value
				return nil
			}
		}
		if debug {
			fmt.Printf("put(skipping): index=%d ctrl=%d\n", i, t.ctrls[i])
		}
	}

	if haveTombstone {
		t.place(tombstone, key, value)
		return nil
	}
	return fmt.Errorf("put(%v): %w after %d attempts (probe=%s)",
		key, ErrProbeExhausted, seq.index, t.probe)
}

func (t *OpenAddressing[K, V]) place(i uintptr, key K, value V) {
	if t.ctrls[i] == ctrlDeleted {
		t.deleted--
	}
	t.ctrls[i] = ctrlFull
	t.slots[i] = Slot[K, V]{key: key, value: value}
	t.used++
	if debug {
		fmt.Printf("put(inserting): index=%d used=%d deleted=%d\n", i, t.used, t.deleted)
	}
}

// Get retrieves the value from the table for the specified key, return
// ok=false if the key is not present.
func (t *OpenAddressing[K, V]) Get(key K) (value V, ok bool) {
	if i, ok := t.find(&key); ok {
		return t.slots[i].value, true
	}
	return value, false
}

// Delete deletes the entry corresponding to the specified key from the
// table, reporting whether an entry was removed.
func (t *OpenAddressing[K, V]) Delete(key K) bool {
	i, ok := t.find(&key)
	if !ok {
		return false
	}
	t.slots[i] = Slot[K, V]{}
	t.used--
	if t.tombstones {
		t.ctrls[i] = ctrlDeleted
		t.deleted++
	} else {
		t.ctrls[i] = ctrlEmpty
	}
	if debug {
		fmt.Printf("delete(%v): index=%d used=%d deleted=%d\n", key, i, t.used, t.deleted)
	}
	t.checkInvariants()
	return true
}

// find walks the probe sequence for key, stopping at the key or at the
// first empty slot. Tombstones behave like full slots that never match.
func (t *OpenAddressing[K, V]) find(key *K) (uintptr, bool) {
	if t.capacity == 0 {
		return 0, false
	}
	seq := t.probeSeq(key)
	if debug {
		fmt.Printf("find(%v): %s\n", *key, seq)
	}
	for ; !seq.done(); seq = seq.next() {
		switch t.ctrls[seq.offset] {
		case ctrlEmpty:
			return 0, false
		case ctrlFull:
			if t.slots[seq.offset].key == *key {
				return seq.offset, true
			}
		}
	}
	return 0, false
}

func (t *OpenAddressing[K, V]) probeSeq(key *K) probeSeq {
	base := t.hasher.index(key, t.capacity)
	return makeProbeSeq(t.probe, base, t.hasher.keys.magnitude(key), t.capacity)
}

// All calls yield sequentially for each key and value present in the table.
// If yield returns false, iteration stops. The table can be mutated during
// iteration, though there is no guarantee that the mutations will be visible
// to the iteration.
func (t *OpenAddressing[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the controls and slots so that iteration remains valid if the
	// table is rehashed during iteration.
	ctrls, slots := t.ctrls, t.slots
	for i := range ctrls {
		if ctrls[i] == ctrlFull {
			if !yield(slots[i].key, slots[i].value) {
				return
			}
		}
	}
}

// Clear deletes all entries from the table, retaining its capacity.
func (t *OpenAddressing[K, V]) Clear() {
	for i := range t.ctrls {
		t.ctrls[i] = ctrlEmpty
	}
	clear(t.slots)
	t.used = 0
	t.deleted = 0
	t.checkInvariants()
}

// Len returns the number of entries in the table.
func (t *OpenAddressing[K, V]) Len() int {
	return t.used
}

// Capacity returns the number of slots in the table.
func (t *OpenAddressing[K, V]) Capacity() int {
	return int(t.capacity)
}

// LoadFactor returns the fraction of slots holding a live entry.
func (t *OpenAddressing[K, V]) LoadFactor() float64 {
	if t.capacity == 0 {
		return 0
	}
	return float64(t.used) / float64(t.capacity)
}

// Rehashes returns the number of times the table has been rehashed.
func (t *OpenAddressing[K, V]) Rehashes() int {
	return t.rehashes
}

// Strategy returns the hash strategy of the table.
func (t *OpenAddressing[K, V]) Strategy() HashStrategy {
	return t.hasher.strategy
}

// Probe returns the probe strategy of the table.
func (t *OpenAddressing[K, V]) Probe() ProbeStrategy {
	return t.probe
}

// LongestRun returns the length of the longest run of consecutive full
// slots, scanning the slot array once from index 0 without wrapping around.
// Long runs are the primary clustering that linear probing suffers from.
func (t *OpenAddressing[K, V]) LongestRun() int {
	var longest, run int
	for _, c := range t.ctrls {
		if c == ctrlFull {
			run++
			continue
		}
		longest = max(longest, run)
		run = 0
	}
	return max(longest, run)
}

func (t *OpenAddressing[K, V]) alloc(capacity uintptr) {
	t.slots = t.allocator.AllocSlots(int(capacity))
	t.ctrls = unsafeConvertSlice[ctrl](t.allocator.AllocControls(int(capacity)))
	for i := range t.ctrls {
		t.ctrls[i] = ctrlEmpty
	}
	t.capacity = capacity
}

func (t *OpenAddressing[K, V]) free() {
	t.allocator.FreeSlots(t.slots)
	t.allocator.FreeControls(unsafeConvertSlice[uint8](t.ctrls))
}

// rehash allocates a fresh slot array of the new capacity and re-inserts
// every live entry through put. Tombstones are dropped. Entries keep their
// values but not their physical positions. If an entry cannot be placed the
// new array is released and the table is left as it was.
func (t *OpenAddressing[K, V]) rehash(newCapacity uintptr) error {
	if debug {
		fmt.Printf("rehash: capacity=%d->%d used=%d deleted=%d\n",
			t.capacity, newCapacity, t.used, t.deleted)
	}

	n := *t
	n.used, n.deleted = 0, 0
	n.alloc(newCapacity)
	for i := range t.ctrls {
		if t.ctrls[i] != ctrlFull {
			continue
		}
		s := &t.slots[i]
		if err := n.put(s.key, s.value); err != nil {
			n.free()
			return fmt.Errorf("rehash to %d: %w", newCapacity, err)
		}
	}

	oldCapacity := t.capacity
	if oldCapacity > 0 {
		t.free()
	}
	n.rehashes++
	*t = n

	if t.onRehash != nil {
		t.onRehash(int(oldCapacity), int(newCapacity))
	}
	t.checkInvariants()
	return nil
}

func (t *OpenAddressing[K, V]) checkInvariants() {
	if invariants {
		if len(t.ctrls) != int(t.capacity) || len(t.slots) != int(t.capacity) {
			panic(fmt.Sprintf("invariant failed: capacity=%d but len(ctrls)=%d len(slots)=%d",
				t.capacity, len(t.ctrls), len(t.slots)))
		}

		// For every full slot, verify we can retrieve the key using Get.
		// Without tombstones a delete can legitimately cut a probe chain, so
		// the check only applies with them. Count the number of used and
		// deleted slots.
		var used, deleted int
		for i := range t.ctrls {
			switch c := t.ctrls[i]; c {
			case ctrlEmpty:
			case ctrlDeleted:
				deleted++
			case ctrlFull:
				if t.tombstones {
					s := &t.slots[i]
					if j, ok := t.find(&s.key); !ok || j != uintptr(i) {
						panic(fmt.Sprintf("invariant failed: slot(%d): %v not found\n%s",
							i, s.key, t.debugString()))
					}
				}
				used++
			default:
				panic(fmt.Sprintf("invariant failed: ctrl(%d): unexpected %d", i, c))
			}
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if deleted != t.deleted {
			panic(fmt.Sprintf("invariant failed: found %d deleted slots, but deleted count is %d\n%s",
				deleted, t.deleted, t.debugString()))
		}
		if 2*t.used > int(t.capacity) {
			panic(fmt.Sprintf("invariant failed: load %d/%d exceeds 1/2\n%s",
				t.used, t.capacity, t.debugString()))
		}
	}
}

func (t *OpenAddressing[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  deleted=%d  hash=%s  probe=%s\n",
		t.capacity, t.used, t.deleted, t.hasher.strategy, t.probe)
	for i := range t.ctrls {
		switch c := t.ctrls[i]; c {
		case ctrlEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case ctrlDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			s := &t.slots[i]
			fmt.Fprintf(&buf, "  %4d: %v [hash=%d]\n", i, s.key, t.hasher.index(&s.key, t.capacity))
		}
	}
	return buf.String()
}

func unsafeConvertSlice[Dest any, Src any](s []Src) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}
