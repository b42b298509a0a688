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

import "golang.org/x/exp/rand"

// config is the set of knobs shared by Chaining and OpenAddressing. Options
// that only make sense for one of them are ignored by the other.
type config[K comparable, V any] struct {
	seed       uint64
	seeded     bool
	allocator  Allocator[K, V]
	tombstones bool
	onRehash   func(oldCapacity, newCapacity int)
}

func makeConfig[K comparable, V any](options []option[K, V]) config[K, V] {
	c := config[K, V]{
		allocator:  defaultAllocator[K, V]{},
		tombstones: true,
	}
	for _, op := range options {
		op.apply(&c)
	}
	if !c.seeded {
		c.seed = rand.Uint64()
	}
	return c
}

// option provide an interface to do work on a table's config while it is
// being created.
type option[K comparable, V any] interface {
	apply(c *config[K, V])
}

type seedOption[K comparable, V any] struct {
	seed uint64
}

func (op seedOption[K, V]) apply(c *config[K, V]) {
	c.seed = op.seed
	c.seeded = true
}

// WithSeed is an option to fix the seed used by seeded hash strategies
// (Murmur3). By default every table draws its own random seed when it is
// created. The seed never changes for the life of the table, including
// across rehashes.
func WithSeed[K comparable, V any](seed uint64) option[K, V] {
	return seedOption[K, V]{seed}
}

// Allocator specifies an interface for allocating and releasing the slot
// storage of an OpenAddressing table. The default allocator utilizes Go's
// builtin make() and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots and
// controls be freed then OpenAddressing.Close must be called in order to
// ensure FreeSlots and FreeControls are called.
type Allocator[K comparable, V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// AllocControls should return a slice equivalent to make([]uint8, n).
	AllocControls(n int) []uint8

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots.
	FreeSlots(v []Slot[K, V])

	// FreeControls can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocControls.
	FreeControls(v []uint8)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) AllocControls(n int) []uint8 {
	return make([]uint8, n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

func (defaultAllocator[K, V]) FreeControls(v []uint8) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(c *config[K, V]) {
	c.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for an
// OpenAddressing[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type tombstoneOption[K comparable, V any] struct{}

func (tombstoneOption[K, V]) apply(c *config[K, V]) {
	c.tombstones = false
}

// WithoutTombstones is an option that makes OpenAddressing.Delete return the
// slot straight to the empty state instead of leaving a deletion marker.
// This reproduces the classic textbook behavior and its defect: a key placed
// further along a probe sequence that passed through the deleted slot can no
// longer be found by Get, and a later Put of that key may store it twice.
func WithoutTombstones[K comparable, V any]() option[K, V] {
	return tombstoneOption[K, V]{}
}

type rehashOption[K comparable, V any] struct {
	fn func(oldCapacity, newCapacity int)
}

func (op rehashOption[K, V]) apply(c *config[K, V]) {
	c.onRehash = op.fn
}

// OnRehash is an option to register a function called after every rehash of
// an OpenAddressing table with the capacity before and after.
func OnRehash[K comparable, V any](fn func(oldCapacity, newCapacity int)) option[K, V] {
	return rehashOption[K, V]{fn}
}
