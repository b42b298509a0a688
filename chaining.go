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
	"slices"
	"strings"
)

const defaultChainingCapacity = 1000

// Chaining is a hash table using separate chaining: a fixed number of
// buckets, each holding the entries whose key hashed to it in insertion
// order. The bucket count never changes, so a poor hash strategy shows up as
// long chains rather than as a failure.
//
// A Chaining table is NOT goroutine-safe.
type Chaining[K comparable, V any] struct {
	hasher  *Hasher[K]
	buckets [][]Slot[K, V]
	// The number of entries across all buckets.
	used int
}

// NewChaining constructs a chaining table with the specified number of
// buckets and hash strategy. A capacity of 0 selects a default of 1000
// buckets.
func NewChaining[K comparable, V any](
	capacity int, hash HashStrategy, options ...option[K, V],
) (*Chaining[K, V], error) {
	if capacity < 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	if capacity == 0 {
		capacity = defaultChainingCapacity
	}
	c := makeConfig(options)
	h, err := NewHasher[K](hash, c.seed)
	if err != nil {
		return nil, err
	}
	t := &Chaining[K, V]{
		hasher:  h,
		buckets: make([][]Slot[K, V], capacity),
	}
	t.checkInvariants()
	return t, nil
}

// Close releases the table's buckets. It is invalid to use a table after it
// has been closed, though Close itself is idempotent.
func (t *Chaining[K, V]) Close() {
	t.buckets = nil
	t.used = 0
}

func (t *Chaining[K, V]) bucket(key *K) *[]Slot[K, V] {
	return &t.buckets[t.hasher.index(key, uintptr(len(t.buckets)))]
}

// Put inserts an entry into the table, overwriting an existing value in
// place if an entry with the same key already exists.
func (t *Chaining[K, V]) Put(key K, value V) {
	b := t.bucket(&key)
	for i := range *b {
		if s := &(*b)[i]; s.key == key {
			s.value = value
			return
		}
	}
	*b = append(*b, Slot[K, V]{key: key, value: value})
	t.used++
	if debug {
		fmt.Printf("put(%v): chain=%d used=%d\n", key, len(*b), t.used)
	}
	t.checkInvariants()
}

// Get retrieves the value from the table for the specified key, return
// ok=false if the key is not present.
func (t *Chaining[K, V]) Get(key K) (value V, ok bool) {
	if len(t.buckets) == 0 {
		return value, false
	}
	for _, s := range *t.bucket(&key) {
		if s.key == key {
			return s.value, true
		}
	}
	return value, false
}

// Delete deletes the entry corresponding to the specified key from the
// table, reporting whether an entry was removed. The remaining entries of
// the bucket keep their order.
func (t *Chaining[K, V]) Delete(key K) bool {
	if len(t.buckets) == 0 {
		return false
	}
	b := t.bucket(&key)
	i := slices.IndexFunc(*b, func(s Slot[K, V]) bool { return s.key == key })
	if i < 0 {
		return false
	}
	*b = slices.Delete(*b, i, i+1)
	t.used--
	t.checkInvariants()
	return true
}

// All calls yield sequentially for each key and value present in the table,
// bucket by bucket. If yield returns false, iteration stops.
func (t *Chaining[K, V]) All(yield func(key K, value V) bool) {
	for _, b := range t.buckets {
		for _, s := range b {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Clear deletes all entries from the table, retaining its bucket count.
func (t *Chaining[K, V]) Clear() {
	for i := range t.buckets {
		clear(t.buckets[i])
		t.buckets[i] = t.buckets[i][:0]
	}
	t.used = 0
}

// Len returns the number of entries in the table.
func (t *Chaining[K, V]) Len() int {
	return t.used
}

// Capacity returns the number of buckets.
func (t *Chaining[K, V]) Capacity() int {
	return len(t.buckets)
}

// Strategy returns the hash strategy of the table.
func (t *Chaining[K, V]) Strategy() HashStrategy {
	return t.hasher.strategy
}

// ChainLengthBounds returns the length of the shortest and the longest
// bucket. Both are 0 for a table that holds no entries.
func (t *Chaining[K, V]) ChainLengthBounds() (minLen, maxLen int) {
	if len(t.buckets) == 0 {
		return 0, 0
	}
	minLen = len(t.buckets[0])
	for _, b := range t.buckets {
		minLen = min(minLen, len(b))
		maxLen = max(maxLen, len(b))
	}
	return minLen, maxLen
}

// LoadFactor returns the fraction of buckets that are non-empty. Unlike
// OpenAddressing.LoadFactor this measures how well the hash spreads keys
// over buckets, not how many entries the table holds.
func (t *Chaining[K, V]) LoadFactor() float64 {
	if len(t.buckets) == 0 {
		return 0
	}
	var nonEmpty int
	for _, b := range t.buckets {
		if len(b) > 0 {
			nonEmpty++
		}
	}
	return float64(nonEmpty) / float64(len(t.buckets))
}

func (t *Chaining[K, V]) checkInvariants() {
	if invariants {
		// Every entry lives in the bucket its key hashes to and no key
		// appears twice.
		seen := make(map[K]int, t.used)
		var used int
		for i, b := range t.buckets {
			for _, s := range b {
				if j := t.hasher.index(&s.key, uintptr(len(t.buckets))); j != uintptr(i) {
					panic(fmt.Sprintf("invariant failed: %v in bucket %d but hashes to %d\n%s",
						s.key, i, j, t.debugString()))
				}
				if j, ok := seen[s.key]; ok {
					panic(fmt.Sprintf("invariant failed: %v in buckets %d and %d\n%s",
						s.key, j, i, t.debugString()))
				}
				seen[s.key] = i
				used++
			}
		}
		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d entries, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
	}
}

func (t *Chaining[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  hash=%s\n", len(t.buckets), t.used, t.hasher.strategy)
	for i, b := range t.buckets {
		if len(b) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  %4d:", i)
		for _, s := range b {
			fmt.Fprintf(&buf, " %v", s.key)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
