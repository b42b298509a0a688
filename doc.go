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

// Package hashtab provides two hash tables with pluggable hash functions,
// intended for studying how the choice of hash function and collision
// strategy affects the distribution of keys.
//
// # Tables
//
// Chaining uses separate chaining: a fixed array of buckets, each an ordered
// slice of the entries that hashed to it. It never grows. Its statistics are
// ChainLengthBounds (shortest and longest bucket) and LoadFactor (the
// fraction of non-empty buckets).
//
// OpenAddressing stores every entry directly in a slot array and resolves
// collisions by walking a probe sequence selected by a ProbeStrategy
// (linear, quadratic, double hashing, modulo offset or xor constant). It
// keeps its load factor at or below 1/2 by rehashing into the smallest prime
// capacity >= twice the current one before an insert would cross it. Its
// statistic is LongestRun, the longest run of consecutive full slots.
//
// Both tables share the same operations: Put, Get, Delete, Len, All, Clear
// and Close.
//
// # Hash strategies
//
// A HashStrategy maps a key and a capacity to an index in [0, capacity).
// Division, Multiplication, XorConstant, RotateLeft, XorAdd and Polynomial
// operate on the key's numeric value. Murmur3, FNV1a, Jenkins,
// PolynomialRolling and XXHash operate on the key's canonical bytes.
//
// Integer keys of any width are their own numeric value and are encoded as
// 8 little endian bytes. String keys are encoded as their UTF-8 bytes and
// their numeric value is the FNV-1a hash of those bytes. Any other
// comparable key is reduced to a 64-bit fingerprint (hash/maphash) whose
// seed is fixed when the table is created.
//
// Seeded strategies draw their seed once per table (see WithSeed), so a
// key always hashes to the same index for a given capacity over the life of
// the table.
//
// # Deletion
//
// OpenAddressing.Delete leaves a tombstone that lookups probe past and that
// inserts reuse. Tombstones are dropped whenever the table is rehashed. The
// WithoutTombstones option instead returns the slot to empty, which can cut
// the probe chain of keys placed beyond it.
package hashtab
