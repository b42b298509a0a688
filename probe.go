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
)

// ProbeStrategy selects the sequence of slots an OpenAddressing table
// visits when the slot at a key's hash index is taken.
type ProbeStrategy uint8

const (
	// Linear visits base + i.
	Linear ProbeStrategy = iota
	// Quadratic visits base + i^2.
	Quadratic
	// DoubleHashing visits base + i*(7 - k mod 7).
	DoubleHashing
	// ModuloOffset visits base + i*(k mod 7 + 1).
	ModuloOffset
	// XorConstantProbe visits base + i*((k XOR 12345) mod capacity).
	XorConstantProbe

	numProbeStrategies
)

const (
	probeModulus     = 7
	probeXorConstant = 12345
)

var probeStrategyNames = [numProbeStrategies]string{
	Linear:           "linear",
	Quadratic:        "quadratic",
	DoubleHashing:    "double-hashing",
	ModuloOffset:     "modulo-offset",
	XorConstantProbe: "xor-constant",
}

func (s ProbeStrategy) String() string {
	if s < numProbeStrategies {
		return probeStrategyNames[s]
	}
	return fmt.Sprintf("ProbeStrategy(%d)", uint8(s))
}

func (s ProbeStrategy) valid() bool {
	return s < numProbeStrategies
}

// ProbeStrategies returns every defined ProbeStrategy in declaration order.
func ProbeStrategies() []ProbeStrategy {
	r := make([]ProbeStrategy, numProbeStrategies)
	for i := range r {
		r[i] = ProbeStrategy(i)
	}
	return r
}

// ParseProbeStrategy returns the ProbeStrategy whose String() is name.
// Matching is case insensitive.
func ParseProbeStrategy(name string) (ProbeStrategy, error) {
	for i, n := range probeStrategyNames {
		if strings.EqualFold(n, name) {
			return ProbeStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("probe strategy %q: %w", name, ErrUnknownStrategy)
}

// probeSeq maintains the state for a probe sequence. Attempt i of the
// sequence is at
//
//	p(i) := base + step*i   (mod capacity)  for the stepped strategies
//	p(i) := base + i^2      (mod capacity)  for Quadratic
//
// The offset is advanced incrementally (i^2 - (i-1)^2 = 2i-1 for Quadratic)
// so that no intermediate product can overflow.
//
// The step is reduced mod capacity and a zero step is replaced by 1, so
// every stepped sequence advances. When the capacity is prime (which it
// always is after the first rehash) every stepped sequence visits all slots,
// and Quadratic visits at least (capacity+1)/2 distinct slots, which is
// enough to find a free slot while the load factor is at most 1/2.
//
// Put, Get and Delete all walk the same sequence for the same key, stopping
// after capacity attempts.
type probeSeq struct {
	strategy ProbeStrategy
	capacity uintptr
	step     uintptr
	offset   uintptr
	index    uintptr
}

// makeProbeSeq returns the sequence for a key whose hash index is base and
// whose numeric magnitude is k.
func makeProbeSeq(strategy ProbeStrategy, base uintptr, k uint64, capacity uintptr) probeSeq {
	c := uint64(capacity)
	var step uint64
	switch strategy {
	case Linear, Quadratic:
		step = 1
	case DoubleHashing:
		step = probeModulus - k%probeModulus
	case ModuloOffset:
		step = k%probeModulus + 1
	case XorConstantProbe:
		step = (k ^ probeXorConstant) % c
	default:
		panic(fmt.Sprintf("invariant failed: unknown probe strategy %d", uint8(strategy)))
	}
	step %= c
	if step == 0 {
		step = 1
	}
	return probeSeq{
		strategy: strategy,
		capacity: capacity,
		step:     uintptr(step),
		offset:   base % capacity,
		index:    0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	if s.strategy == Quadratic {
		s.offset = (s.offset + (2*s.index-1)%s.capacity) % s.capacity
	} else {
		s.offset = (s.offset + s.step) % s.capacity
	}
	return s
}

// done reports whether every attempt of the sequence has been made.
func (s probeSeq) done() bool {
	return s.index >= s.capacity
}

func (s probeSeq) String() string {
	return fmt.Sprintf("%s capacity=%d step=%d offset=%d index=%d",
		s.strategy, s.capacity, s.step, s.offset, s.index)
}

// nextPrime returns the smallest prime >= n using trial division. It is only
// called when an OpenAddressing table is rehashed.
func nextPrime(n uintptr) uintptr {
	if n <= 2 {
		return 2
	}
	for !isPrime(n) {
		n++
	}
	return n
}

func isPrime(n uintptr) bool {
	if n < 2 {
		return false
	}
	for d := uintptr(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}
