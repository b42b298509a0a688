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
	"hash/fnv"
	"math/bits"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashStrategy selects the function used to map a key to a bucket or slot
// index. The numeric strategies operate on the key's numeric value (see
// keyReducer), the byte-stream strategies on its canonical byte encoding.
type HashStrategy uint8

const (
	// Division computes |k| mod capacity.
	Division HashStrategy = iota
	// Multiplication computes floor(capacity * frac(k * A)) with A the
	// golden ratio conjugate (Knuth).
	Multiplication
	// XorConstant computes |k XOR 1234567| mod capacity.
	XorConstant
	// RotateLeft rotates the 64-bit key left by 5 bits and computes the
	// absolute value mod capacity.
	RotateLeft
	// XorAdd computes |(k XOR k<<3) + (k XOR k>>5)| mod capacity.
	XorAdd
	// Polynomial computes |31k + 17| mod capacity.
	Polynomial
	// Murmur3 is the 64-bit MurmurHash3 of the key bytes, seeded once per
	// table.
	Murmur3
	// FNV1a is the 64-bit FNV-1a hash of the key bytes.
	FNV1a
	// Jenkins is Bob Jenkins' one-at-a-time hash of the key bytes.
	Jenkins
	// PolynomialRolling is the base-31 polynomial rolling hash of the key
	// bytes.
	PolynomialRolling
	// XXHash is the 64-bit xxHash of the key bytes.
	XXHash

	numHashStrategies
)

const (
	// multiplicationConstant is (sqrt(5)-1)/2 as a 0.64 fixed point
	// fraction.
	multiplicationConstant = 0x9e3779b97f4a7c15

	xorConstant    = 1234567
	rotateShift    = 5
	xorAddShift1   = 3
	xorAddShift2   = 5
	polynomialMul  = 31
	polynomialAdd  = 17
	rollingBase    = 31
	byteStreamBase = Murmur3
)

var hashStrategyNames = [numHashStrategies]string{
	Division:          "division",
	Multiplication:    "multiplication",
	XorConstant:       "xor-constant",
	RotateLeft:        "rotate-left",
	XorAdd:            "xor-add",
	Polynomial:        "polynomial",
	Murmur3:           "murmur3",
	FNV1a:             "fnv1a",
	Jenkins:           "jenkins",
	PolynomialRolling: "polynomial-rolling",
	XXHash:            "xxhash",
}

func (s HashStrategy) String() string {
	if s < numHashStrategies {
		return hashStrategyNames[s]
	}
	return fmt.Sprintf("HashStrategy(%d)", uint8(s))
}

func (s HashStrategy) valid() bool {
	return s < numHashStrategies
}

// HashStrategies returns every defined HashStrategy in declaration order.
func HashStrategies() []HashStrategy {
	r := make([]HashStrategy, numHashStrategies)
	for i := range r {
		r[i] = HashStrategy(i)
	}
	return r
}

// ParseHashStrategy returns the HashStrategy whose String() is name. Matching
// is case insensitive.
func ParseHashStrategy(name string) (HashStrategy, error) {
	for i, n := range hashStrategyNames {
		if strings.EqualFold(n, name) {
			return HashStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("hash strategy %q: %w", name, ErrUnknownStrategy)
}

// Hasher maps keys of type K to indexes in [0, capacity) using a single
// HashStrategy. The mapping is a pure function of the key and capacity for
// the lifetime of the Hasher: any randomness (the Murmur3 seed and the
// fingerprint seed for non-integer, non-string keys) is fixed when the Hasher
// is created.
//
// A Hasher is NOT goroutine-safe.
type Hasher[K comparable] struct {
	strategy HashStrategy
	seed     uint64
	keys     keyReducer[K]
}

// NewHasher returns a Hasher for the given strategy. The seed is only
// consulted by seeded strategies.
func NewHasher[K comparable](strategy HashStrategy, seed uint64) (*Hasher[K], error) {
	if !strategy.valid() {
		return nil, fmt.Errorf("hash strategy %d: %w", uint8(strategy), ErrUnknownStrategy)
	}
	return &Hasher[K]{
		strategy: strategy,
		seed:     seed,
		keys:     makeKeyReducer[K](),
	}, nil
}

// Strategy returns the hash strategy in use.
func (h *Hasher[K]) Strategy() HashStrategy {
	return h.strategy
}

// Index returns the index of key in a table with the given capacity.
// Capacity must be positive.
func (h *Hasher[K]) Index(key K, capacity int) int {
	if capacity <= 0 {
		panic(fmt.Sprintf("hashtab: capacity %d must be positive", capacity))
	}
	return int(h.index(&key, uintptr(capacity)))
}

func (h *Hasher[K]) index(key *K, capacity uintptr) uintptr {
	var i uintptr
	if h.strategy >= byteStreamBase {
		var buf [8]byte
		i = uintptr(h.sum64(h.keys.bytes(key, &buf)) % uint64(capacity))
	} else {
		i = h.numericIndex(h.keys.numeric(key), capacity)
	}
	checkIndex(h.strategy, i, capacity)
	return i
}

func (h *Hasher[K]) numericIndex(k int64, capacity uintptr) uintptr {
	c := uint64(capacity)
	switch h.strategy {
	case Division:
		return uintptr(abs64(k) % c)
	case Multiplication:
		// frac(|k| * A) as a 0.64 fixed point value. For negative keys
		// frac(k*A) = 1 - frac(|k|*A) unless the fraction is zero.
		f := abs64(k) * multiplicationConstant
		if k < 0 {
			f = -f
		}
		hi, _ := bits.Mul64(f, c)
		return uintptr(hi)
	case XorConstant:
		return uintptr(abs64(k^xorConstant) % c)
	case RotateLeft:
		return uintptr(abs64(int64(bits.RotateLeft64(uint64(k), rotateShift))) % c)
	case XorAdd:
		return uintptr(abs64((k^(k<<xorAddShift1))+(k^(k>>xorAddShift2))) % c)
	case Polynomial:
		return uintptr(abs64(k*polynomialMul+polynomialAdd) % c)
	default:
		panic(fmt.Sprintf("invariant failed: %s is not a numeric strategy", h.strategy))
	}
}

func (h *Hasher[K]) sum64(b []byte) uint64 {
	switch h.strategy {
	case Murmur3:
		return murmur3.Sum64WithSeed(b, uint32(h.seed))
	case FNV1a:
		return fnv1a(b)
	case Jenkins:
		return uint64(oneAtATime(b))
	case PolynomialRolling:
		return polynomialRolling(b)
	case XXHash:
		return xxhash.Sum64(b)
	default:
		panic(fmt.Sprintf("invariant failed: %s is not a byte-stream strategy", h.strategy))
	}
}

func fnv1a(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// oneAtATime is Bob Jenkins' one-at-a-time hash.
func oneAtATime(b []byte) uint32 {
	var h uint32
	for _, c := range b {
		h += uint32(c)
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

func polynomialRolling(b []byte) uint64 {
	var h uint64
	for _, c := range b {
		h = h*rollingBase + uint64(c)
	}
	return h
}
