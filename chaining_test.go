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
	"math/rand"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// toBuiltinMap returns the elements as a map[K]V. Useful for testing.
func (t *Chaining[K, V]) toBuiltinMap() map[K]V {
	r := make(map[K]V)
	t.All(func(k K, v V) bool {
		r[k] = v
		return true
	})
	return r
}

func (t *Chaining[K, V]) randElement() (key K, value V, ok bool) {
	n := rand.Intn(t.used + 1)
	t.All(func(k K, v V) bool {
		key, value, ok = k, v, true
		n--
		return n > 0
	})
	return
}

func newChaining[K comparable, V any](
	t *testing.T, capacity int, hash HashStrategy, options ...option[K, V],
) *Chaining[K, V] {
	m, err := NewChaining[K, V](capacity, hash, options...)
	require.NoError(t, err)
	return m
}

func chainKeys[K comparable, V any](b []Slot[K, V]) []K {
	keys := make([]K, len(b))
	for i := range b {
		keys[i] = b[i].key
	}
	return keys
}

func TestNewChaining(t *testing.T) {
	m := newChaining[int, int](t, 0, Division)
	require.Equal(t, defaultChainingCapacity, m.Capacity())
	require.Equal(t, Division, m.Strategy())

	minLen, maxLen := m.ChainLengthBounds()
	require.Equal(t, 0, minLen)
	require.Equal(t, 0, maxLen)
	require.EqualValues(t, 0, m.LoadFactor())

	_, err := NewChaining[int, int](-5, Division)
	require.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = NewChaining[int, int](10, numHashStrategies)
	require.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestChainingCollisions(t *testing.T) {
	m := newChaining[int, string](t, 10, Division)
	m.Put(5, "a")
	m.Put(15, "b")
	m.Put(25, "c")

	require.Equal(t, []int{5, 15, 25}, chainKeys(m.buckets[5]))
	minLen, maxLen := m.ChainLengthBounds()
	require.Equal(t, 0, minLen)
	require.Equal(t, 3, maxLen)
	require.Equal(t, 0.1, m.LoadFactor())

	// Updating keeps the entry's position in its chain.
	m.Put(15, "B")
	require.Equal(t, []int{5, 15, 25}, chainKeys(m.buckets[5]))
	v, ok := m.Get(15)
	require.True(t, ok)
	require.Equal(t, "B", v)
	require.Equal(t, 3, m.Len())

	// Deleting keeps the order of the remaining entries.
	require.True(t, m.Delete(5))
	require.False(t, m.Delete(5))
	require.Equal(t, []int{15, 25}, chainKeys(m.buckets[5]))
	require.Equal(t, 2, m.Len())

	m.Put(5, "a")
	require.Equal(t, []int{15, 25, 5}, chainKeys(m.buckets[5]))
}

func TestChainingFullBuckets(t *testing.T) {
	m := newChaining[int, int](t, 4, Division)
	for i := 0; i < 8; i++ {
		m.Put(i, i)
	}
	minLen, maxLen := m.ChainLengthBounds()
	require.Equal(t, 2, minLen)
	require.Equal(t, 2, maxLen)
	require.Equal(t, 1.0, m.LoadFactor())
}

func TestChainingBasic(t *testing.T) {
	test := func(t *testing.T, m *Chaining[int, int]) {
		const count = 100

		e := make(map[int]int)
		require.EqualValues(t, 0, m.Len())

		// Non-existent.
		for i := 0; i < count; i++ {
			_, ok := m.Get(i)
			require.False(t, ok)
			require.False(t, m.Delete(i))
		}

		// Insert.
		for i := 0; i < count; i++ {
			m.Put(i, i+count)
			e[i] = i + count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+count, v)
			require.EqualValues(t, i+1, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
		}
		require.Equal(t, 7, m.Capacity())

		// Update.
		for i := 0; i < count; i++ {
			m.Put(i, i+2*count)
			e[i] = i + 2*count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+2*count, v)
			require.EqualValues(t, count, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
		}

		// Delete.
		for i := 0; i < count; i++ {
			require.True(t, m.Delete(i))
			delete(e, i)
			require.EqualValues(t, count-i-1, m.Len())
			_, ok := m.Get(i)
			require.False(t, ok)
			require.Equal(t, e, m.toBuiltinMap())
		}
	}

	for _, h := range HashStrategies() {
		t.Run(h.String(), func(t *testing.T) {
			test(t, newChaining[int, int](t, 7, h))
		})
	}
}

func TestChainingRandom(t *testing.T) {
	test := func(t *testing.T, m *Chaining[string, int]) {
		e := make(map[string]int)
		for i := 0; i < 10000; i++ {
			switch r := rand.Float64(); {
			case r < 0.5: // 50% inserts
				k, v := strconv.Itoa(rand.Intn(2000)), rand.Int()
				m.Put(k, v)
				e[k] = v
			case r < 0.65: // 15% updates
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					v := rand.Int()
					m.Put(k, v)
					e[k] = v
				}
			case r < 0.80: // 15% deletes
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					require.True(t, m.Delete(k))
					delete(e, k)
				}
			case r < 0.95: // 15% lookups
				if k, v, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					require.EqualValues(t, e[k], v)
					got, ok := m.Get(k)
					require.True(t, ok)
					require.EqualValues(t, v, got)
				}
			default: // 5% iterate
				require.Empty(t, cmp.Diff(e, m.toBuiltinMap()))
			}
			require.EqualValues(t, len(e), m.Len())
		}

		var total int
		for _, b := range m.buckets {
			total += len(b)
		}
		require.Equal(t, m.Len(), total)
		minLen, maxLen := m.ChainLengthBounds()
		require.LessOrEqual(t, minLen, maxLen)
	}

	for _, h := range HashStrategies() {
		t.Run(h.String(), func(t *testing.T) {
			test(t, newChaining[string, int](t, 101, h))
		})
	}
}

func TestChainingSeed(t *testing.T) {
	// Tables built with the same seed place every key in the same bucket.
	a := newChaining[string, int](t, 97, Murmur3, WithSeed[string, int](42))
	b := newChaining[string, int](t, 97, Murmur3, WithSeed[string, int](42))
	for i := 0; i < 500; i++ {
		a.Put(strconv.Itoa(i), i)
		b.Put(strconv.Itoa(i), i)
	}
	for i := range a.buckets {
		require.Equal(t, chainKeys(a.buckets[i]), chainKeys(b.buckets[i]))
	}
}

func TestChainingClear(t *testing.T) {
	m := newChaining[int, int](t, 0, XXHash)
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	m.Clear()
	require.EqualValues(t, 0, m.Len())
	require.EqualValues(t, defaultChainingCapacity, m.Capacity())
	require.EqualValues(t, 0, m.LoadFactor())

	m.All(func(k, v int) bool {
		require.Fail(t, "should not iterate")
		return true
	})

	m.Put(1, 1)
	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestChainingClose(t *testing.T) {
	m := newChaining[int, int](t, 10, Division)
	m.Put(1, 1)
	m.Close()
	m.Close()
	_, ok := m.Get(1)
	require.False(t, ok)
	require.False(t, m.Delete(1))
	require.Equal(t, 0, m.Capacity())
	minLen, maxLen := m.ChainLengthBounds()
	require.Equal(t, 0, minLen)
	require.Equal(t, 0, maxLen)
}
