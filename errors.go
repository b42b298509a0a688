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
	"errors"
	"fmt"
)

var (
	// ErrUnknownStrategy is returned when a table or Hasher is constructed
	// with a hash or probe strategy outside of the defined set.
	ErrUnknownStrategy = errors.New("hashtab: unknown strategy")

	// ErrInvalidCapacity is returned when a table is constructed with a
	// negative capacity.
	ErrInvalidCapacity = errors.New("hashtab: invalid capacity")

	// ErrProbeExhausted is returned by OpenAddressing.Put when every position
	// of the probe sequence was visited without finding a free slot or the
	// key itself. With the load factor kept at or below 1/2 this indicates a
	// probe sequence that cycles over a subset of the slots.
	ErrProbeExhausted = errors.New("hashtab: probe sequence exhausted")

	// ErrInvalidIndex is wrapped by IndexError.
	ErrInvalidIndex = errors.New("hashtab: hash index out of range")
)

// IndexError is the panic value raised when a hash strategy produces an index
// outside of [0, capacity). It always indicates a bug in this package.
type IndexError struct {
	Strategy HashStrategy
	Index    uintptr
	Capacity uintptr
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d not in [0, %d)", e.Strategy, e.Index, e.Capacity)
}

func (e *IndexError) Unwrap() error {
	return ErrInvalidIndex
}

// checkIndex is the single place where hash output is validated before it is
// used to address storage.
func checkIndex(s HashStrategy, i, capacity uintptr) {
	if i >= capacity {
		panic(&IndexError{Strategy: s, Index: i, Capacity: capacity})
	}
}
