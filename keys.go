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
	"encoding/binary"
	"hash/maphash"
	"reflect"
	"unsafe"
)

type keyKind uint8

const (
	keySigned keyKind = iota
	keyUnsigned
	keyString
	keyOther
)

// keyReducer turns a key of type K into the two canonical forms the hash
// strategies operate on: a 64-bit numeric value and a byte stream. The kind
// of K is resolved once so that the per-call work is a switch and a pointer
// load.
//
//   - Integers (including named integer types) are their own numeric value
//     and are encoded as 8 little endian bytes.
//   - Strings are their UTF-8 bytes. Their numeric value is FNV-1a over those
//     bytes.
//   - Every other comparable type is reduced to a 64-bit fingerprint with
//     maphash.Comparable under a seed fixed for the life of the reducer, and
//     is encoded as the 8 little endian bytes of that fingerprint.
type keyReducer[K comparable] struct {
	kind keyKind
	size uintptr
	seed maphash.Seed
}

func makeKeyReducer[K comparable]() keyReducer[K] {
	r := keyReducer[K]{seed: maphash.MakeSeed()}
	t := reflect.TypeFor[K]()
	r.size = t.Size()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r.kind = keySigned
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		r.kind = keyUnsigned
	case reflect.String:
		r.kind = keyString
	default:
		r.kind = keyOther
	}
	return r
}

// numeric returns the canonical 64-bit numeric value of the key.
func (r *keyReducer[K]) numeric(key *K) int64 {
	p := noescape(unsafe.Pointer(key))
	switch r.kind {
	case keySigned:
		switch r.size {
		case 1:
			return int64(*(*int8)(p))
		case 2:
			return int64(*(*int16)(p))
		case 4:
			return int64(*(*int32)(p))
		default:
			return *(*int64)(p)
		}
	case keyUnsigned:
		switch r.size {
		case 1:
			return int64(*(*uint8)(p))
		case 2:
			return int64(*(*uint16)(p))
		case 4:
			return int64(*(*uint32)(p))
		default:
			return int64(*(*uint64)(p))
		}
	case keyString:
		return int64(fnv1a(stringBytes(*(*string)(p))))
	default:
		return int64(maphash.Comparable(r.seed, *key))
	}
}

// magnitude returns |numeric(key)|. The most negative int64 maps to 1<<63.
func (r *keyReducer[K]) magnitude(key *K) uint64 {
	return abs64(r.numeric(key))
}

// bytes returns the canonical byte encoding of the key. Integer and
// fingerprinted keys are encoded into buf, strings alias their own storage.
// The result must not be retained.
func (r *keyReducer[K]) bytes(key *K, buf *[8]byte) []byte {
	if r.kind == keyString {
		return stringBytes(*(*string)(noescape(unsafe.Pointer(key))))
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(r.numeric(key)))
	return buf[:]
}

func abs64(x int64) uint64 {
	u := uint64(x)
	if x < 0 {
		u = -u
	}
	return u
}

func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
