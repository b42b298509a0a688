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

// Command hashdemo fills hash tables with random keys and reports how each
// hash and probe strategy distributes them.
//
// Usage:
//
//	hashdemo [flags] chaining|openaddr|compare
//
// Flag defaults can be overridden with HASHDEMO_N, HASHDEMO_SEED,
// HASHDEMO_CAPACITY and HASHDEMO_HASH, read from the environment or from a
// .env file in the working directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/hashtab"
	"github.com/joho/godotenv"
	"golang.org/x/exp/rand"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	var (
		n        = flag.Int("n", atoiDefault(getEnv("HASHDEMO_N", ""), 1000), "number of keys to insert")
		seed     = flag.Uint64("seed", uint64(atoiDefault(getEnv("HASHDEMO_SEED", ""), 1)), "key generator seed")
		capacity = flag.Int("capacity", atoiDefault(getEnv("HASHDEMO_CAPACITY", ""), 0), "initial table capacity (0 for the table default)")
		hashName = flag.String("hash", getEnv("HASHDEMO_HASH", "all"), "hash strategy, or \"all\"")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: hashdemo [flags] chaining|openaddr|compare\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *n <= 0 {
		log.Fatalf("need -n > 0, got %d", *n)
	}

	strategies, err := parseStrategies(*hashName)
	if err != nil {
		log.Fatal(err)
	}
	keys := genKeys(*n, *seed)

	switch cmd := flag.Arg(0); cmd {
	case "chaining":
		err = runChaining(keys, *capacity, strategies)
	case "openaddr":
		err = runOpenAddressing(keys, *capacity, strategies)
	case "compare":
		err = runCompare(keys, *capacity)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func atoiDefault(s string, defaultValue int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultValue
}

func parseStrategies(name string) ([]hashtab.HashStrategy, error) {
	if name == "all" {
		return hashtab.HashStrategies(), nil
	}
	s, err := hashtab.ParseHashStrategy(name)
	if err != nil {
		return nil, err
	}
	return []hashtab.HashStrategy{s}, nil
}

// genKeys returns n distinct keys in [0, MaxInt32).
func genKeys(n int, seed uint64) []int {
	r := rand.New(rand.NewSource(seed))
	seen := make(map[int]struct{}, n)
	keys := make([]int, 0, n)
	for len(keys) < n {
		k := int(r.Int63n(math.MaxInt32))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func value(k int) string {
	return "value" + strconv.Itoa(k)
}

func runChaining(keys []int, capacity int, strategies []hashtab.HashStrategy) error {
	for _, s := range strategies {
		m, err := hashtab.NewChaining[int, string](capacity, s)
		if err != nil {
			return err
		}
		start := time.Now()
		for _, k := range keys {
			m.Put(k, value(k))
		}
		elapsed := time.Since(start)

		minLen, maxLen := m.ChainLengthBounds()
		log.Printf("chaining hash=%s: inserted %d keys in %v", s, m.Len(), elapsed)
		log.Printf("  load factor %.4f, chain length min=%d max=%d", m.LoadFactor(), minLen, maxLen)
		if err := lookupDelete(m, keys[len(keys)/2]); err != nil {
			return fmt.Errorf("chaining hash=%s: %w", s, err)
		}
		m.Close()
	}
	return nil
}

func runOpenAddressing(keys []int, capacity int, strategies []hashtab.HashStrategy) error {
	for _, s := range strategies {
		for _, p := range hashtab.ProbeStrategies() {
			m, err := hashtab.NewOpenAddressing[int, string](capacity, s, p,
				hashtab.OnRehash[int, string](func(oldCapacity, newCapacity int) {
					log.Printf("  rehashing table %d -> %d", oldCapacity, newCapacity)
				}))
			if err != nil {
				return err
			}
			start := time.Now()
			for _, k := range keys {
				if err := m.Put(k, value(k)); err != nil {
					return fmt.Errorf("openaddr hash=%s probe=%s: %w", s, p, err)
				}
			}
			elapsed := time.Since(start)

			log.Printf("openaddr hash=%s probe=%s: inserted %d keys in %v", s, p, m.Len(), elapsed)
			log.Printf("  capacity %d, load factor %.4f, longest run %d, rehashes %d",
				m.Capacity(), m.LoadFactor(), m.LongestRun(), m.Rehashes())
			if err := lookupDelete(m, keys[len(keys)/2]); err != nil {
				return fmt.Errorf("openaddr hash=%s probe=%s: %w", s, p, err)
			}
			m.Close()
		}
	}
	return nil
}

func runCompare(keys []int, capacity int) error {
	c, err := hashtab.NewChaining[int, string](capacity, hashtab.Division)
	if err != nil {
		return err
	}
	defer c.Close()
	o, err := hashtab.NewOpenAddressing[int, string](capacity, hashtab.Division, hashtab.Linear)
	if err != nil {
		return err
	}
	defer o.Close()

	start := time.Now()
	for _, k := range keys {
		c.Put(k, value(k))
	}
	chainingElapsed := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		if err := o.Put(k, value(k)); err != nil {
			return err
		}
	}
	openElapsed := time.Since(start)

	minLen, maxLen := c.ChainLengthBounds()
	log.Printf("chaining: %v, %d buckets, load factor %.4f, chain length min=%d max=%d",
		chainingElapsed, c.Capacity(), c.LoadFactor(), minLen, maxLen)
	log.Printf("openaddr: %v, %d slots, load factor %.4f, longest run %d",
		openElapsed, o.Capacity(), o.LoadFactor(), o.LongestRun())
	return nil
}

type table interface {
	Get(key int) (string, bool)
	Delete(key int) bool
}

// lookupDelete looks key up, deletes it and verifies it is gone.
func lookupDelete(m table, key int) error {
	v, ok := m.Get(key)
	if !ok {
		return fmt.Errorf("key %d not found", key)
	}
	log.Printf("  get(%d) = %q", key, v)
	if !m.Delete(key) {
		return fmt.Errorf("key %d not deleted", key)
	}
	if _, ok := m.Get(key); ok {
		return fmt.Errorf("key %d found after delete", key)
	}
	log.Printf("  delete(%d): gone", key)
	return nil
}
