// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package entrycache implements the directory-entry cache (component G):
// a (dir-id, name) -> (child-id, missing) hash table with N-generation
// rotation providing approximate LRU eviction without per-entry reference
// counting.
package entrycache

import (
	"sync"

	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// Metrics is the narrow observability seam a generation rotation reports
// through; vfs/metrics implements it over OpenTelemetry instruments.
type Metrics interface {
	CacheRotated()
}

type noopMetrics struct{}

func (noopMetrics) CacheRotated() {}

var metricsHook Metrics = noopMetrics{}

// SetMetrics installs the package-wide metrics hook every *Cache reports
// generation rotations through. Call once at startup; nil restores the
// no-op.
func SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	metricsHook = m
}

// DefaultGenerations and DefaultGenerationSize pick a modest default
// footprint; callers with a cfg layer are expected to override these per
// the node-table soft ceiling's scale.
const (
	DefaultGenerations    = 4
	DefaultGenerationSize = 4096
)

// Key identifies one directory entry slot.
type Key struct {
	Dir  vnode.ID
	Name string
}

// entry is the value half of the cache: either a resolved child id, or a
// negative (missing) marker.
type entry struct {
	child   vnode.ID
	missing bool

	gen     int // which generation array currently owns this slot
	slotIdx int // index into that generation's array
	freed   bool
}

// Cache is the entry cache. One Cache instance is intended per mounted
// volume (it lives on the Mount per spec.md §3), though nothing here
// requires that.
type Cache struct {
	mu sync.RWMutex

	generations    int
	generationSize int

	table map[Key]*entry

	// slots[g] is the list of keys assigned to generation g, in
	// insertion order; rotation discards the oldest generation wholesale.
	slots   [][]Key
	current int
	next    int // next free index within slots[current]
}

// New constructs an entry cache with the given generation count and
// per-generation capacity.
func New(generations, generationSize int) *Cache {
	if generations <= 0 {
		generations = DefaultGenerations
	}
	if generationSize <= 0 {
		generationSize = DefaultGenerationSize
	}
	c := &Cache{
		generations:    generations,
		generationSize: generationSize,
		table:          make(map[Key]*entry),
		slots:          make([][]Key, generations),
	}
	return c
}

// Lookup returns the cached child id for (dir, name) and whether it was a
// hit. If the entry is a negative (missing) marker, ok is true and
// missing is true.
func (c *Cache) Lookup(dir vnode.ID, name string) (child vnode.ID, missing bool, ok bool) {
	key := Key{Dir: dir, Name: name}

	c.mu.RLock()
	e, found := c.table[key]
	c.mu.RUnlock()
	if !found {
		return vnode.ID{}, false, false
	}

	c.promote(key, e)
	return e.child, e.missing, true
}

// promote updates the entry's recorded generation to the current one on a
// hit, per spec.md §4.G: a hit in the current generation is a no-op; a
// hit in an older generation acquires a new slot in the current
// generation. The key stays listed in the old generation's slots, but
// rotation skips it there because the entry's gen no longer matches.
func (c *Cache) promote(key Key, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.freed {
		// Rotated out from under us between the read-locked lookup and
		// here; nothing to promote.
		return
	}
	if e.gen == c.current {
		return
	}

	e.gen = c.current
	e.slotIdx = c.next
	c.next++
	c.slots[c.current] = append(c.slots[c.current], key)

	if c.next >= c.generationSize {
		c.rotateLocked()
	}
}

// Insert adds or replaces a positive entry.
func (c *Cache) Insert(dir vnode.ID, name string, child vnode.ID) {
	c.put(dir, name, child, false)
}

// InsertMissing adds or replaces a negative entry, recording that name is
// known not to exist under dir.
func (c *Cache) InsertMissing(dir vnode.ID, name string) {
	c.put(dir, name, vnode.ID{}, true)
}

func (c *Cache) put(dir vnode.ID, name string, child vnode.ID, missing bool) {
	key := Key{Dir: dir, Name: name}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.table[key]; ok {
		e.child = child
		e.missing = missing
		return
	}

	e := &entry{child: child, missing: missing, gen: c.current, slotIdx: c.next}
	c.table[key] = e
	c.slots[c.current] = append(c.slots[c.current], key)
	c.next++

	if c.next >= c.generationSize {
		c.rotateLocked()
	}
}

// Remove unlinks an explicit entry (e.g. on an unlink notification from
// the owning filesystem). Caller holds no lock.
func (c *Cache) Remove(dir vnode.ID, name string) {
	key := Key{Dir: dir, Name: name}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.table[key]
	if !ok {
		return
	}
	e.freed = true
	delete(c.table, key)
}

// rotateLocked advances the current generation and discards the oldest
// one wholesale. Caller holds c.mu for writing.
func (c *Cache) rotateLocked() {
	victim := (c.current + 1) % c.generations
	for _, key := range c.slots[victim] {
		if e, ok := c.table[key]; ok && e.gen == victim {
			delete(c.table, key)
		}
	}
	c.slots[victim] = nil

	c.current = victim
	c.next = 0
	metricsHook.CacheRotated()
}

// Len reports the number of live entries, for diagnostics and tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table)
}
