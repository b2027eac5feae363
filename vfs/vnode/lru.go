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

package vnode

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// DefaultSoftCeiling is the advisory soft ceiling on unused nodes (4.C).
const DefaultSoftCeiling = 8192

// lowResourceProbeInterval triggers a low-resource check every N 1->0
// transitions, per 4.C.
const lowResourceProbeInterval = 256

// LRUConfig configures the unused-vnode LRU.
type LRUConfig struct {
	// HotCapacity bounds the fixed-size hot array before it is drained.
	HotCapacity int
	// SoftCeiling is the advisory cold-list high-water mark.
	SoftCeiling int
}

// DefaultLRUConfig returns the spec's default tunables.
func DefaultLRUConfig() LRUConfig {
	return LRUConfig{HotCapacity: 64, SoftCeiling: DefaultSoftCeiling}
}

// LowResourceChecker reports whether the system is currently under memory
// pressure. Supplied by the root vfs package (component J's low-resource
// handler); the LRU itself has no notion of available memory.
type LowResourceChecker func() bool

// LRU implements the two-structure unused-vnode reclamation scheme of
// 4.C: a small fixed-size "hot" array of recently-touched unused nodes,
// and an explicit "cold" linked list of older unused nodes, each with
// their own short lock.
type LRU struct {
	table *Table
	cfg   LRUConfig

	hotMu  sync.Mutex
	hot    []*Node

	coldMu sync.Mutex
	cold   *list.List // of *Node

	checkCount atomic.Int64

	lowOnMemory LowResourceChecker
}

func newLRU(cfg LRUConfig, table *Table) *LRU {
	if cfg.HotCapacity <= 0 {
		cfg.HotCapacity = DefaultLRUConfig().HotCapacity
	}
	if cfg.SoftCeiling <= 0 {
		cfg.SoftCeiling = DefaultSoftCeiling
	}
	return &LRU{
		table: table,
		cfg:   cfg,
		cold:  list.New(),
	}
}

// SetLowResourceChecker wires the core's low-resource handler into the
// LRU's periodic probe.
func (l *LRU) SetLowResourceChecker(f LowResourceChecker) {
	l.lowOnMemory = f
}

// putHot appends a freshly-unused node to the hot array, draining it into
// the cold list if it is now full.
func (l *LRU) putHot(n *Node) {
	n.Lock()
	n.SetFlags(FlagHot)
	n.Unlock()

	l.hotMu.Lock()
	l.hot = append(l.hot, n)
	full := len(l.hot) >= l.cfg.HotCapacity
	var drained []*Node
	if full {
		drained = l.hot
		l.hot = nil
	}
	l.hotMu.Unlock()

	if drained != nil {
		l.drain(drained)
	}

	if l.checkCount.Add(1)%lowResourceProbeInterval == 0 {
		l.maybeReclaim()
	}
}

// drain clears the hot bit on each node and, if still unused, appends it
// to the cold list.
func (l *LRU) drain(nodes []*Node) {
	l.coldMu.Lock()
	defer l.coldMu.Unlock()
	for _, n := range nodes {
		n.Lock()
		n.ClearFlags(FlagHot)
		stillUnused := n.Has(FlagUnused)
		n.Unlock()
		if stillUnused && n.lruElem == nil {
			n.lruElem = l.cold.PushBack(n)
		}
	}
}

// remove drops a node from whichever reclamation structure holds it; used
// both when a node is reacquired (Get) and when it is destroyed.
func (l *LRU) remove(n *Node) {
	l.hotMu.Lock()
	for i, hn := range l.hot {
		if hn == n {
			l.hot = append(l.hot[:i], l.hot[i+1:]...)
			break
		}
	}
	l.hotMu.Unlock()

	l.coldMu.Lock()
	if n.lruElem != nil {
		l.cold.Remove(n.lruElem)
		n.lruElem = nil
	}
	l.coldMu.Unlock()
}

// maybeReclaim runs the low-resource probe: if the checker reports
// pressure and the cold list exceeds the soft ceiling, the oldest nodes
// are written back and freed until pressure subsides.
func (l *LRU) maybeReclaim() {
	if l.lowOnMemory == nil || !l.lowOnMemory() {
		return
	}

	for {
		l.coldMu.Lock()
		if l.cold.Len() <= l.cfg.SoftCeiling {
			l.coldMu.Unlock()
			return
		}
		front := l.cold.Front()
		if front == nil {
			l.coldMu.Unlock()
			return
		}
		n := front.Value.(*Node)
		l.cold.Remove(front)
		n.lruElem = nil
		l.coldMu.Unlock()

		n.Lock()
		stillUnused := n.Has(FlagUnused) && n.RefCount() == 0
		n.Unlock()
		if stillUnused {
			l.table.reclaim(n)
			l.table.metrics.LRUReclaimed()
		}

		if l.lowOnMemory != nil && !l.lowOnMemory() {
			return
		}
	}
}

// Probe runs one low-resource check immediately, instead of waiting for
// the inline counter in putHot to trip. The root vfs package's background
// ticker calls this so reclaim still happens on an otherwise-idle core.
func (l *LRU) Probe() {
	l.maybeReclaim()
}

// Len reports the combined hot+cold population, for diagnostics/tests.
func (l *LRU) Len() int {
	l.hotMu.Lock()
	h := len(l.hot)
	l.hotMu.Unlock()
	l.coldMu.Lock()
	c := l.cold.Len()
	l.coldMu.Unlock()
	return h + c
}
