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
	"context"
	"sync"
	"time"

	"github.com/haiku/haiku-sub018/logger"
)

// busyRetryInterval and busyRetryCeiling implement the "busy protocol"
// bound from spec.md §4.A / §5: ~2000 retries at 5ms each, ~10s total.
const (
	busyRetryInterval = 5 * time.Millisecond
	busyRetryCeiling  = 2000
)

// Volume is the subset of a mount the node table needs in order to load a
// missing node on demand. It is satisfied by vfs/mount.Mount; defined here
// (rather than importing vfs/mount) to keep vnode free of a dependency on
// mount, matching the teacher's layering where fs/inode never imports the
// top-level fs package.
type Volume interface {
	// GetVnode asks the filesystem driver bound to this volume to load
	// the node with the given id, publishing it into the resolver's
	// table as a side effect (mirroring fs.cpp's get_vnode contract).
	GetVnode(ctx context.Context, resolver *Table, id NodeID) (*Node, error)
	// Unmounting reports whether the volume is in the middle of being
	// unmounted, in which case Get must fail NOT-FOUND rather than wait.
	Unmounting() bool
}

// Resolver looks up the Volume owning a VolumeID. Implemented by
// vfs/mount.Table and injected into the node table at construction so
// that vnode has no import-time dependency on mount.
type Resolver interface {
	ResolveVolume(id VolumeID) (Volume, bool)
}

// TableError is the small closed set of errors the table itself returns,
// declared locally (rather than importing the root vfs package, which
// imports vnode) as plain sentinel values compared by identity. They are
// separate from verrno's Errno set; vfs/errors.go does not map them.
type TableError int

const (
	ErrNotFound TableError = iota + 1
	ErrBusy
	ErrNoMemory
)

func (e TableError) Error() string {
	switch e {
	case ErrNotFound:
		return "vnode: not found"
	case ErrBusy:
		return "vnode: busy"
	case ErrNoMemory:
		return "vnode: no memory"
	default:
		return "vnode: unknown error"
	}
}

// Table is the node table: a hash-indexed registry of live nodes keyed by
// (volume-id, node-id), with the ref-count and busy-bit protocols of
// spec.md §4.A, plus the embedded unused-vnode LRU of §4.C.
type Table struct {
	resolver Resolver

	mu    sync.RWMutex // protects insertion/removal into nodes
	nodes map[ID]*Node

	lru *LRU

	// metrics, if non-nil, observes hit/miss/publish/reclaim counts. Kept
	// as a narrow interface so vnode doesn't depend on the metrics
	// package's OTel types directly.
	metrics Metrics
}

// Metrics is the narrow observability seam the node table reports
// through; vfs/metrics implements it over OpenTelemetry instruments.
type Metrics interface {
	NodeLookupHit()
	NodeLookupMiss()
	NodePublished()
	NodeDestroyed()
	LRUReclaimed()
}

type noopMetrics struct{}

func (noopMetrics) NodeLookupHit()  {}
func (noopMetrics) NodeLookupMiss() {}
func (noopMetrics) NodePublished()  {}
func (noopMetrics) NodeDestroyed()  {}
func (noopMetrics) LRUReclaimed()   {}

// NewTable constructs an empty node table with its unused-vnode LRU.
func NewTable(resolver Resolver, lruCfg LRUConfig, metrics Metrics) *Table {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	t := &Table{
		resolver: resolver,
		nodes:    make(map[ID]*Node),
		metrics:  metrics,
	}
	t.lru = newLRU(lruCfg, t)
	return t
}

// LRU exposes the table's unused-vnode reclamation structure so the root
// vfs package can wire a low-resource checker and drive its periodic
// probe.
func (t *Table) LRU() *LRU {
	return t.lru
}

// Lookup is the fast, read-lock-only path: it never loads a missing node.
func (t *Table) Lookup(id ID) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// Get acquires a reference to the node (volume, id), loading it from the
// owning mount if absent. See spec.md §4.A for the full contract.
func (t *Table) Get(ctx context.Context, id ID, canWait bool) (*Node, error) {
	attempts := 0
	for {
		t.mu.RLock()
		n, ok := t.nodes[id]
		t.mu.RUnlock()

		if ok {
			n.Lock()
			busy := n.Has(FlagBusy)
			removed := n.Has(FlagRemoved)
			unpublished := n.Has(FlagUnpublished)
			if busy {
				n.Unlock()
				// Removed-and-not-unpublished nodes never resolve; don't
				// wait on those (4.A busy protocol).
				if removed && !unpublished {
					t.metrics.NodeLookupMiss()
					return nil, ErrNotFound
				}
				if !canWait {
					return nil, ErrBusy
				}
				attempts++
				if attempts > busyRetryCeiling {
					return nil, ErrBusy
				}
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(busyRetryInterval):
				}
				continue
			}
			if n.RefCount() < 0 {
				// Being freed; re-validate by retrying the lookup.
				n.Unlock()
				continue
			}
			n.refCount.Add(1)
			if n.Has(FlagUnused) {
				n.ClearFlags(FlagUnused)
				t.lru.remove(n)
			}
			n.Unlock()
			t.metrics.NodeLookupHit()
			return n, nil
		}

		// Not present: ask the owning volume to load it.
		vol, ok := t.resolver.ResolveVolume(id.Volume)
		if !ok || vol.Unmounting() {
			t.metrics.NodeLookupMiss()
			return nil, ErrNotFound
		}

		t.metrics.NodeLookupMiss()
		n, err := vol.GetVnode(ctx, t, id.Node)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

// Acquire increments the ref count of an already-referenced node. It is
// illegal to call this on a node with ref count 0, mirroring 4.A.
func (t *Table) Acquire(n *Node) {
	if n.RefCount() <= 0 {
		panic("vnode: Acquire called on a node with non-positive ref count")
	}
	n.refCount.Add(1)
}

// Publish registers a freshly created node, or completes a pre-existing
// unpublished stub left by an earlier NewUnpublished call. See 4.A.
func (t *Table) Publish(id ID, typ Type, ops Ops, priv interface{}) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.nodes[id]; ok {
		existing.Lock()
		if existing.Has(FlagUnpublished) {
			existing.typ = typ
			existing.ops = ops
			existing.priv = priv
			existing.ClearFlags(FlagUnpublished | FlagBusy)
			existing.Unlock()
			t.metrics.NodePublished()
			return existing, nil
		}
		existing.Unlock()
		return existing, nil
	}

	n := NewNode(id, typ, ops, priv)
	n.refCount.Store(1)
	t.nodes[id] = n
	t.metrics.NodePublished()
	return n, nil
}

// NewUnpublished reserves a busy, unpublished stub for id so that
// concurrent lookups serialize on the busy bit until the driver calls
// Publish or Remove.
func (t *Table) NewUnpublished(id ID) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := NewNode(id, TypeFile, nil, nil)
	n.SetFlags(FlagBusy | FlagUnpublished)
	n.refCount.Store(1)
	t.nodes[id] = n
	return n
}

// Remove marks the node removed; if it was still unpublished, it is torn
// down immediately rather than waiting for a ref-count transition.
func (t *Table) Remove(id ID) {
	t.mu.Lock()
	n, ok := t.nodes[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	n.Lock()
	n.SetFlags(FlagRemoved)
	unpublished := n.Has(FlagUnpublished)
	n.Unlock()
	if unpublished {
		delete(t.nodes, id)
	}
	t.mu.Unlock()
}

// Put releases a reference. On the 1->0 transition it either enqueues the
// node to the unused LRU or destroys it immediately, per 4.A's lifecycle.
func (t *Table) Put(n *Node) {
	remaining := n.refCount.Add(-1)
	if remaining > 0 {
		return
	}
	if remaining < 0 {
		panic("vnode: ref count underflow")
	}

	n.Lock()
	removed := n.Has(FlagRemoved)
	n.Unlock()

	if removed {
		t.destroy(n)
		return
	}

	n.Lock()
	n.SetFlags(FlagUnused)
	n.Unlock()
	t.lru.putHot(n)
}

// destroy calls the filesystem driver's teardown hook, removes the node
// from the table, and drops it from the LRU if present.
func (t *Table) destroy(n *Node) {
	n.refCount.Store(beingFreedRefCount)
	t.lru.remove(n)

	if n.ops != nil {
		n.Lock()
		removed := n.Has(FlagRemoved)
		n.Unlock()
		var err error
		if removed {
			err = n.ops.RemoveVnode(n.priv)
		} else {
			err = n.ops.PutVnode(n.priv)
		}
		if err != nil {
			// The core does not throw; callers observing destruction
			// failures must poll driver state. Logged so the failure
			// isn't silently lost.
			logger.Warningf("vnode: teardown of %+v failed: %v", n.id, err)
		}
	}

	t.mu.Lock()
	delete(t.nodes, n.id)
	t.mu.Unlock()
	t.metrics.NodeDestroyed()
}

// Reclaim is called by the LRU when memory pressure requires freeing
// unused nodes; it performs the same teardown as a 1->0 Put transition
// with FlagRemoved treated as "always free."
func (t *Table) reclaim(n *Node) {
	t.destroy(n)
}
