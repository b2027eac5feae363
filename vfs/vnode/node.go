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

// Type is the kind of filesystem object a node represents.
type Type int

const (
	TypeFile Type = iota
	TypeDirectory
	TypeSymlink
	TypeFIFO
	TypeCharDevice
	TypeBlockDevice
	TypeSocket
)

// Flags is the node's status bit-set. It is guarded by Node.mu, not by
// atomic bit tricks: the core has no requirement for lock-free reads of
// individual bits, only for a lock-free ref count, which is tracked
// separately as an atomic.Int64.
type Flags uint32

const (
	FlagBusy Flags = 1 << iota
	FlagRemoved
	FlagUnpublished
	FlagUnused
	FlagHot
	FlagCovered
	FlagCovering
	FlagLocked
	FlagWaitingLocker
)

// beingFreedRefCount is the sentinel ref count marking the transitional
// "being freed" state. No thread may resurrect a node in this state.
const beingFreedRefCount = -1

// Ops is the per-node filesystem operation vector. It is deliberately a
// tiny marker here: the full operation-vector shape (directory/file/
// metadata/link/lock/select hooks) lives in vfs/fsdriver, and a Node only
// needs to carry an opaque reference to it plus a type-erased handle for
// private driver data.
type Ops interface {
	// PutVnode is called when a node's reference count drops to zero and
	// it is not marked removed.
	PutVnode(priv interface{}) error
	// RemoveVnode is called when a removed node's reference count drops
	// to zero, or when an unpublished-but-removed node is torn down.
	RemoveVnode(priv interface{}) error
}

// Node is a live in-memory vnode: the record representing one filesystem
// object, independent of any particular mount's on-disk format.
type Node struct {
	id   ID
	typ  Type
	ops  Ops
	priv interface{}

	// refCount is atomic so Table.lookup-hit paths and Acquire/Put don't
	// need the per-node lock just to read or bump it.
	refCount atomic.Int64

	mu    sync.Mutex // guards everything below
	flags Flags

	// Covered/covering links: at most one up-link (covering, the mount
	// root layered on top of this node) and one down-link (covers, set
	// only on a mount root, pointing at the node it covers). These are
	// weak references into the node table's map, not owning pointers —
	// see DESIGN.md's note on the teacher's intrusive-link re-architecture.
	coveredBy *Node
	covers    *Node

	// MountList is the embedded list.Element used for membership in the
	// owning mount's node list (for unmount/sync iteration).
	MountList list.Element

	// AdvisoryLock is lazily allocated by vfs/advlock on first use;
	// stored here as interface{} to avoid an import cycle (advlock
	// imports vnode for the ID type, not the other way around).
	AdvisoryLock interface{}

	// MandatoryLockedBy, when non-nil, is the descriptor (opaque to this
	// package) holding exclusive use of the node.
	MandatoryLockedBy interface{}

	// PageCache is opaque to the core; owned by the external page-cache
	// collaborator (explicit Non-goal, §1).
	PageCache interface{}

	// lruElem is this node's element on the cold list, or nil if it is
	// not currently on the cold list (e.g. it is hot, or has a positive
	// ref count).
	lruElem *list.Element
}

// NewNode constructs a node with ref count zero and no flags set. A node
// built this way is not visible to any table lookup; Table.Publish and
// Table.NewUnpublished build and insert their own nodes.
func NewNode(id ID, typ Type, ops Ops, priv interface{}) *Node {
	return &Node{id: id, typ: typ, ops: ops, priv: priv}
}

func (n *Node) ID() ID       { return n.id }
func (n *Node) Type() Type   { return n.typ }
func (n *Node) Priv() interface{} { return n.priv }

// RefCount returns the current reference count. A return value of -1
// indicates the node is in the transitional "being freed" state.
func (n *Node) RefCount() int64 { return n.refCount.Load() }

// Lock/Unlock give callers access to the node's bit-set and mutable
// fields under the node's own spin-lock-equivalent mutex, per 4.A's
// locking contract ("a per-node spin-lock protects the bit-set").
func (n *Node) Lock()   { n.mu.Lock() }
func (n *Node) Unlock() { n.mu.Unlock() }

// Flags returns the current bit-set. Caller must hold the node lock.
func (n *Node) Flags() Flags { return n.flags }

// SetFlags ORs the given bits into the bit-set. Caller must hold the node
// lock.
func (n *Node) SetFlags(f Flags) { n.flags |= f }

// ClearFlags ANDs the complement of the given bits out of the bit-set.
// Caller must hold the node lock.
func (n *Node) ClearFlags(f Flags) { n.flags &^= f }

// Has reports whether all of the given bits are set. Caller must hold the
// node lock.
func (n *Node) Has(f Flags) bool { return n.flags&f == f }

// CoveredBy returns the node covering this one (the mount root layered on
// top), or nil. Caller must hold the node's lock; LinkCovering and
// UnlinkCovering change the link under it.
func (n *Node) CoveredBy() *Node { return n.coveredBy }

// Covers returns the node this one covers (set only on a mount root), or
// nil. Same locking requirement as CoveredBy.
func (n *Node) Covers() *Node { return n.covers }

// LinkCovering links root over covered, setting both the pointers and the
// mirror flags. It takes each node's own lock in turn; the node table's
// write lock is not taken.
func LinkCovering(root, covered *Node) {
	root.Lock()
	root.covers = covered
	root.SetFlags(FlagCovering)
	root.Unlock()

	covered.Lock()
	covered.coveredBy = root
	covered.SetFlags(FlagCovered)
	covered.Unlock()
}

// UnlinkCovering undoes LinkCovering, with the same per-node locking.
func UnlinkCovering(root, covered *Node) {
	root.Lock()
	root.covers = nil
	root.ClearFlags(FlagCovering)
	root.Unlock()

	covered.Lock()
	covered.coveredBy = nil
	covered.ClearFlags(FlagCovered)
	covered.Unlock()
}
