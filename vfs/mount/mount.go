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

// Package mount implements the mount table (component B): the registry of
// mounted volumes, their device IDs, roots, covered nodes, and owning
// filesystem driver handles, plus mount/unmount/sync and layered-driver
// stacking.
package mount

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/haiku/haiku-sub018/vfs/entrycache"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// ID identifies a live mount. Generated fresh at mount time, following the
// teacher's use of google/uuid for generated identity.
type ID = vnode.VolumeID

// Driver is the external filesystem-driver contract a mount is bound to
// (component 6's volume operation vector, narrowed to what the mount
// table itself drives). The richer per-node operation vector lives in
// vfs/fsdriver and is handed to vnode.Table.Publish by the driver, not by
// this package.
type Driver interface {
	Mount(ctx context.Context, m *Mount, device string, flags uint32, args string) (vnode.NodeID, error)
	Unmount(ctx context.Context, m *Mount) error
	Sync(ctx context.Context, m *Mount) error
}

// Mount is a live binding of a filesystem driver to a device and a mount
// point, per the Mount data model in spec.md §3.
type Mount struct {
	ID     ID
	Device string
	Driver Driver

	Root     *vnode.Node
	Covered  *vnode.Node // nil for the root mount

	// Entries caches this volume's directory-entry lookups (component G),
	// per the Mount attribute list in spec.md §3. One Cache per mount, not
	// per directory: Key already carries the directory's vnode.ID.
	Entries *entrycache.Cache

	// Super/Sub implement layer stacking ("a:b:c"): Super points up to the
	// layer stacked on top of this one (nil for the topmost), Sub points
	// down to the layer this one is stacked on (nil for the bottommost).
	Super *Mount
	Sub   *Mount

	mu         sync.Mutex
	unmounting bool
	ownsDevice bool

	nodes list.List // of *vnode.Node via Node.MountList
}

func (m *Mount) Unmounting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmounting
}

// GetVnode satisfies vnode.Volume: it asks the bound driver's node
// operation vector (reached via fsdriver, not Driver above) to load the
// node. The mount package itself does not know how to talk to a specific
// driver's node hooks; that indirection is supplied by the loader func
// set at mount time, keeping this package free of an fsdriver import.
type Loader func(ctx context.Context, t *vnode.Table, id vnode.NodeID) (*vnode.Node, error)

type boundMount struct {
	*Mount
	load Loader
}

func (b *boundMount) GetVnode(ctx context.Context, t *vnode.Table, id vnode.NodeID) (*vnode.Node, error) {
	return b.load(ctx, t, id)
}

// Table is the mount table: a map from mount ID to Mount, guarded by a
// single reader-writer lock, plus the process-wide recursive mount-op
// lock described in 4.B and 4.J.
type Table struct {
	opLock *recursiveLock

	mu     sync.RWMutex
	mounts map[ID]*boundMount

	entryCacheGenerations    int
	entryCacheGenerationSize int
}

// NewTable constructs an empty mount table.
func NewTable() *Table {
	return &Table{
		opLock: newRecursiveLock(),
		mounts: make(map[ID]*boundMount),
	}
}

// SetEntryCacheShape configures the (generations, per-generation size)
// every Mount's entry cache is constructed with from this point forward.
// Zero values leave entrycache's own defaults in place.
func (t *Table) SetEntryCacheShape(generations, generationSize int) {
	t.entryCacheGenerations = generations
	t.entryCacheGenerationSize = generationSize
}

// ResolveVolume satisfies vnode.Resolver.
func (t *Table) ResolveVolume(id vnode.VolumeID) (vnode.Volume, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.mounts[id]
	return m, ok
}

// Lookup returns the Mount for an ID, if any.
func (t *Table) Lookup(id ID) (*Mount, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.mounts[id]
	if !ok {
		return nil, false
	}
	return m.Mount, true
}

// OpToken proves the holder already holds the mount-op lock, allowing
// reentrant calls (e.g. a driver's Mount hook calling back into Mount for
// a stacked layer) without deadlocking a non-reentrant sync.Mutex. This is
// the idiomatic Go substitute for the design notes' "recursive mount-op
// lock" — see DESIGN.md's Open Questions for the rationale.
type OpToken struct{ lock *recursiveLock }

// BeginOp acquires the mount-op lock and returns a token; passing nil as
// holder starts a fresh (non-reentrant) critical section.
func (t *Table) BeginOp(holder *OpToken) *OpToken {
	if holder != nil && holder.lock == t.opLock {
		return holder
	}
	t.opLock.Lock()
	return &OpToken{lock: t.opLock}
}

// EndOp releases the mount-op lock acquired by a token returned from a
// BeginOp call that was not itself reentrant. Reentrant callers (holder
// passed to BeginOp) must not call EndOp — only the outermost caller owns
// the lock.
func (t *Table) EndOp(tok *OpToken, wasReentrant bool) {
	if wasReentrant {
		return
	}
	t.opLock.Unlock()
}

// recursiveLock is a reentrant mutex keyed by an explicit token rather
// than goroutine id (Go has no portable way to identify the calling
// goroutine). A plain sync.Mutex backs the single non-reentrant section;
// reentrancy is achieved entirely by token threading in BeginOp/EndOp.
type recursiveLock struct {
	mu sync.Mutex
}

func newRecursiveLock() *recursiveLock { return &recursiveLock{} }
func (l *recursiveLock) Lock()         { l.mu.Lock() }
func (l *recursiveLock) Unlock()       { l.mu.Unlock() }

// Mount resolves the mount point, loads the named filesystem driver
// (possibly a colon-separated layer stack), resolves each layer's root
// vnode through nodeTable, links the top layer's root over the covered
// node, and registers the mount. See 4.B.
func (t *Table) Mount(
	ctx context.Context,
	nodeTable *vnode.Table,
	covered *vnode.Node,
	device string,
	fsName string,
	driverFactory func(layerName string) (Driver, error),
	loaderFactory func(m *Mount) Loader,
	flags uint32,
	args string,
) (*Mount, error) {
	tok := t.BeginOp(nil)
	defer t.EndOp(tok, false)

	layers := strings.Split(fsName, ":")
	var top *Mount
	for i, layerName := range layers {
		drv, err := driverFactory(layerName)
		if err != nil {
			return nil, fmt.Errorf("mount: loading layer %q: %w", layerName, err)
		}

		id := ID(newID())
		m := &Mount{ID: id, Device: device, Driver: drv, Entries: entrycache.New(t.entryCacheGenerations, t.entryCacheGenerationSize)}
		if i > 0 {
			m.Sub = top
			top.Super = m
		}
		top = m

		rootID, err := drv.Mount(ctx, m, device, flags, args)
		if err != nil {
			return nil, fmt.Errorf("mount: layer %q Mount hook: %w", layerName, err)
		}

		bm := &boundMount{Mount: m, load: loaderFactory(m)}
		t.mu.Lock()
		t.mounts[id] = bm
		t.mu.Unlock()

		// Publishing calls propagate top-down and sub-vnode creation
		// propagates bottom-up per 4.B; the driver factory / loader is
		// responsible for that ordering since only it knows the layer
		// protocol. Each layer still needs its own root node resolved so
		// Super/Sub stacking has a real node at every level.
		root, err := bm.load(ctx, nodeTable, rootID)
		if err != nil {
			return nil, fmt.Errorf("mount: layer %q root resolution: %w", layerName, err)
		}
		m.Root = root
	}

	// vnode.LinkCovering installs the covered/covering link under each
	// node's own lock; the node table's write lock is not taken here.
	top.Covered = covered
	if covered != nil {
		vnode.LinkCovering(top.Root, covered)
	}

	return top, nil
}

// Unmount locates the mount and, unless force is set, fails BUSY when the
// root node holds more references than the structural ones (one for the
// root, one more when it covers a node). Only the root's reference count
// is checked; the volume's other nodes are not examined. If force is
// set, callers are expected to have already disconnected descriptors
// before retrying (the descriptor-disconnect step is owned by vfs.Core,
// which has visibility into every IOContext; this package only performs
// the busy check and the final teardown).
func (t *Table) Unmount(ctx context.Context, id ID, force bool) error {
	tok := t.BeginOp(nil)
	defer t.EndOp(tok, false)

	t.mu.Lock()
	bm, ok := t.mounts[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("mount: %w", errNotFound)
	}
	t.mu.Unlock()

	bm.mu.Lock()
	bm.unmounting = true
	bm.mu.Unlock()

	if !force {
		structural := 1 // the root holds one reference
		if bm.Covered != nil {
			structural++
		}
		if int64(structural) < bm.Root.RefCount() {
			bm.mu.Lock()
			bm.unmounting = false
			bm.mu.Unlock()
			return fmt.Errorf("unmount %s: %w", id, errBusy)
		}
	}

	if err := bm.Driver.Unmount(ctx, bm.Mount); err != nil {
		return fmt.Errorf("unmount %s: driver Unmount hook: %w", id, err)
	}

	if bm.Covered != nil {
		bm.Covered.Lock()
		bm.Covered.ClearFlags(vnode.FlagCovered)
		bm.Covered.Unlock()
	}

	t.mu.Lock()
	delete(t.mounts, id)
	t.mu.Unlock()
	return nil
}

// Sync calls the driver's sync hook. Writing back cached pages belongs to
// the page cache collaborator and is not done here.
func (t *Table) Sync(ctx context.Context, id ID) error {
	t.mu.RLock()
	bm, ok := t.mounts[id]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("sync: %w", errNotFound)
	}
	return bm.Driver.Sync(ctx, bm.Mount)
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const (
	errNotFound = sentinelErr("not found")
	errBusy     = sentinelErr("busy")
)

// newID generates a fresh mount id from a random UUID's low 64 bits.
// Collisions are astronomically unlikely and, if they somehow occurred,
// would be caught by the map write overwriting an existing live mount —
// acceptable for the core's purposes since mount/unmount is globally
// serialized by opLock.
func newID() uint64 {
	u := uuid.New()
	var v uint64
	for _, b := range u[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}
