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

// Package fdtable implements the per-process descriptor table (component
// E): a dynamic array of descriptors with close-on-exec/close-on-fork
// bitmaps and a parallel select-info chain, plus the I/O context that owns
// it (component 3's I/O context data model).
package fdtable

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/haiku/haiku-sub018/logger"
	"github.com/haiku/haiku-sub018/vfs/verrno"
)

// Ops is a descriptor's operation vector hook set the table itself needs;
// richer per-type operations (read/write/ioctl/...) live on whatever the
// Cookie actually is and are dispatched by vfs/syscall, not here.
type Ops interface {
	// FDFree is invoked when a descriptor's reference count reaches zero.
	FDFree(cookie interface{})
	// FDClose is invoked when a descriptor's open count reaches zero.
	FDClose(cookie interface{}) error
}

// Descriptor is per-open-file state, per spec.md §3.
type Descriptor struct {
	Ops    Ops
	Cookie interface{}

	// Node/Mount are back-pointers to whichever the descriptor refers to;
	// exactly one is expected to be meaningful for a given descriptor
	// kind, left as interface{} to avoid an import on vnode/mount here
	// (fdtable is a leaf package used by both file and directory
	// descriptors, and by mount-internal descriptors alike).
	Node  interface{}
	Mount interface{}

	OpenMode int
	Pos      int64 // -1 for non-seekable, per spec.md §3

	mu        sync.Mutex
	refCount  int
	openCount int

	disconnected bool
}

func New(ops Ops, cookie interface{}, openMode int) *Descriptor {
	return &Descriptor{Ops: ops, Cookie: cookie, OpenMode: openMode, Pos: -1, refCount: 1, openCount: 1}
}

// SelectInfo is the opaque per-descriptor select registration chain link
// (the "select-info chain" of spec.md §3). It is a minimal struct here
// because the select-sync pool's real behavior belongs to whichever
// component (pipefs, nodemon) the descriptor actually selects against.
type SelectInfo struct {
	Next *SelectInfo
	Ref  interface{}
}

// Table is the per-process descriptor table, component E.
type Table struct {
	mu sync.RWMutex

	descriptors []*Descriptor
	selectInfos []*SelectInfo
	closeOnExec []bool
	closeOnFork []bool

	listenerCount int
	listenerMax   int
}

// Default and bound tunables, resolvable from cfg; exported as vars so the
// root vfs package can override them from parsed configuration without
// fdtable depending on cfg.
var (
	DefaultTableSize = 256
)

// ChooseDefaultTableSize picks a descriptor-table size from the process's
// RLIMIT_NOFILE, the same heuristic fs.ChooseTempDirLimitNumFiles uses for
// its own file-count limit: about 75% of the current soft limit, capped
// at a reasonable ceiling.
func ChooseDefaultTableSize() int {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Warningf("fdtable: failed to query RLIMIT_NOFILE, using default descriptor table size of %d", DefaultTableSize)
		return DefaultTableSize
	}

	limit64 := rlimit.Cur/2 + rlimit.Cur/4

	const reasonableLimit = 1 << 15
	if limit64 > reasonableLimit {
		limit64 = reasonableLimit
	}
	return int(limit64)
}

// NewTable constructs an I/O context's descriptor table with the given
// initial size.
func NewTable(size int, listenerMax int) *Table {
	if size <= 0 {
		size = DefaultTableSize
	}
	return &Table{
		descriptors: make([]*Descriptor, size),
		selectInfos: make([]*SelectInfo, size),
		closeOnExec: make([]bool, size),
		closeOnFork: make([]bool, size),
		listenerMax: listenerMax,
	}
}

// NewFD returns the smallest free index >= firstIndex, installing d there.
func (t *Table) NewFD(d *Descriptor, firstIndex int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := firstIndex; i < len(t.descriptors); i++ {
		if t.descriptors[i] == nil {
			t.descriptors[i] = d
			t.closeOnExec[i] = false
			t.closeOnFork[i] = false
			return i, nil
		}
	}
	return -1, verrno.ErrNoMoreFDs
}

// GetFD acquires a reference to the descriptor at index, respecting the
// disconnected flag (a disconnected descriptor cannot be re-acquired).
func (t *Table) GetFD(index int) (*Descriptor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index < 0 || index >= len(t.descriptors) {
		return nil, verrno.ErrFileError
	}
	d := t.descriptors[index]
	if d == nil {
		return nil, verrno.ErrFileError
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disconnected {
		return nil, verrno.ErrFileError
	}
	d.refCount++
	return d, nil
}

// PutFD releases a reference; on the 1->0 transition it invokes the
// fd_free hook. The descriptor object itself has no slab in Go (the
// garbage collector plays that role), matching the design notes'
// observation that slab-specific machinery doesn't carry over literally.
// Releasing the last outstanding reference of a disconnected descriptor
// also closes it through CloseFD.
func (t *Table) PutFD(d *Descriptor) {
	d.mu.Lock()
	d.refCount--
	remaining := d.refCount
	closeNow := d.disconnected && remaining > 0 && remaining == d.openCount
	cookie := d.Cookie
	ops := d.Ops
	d.mu.Unlock()

	if remaining == 0 {
		ops.FDFree(cookie)
	}
	if closeNow {
		t.CloseFD(d)
	}
}

// CloseFD decrements the open count; on 1->0 it calls fd_close. It does
// not look at the disconnected flag itself: Disconnect and PutFD call it
// for a disconnected descriptor once no outstanding reference remains.
func (t *Table) CloseFD(d *Descriptor) error {
	d.mu.Lock()
	d.openCount--
	shouldClose := d.openCount == 0
	d.mu.Unlock()

	if shouldClose {
		return d.Ops.FDClose(d.Cookie)
	}
	return nil
}

// RemoveFD drops the slot's reference and any associated select-info.
func (t *Table) RemoveFD(index int) (*Descriptor, error) {
	t.mu.Lock()
	if index < 0 || index >= len(t.descriptors) {
		t.mu.Unlock()
		return nil, verrno.ErrFileError
	}
	d := t.descriptors[index]
	t.descriptors[index] = nil
	t.selectInfos[index] = nil
	t.closeOnExec[index] = false
	t.closeOnFork[index] = false
	t.mu.Unlock()

	if d == nil {
		return nil, verrno.ErrFileError
	}
	t.PutFD(d)
	return d, nil
}

// DupFD duplicates the descriptor at fromIndex into the lowest free slot
// at or above minIndex.
func (t *Table) DupFD(fromIndex, minIndex int) (int, error) {
	t.mu.Lock()
	if fromIndex < 0 || fromIndex >= len(t.descriptors) || t.descriptors[fromIndex] == nil {
		t.mu.Unlock()
		return -1, verrno.ErrFileError
	}
	d := t.descriptors[fromIndex]
	t.mu.Unlock()

	d.mu.Lock()
	d.refCount++
	d.openCount++
	d.mu.Unlock()

	idx, err := t.NewFD(d, minIndex)
	if err != nil {
		t.PutFD(d)
		return -1, err
	}
	return idx, nil
}

// Dup2FD atomically evicts any existing descriptor at toIndex and
// installs a duplicate of fromIndex there. If fromIndex == toIndex and
// both already refer to the same live descriptor, it is a no-op, per the
// idempotence property in spec.md §8.
func (t *Table) Dup2FD(fromIndex, toIndex int) error {
	t.mu.Lock()
	if fromIndex < 0 || fromIndex >= len(t.descriptors) || t.descriptors[fromIndex] == nil {
		t.mu.Unlock()
		return verrno.ErrFileError
	}
	if toIndex < 0 || toIndex >= len(t.descriptors) {
		t.mu.Unlock()
		return verrno.ErrFileError
	}
	from := t.descriptors[fromIndex]
	existing := t.descriptors[toIndex]
	if existing == from {
		t.mu.Unlock()
		return nil
	}

	from.mu.Lock()
	from.refCount++
	from.openCount++
	from.mu.Unlock()

	t.descriptors[toIndex] = from
	t.closeOnExec[toIndex] = false
	t.closeOnFork[toIndex] = false
	t.mu.Unlock()

	if existing != nil {
		t.PutFD(existing)
	}
	return nil
}

// CloseRange closes or marks-close-on-exec every slot in [min, max]
// intersected with the current table size.
func (t *Table) CloseRange(min, max int, markCloseOnExecOnly bool) error {
	t.mu.Lock()
	if max >= len(t.descriptors) {
		max = len(t.descriptors) - 1
	}
	type toClose struct {
		idx int
		d   *Descriptor
	}
	var pending []toClose
	for i := min; i <= max && i >= 0; i++ {
		if t.descriptors[i] == nil {
			continue
		}
		if markCloseOnExecOnly {
			t.closeOnExec[i] = true
			continue
		}
		pending = append(pending, toClose{i, t.descriptors[i]})
		t.descriptors[i] = nil
		t.selectInfos[i] = nil
	}
	t.mu.Unlock()

	var firstErr error
	for _, p := range pending {
		if err := t.CloseFD(p.d); err != nil && firstErr == nil {
			firstErr = err
		}
		t.PutFD(p.d)
	}
	return firstErr
}

// ExecContext closes every descriptor whose close-on-exec bit is set.
func (t *Table) ExecContext() {
	t.mu.Lock()
	type toClose struct {
		idx int
		d   *Descriptor
	}
	var pending []toClose
	for i, d := range t.descriptors {
		if d != nil && t.closeOnExec[i] {
			pending = append(pending, toClose{i, d})
			t.descriptors[i] = nil
			t.selectInfos[i] = nil
			t.closeOnExec[i] = false
		}
	}
	t.mu.Unlock()

	for _, p := range pending {
		t.CloseFD(p.d)
		t.PutFD(p.d)
	}
}

// ResizeFDTable grows or shrinks the table. Shrinking fails if any slot to
// be dropped is in use.
func (t *Table) ResizeFDTable(newSize int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := len(t.descriptors)
	if newSize < old {
		for i := newSize; i < old; i++ {
			if t.descriptors[i] != nil {
				return verrno.ErrBusy
			}
		}
	}

	descriptors := make([]*Descriptor, newSize)
	selectInfos := make([]*SelectInfo, newSize)
	closeOnExec := make([]bool, newSize)
	closeOnFork := make([]bool, newSize)

	n := old
	if newSize < n {
		n = newSize
	}
	copy(descriptors, t.descriptors[:n])
	copy(selectInfos, t.selectInfos[:n])
	copy(closeOnExec, t.closeOnExec[:n])
	copy(closeOnFork, t.closeOnFork[:n])

	t.descriptors = descriptors
	t.selectInfos = selectInfos
	t.closeOnExec = closeOnExec
	t.closeOnFork = closeOnFork
	return nil
}

// Disconnect marks a descriptor disconnected: future GetFD calls fail, and
// once its last outstanding reference is released it is closed, but its
// slot is left occupied so the numeric FD is not reused until an explicit
// close.
func (t *Table) Disconnect(index int) error {
	t.mu.RLock()
	if index < 0 || index >= len(t.descriptors) || t.descriptors[index] == nil {
		t.mu.RUnlock()
		return verrno.ErrFileError
	}
	d := t.descriptors[index]
	t.mu.RUnlock()

	d.mu.Lock()
	d.disconnected = true
	shouldCloseNow := d.refCount == d.openCount
	d.mu.Unlock()

	if shouldCloseNow {
		return t.CloseFD(d)
	}
	return nil
}

// Len reports the table's current capacity.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.descriptors)
}
