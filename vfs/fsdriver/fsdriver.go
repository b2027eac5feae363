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

// Package fsdriver defines the external collaborator contract (§6): the
// operation vector a concrete on-disk filesystem driver binds to a mount,
// and the per-node operation groups the core dispatches through. The core
// itself never implements these; it only calls through them.
package fsdriver

import (
	"context"
	"io"
	"time"

	"github.com/haiku/haiku-sub018/vfs/mount"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// Stat is the subset of node metadata a driver reports and accepts for
// write_stat, independent of any particular on-disk layout.
type Stat struct {
	Size    int64
	Mode    uint32
	UID     uint32
	GID     uint32
	ATime   time.Time
	MTime   time.Time
	CTime   time.Time
	NLink   uint32
}

// StatMask selects which Stat fields a write_stat call should apply.
type StatMask uint32

const (
	StatSize StatMask = 1 << iota
	StatMode
	StatUID
	StatGID
	StatATime
	StatMTime
)

// DirOps groups directory-shaped operations.
type DirOps interface {
	Lookup(ctx context.Context, dir *vnode.Node, name string) (*vnode.Node, error)
	Create(ctx context.Context, dir *vnode.Node, name string, mode uint32) (*vnode.Node, error)
	MkDir(ctx context.Context, dir *vnode.Node, name string, mode uint32) (*vnode.Node, error)
	Remove(ctx context.Context, dir *vnode.Node, name string) error
	RmDir(ctx context.Context, dir *vnode.Node, name string) error
	Rename(ctx context.Context, oldDir *vnode.Node, oldName string, newDir *vnode.Node, newName string) error
	ReadDir(ctx context.Context, dir *vnode.Node, cookie int64) ([]DirEntry, int64, error)
}

// DirEntry is a single readdir result.
type DirEntry struct {
	Name string
	Node vnode.NodeID
	Type vnode.Type
}

// FileOps groups regular-file data operations.
type FileOps interface {
	Read(ctx context.Context, node *vnode.Node, p []byte, off int64) (int, error)
	Write(ctx context.Context, node *vnode.Node, p []byte, off int64) (int, error)
	Truncate(ctx context.Context, node *vnode.Node, size int64) error
	Fsync(ctx context.Context, node *vnode.Node) error
}

// LinkOps groups hard-link and symlink operations.
type LinkOps interface {
	CreateSymlink(ctx context.Context, dir *vnode.Node, name, target string) (*vnode.Node, error)
	ReadLink(ctx context.Context, node *vnode.Node) (string, error)
	CreateLink(ctx context.Context, dir *vnode.Node, name string, target *vnode.Node) error
}

// MetaOps groups stat-shaped metadata operations.
type MetaOps interface {
	ReadStat(ctx context.Context, node *vnode.Node) (Stat, error)
	WriteStat(ctx context.Context, node *vnode.Node, stat Stat, mask StatMask) error
	Access(ctx context.Context, node *vnode.Node, mode uint32) error
}

// AttrOps groups extended-attribute operations (the attribute-directory
// supplement of SPEC_FULL.md).
type AttrOps interface {
	OpenAttrDir(ctx context.Context, node *vnode.Node) (AttrDirHandle, error)
	ReadAttr(ctx context.Context, node *vnode.Node, name string, out io.Writer) (int, error)
	WriteAttr(ctx context.Context, node *vnode.Node, name string, data []byte) error
	RemoveAttr(ctx context.Context, node *vnode.Node, name string) error
}

// AttrDirHandle iterates a node's attribute names.
type AttrDirHandle interface {
	Next() (name string, ok bool)
	Close() error
}

// LockOps exposes a driver's own advisory-lock hook, for drivers that
// want to veto or augment core-level locking (most rely on vfs/advlock
// directly and need not implement this).
type LockOps interface {
	TestLock(ctx context.Context, node *vnode.Node, req interface{}) (bool, error)
}

// SelectOps lets a driver participate in select/poll for node types that
// are not plain files or directories (device nodes, sockets).
type SelectOps interface {
	Select(ctx context.Context, node *vnode.Node, events uint32) (uint32, error)
	Deselect(ctx context.Context, node *vnode.Node, events uint32) error
}

// Volume is the full per-mount operation vector a concrete filesystem
// driver implements. Individual node kinds are free to implement only the
// sub-interfaces relevant to them; the core type-asserts at dispatch time.
// It embeds mount.Driver rather than redeclaring Mount/Unmount/Sync so
// that one concrete driver type satisfies both the mount table's narrow
// handle and this richer per-node vector with the same three methods.
type Volume interface {
	DirOps
	FileOps
	LinkOps
	MetaOps
	mount.Driver
}
