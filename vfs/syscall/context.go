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

// Package syscall exposes the POSIX-shaped entry points (§6) as methods
// on an IOContext bound to a *vfs.Core: open/create/close/read/write,
// directory and link operations, descriptor duplication, advisory
// locking, pipes, attribute directories, node-monitor watches, and
// mount/unmount/sync. Every entry point resolves its path argument (or
// its directory-fd-relative equivalent) through the core's path resolver
// and dispatches the rest through whichever fsdriver.Volume owns the
// resulting node.
package syscall

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/haiku/haiku-sub018/vfs"
	"github.com/haiku/haiku-sub018/vfs/advlock"
	"github.com/haiku/haiku-sub018/vfs/fdtable"
	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
	"github.com/haiku/haiku-sub018/vfs/pipefs"
	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// AtFDCWD is the dirFD sentinel meaning "resolve relative to the calling
// context's current working directory," mirroring unix.AT_FDCWD.
const AtFDCWD = unix.AT_FDCWD

// defaultSelectListenerMax bounds how many select registrations a single
// I/O context's descriptor table will track.
const defaultSelectListenerMax = 256

// descKind distinguishes what a descriptor's cookie actually refers to,
// since fdtable.Descriptor.Cookie is opaque to that package.
type descKind int

const (
	kindFile descKind = iota
	kindDir
	kindAttrDir
	kindPipeRead
	kindPipeWrite
)

// cookie is the fdtable.Descriptor.Cookie payload for every descriptor
// this package installs.
type cookie struct {
	node *vnode.Node
	kind descKind

	mu         sync.Mutex
	dirCookie  int64
	attrHandle fsdriver.AttrDirHandle

	pipe *pipefs.Pipe
}

// fdHooks implements fdtable.Ops, releasing whatever the cookie holds on
// the descriptor's reference-count and open-count transitions.
type fdHooks struct{ ioc *IOContext }

func (h fdHooks) FDFree(c interface{}) {
	ck := c.(*cookie)
	if ck.node != nil {
		h.ioc.core.Nodes.Put(ck.node)
	}
}

func (h fdHooks) FDClose(c interface{}) error {
	ck := c.(*cookie)
	switch ck.kind {
	case kindPipeRead:
		ck.pipe.CloseReader()
	case kindPipeWrite:
		ck.pipe.CloseWriter()
	case kindAttrDir:
		if ck.attrHandle != nil {
			return ck.attrHandle.Close()
		}
	default:
		if ck.node != nil {
			releaseFlockLocks(ck.node, ck)
		}
	}
	return nil
}

// IOContext is the per-process I/O context: a descriptor table plus the
// working directory and root a relative path resolves against (3. I/O
// context data model).
type IOContext struct {
	core *vfs.Core

	FDs *fdtable.Table

	mu   sync.RWMutex
	root *vnode.Node
	cwd  *vnode.Node

	Team int64
}

// NewIOContext constructs an I/O context bound to core, taking its own
// reference on root and cwd (they may be the same node, e.g. a freshly
// mounted root volume).
func NewIOContext(core *vfs.Core, root, cwd *vnode.Node, team int64, fdTableSize int) *IOContext {
	core.Nodes.Acquire(root)
	core.Nodes.Acquire(cwd)
	return &IOContext{
		core: core,
		root: root,
		cwd:  cwd,
		Team: team,
		FDs:  fdtable.NewTable(fdTableSize, defaultSelectListenerMax),
	}
}

func (c *IOContext) Root() *vnode.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

func (c *IOContext) Cwd() *vnode.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cwd
}

// Shutdown closes every live descriptor and releases the context's own
// references on root and cwd.
func (c *IOContext) Shutdown() {
	for i := 0; i < c.FDs.Len(); i++ {
		_ = c.Close(i)
	}

	c.mu.Lock()
	root, cwd := c.root, c.cwd
	c.root, c.cwd = nil, nil
	c.mu.Unlock()

	if root != nil {
		c.core.Nodes.Put(root)
	}
	if cwd != nil {
		c.core.Nodes.Put(cwd)
	}
}

// Chdir re-points cwd at the resolved directory, releasing the old one.
func (c *IOContext) Chdir(ctx context.Context, path string) error {
	res, err := c.resolveAt(ctx, AtFDCWD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	if res.Node.Type() != vnode.TypeDirectory {
		c.core.Nodes.Put(res.Node)
		return verrno.ErrNotADirectory
	}

	c.mu.Lock()
	old := c.cwd
	c.cwd = res.Node
	c.mu.Unlock()
	c.core.Nodes.Put(old)
	return nil
}

// Chroot re-points root at the resolved directory, releasing the old one.
func (c *IOContext) Chroot(ctx context.Context, path string) error {
	res, err := c.resolveAt(ctx, AtFDCWD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	if res.Node.Type() != vnode.TypeDirectory {
		c.core.Nodes.Put(res.Node)
		return verrno.ErrNotADirectory
	}

	c.mu.Lock()
	old := c.root
	c.root = res.Node
	c.mu.Unlock()
	c.core.Nodes.Put(old)
	return nil
}

// Getcwd reconstructs an absolute path for cwd by walking ".." links and
// matching node ids against each ancestor's directory listing. This does
// not attempt to cross mount boundaries cleanly (a mount's root's ".."
// parent is resolved on the covering filesystem, not the covered one);
// single-volume callers get an exact path.
func (c *IOContext) Getcwd(ctx context.Context) (string, error) {
	c.mu.RLock()
	cur := c.cwd
	root := c.root
	c.mu.RUnlock()

	if cur == root {
		return "/", nil
	}

	var parts []string
	for cur != root {
		vol, err := c.core.VolumeFor(cur)
		if err != nil {
			return "", err
		}
		parent, err := vol.Lookup(ctx, cur, "..")
		if err != nil {
			return "", err
		}

		name, nerr := findNameInDir(ctx, vol, parent, cur.ID())
		if nerr != nil {
			c.core.Nodes.Put(parent)
			return "", nerr
		}
		parts = append(parts, name)

		if parent.ID() == cur.ID() {
			c.core.Nodes.Put(parent)
			break
		}
		c.core.Nodes.Put(cur)
		cur = parent
	}

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

func findNameInDir(ctx context.Context, vol fsdriver.Volume, dir *vnode.Node, target vnode.ID) (string, error) {
	var dirCookie int64
	for {
		entries, next, err := vol.ReadDir(ctx, dir, dirCookie)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if e.Node == target.Node {
				return e.Name, nil
			}
		}
		if len(entries) == 0 || next == dirCookie {
			return "", verrno.ErrNotFound
		}
		dirCookie = next
	}
}

// resolveAt resolves path relative to dirFD (AtFDCWD for cwd), returning
// an owned reference to the result node the caller must release.
func (c *IOContext) resolveAt(ctx context.Context, dirFD int, path string, opts pathres.Options) (pathres.Result, error) {
	start, err := c.startNode(dirFD)
	if err != nil {
		return pathres.Result{}, err
	}
	return c.core.Resolver.Resolve(ctx, c.Root(), start, path, opts)
}

func (c *IOContext) startNode(dirFD int) (*vnode.Node, error) {
	if dirFD == AtFDCWD {
		return c.Cwd(), nil
	}
	d, err := c.FDs.GetFD(dirFD)
	if err != nil {
		return nil, err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.node == nil {
		return nil, verrno.ErrFileError
	}
	if ck.node.Type() != vnode.TypeDirectory {
		return nil, verrno.ErrNotADirectory
	}
	return ck.node, nil
}

// resolveParent splits path into a parent directory and leaf name,
// resolves the parent, and returns an owned reference to it alongside
// the leaf. Directory-shaped operations (mkdir, unlink, create, rename,
// symlink, link) all work in terms of (parent, leaf) rather than the
// leaf's own resolved node.
func (c *IOContext) resolveParent(ctx context.Context, dirFD int, path string) (*vnode.Node, string, error) {
	if path == "" {
		return nil, "", verrno.ErrNotFound
	}
	dirPath, leaf := splitPath(path)
	if leaf == "" || leaf == "." || leaf == ".." {
		return nil, "", verrno.ErrNotAllowed
	}

	if dirPath == "" {
		start, err := c.startNode(dirFD)
		if err != nil {
			return nil, "", err
		}
		c.core.Nodes.Acquire(start)
		return start, leaf, nil
	}

	res, err := c.resolveAt(ctx, dirFD, dirPath, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return nil, "", err
	}
	if res.Node.Type() != vnode.TypeDirectory {
		c.core.Nodes.Put(res.Node)
		return nil, "", verrno.ErrNotADirectory
	}
	return res.Node, leaf, nil
}

func splitPath(path string) (dir, leaf string) {
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

// install wraps n in a descriptor and installs it at the lowest free
// slot, consuming the caller's reference on n (released via fdHooks.FDFree
// on the descriptor's last Put, or immediately here if NewFD fails).
func (c *IOContext) install(n *vnode.Node, flags int, kind descKind) (int, error) {
	ck := &cookie{node: n, kind: kind}
	if kind == kindPipeRead || kind == kindPipeWrite {
		if p, ok := n.Priv().(*pipefs.Pipe); ok {
			ck.pipe = p
		}
	}

	d := fdtable.New(fdHooks{ioc: c}, ck, flags)
	if kind == kindFile || kind == kindDir {
		d.Pos = 0
	}

	fd, err := c.FDs.NewFD(d, 0)
	if err != nil {
		c.core.Nodes.Put(n)
		return -1, err
	}
	return fd, nil
}

func lockListFor(n *vnode.Node, create bool) *advlock.List {
	n.Lock()
	defer n.Unlock()
	if n.AdvisoryLock == nil {
		if !create {
			return nil
		}
		n.AdvisoryLock = advlock.NewList()
	}
	return n.AdvisoryLock.(*advlock.List)
}

// releaseFlockLocks drops every flock()-flavor record a descriptor holds
// on a node, discarding the node's lock list once it is empty (4.F's
// lazily-allocated-record teardown rule).
func releaseFlockLocks(n *vnode.Node, ck *cookie) {
	list := lockListFor(n, false)
	if list == nil {
		return
	}
	list.ReleaseAll(advlock.Owner{Flavor: advlock.Flock, Descriptor: ck})
	if list.Empty() {
		n.Lock()
		n.AdvisoryLock = nil
		n.Unlock()
	}
}

// notifyEntry both dispatches a node-monitor event and keeps the owning
// mount's entry cache (component G) coherent with the change: a create
// populates a positive entry, a remove drops whatever entry was cached
// (positive or negative) rather than leaving it to expire on its own.
func (c *IOContext) notifyEntry(kind nodemon.EventKind, parent vnode.ID, node vnode.NodeID, name string) {
	if m, ok := c.core.Mounts.Lookup(parent.Volume); ok {
		switch kind {
		case nodemon.EntryCreated:
			m.Entries.Insert(parent, name, vnode.ID{Volume: parent.Volume, Node: node})
		case nodemon.EntryRemoved:
			m.Entries.Remove(parent, name)
		}
	}
	c.core.Monitors.Dispatch(nodemon.Event{
		Kind: kind, Volume: parent.Volume, Node: node, FromDir: parent.Node, Name: name,
	})
}

func (c *IOContext) notifyAttr(kind nodemon.EventKind, n vnode.ID, attrName string) {
	c.core.Monitors.Dispatch(nodemon.Event{Kind: kind, Volume: n.Volume, Node: n.Node, AttrName: attrName})
}
