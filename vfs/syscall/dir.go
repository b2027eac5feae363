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

package syscall

import (
	"context"

	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

func (c *IOContext) Mkdir(ctx context.Context, dirFD int, path string, mode uint32) error {
	parent, leaf, err := c.resolveParent(ctx, dirFD, path)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(parent)

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return verr
	}
	n, cerr := vol.MkDir(ctx, parent, leaf, mode)
	if cerr != nil {
		return cerr
	}
	c.core.Nodes.Put(n)
	c.notifyEntry(nodemon.EntryCreated, parent.ID(), n.ID().Node, leaf)
	return nil
}

func (c *IOContext) Rmdir(ctx context.Context, dirFD int, path string) error {
	parent, leaf, err := c.resolveParent(ctx, dirFD, path)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(parent)

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return verr
	}
	if err := vol.RmDir(ctx, parent, leaf); err != nil {
		return err
	}
	c.notifyEntry(nodemon.EntryRemoved, parent.ID(), 0, leaf)
	return nil
}

func (c *IOContext) Unlink(ctx context.Context, dirFD int, path string) error {
	parent, leaf, err := c.resolveParent(ctx, dirFD, path)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(parent)

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return verr
	}
	if err := vol.Remove(ctx, parent, leaf); err != nil {
		return err
	}
	c.notifyEntry(nodemon.EntryRemoved, parent.ID(), 0, leaf)
	return nil
}

// Rename requires both endpoints to live on the same volume: a real
// cross-device rename is the caller's job to emulate via copy+unlink.
func (c *IOContext) Rename(ctx context.Context, oldDirFD int, oldPath string, newDirFD int, newPath string) error {
	oldParent, oldLeaf, err := c.resolveParent(ctx, oldDirFD, oldPath)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(oldParent)

	newParent, newLeaf, err := c.resolveParent(ctx, newDirFD, newPath)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(newParent)

	if oldParent.ID().Volume != newParent.ID().Volume {
		return verrno.ErrCrossDeviceLink
	}

	vol, verr := c.core.VolumeFor(oldParent)
	if verr != nil {
		return verr
	}
	if err := vol.Rename(ctx, oldParent, oldLeaf, newParent, newLeaf); err != nil {
		return err
	}
	if m, ok := c.core.Mounts.Lookup(oldParent.ID().Volume); ok {
		m.Entries.Remove(oldParent.ID(), oldLeaf)
		m.Entries.Remove(newParent.ID(), newLeaf)
	}
	c.core.Monitors.Dispatch(nodemon.Event{
		Kind: nodemon.EntryMoved, Volume: oldParent.ID().Volume,
		FromDir: oldParent.ID().Node, ToDir: newParent.ID().Node, Name: newLeaf,
	})
	return nil
}

func (c *IOContext) Symlink(ctx context.Context, dirFD int, path, target string) error {
	parent, leaf, err := c.resolveParent(ctx, dirFD, path)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(parent)

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return verr
	}
	n, cerr := vol.CreateSymlink(ctx, parent, leaf, target)
	if cerr != nil {
		return cerr
	}
	c.core.Nodes.Put(n)
	c.notifyEntry(nodemon.EntryCreated, parent.ID(), n.ID().Node, leaf)
	return nil
}

func (c *IOContext) ReadLink(ctx context.Context, dirFD int, path string) (string, error) {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{})
	if err != nil {
		return "", err
	}
	defer c.core.Nodes.Put(res.Node)
	if res.Node.Type() != vnode.TypeSymlink {
		return "", verrno.ErrBadValue
	}
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return "", verr
	}
	return vol.ReadLink(ctx, res.Node)
}

func (c *IOContext) Link(ctx context.Context, targetDirFD int, targetPath string, dirFD int, path string) error {
	targetRes, err := c.resolveAt(ctx, targetDirFD, targetPath, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(targetRes.Node)

	parent, leaf, err := c.resolveParent(ctx, dirFD, path)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(parent)

	if targetRes.Node.ID().Volume != parent.ID().Volume {
		return verrno.ErrCrossDeviceLink
	}

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return verr
	}
	if err := vol.CreateLink(ctx, parent, leaf, targetRes.Node); err != nil {
		return err
	}
	c.notifyEntry(nodemon.EntryCreated, parent.ID(), targetRes.Node.ID().Node, leaf)
	return nil
}

func (c *IOContext) ReadDir(ctx context.Context, fd int) ([]fsdriver.DirEntry, error) {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return nil, err
	}
	defer c.FDs.PutFD(d)

	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.kind != kindDir {
		return nil, verrno.ErrNotADirectory
	}
	vol, verr := c.core.VolumeFor(ck.node)
	if verr != nil {
		return nil, verr
	}

	ck.mu.Lock()
	defer ck.mu.Unlock()
	entries, next, rerr := vol.ReadDir(ctx, ck.node, ck.dirCookie)
	if rerr != nil {
		return nil, rerr
	}
	ck.dirCookie = next
	return entries, nil
}

func (c *IOContext) RewindDir(fd int) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)

	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.kind != kindDir {
		return verrno.ErrNotADirectory
	}
	ck.mu.Lock()
	ck.dirCookie = 0
	ck.mu.Unlock()
	return nil
}
