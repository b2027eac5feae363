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

	"golang.org/x/sys/unix"

	"github.com/haiku/haiku-sub018/vfs/fdtable"
	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pipefs"
	"github.com/haiku/haiku-sub018/vfs/verrno"
)

// Pipe creates an anonymous unnamed pipe, returning a read-end and
// write-end descriptor backed by the same pipefs.Pipe; neither end is
// attached to a vnode.
func (c *IOContext) Pipe() (readFD, writeFD int, err error) {
	p := pipefs.New(pipefs.DefaultCapacity)
	if err := p.OpenReader(context.Background(), true); err != nil {
		return -1, -1, err
	}
	if err := p.OpenWriter(context.Background(), true); err != nil {
		return -1, -1, err
	}

	rd := fdtable.New(fdHooks{ioc: c}, &cookie{kind: kindPipeRead, pipe: p}, unix.O_RDONLY)
	wd := fdtable.New(fdHooks{ioc: c}, &cookie{kind: kindPipeWrite, pipe: p}, unix.O_WRONLY)

	rfd, rerr := c.FDs.NewFD(rd, 0)
	if rerr != nil {
		return -1, -1, rerr
	}
	wfd, werr := c.FDs.NewFD(wd, 0)
	if werr != nil {
		c.FDs.RemoveFD(rfd)
		return -1, -1, werr
	}
	return rfd, wfd, nil
}

// Mkfifo creates a named FIFO: mode's S_IFMT bits request a FIFO-typed
// node from the owning volume's generic Create hook (standard mknod
// convention).
func (c *IOContext) Mkfifo(ctx context.Context, dirFD int, path string, mode uint32) error {
	parent, leaf, err := c.resolveParent(ctx, dirFD, path)
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(parent)

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return verr
	}
	n, cerr := vol.Create(ctx, parent, leaf, mode|unix.S_IFIFO)
	if cerr != nil {
		return cerr
	}
	c.core.Nodes.Put(n)
	c.notifyEntry(nodemon.EntryCreated, parent.ID(), n.ID().Node, leaf)
	return nil
}

// Select registers notifier for the given events on fd: pipes route
// straight to pipefs.Pipe.SetNotifiers, other node kinds route through
// fsdriver.SelectOps when the owning volume implements it.
func (c *IOContext) Select(ctx context.Context, fd int, notifier pipefs.Notifier, events pipefs.SelectEvent) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok {
		return verrno.ErrFileError
	}

	switch ck.kind {
	case kindPipeRead:
		ck.pipe.SetNotifiers(notifier, nil)
		return nil
	case kindPipeWrite:
		ck.pipe.SetNotifiers(nil, notifier)
		return nil
	default:
		if ck.node == nil {
			return verrno.ErrUnsupported
		}
		vol, verr := c.core.VolumeFor(ck.node)
		if verr != nil {
			return verr
		}
		selVol, ok := vol.(fsdriver.SelectOps)
		if !ok {
			return verrno.ErrUnsupported
		}
		_, err := selVol.Select(ctx, ck.node, uint32(events))
		return err
	}
}

func (c *IOContext) Deselect(ctx context.Context, fd int, events pipefs.SelectEvent) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok {
		return verrno.ErrFileError
	}
	if ck.kind == kindPipeRead || ck.kind == kindPipeWrite {
		// pipefs has no explicit deselect; a future Select call simply
		// replaces the registered notifier.
		return nil
	}
	if ck.node == nil {
		return verrno.ErrUnsupported
	}
	vol, verr := c.core.VolumeFor(ck.node)
	if verr != nil {
		return verr
	}
	selVol, ok := vol.(fsdriver.SelectOps)
	if !ok {
		return verrno.ErrUnsupported
	}
	return selVol.Deselect(ctx, ck.node, uint32(events))
}
