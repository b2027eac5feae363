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
	"errors"

	"golang.org/x/sys/unix"

	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
	"github.com/haiku/haiku-sub018/vfs/pipefs"
	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// Open resolves path (relative to dirFD) and installs a descriptor for
// it, creating a new file when O_CREAT is set and the leaf is missing.
func (c *IOContext) Open(ctx context.Context, dirFD int, path string, flags int, mode uint32) (int, error) {
	traverse := flags&unix.O_NOFOLLOW == 0
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: traverse})
	if err == nil {
		return c.openExisting(ctx, res.Node, flags)
	}
	if !errors.Is(err, verrno.ErrNotFound) || flags&unix.O_CREAT == 0 {
		return -1, err
	}

	parent, leaf, perr := c.resolveParent(ctx, dirFD, path)
	if perr != nil {
		return -1, perr
	}
	defer c.core.Nodes.Put(parent)

	vol, verr := c.core.VolumeFor(parent)
	if verr != nil {
		return -1, verr
	}
	n, cerr := vol.Create(ctx, parent, leaf, mode)
	if cerr != nil {
		return -1, cerr
	}
	c.notifyEntry(nodemon.EntryCreated, parent.ID(), n.ID().Node, leaf)
	return c.install(n, flags, kindFile)
}

func (c *IOContext) openExisting(ctx context.Context, n *vnode.Node, flags int) (int, error) {
	if flags&unix.O_CREAT != 0 && flags&unix.O_EXCL != 0 {
		c.core.Nodes.Put(n)
		return -1, verrno.ErrNotAllowed
	}

	if n.Type() == vnode.TypeFIFO {
		return c.openFIFO(ctx, n, flags)
	}

	if n.Type() == vnode.TypeDirectory {
		if flags&(unix.O_WRONLY|unix.O_RDWR) != 0 {
			c.core.Nodes.Put(n)
			return -1, verrno.ErrIsADirectory
		}
		return c.install(n, flags, kindDir)
	}

	if flags&unix.O_TRUNC != 0 {
		if vol, verr := c.core.VolumeFor(n); verr == nil {
			_ = vol.Truncate(ctx, n, 0)
		}
	}
	return c.install(n, flags, kindFile)
}

func (c *IOContext) openFIFO(ctx context.Context, n *vnode.Node, flags int) (int, error) {
	pipe, ok := n.Priv().(*pipefs.Pipe)
	if !ok {
		c.core.Nodes.Put(n)
		return -1, verrno.ErrUnsupported
	}
	nonBlocking := flags&unix.O_NONBLOCK != 0

	var kind descKind
	var err error
	switch {
	case flags&unix.O_WRONLY != 0:
		kind = kindPipeWrite
		err = pipe.OpenWriter(ctx, nonBlocking)
	case flags&unix.O_RDWR != 0:
		c.core.Nodes.Put(n)
		return -1, verrno.ErrNotAllowed
	default:
		kind = kindPipeRead
		err = pipe.OpenReader(ctx, nonBlocking)
	}
	if err != nil {
		c.core.Nodes.Put(n)
		return -1, err
	}
	return c.install(n, flags, kind)
}

// Close runs the descriptor's close hook (releasing pipe ends, flock
// records, or attribute-directory handles) then drops its table slot.
func (c *IOContext) Close(fd int) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	closeErr := c.FDs.CloseFD(d)
	c.FDs.PutFD(d)
	if _, rerr := c.FDs.RemoveFD(fd); rerr != nil {
		return rerr
	}
	return closeErr
}

func (c *IOContext) Read(ctx context.Context, fd int, buf []byte) (int, error) {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return 0, err
	}
	defer c.FDs.PutFD(d)

	ck, ok := d.Cookie.(*cookie)
	if !ok {
		return 0, verrno.ErrFileError
	}

	switch ck.kind {
	case kindPipeRead:
		return ck.pipe.Read(ctx, buf, d.OpenMode&unix.O_NONBLOCK != 0)
	case kindFile:
		vol, verr := c.core.VolumeFor(ck.node)
		if verr != nil {
			return 0, verr
		}
		n, rerr := vol.Read(ctx, ck.node, buf, d.Pos)
		if rerr == nil {
			d.Pos += int64(n)
		}
		return n, rerr
	default:
		return 0, verrno.ErrFileError
	}
}

func (c *IOContext) Write(ctx context.Context, fd int, buf []byte) (int, error) {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return 0, err
	}
	defer c.FDs.PutFD(d)

	ck, ok := d.Cookie.(*cookie)
	if !ok {
		return 0, verrno.ErrFileError
	}

	switch ck.kind {
	case kindPipeWrite:
		return ck.pipe.Write(ctx, buf, d.OpenMode&unix.O_NONBLOCK != 0)
	case kindFile:
		vol, verr := c.core.VolumeFor(ck.node)
		if verr != nil {
			return 0, verr
		}
		pos := d.Pos
		if d.OpenMode&unix.O_APPEND != 0 {
			st, serr := vol.ReadStat(ctx, ck.node)
			if serr != nil {
				return 0, serr
			}
			pos = st.Size
		}
		n, werr := vol.Write(ctx, ck.node, buf, pos)
		if werr == nil {
			d.Pos = pos + int64(n)
		}
		return n, werr
	default:
		return 0, verrno.ErrFileError
	}
}

// Seek relocates a seekable descriptor's position; pipes and attribute
// directories (Pos == -1) are not seekable.
func (c *IOContext) Seek(ctx context.Context, fd int, offset int64, whence int) (int64, error) {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return 0, err
	}
	defer c.FDs.PutFD(d)

	if d.Pos < 0 {
		return 0, verrno.ErrUnsupported
	}

	var base int64
	switch whence {
	case unix.SEEK_SET:
		base = 0
	case unix.SEEK_CUR:
		base = d.Pos
	case unix.SEEK_END:
		ck, ok := d.Cookie.(*cookie)
		if !ok {
			return 0, verrno.ErrFileError
		}
		vol, verr := c.core.VolumeFor(ck.node)
		if verr != nil {
			return 0, verr
		}
		st, serr := vol.ReadStat(ctx, ck.node)
		if serr != nil {
			return 0, serr
		}
		base = st.Size
	default:
		return 0, verrno.ErrBadValue
	}

	newPos := base + offset
	if newPos < 0 {
		return 0, verrno.ErrBadValue
	}
	d.Pos = newPos
	return newPos, nil
}

func (c *IOContext) Truncate(ctx context.Context, fd int, size int64) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.kind != kindFile {
		return verrno.ErrFileError
	}
	vol, verr := c.core.VolumeFor(ck.node)
	if verr != nil {
		return verr
	}
	return vol.Truncate(ctx, ck.node, size)
}

func (c *IOContext) Fsync(ctx context.Context, fd int) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.node == nil {
		return verrno.ErrFileError
	}
	vol, verr := c.core.VolumeFor(ck.node)
	if verr != nil {
		return verr
	}
	return vol.Fsync(ctx, ck.node)
}

func (c *IOContext) ReadStatPath(ctx context.Context, dirFD int, path string, followLink bool) (fsdriver.Stat, error) {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: followLink})
	if err != nil {
		return fsdriver.Stat{}, err
	}
	defer c.core.Nodes.Put(res.Node)
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return fsdriver.Stat{}, verr
	}
	return vol.ReadStat(ctx, res.Node)
}

func (c *IOContext) ReadStatFD(ctx context.Context, fd int) (fsdriver.Stat, error) {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return fsdriver.Stat{}, err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.node == nil {
		return fsdriver.Stat{}, verrno.ErrFileError
	}
	vol, verr := c.core.VolumeFor(ck.node)
	if verr != nil {
		return fsdriver.Stat{}, verr
	}
	return vol.ReadStat(ctx, ck.node)
}

func (c *IOContext) WriteStatPath(ctx context.Context, dirFD int, path string, stat fsdriver.Stat, mask fsdriver.StatMask, followLink bool) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: followLink})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return verr
	}
	if err := vol.WriteStat(ctx, res.Node, stat, mask); err != nil {
		return err
	}
	c.notifyAttr(nodemon.StatChanged, res.Node.ID(), "")
	return nil
}

func (c *IOContext) Access(ctx context.Context, dirFD int, path string, mode uint32) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return verr
	}
	return vol.Access(ctx, res.Node, mode)
}
