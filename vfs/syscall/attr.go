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
	"io"

	"golang.org/x/sys/unix"

	"github.com/haiku/haiku-sub018/vfs/fdtable"
	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
	"github.com/haiku/haiku-sub018/vfs/verrno"
)

// OpenAttrDir resolves path and opens an iteration handle over its
// extended-attribute names, installing a descriptor for it.
func (c *IOContext) OpenAttrDir(ctx context.Context, dirFD int, path string) (int, error) {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return -1, err
	}
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		c.core.Nodes.Put(res.Node)
		return -1, verr
	}
	attrVol, ok := vol.(fsdriver.AttrOps)
	if !ok {
		c.core.Nodes.Put(res.Node)
		return -1, verrno.ErrUnsupported
	}
	handle, herr := attrVol.OpenAttrDir(ctx, res.Node)
	if herr != nil {
		c.core.Nodes.Put(res.Node)
		return -1, herr
	}

	ck := &cookie{node: res.Node, kind: kindAttrDir, attrHandle: handle}
	d := fdtable.New(fdHooks{ioc: c}, ck, unix.O_RDONLY)
	fd, ferr := c.FDs.NewFD(d, 0)
	if ferr != nil {
		handle.Close()
		c.core.Nodes.Put(res.Node)
		return -1, ferr
	}
	return fd, nil
}

func (c *IOContext) ReadAttrDir(fd int) (name string, ok bool, err error) {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return "", false, err
	}
	defer c.FDs.PutFD(d)
	ck, isAttrDir := d.Cookie.(*cookie)
	if !isAttrDir || ck.kind != kindAttrDir {
		return "", false, verrno.ErrBadValue
	}
	ck.mu.Lock()
	defer ck.mu.Unlock()
	name, ok = ck.attrHandle.Next()
	return name, ok, nil
}

func (c *IOContext) RewindAttrDir(ctx context.Context, fd int) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.kind != kindAttrDir {
		return verrno.ErrBadValue
	}

	vol, verr := c.core.VolumeFor(ck.node)
	if verr != nil {
		return verr
	}
	attrVol, ok := vol.(fsdriver.AttrOps)
	if !ok {
		return verrno.ErrUnsupported
	}

	ck.mu.Lock()
	defer ck.mu.Unlock()
	if err := ck.attrHandle.Close(); err != nil {
		return err
	}
	handle, herr := attrVol.OpenAttrDir(ctx, ck.node)
	if herr != nil {
		return herr
	}
	ck.attrHandle = handle
	return nil
}

func (c *IOContext) ReadAttr(ctx context.Context, dirFD int, path, name string, out io.Writer) (int, error) {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return 0, err
	}
	defer c.core.Nodes.Put(res.Node)
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return 0, verr
	}
	attrVol, ok := vol.(fsdriver.AttrOps)
	if !ok {
		return 0, verrno.ErrUnsupported
	}
	return attrVol.ReadAttr(ctx, res.Node, name, out)
}

func (c *IOContext) WriteAttr(ctx context.Context, dirFD int, path, name string, data []byte) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return verr
	}
	attrVol, ok := vol.(fsdriver.AttrOps)
	if !ok {
		return verrno.ErrUnsupported
	}
	if err := attrVol.WriteAttr(ctx, res.Node, name, data); err != nil {
		return err
	}
	c.notifyAttr(nodemon.AttributeChanged, res.Node.ID(), name)
	return nil
}

func (c *IOContext) RemoveAttr(ctx context.Context, dirFD int, path, name string) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	vol, verr := c.core.VolumeFor(res.Node)
	if verr != nil {
		return verr
	}
	attrVol, ok := vol.(fsdriver.AttrOps)
	if !ok {
		return verrno.ErrUnsupported
	}
	if err := attrVol.RemoveAttr(ctx, res.Node, name); err != nil {
		return err
	}
	c.notifyAttr(nodemon.AttributeRemoved, res.Node.ID(), name)
	return nil
}
