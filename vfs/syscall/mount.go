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

	"github.com/haiku/haiku-sub018/vfs/mount"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// Mount resolves path to a covered node and binds device to it via
// driverFactory/loaderFactory, per the mount table's layer-stacking
// Mount call. path == "" mounts at the context's root with no covered
// node (the initial root mount).
func (c *IOContext) Mount(
	ctx context.Context,
	dirFD int,
	path string,
	device string,
	fsName string,
	driverFactory func(layerName string) (mount.Driver, error),
	loaderFactory func(m *mount.Mount) mount.Loader,
	flags uint32,
	args string,
) (*mount.Mount, error) {
	var covered *vnode.Node
	if path != "" {
		res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
		if err != nil {
			return nil, err
		}
		covered = res.Node
		defer c.core.Nodes.Put(covered)
	}

	m, err := c.core.Mounts.Mount(ctx, c.core.Nodes, covered, device, fsName, driverFactory, loaderFactory, flags, args)
	if err != nil {
		return nil, err
	}
	c.core.Monitors.Dispatch(nodemon.Event{Kind: nodemon.Mounted, Volume: m.ID})
	return m, nil
}

func (c *IOContext) Unmount(ctx context.Context, id mount.ID, force bool) error {
	if err := c.core.Mounts.Unmount(ctx, id, force); err != nil {
		return err
	}
	c.core.Monitors.Dispatch(nodemon.Event{Kind: nodemon.Unmounted, Volume: id})
	return nil
}

func (c *IOContext) Sync(ctx context.Context, id mount.ID) error {
	return c.core.Mounts.Sync(ctx, id)
}
