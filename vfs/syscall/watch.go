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

	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
)

// WatchNode registers listener for mask's events on the node at path,
// keyed by identity. Registrations are counted against this context so
// one I/O context can't exhaust the monitor table's listener bound.
func (c *IOContext) WatchNode(ctx context.Context, dirFD int, path string, mask nodemon.EventKind, identity nodemon.Identity, listener nodemon.Listener) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	return c.core.Monitors.WatchNode(c, res.Node.ID(), mask, identity, listener)
}

func (c *IOContext) UnwatchNode(ctx context.Context, dirFD int, path string, identity nodemon.Identity) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	c.core.Monitors.UnwatchNode(c, res.Node.ID(), identity)
	return nil
}

func (c *IOContext) WatchVolume(ctx context.Context, dirFD int, path string, mask nodemon.EventKind, identity nodemon.Identity, listener nodemon.Listener) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	return c.core.Monitors.WatchVolume(c, res.Node.ID().Volume, mask, identity, listener)
}

func (c *IOContext) UnwatchVolume(ctx context.Context, dirFD int, path string, identity nodemon.Identity) error {
	res, err := c.resolveAt(ctx, dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	c.core.Monitors.UnwatchVolume(c, res.Node.ID().Volume, identity)
	return nil
}

// DispatchQueryUpdate pushes a live-query entry change straight to sink,
// bypassing the listener tables — the fast path used by index-directory
// query results.
func (c *IOContext) DispatchQueryUpdate(sink nodemon.QuerySink, identity nodemon.Identity, dirFD int, path string, entry string, added bool) error {
	res, err := c.resolveAt(context.Background(), dirFD, path, pathres.Options{TraverseFinalLink: true})
	if err != nil {
		return err
	}
	defer c.core.Nodes.Put(res.Node)
	nodemon.DispatchQuery(sink, identity, res.Node.ID().Volume, entry, added)
	return nil
}
