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

// Package vfs wires the core's components (component J: locking and
// lifecycle glue) into one explicit, non-singleton context: the node
// table, mount table, path resolver, and node-monitor service, plus
// supervised background work (the unused-vnode LRU's low-resource
// prober).
//
// LOCK ORDERING
//
// Outermost to innermost:
//
//  1. mount-op recursive lock (vfs/mount's OpToken), held only around
//     mount/unmount.
//  2. mount table's reader-writer lock.
//  3. node table's reader-writer lock.
//  4. I/O context's reader-writer lock (vfs/fdtable.Table).
//  5. per-node spin-lock (vnode.Node.Lock/Unlock).
//  6. per-mount mutex (the mount's node list).
//  7. unused-LRU spin-lock.
//  8. advisory-locking semaphore (vfs/advlock.List), acquired only after
//     releasing all of the above.
//
// Many paths deliberately drop the node-table lock before calling into a
// filesystem driver to avoid reentrancy deadlock; re-validation by a
// fresh hash lookup of the same identity is required on re-entry — see
// vnode.Table.Get's busy-retry loop for the canonical example.
package vfs

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/haiku/haiku-sub018/logger"
	"github.com/haiku/haiku-sub018/vfs/advlock"
	"github.com/haiku/haiku-sub018/vfs/entrycache"
	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/mount"
	"github.com/haiku/haiku-sub018/vfs/nodemon"
	"github.com/haiku/haiku-sub018/vfs/pathres"
	"github.com/haiku/haiku-sub018/vfs/pipefs"
	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// tracer records span data for path-resolution's driver round trips. It
// is the package-level tracer OTel's own idiom favors: a no-op until
// metrics.SetupTracing installs a real TracerProvider, real spans after.
var tracer = otel.Tracer("vfs")

// Config carries every tunable a Core needs at construction. Values of
// zero fall back to each component's own default, mirroring the
// teacher's ServerConfig-with-sane-zero-values convention.
type Config struct {
	LRU                      vnode.LRUConfig
	EntryCacheGenerations    int
	EntryCacheGenerationSize int
	PipeCapacityBytes        int
	ListenerMax              int
	LowResourceProbeInterval time.Duration
	Logging                  logger.Config
}

// LowResourceChecker reports whether the system is currently under
// memory pressure, driving the unused-vnode LRU's reclaim probe.
type LowResourceChecker = vnode.LowResourceChecker

// Metrics is the ambient-stack collaborator Core reports component
// activity to; see the metrics package for the concrete OTel-backed
// implementation. A nil Metrics is replaced with a no-op on every
// sub-component (the node table, advisory-lock manager, pipe engine, and
// entry cache each fall back independently).
type Metrics interface {
	vnode.Metrics
	advlock.Metrics
	pipefs.Metrics
	entrycache.Metrics
}

// Core is the top-level, explicitly-constructed VFS instance. No part of
// it is a package-level singleton: every entry point takes a *Core (or an
// I/O context bound to one), so multiple independent instances can
// coexist (e.g. in tests).
type Core struct {
	Nodes    *vnode.Table
	Mounts   *mount.Table
	Resolver *pathres.Resolver
	Monitors *nodemon.Table

	cancelBackground context.CancelFunc
	background       *errgroup.Group
}

// New constructs a Core with empty node and mount tables, wiring the
// mount table in as the node table's volume resolver and the path
// resolver's lookup/readlink callbacks as dispatch through whichever
// mount owns the node in question.
func New(cfg Config, metrics Metrics) *Core {
	if cfg.Logging.Severity == logger.Unset && cfg.Logging.Rotate.Filename == "" {
		cfg.Logging = logger.DefaultConfig()
	}
	logger.SetGlobal(logger.New(cfg.Logging))

	mounts := mount.NewTable()
	mounts.SetEntryCacheShape(cfg.EntryCacheGenerations, cfg.EntryCacheGenerationSize)
	pipefs.SetDefaultCapacity(cfg.PipeCapacityBytes)

	var vnodeMetrics vnode.Metrics
	if metrics != nil {
		vnodeMetrics = metrics
		advlock.SetMetrics(metrics)
		pipefs.SetMetrics(metrics)
		entrycache.SetMetrics(metrics)
	}

	lruCfg := cfg.LRU
	if lruCfg.HotCapacity == 0 && lruCfg.SoftCeiling == 0 {
		lruCfg = vnode.DefaultLRUConfig()
	}

	nodes := vnode.NewTable(mounts, lruCfg, vnodeMetrics)
	monitors := nodemon.NewTable(cfg.ListenerMax)
	logger.Infof("vfs: core constructed (lru soft-ceiling=%d, entry-cache generations=%d)", lruCfg.SoftCeiling, cfg.EntryCacheGenerations)

	c := &Core{
		Nodes:    nodes,
		Mounts:   mounts,
		Monitors: monitors,
	}
	c.Resolver = pathres.New(pathres.Driver{
		Lookup:   c.lookupChild,
		ReadLink: c.readLink,
	})
	return c
}

// VolumeFor returns the fsdriver.Volume operation vector for whichever
// mount owns n, by type-asserting the mount table's narrow mount.Driver
// handle. A concrete filesystem driver is expected to implement both
// mount.Driver (what the mount table drives directly) and fsdriver.Volume
// (the richer per-node vector); syscall handlers use this to reach the
// latter without the mount package importing fsdriver itself.
func (c *Core) VolumeFor(n *vnode.Node) (fsdriver.Volume, error) {
	m, ok := c.Mounts.Lookup(n.ID().Volume)
	if !ok {
		return nil, verrno.ErrNotFound
	}
	vol, ok := m.Driver.(fsdriver.Volume)
	if !ok {
		return nil, verrno.ErrUnsupported
	}
	return vol, nil
}

// lookupChild resolves name under dir, consulting the owning mount's
// entry cache first (component G) so a hot directory doesn't round-trip
// through the driver's own Lookup hook on every path-resolution step.
func (c *Core) lookupChild(ctx context.Context, dir *vnode.Node, name string) (*vnode.Node, error) {
	ctx, span := tracer.Start(ctx, "vfs.lookupChild")
	defer span.End()

	m, ok := c.Mounts.Lookup(dir.ID().Volume)
	if !ok {
		return nil, verrno.ErrNotFound
	}

	if childID, missing, hit := m.Entries.Lookup(dir.ID(), name); hit {
		if missing {
			return nil, verrno.ErrNotFound
		}
		if n, err := c.Nodes.Get(ctx, childID, true); err == nil {
			return n, nil
		}
		// Stale cache entry (the node no longer loads); fall through to
		// the driver and let the miss path repopulate it below.
	}

	vol, ok := m.Driver.(fsdriver.Volume)
	if !ok {
		return nil, verrno.ErrUnsupported
	}
	child, err := vol.Lookup(ctx, dir, name)
	if err != nil {
		if errors.Is(err, verrno.ErrNotFound) {
			m.Entries.InsertMissing(dir.ID(), name)
		}
		return nil, err
	}
	m.Entries.Insert(dir.ID(), name, child.ID())
	return child, nil
}

func (c *Core) readLink(ctx context.Context, link *vnode.Node) (string, error) {
	vol, err := c.VolumeFor(link)
	if err != nil {
		return "", err
	}
	return vol.ReadLink(ctx, link)
}

// SetLowResourceChecker wires the unused-vnode LRU's reclaim probe to an
// external memory-pressure signal (the host OS's free-memory reading, in
// a full deployment).
func (c *Core) SetLowResourceChecker(f LowResourceChecker) {
	c.Nodes.LRU().SetLowResourceChecker(f)
}

// StartBackground launches the core's supervised background loops: the
// unused-vnode LRU's periodic low-resource probe, in case nothing else
// happens to be putting/publishing nodes to trigger its inline check.
// Call Stop to tear it down.
func (c *Core) StartBackground(ctx context.Context, probeInterval time.Duration) {
	if probeInterval <= 0 {
		probeInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				c.Nodes.LRU().Probe()
			}
		}
	})

	c.cancelBackground = cancel
	c.background = g
}

// Stop cancels and waits for the core's background loops.
func (c *Core) Stop() error {
	if c.cancelBackground == nil {
		return nil
	}
	c.cancelBackground()
	err := c.background.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
