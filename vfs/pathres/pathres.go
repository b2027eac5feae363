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

// Package pathres implements the path resolver (component D): walking a
// textual path to a node, resolving ".", "..", symlinks, and mount-point
// crossings, with symlink-depth and cycle bounds.
package pathres

import (
	"context"
	"strings"

	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// MaxSymlinkDepth is the recursion ceiling from spec.md §4.D.
const MaxSymlinkDepth = 16

// Lookup is the filesystem-driver callback the resolver uses to find a
// named child of a directory node. The driver is responsible for either
// acquiring or publishing the returned node, per 4.D step 4.
type Lookup func(ctx context.Context, dir *vnode.Node, name string) (*vnode.Node, error)

// ReadLink reads a symlink's target text.
type ReadLink func(ctx context.Context, link *vnode.Node) (string, error)

// Driver bundles the two filesystem callbacks the resolver needs. A real
// deployment obtains these per-node from vfs/fsdriver's operation vector;
// the resolver is kept decoupled from that richer interface so it can be
// tested with fakes, mirroring the teacher's habit (fs/dir.go) of taking
// narrow function-shaped dependencies for lookups.
type Driver struct {
	Lookup   Lookup
	ReadLink ReadLink
}

// Options controls a single resolution.
type Options struct {
	// TraverseFinalLink, if true, follows a symlink in the final path
	// component instead of returning it.
	TraverseFinalLink bool
}

// Result carries the resolver's output, including the leaf-name-out
// parameter for create-if-missing callers (4.D step 7).
type Result struct {
	Node *vnode.Node
	// Parent and Leaf are set when resolution could not proceed past a
	// missing final component, so the caller can create it.
	Parent *vnode.Node
	Leaf   string
}

// Resolver walks paths to nodes. It needs to know the caller's I/O
// context root (for "/" and ".." bounding) in order to implement the
// "prison break" suppression.
type Resolver struct {
	driver Driver
}

func New(driver Driver) *Resolver {
	return &Resolver{driver: driver}
}

// Resolve implements the seven-step algorithm of spec.md §4.D.
func (r *Resolver) Resolve(
	ctx context.Context,
	root *vnode.Node,
	start *vnode.Node,
	path string,
	opts Options,
) (Result, error) {
	if path == "" {
		return Result{}, verrno.ErrNotFound
	}

	cur := start
	forceDir := strings.HasSuffix(path, "/")
	if strings.HasPrefix(path, "/") {
		cur = root
	}

	components, err := splitComponents(path)
	if err != nil {
		return Result{}, err
	}

	return r.resolveComponents(ctx, root, cur, components, forceDir, opts, 0)
}

func splitComponents(path string) ([]string, error) {
	var out []string
	for _, c := range strings.Split(path, "/") {
		if c == "" {
			continue
		}
		if len(c) > maxFileNameLen {
			return nil, verrno.ErrNameTooLong
		}
		out = append(out, c)
	}
	return out, nil
}

const maxFileNameLen = 255

func (r *Resolver) resolveComponents(
	ctx context.Context,
	root, cur *vnode.Node,
	components []string,
	forceDir bool,
	opts Options,
	linkDepth int,
) (Result, error) {
	for i, name := range components {
		last := i == len(components)-1
		traverseLink := opts.TraverseFinalLink || !last || forceDir

		if name == ".." {
			cur.Lock()
			isRoot := cur == root
			covers := cur.Covers()
			cur.Unlock()
			if isRoot {
				// ".." at the context root is a no-op (prison break
				// suppression): stay put rather than crossing the mount.
				continue
			}
			if covers != nil && covers == root {
				// cur is the mount root covering the context root: the
				// jump back across the mount is suppressed as well.
				continue
			}
			if covers != nil {
				// Step down to the covered node *before* asking the FS
				// for the parent, so ".." lands on the real parent of
				// the covered mount point, not inside the new mount.
				cur = covers
			}
		} else if name == "." {
			continue
		} else {
			cur.Lock()
			coveredBy := cur.CoveredBy()
			cur.Unlock()
			if coveredBy != nil {
				// cur is a mount point hidden under a covering mount
				// root; step onto the covering root before asking it
				// for the next component.
				cur = coveredBy
			}
		}

		cur.Lock()
		isDir := cur.Type() == vnode.TypeDirectory
		cur.Unlock()
		if !isDir {
			return Result{}, verrno.ErrNotADirectory
		}

		child, err := r.driver.Lookup(ctx, cur, name)
		if err != nil {
			if last {
				return Result{Parent: cur, Leaf: name}, err
			}
			return Result{}, err
		}

		child.Lock()
		childType := child.Type()
		child.Unlock()

		if childType == vnode.TypeSymlink && (traverseLink || !last) && name != "." && name != ".." {
			if linkDepth+1 > MaxSymlinkDepth {
				return Result{}, verrno.ErrLinkLimit
			}
			target, err := r.driver.ReadLink(ctx, child)
			if err != nil {
				return Result{}, err
			}

			var linkStart *vnode.Node = cur
			if strings.HasPrefix(target, "/") {
				linkStart = root
			}
			rest, err := splitComponents(target)
			if err != nil {
				return Result{}, err
			}
			remaining := append(append([]string{}, rest...), components[i+1:]...)
			return r.resolveComponents(ctx, root, linkStart, remaining, forceDir, opts, linkDepth+1)
		}

		if childType == vnode.TypeDirectory {
			child.Lock()
			coveredBy := child.CoveredBy()
			child.Unlock()
			if coveredBy != nil {
				// The child we just looked up is itself a mount point;
				// present the covering mount's root instead of the
				// hidden node underneath it.
				child = coveredBy
			}
		}

		cur = child
	}

	return Result{Node: cur}, nil
}
