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

// Package vnode implements the node table (component A) and the
// unused-vnode LRU (component C): the hash-indexed registry of live nodes
// keyed by (volume-id, node-id), their reference counts and status bits,
// and the hot/cold reclamation lists that govern which idle nodes are
// freed under memory pressure.
package vnode

import "fmt"

// VolumeID identifies a mounted volume. It is assigned by the mount table
// (component B) when a filesystem is mounted.
type VolumeID uint64

// NodeID identifies a node within a volume. Its meaning is owned by the
// filesystem driver that backs the volume; the core treats it as opaque.
type NodeID uint64

// ID is a node's identity: (volume-id, node-id), immutable after creation
// and unique across the node table for as long as the node is live.
type ID struct {
	Volume VolumeID
	Node   NodeID
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Volume, id.Node)
}
