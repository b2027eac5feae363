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

// Package nodemon implements the node-monitor service (component I):
// per-node and per-volume listener tables, event dispatch across up to
// four interested sub-lists, and a query-listener fast path used for
// live-query result pushes.
package nodemon

import (
	"sync"

	"github.com/google/uuid"

	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// EventKind is the bitmask vocabulary of spec.md §4.I.
type EventKind uint32

const (
	EntryCreated EventKind = 1 << iota
	EntryRemoved
	EntryMoved
	StatChanged
	AttributeCreated
	AttributeRemoved
	AttributeChanged
	Mounted
	Unmounted
)

// Identity is a listener's user-land address: a (port, token) pair. Two
// Watch calls with the same Identity replace/augment the existing mask
// rather than registering a second listener.
type Identity struct {
	Port  uuid.UUID
	Token uuid.UUID
}

// Event is the single message dispatch builds and delivers to every
// interested listener.
type Event struct {
	Kind     EventKind
	Volume   vnode.VolumeID
	Node     vnode.NodeID
	FromDir  vnode.NodeID
	ToDir    vnode.NodeID
	Name     string
	StatMask uint32
	AttrName string
}

// Listener receives dispatched events. EventOccurred is called once per
// matching event; AllListenersNotified is called once after every
// interested listener for a given dispatch has been informed, mirroring
// the two-phase delivery of spec.md §4.I.
type Listener interface {
	EventOccurred(ev Event)
	AllListenersNotified()
}

type registration struct {
	identity Identity
	mask     EventKind
	listener Listener
}

// Table is the node-monitor service. One Table is shared process-wide (or
// per core instance); per-node and per-volume listener sets are separate
// maps so a dispatch only has to look up the up-to-four sub-lists spec.md
// §4.I names instead of scanning every registration.
type Table struct {
	mu sync.RWMutex

	perNode   map[vnode.ID][]*registration
	perVolume map[vnode.VolumeID][]*registration

	// listenerCounts tracks how many registrations a given I/O context
	// (opaque key) currently holds, to enforce the per-context bound.
	listenerCounts map[interface{}]int
	listenerMax    int
}

// DefaultListenerMax is the per-I/O-context listener bound applied when a
// caller doesn't supply its own.
const DefaultListenerMax = 4096

func NewTable(listenerMax int) *Table {
	if listenerMax <= 0 {
		listenerMax = DefaultListenerMax
	}
	return &Table{
		perNode:        make(map[vnode.ID][]*registration),
		perVolume:      make(map[vnode.VolumeID][]*registration),
		listenerCounts: make(map[interface{}]int),
		listenerMax:    listenerMax,
	}
}

// WatchNode registers (or augments) interest in one node's events.
func (t *Table) WatchNode(ioContext interface{}, id vnode.ID, mask EventKind, identity Identity, listener Listener) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.perNode[id] {
		if r.identity == identity {
			r.mask |= mask
			return nil
		}
	}
	if t.listenerCounts[ioContext] >= t.listenerMax {
		return verrno.ErrNoMemory
	}
	t.perNode[id] = append(t.perNode[id], &registration{identity: identity, mask: mask, listener: listener})
	t.listenerCounts[ioContext]++
	return nil
}

// WatchVolume registers (or augments) interest in every event of the
// given mask on a whole volume.
func (t *Table) WatchVolume(ioContext interface{}, vol vnode.VolumeID, mask EventKind, identity Identity, listener Listener) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.perVolume[vol] {
		if r.identity == identity {
			r.mask |= mask
			return nil
		}
	}
	if t.listenerCounts[ioContext] >= t.listenerMax {
		return verrno.ErrNoMemory
	}
	t.perVolume[vol] = append(t.perVolume[vol], &registration{identity: identity, mask: mask, listener: listener})
	t.listenerCounts[ioContext]++
	return nil
}

// UnwatchNode removes a listener's registration on a node, if present.
func (t *Table) UnwatchNode(ioContext interface{}, id vnode.ID, identity Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perNode[id] = removeByIdentity(t.perNode[id], identity)
	t.decrementLocked(ioContext)
}

// UnwatchVolume removes a listener's registration on a volume, if present.
func (t *Table) UnwatchVolume(ioContext interface{}, vol vnode.VolumeID, identity Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perVolume[vol] = removeByIdentity(t.perVolume[vol], identity)
	t.decrementLocked(ioContext)
}

func (t *Table) decrementLocked(ioContext interface{}) {
	if t.listenerCounts[ioContext] > 0 {
		t.listenerCounts[ioContext]--
	}
}

func removeByIdentity(regs []*registration, identity Identity) []*registration {
	out := regs[:0]
	for _, r := range regs {
		if r.identity != identity {
			out = append(out, r)
		}
	}
	return out
}

// Dispatch collects every sub-list interested in ev (the node itself, its
// source and destination directories for moves, and the whole volume),
// notifies each matching listener once, then calls AllListenersNotified
// on every listener that was notified.
func (t *Table) Dispatch(ev Event) {
	t.mu.RLock()
	var notified []Listener
	seen := make(map[Listener]bool)

	collect := func(id vnode.ID) {
		for _, r := range t.perNode[id] {
			if r.mask&ev.Kind != 0 && !seen[r.listener] {
				seen[r.listener] = true
				notified = append(notified, r.listener)
			}
		}
	}
	collect(vnode.ID{Volume: ev.Volume, Node: ev.Node})
	if ev.FromDir != 0 {
		collect(vnode.ID{Volume: ev.Volume, Node: ev.FromDir})
	}
	if ev.ToDir != 0 {
		collect(vnode.ID{Volume: ev.Volume, Node: ev.ToDir})
	}
	for _, r := range t.perVolume[ev.Volume] {
		if r.mask&ev.Kind != 0 && !seen[r.listener] {
			seen[r.listener] = true
			notified = append(notified, r.listener)
		}
	}
	t.mu.RUnlock()

	for _, l := range notified {
		l.EventOccurred(ev)
	}
	for _, l := range notified {
		l.AllListenersNotified()
	}
}

// QuerySink receives the fast-path QUERY_UPDATE push, bypassing the
// listener tables entirely.
type QuerySink interface {
	QueryUpdate(identity Identity, vol vnode.VolumeID, entry string, added bool)
}

// DispatchQuery sends a live-query entry change straight to a
// (port, token), per spec.md §4.I's "separate fast path."
func DispatchQuery(sink QuerySink, identity Identity, vol vnode.VolumeID, entry string, added bool) {
	sink.QueryUpdate(identity, vol, entry, added)
}
