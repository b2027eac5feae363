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

// Package advlock implements the advisory lock manager (component F):
// POSIX range locks and whole-file flock()s sharing one per-node record
// list, with collision testing, range split on unlock, and a waiter
// condition variable in place of a kernel semaphore.
package advlock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/haiku/haiku-sub018/vfs/verrno"
)

// Metrics is the narrow observability seam a blocking Acquire reports
// through; vfs/metrics implements it over OpenTelemetry instruments.
type Metrics interface {
	LockWaited(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) LockWaited(time.Duration) {}

var metricsHook Metrics = noopMetrics{}

// SetMetrics installs the package-wide metrics hook every *List reports
// lock-wait time through. Call once at startup; nil restores the no-op.
func SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	metricsHook = m
}

// Mode is a lock's shared/exclusive disposition.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// Flavor distinguishes the two owner-identity schemes that share one list.
type Flavor int

const (
	// POSIX locks are owned by (I/O context, team) and support
	// range-split semantics on unlock.
	POSIX Flavor = iota
	// Flock locks are owned by the descriptor itself and always cover
	// the whole file.
	Flock
)

// Owner identifies a lock's holder. For POSIX locks Context and Team are
// meaningful; for flock locks only Descriptor is.
type Owner struct {
	Flavor     Flavor
	Context    interface{} // *fdtable.Table or equivalent I/O context handle
	Team       int64
	Descriptor interface{}
}

func (o Owner) equals(other Owner) bool {
	if o.Flavor != other.Flavor {
		return false
	}
	if o.Flavor == Flock {
		return o.Descriptor == other.Descriptor
	}
	return o.Context == other.Context && o.Team == other.Team
}

// Range is an inclusive [Start, End] byte range. End == EndOfFile denotes
// "to the end of file".
type Range struct {
	Start int64
	End   int64
}

// EndOfFile is the sentinel recorded for an l_len == 0 ("to end of file")
// SETLK request.
const EndOfFile = int64(1<<63 - 1)

func (r Range) overlaps(other Range) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Whence mirrors the SEEK_* constants used to anchor an incoming range.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Request is a normalization-pending lock request as a caller would build
// it from a struct flock plus descriptor context.
type Request struct {
	Whence Whence
	Start  int64
	Len    int64 // 0 means "to end of file"; negative reverses the range
}

// Normalize converts a Request to an absolute Range, given the
// descriptor's current seek position (for SEEK_CUR) and the node's
// current size (for SEEK_END), per spec.md §4.F.
func Normalize(req Request, curPos, nodeSize int64) (Range, error) {
	var base int64
	switch req.Whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = curPos
	case SeekEnd:
		base = nodeSize
	default:
		return Range{}, verrno.ErrBadValue
	}

	start := base + req.Start
	length := req.Len

	if length < 0 {
		// A negative length reverses the range: the locked region ends
		// at start-1 and begins at start+length.
		start, length = start+length, -length
	}
	if start < 0 {
		return Range{}, verrno.ErrBadValue
	}

	if length == 0 {
		return Range{Start: start, End: EndOfFile}, nil
	}
	end := start + length - 1
	if end < start {
		return Range{}, verrno.ErrBadValue
	}
	return Range{Start: start, End: end}, nil
}

// ToFlockT mirrors the normalized range back into the unix.Flock_t shape
// a driver or ioctl layer might need to report to a caller (F_GETLK).
func ToFlockT(r Range, mode Mode, owner Owner) unix.Flock_t {
	typ := int16(unix.F_RDLCK)
	if mode == Exclusive {
		typ = int16(unix.F_WRLCK)
	}
	length := int64(0)
	if r.End != EndOfFile {
		length = r.End - r.Start + 1
	}
	return unix.Flock_t{
		Type:  typ,
		Start: r.Start,
		Len:   length,
	}
}

// record is one entry on a node's lock list.
type record struct {
	owner Owner
	mode  Mode
	rng   Range
}

// List is the per-node advisory-lock record list (4.A's "lazily
// allocated advisory-locking record"). It owns its own waiter condition
// variable rather than a semaphore, matching Go's native synchronization
// primitive for this shape of wait/retry loop.
type List struct {
	mu      sync.Mutex
	records []record
	waiters sync.Cond
}

// NewList allocates an empty lock list for one node.
func NewList() *List {
	l := &List{}
	l.waiters.L = &l.mu
	return l
}

func (l *List) collides(req record) bool {
	for _, r := range l.records {
		if !r.rng.overlaps(req.rng) {
			continue
		}
		if r.owner.equals(req.owner) {
			continue
		}
		if r.mode == Shared && req.mode == Shared {
			continue
		}
		return true
	}
	return false
}

// Acquire attempts to add a lock record, retrying on collision according
// to wait semantics. nonBlocking callers get an immediate failure
// (WOULD-BLOCK for POSIX, PERMISSION-DENIED for flock) instead of
// waiting on the per-node waiter condition.
func (l *List) Acquire(ctx context.Context, owner Owner, mode Mode, rng Range, nonBlocking bool) error {
	req := record{owner: owner, mode: mode, rng: rng}

	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if !l.collides(req) {
			l.insertLocked(req)
			return nil
		}
		if nonBlocking {
			if owner.Flavor == Flock {
				return verrno.ErrPermissionDenied
			}
			return verrno.ErrWouldBlock
		}

		waitStart := time.Now()
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				l.mu.Lock()
				l.waiters.Broadcast()
				l.mu.Unlock()
			case <-done:
			}
		}()
		l.waiters.Wait()
		close(done)
		metricsHook.LockWaited(time.Since(waitStart))

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// insertLocked adds req, narrowing or replacing any existing same-owner
// records it overlaps (a same-owner POSIX request may re-stake its own
// range without colliding with itself).
func (l *List) insertLocked(req record) {
	var kept []record
	for _, r := range l.records {
		if r.owner.equals(req.owner) && r.rng.overlaps(req.rng) {
			for _, piece := range subtract(r.rng, req.rng) {
				kept = append(kept, record{owner: r.owner, mode: r.mode, rng: piece})
			}
			continue
		}
		kept = append(kept, r)
	}
	kept = append(kept, req)
	l.records = kept
}

// Release removes or narrows records matching owner that overlap rng,
// per spec.md §4.F's split-on-unlock rule: unlocking a subrange may leave
// up to two remaining fragments of the original record.
func (l *List) Release(owner Owner, rng Range) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var kept []record
	for _, r := range l.records {
		if !r.owner.equals(owner) || !r.rng.overlaps(rng) {
			kept = append(kept, r)
			continue
		}
		for _, piece := range subtract(r.rng, rng) {
			kept = append(kept, record{owner: r.owner, mode: r.mode, rng: piece})
		}
	}
	l.records = kept
	l.waiters.Broadcast()
}

// ReleaseAll drops every record owned by owner (e.g. on descriptor
// close), without requiring the caller to know the exact ranges held.
func (l *List) ReleaseAll(owner Owner) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var kept []record
	for _, r := range l.records {
		if !r.owner.equals(owner) {
			kept = append(kept, r)
		}
	}
	l.records = kept
	l.waiters.Broadcast()
}

// Empty reports whether the list holds no records, the signal the owning
// node uses to detach and discard its List (4.F's teardown rule).
func (l *List) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records) == 0
}

// subtract returns the pieces of r that remain after removing the part
// that overlaps cut: zero, one, or two ranges.
func subtract(r, cut Range) []Range {
	if !r.overlaps(cut) {
		return []Range{r}
	}
	var out []Range
	if r.Start < cut.Start {
		out = append(out, Range{Start: r.Start, End: cut.Start - 1})
	}
	if r.End > cut.End {
		out = append(out, Range{Start: cut.End + 1, End: r.End})
	}
	return out
}
