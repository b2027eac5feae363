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

	"github.com/haiku/haiku-sub018/vfs/advlock"
	"github.com/haiku/haiku-sub018/vfs/verrno"
)

// Fcntl acquires a POSIX range lock (F_SETLK/F_SETLKW), owned by this
// context's (Context, Team) pair rather than the descriptor itself —
// closing one of several descriptors open on the same file does not
// release a POSIX lock another descriptor in the same context still
// holds.
func (c *IOContext) Fcntl(ctx context.Context, fd int, req advlock.Request, mode advlock.Mode, nonBlocking bool) error {
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
	st, serr := vol.ReadStat(ctx, ck.node)
	if serr != nil {
		return serr
	}

	rng, nerr := advlock.Normalize(req, d.Pos, st.Size)
	if nerr != nil {
		return nerr
	}

	list := lockListFor(ck.node, true)
	owner := advlock.Owner{Flavor: advlock.POSIX, Context: c, Team: c.Team}
	return list.Acquire(ctx, owner, mode, rng, nonBlocking)
}

// FcntlUnlock releases (or narrows) this context's POSIX lock records
// overlapping req (F_UNLCK).
func (c *IOContext) FcntlUnlock(fd int, req advlock.Request) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.node == nil {
		return verrno.ErrFileError
	}

	list := lockListFor(ck.node, false)
	if list == nil {
		return nil
	}
	rng, nerr := advlock.Normalize(req, d.Pos, advlock.EndOfFile)
	if nerr != nil {
		return nerr
	}
	owner := advlock.Owner{Flavor: advlock.POSIX, Context: c, Team: c.Team}
	list.Release(owner, rng)
	if list.Empty() {
		ck.node.Lock()
		ck.node.AdvisoryLock = nil
		ck.node.Unlock()
	}
	return nil
}

// Flock acquires a whole-file lock owned by the descriptor: dup'd copies
// of the same descriptor share the lock, and closing the last one
// releases it automatically (FDClose -> releaseFlockLocks).
func (c *IOContext) Flock(ctx context.Context, fd int, mode advlock.Mode, nonBlocking bool) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.node == nil {
		return verrno.ErrFileError
	}

	list := lockListFor(ck.node, true)
	owner := advlock.Owner{Flavor: advlock.Flock, Descriptor: ck}
	return list.Acquire(ctx, owner, mode, advlock.Range{Start: 0, End: advlock.EndOfFile}, nonBlocking)
}

func (c *IOContext) FlockUnlock(fd int) error {
	d, err := c.FDs.GetFD(fd)
	if err != nil {
		return err
	}
	defer c.FDs.PutFD(d)
	ck, ok := d.Cookie.(*cookie)
	if !ok || ck.node == nil {
		return verrno.ErrFileError
	}
	releaseFlockLocks(ck.node, ck)
	return nil
}
