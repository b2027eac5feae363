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
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiku/haiku-sub018/vfs"
	"github.com/haiku/haiku-sub018/vfs/advlock"
	"github.com/haiku/haiku-sub018/vfs/fsdriver"
	"github.com/haiku/haiku-sub018/vfs/mount"
	"github.com/haiku/haiku-sub018/vfs/pipefs"
	"github.com/haiku/haiku-sub018/vfs/verrno"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// fakeInode is one in-memory node backing fakeVolume, standing in for an
// on-disk inode the way scratchfs fakes do in the mount and vnode test
// suites.
type fakeInode struct {
	typ     vnode.Type
	mode    uint32
	data    []byte
	entries map[string]vnode.NodeID
	target  string
	parent  vnode.NodeID
	pipe    *pipefs.Pipe
	attrs   map[string][]byte
}

// fakeVolume is a minimal in-memory fsdriver.Volume + mount.Driver double,
// enough to exercise every entry point in this package without a real
// on-disk filesystem.
type fakeVolume struct {
	mu     sync.Mutex
	nt     *vnode.Table
	volID  vnode.VolumeID
	nextID uint64
	inodes map[vnode.NodeID]*fakeInode
}

func newFakeVolume(nt *vnode.Table, volID vnode.VolumeID) *fakeVolume {
	v := &fakeVolume{nt: nt, volID: volID, inodes: make(map[vnode.NodeID]*fakeInode)}
	v.nextID = 2
	v.inodes[1] = &fakeInode{typ: vnode.TypeDirectory, mode: 0755, entries: map[string]vnode.NodeID{}, parent: 1}
	return v
}

func (v *fakeVolume) alloc(in *fakeInode) vnode.NodeID {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := vnode.NodeID(v.nextID)
	v.nextID++
	v.inodes[id] = in
	return id
}

func (v *fakeVolume) publish(id vnode.NodeID) (*vnode.Node, error) {
	v.mu.Lock()
	in, ok := v.inodes[id]
	v.mu.Unlock()
	if !ok {
		return nil, verrno.ErrNotFound
	}
	var priv interface{}
	if in.typ == vnode.TypeFIFO {
		priv = in.pipe
	}
	return v.nt.Publish(vnode.ID{Volume: v.volID, Node: id}, in.typ, nil, priv)
}

// mount.Driver

func (v *fakeVolume) Mount(ctx context.Context, m *mount.Mount, device string, flags uint32, args string) (vnode.NodeID, error) {
	v.volID = m.ID
	return 1, nil
}
func (v *fakeVolume) Unmount(ctx context.Context, m *mount.Mount) error { return nil }
func (v *fakeVolume) Sync(ctx context.Context, m *mount.Mount) error    { return nil }

func (v *fakeVolume) loader(m *mount.Mount) mount.Loader {
	return func(ctx context.Context, nt *vnode.Table, id vnode.NodeID) (*vnode.Node, error) {
		return v.publish(id)
	}
}

// fsdriver.DirOps

func (v *fakeVolume) Lookup(ctx context.Context, dir *vnode.Node, name string) (*vnode.Node, error) {
	v.mu.Lock()
	in, ok := v.inodes[dir.ID().Node]
	v.mu.Unlock()
	if !ok {
		return nil, verrno.ErrNotFound
	}

	var childID vnode.NodeID
	if name == ".." {
		childID = in.parent
	} else {
		v.mu.Lock()
		cid, found := in.entries[name]
		v.mu.Unlock()
		if !found {
			return nil, verrno.ErrNotFound
		}
		childID = cid
	}
	return v.nt.Get(ctx, vnode.ID{Volume: v.volID, Node: childID}, true)
}

func (v *fakeVolume) Create(ctx context.Context, dir *vnode.Node, name string, mode uint32) (*vnode.Node, error) {
	v.mu.Lock()
	in, ok := v.inodes[dir.ID().Node]
	if ok {
		if _, exists := in.entries[name]; exists {
			v.mu.Unlock()
			return nil, verrno.ErrNotAllowed
		}
	}
	v.mu.Unlock()
	if !ok {
		return nil, verrno.ErrNotFound
	}

	child := &fakeInode{mode: mode, parent: dir.ID().Node}
	if mode&unix.S_IFMT == unix.S_IFIFO {
		child.typ = vnode.TypeFIFO
		child.pipe = pipefs.New(pipefs.DefaultCapacity)
	} else {
		child.typ = vnode.TypeFile
	}
	id := v.alloc(child)

	v.mu.Lock()
	in.entries[name] = id
	v.mu.Unlock()

	return v.publish(id)
}

func (v *fakeVolume) MkDir(ctx context.Context, dir *vnode.Node, name string, mode uint32) (*vnode.Node, error) {
	v.mu.Lock()
	in, ok := v.inodes[dir.ID().Node]
	if ok {
		if _, exists := in.entries[name]; exists {
			v.mu.Unlock()
			return nil, verrno.ErrNotAllowed
		}
	}
	v.mu.Unlock()
	if !ok {
		return nil, verrno.ErrNotFound
	}

	child := &fakeInode{typ: vnode.TypeDirectory, mode: mode, entries: map[string]vnode.NodeID{}, parent: dir.ID().Node}
	id := v.alloc(child)

	v.mu.Lock()
	in.entries[name] = id
	v.mu.Unlock()

	return v.publish(id)
}

func (v *fakeVolume) Remove(ctx context.Context, dir *vnode.Node, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in, ok := v.inodes[dir.ID().Node]
	if !ok {
		return verrno.ErrNotFound
	}
	id, found := in.entries[name]
	if !found {
		return verrno.ErrNotFound
	}
	if child := v.inodes[id]; child != nil && child.typ == vnode.TypeDirectory {
		return verrno.ErrNotAllowed
	}
	delete(in.entries, name)
	v.nt.Remove(vnode.ID{Volume: v.volID, Node: id})
	return nil
}

func (v *fakeVolume) RmDir(ctx context.Context, dir *vnode.Node, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in, ok := v.inodes[dir.ID().Node]
	if !ok {
		return verrno.ErrNotFound
	}
	id, found := in.entries[name]
	if !found {
		return verrno.ErrNotFound
	}
	child := v.inodes[id]
	if child == nil || child.typ != vnode.TypeDirectory {
		return verrno.ErrNotADirectory
	}
	if len(child.entries) != 0 {
		return verrno.ErrNotAllowed
	}
	delete(in.entries, name)
	v.nt.Remove(vnode.ID{Volume: v.volID, Node: id})
	return nil
}

func (v *fakeVolume) Rename(ctx context.Context, oldDir *vnode.Node, oldName string, newDir *vnode.Node, newName string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	oin, ok := v.inodes[oldDir.ID().Node]
	if !ok {
		return verrno.ErrNotFound
	}
	id, found := oin.entries[oldName]
	if !found {
		return verrno.ErrNotFound
	}
	nin, ok := v.inodes[newDir.ID().Node]
	if !ok {
		return verrno.ErrNotFound
	}
	delete(oin.entries, oldName)
	nin.entries[newName] = id
	if child := v.inodes[id]; child != nil {
		child.parent = newDir.ID().Node
	}
	return nil
}

func (v *fakeVolume) ReadDir(ctx context.Context, dir *vnode.Node, cookie int64) ([]fsdriver.DirEntry, int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in, ok := v.inodes[dir.ID().Node]
	if !ok {
		return nil, 0, verrno.ErrNotFound
	}
	if cookie != 0 {
		return nil, 0, nil
	}
	var out []fsdriver.DirEntry
	for name, id := range in.entries {
		child := v.inodes[id]
		out = append(out, fsdriver.DirEntry{Name: name, Node: id, Type: child.typ})
	}
	return out, 0, nil
}

// fsdriver.FileOps

func (v *fakeVolume) Read(ctx context.Context, node *vnode.Node, p []byte, off int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil || off >= int64(len(in.data)) {
		return 0, nil
	}
	return copy(p, in.data[off:]), nil
}

func (v *fakeVolume) Write(ctx context.Context, node *vnode.Node, p []byte, off int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return 0, verrno.ErrNotFound
	}
	need := off + int64(len(p))
	if need > int64(len(in.data)) {
		grown := make([]byte, need)
		copy(grown, in.data)
		in.data = grown
	}
	return copy(in.data[off:], p), nil
}

func (v *fakeVolume) Truncate(ctx context.Context, node *vnode.Node, size int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return verrno.ErrNotFound
	}
	if size <= int64(len(in.data)) {
		in.data = in.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, in.data)
	in.data = grown
	return nil
}

func (v *fakeVolume) Fsync(ctx context.Context, node *vnode.Node) error { return nil }

// fsdriver.LinkOps

func (v *fakeVolume) CreateSymlink(ctx context.Context, dir *vnode.Node, name, target string) (*vnode.Node, error) {
	v.mu.Lock()
	in, ok := v.inodes[dir.ID().Node]
	v.mu.Unlock()
	if !ok {
		return nil, verrno.ErrNotFound
	}
	child := &fakeInode{typ: vnode.TypeSymlink, target: target, parent: dir.ID().Node}
	id := v.alloc(child)
	v.mu.Lock()
	in.entries[name] = id
	v.mu.Unlock()
	return v.publish(id)
}

func (v *fakeVolume) ReadLink(ctx context.Context, node *vnode.Node) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return "", verrno.ErrNotFound
	}
	return in.target, nil
}

func (v *fakeVolume) CreateLink(ctx context.Context, dir *vnode.Node, name string, target *vnode.Node) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in, ok := v.inodes[dir.ID().Node]
	if !ok {
		return verrno.ErrNotFound
	}
	in.entries[name] = target.ID().Node
	return nil
}

// fsdriver.MetaOps

func (v *fakeVolume) ReadStat(ctx context.Context, node *vnode.Node) (fsdriver.Stat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return fsdriver.Stat{}, verrno.ErrNotFound
	}
	return fsdriver.Stat{Size: int64(len(in.data)), Mode: in.mode, NLink: 1}, nil
}

func (v *fakeVolume) WriteStat(ctx context.Context, node *vnode.Node, stat fsdriver.Stat, mask fsdriver.StatMask) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return verrno.ErrNotFound
	}
	if mask&fsdriver.StatMode != 0 {
		in.mode = stat.Mode
	}
	if mask&fsdriver.StatSize != 0 {
		in.data = in.data[:stat.Size]
	}
	return nil
}

func (v *fakeVolume) Access(ctx context.Context, node *vnode.Node, mode uint32) error { return nil }

// fsdriver.AttrOps

type fakeAttrHandle struct {
	names []string
	i     int
}

func (h *fakeAttrHandle) Next() (string, bool) {
	if h.i >= len(h.names) {
		return "", false
	}
	name := h.names[h.i]
	h.i++
	return name, true
}
func (h *fakeAttrHandle) Close() error { return nil }

func (v *fakeVolume) OpenAttrDir(ctx context.Context, node *vnode.Node) (fsdriver.AttrDirHandle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return nil, verrno.ErrNotFound
	}
	names := make([]string, 0, len(in.attrs))
	for name := range in.attrs {
		names = append(names, name)
	}
	return &fakeAttrHandle{names: names}, nil
}

func (v *fakeVolume) ReadAttr(ctx context.Context, node *vnode.Node, name string, out io.Writer) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return 0, verrno.ErrNotFound
	}
	data, ok := in.attrs[name]
	if !ok {
		return 0, verrno.ErrNotFound
	}
	return out.Write(data)
}

func (v *fakeVolume) WriteAttr(ctx context.Context, node *vnode.Node, name string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return verrno.ErrNotFound
	}
	if in.attrs == nil {
		in.attrs = map[string][]byte{}
	}
	in.attrs[name] = append([]byte{}, data...)
	return nil
}

func (v *fakeVolume) RemoveAttr(ctx context.Context, node *vnode.Node, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	in := v.inodes[node.ID().Node]
	if in == nil {
		return verrno.ErrNotFound
	}
	delete(in.attrs, name)
	return nil
}

// testEnv bundles a Core, a fakeVolume, and an IOContext rooted at the
// fake volume's root directory.
type testEnv struct {
	core *vfs.Core
	vol  *fakeVolume
	ioc  *IOContext
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core := vfs.New(vfs.Config{}, nil)

	var vol *fakeVolume
	m, err := core.Mounts.Mount(context.Background(), core.Nodes, nil, "/dev/fake", "fakefs",
		func(layer string) (mount.Driver, error) {
			vol = newFakeVolume(core.Nodes, 0) // volID is set by fakeVolume.Mount once the real id is assigned
			return vol, nil
		},
		func(m *mount.Mount) mount.Loader { return vol.loader(m) }, 0, "")
	require.NoError(t, err)

	ioc := NewIOContext(core, m.Root, m.Root, 1, 32)
	return &testEnv{core: core, vol: vol, ioc: ioc}
}

func TestOpenCreateWriteReadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/foo.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, err)

	n, err := env.ioc.Write(ctx, fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, env.ioc.Close(fd))

	fd2, err := env.ioc.Open(ctx, AtFDCWD, "/foo.txt", unix.O_RDONLY, 0)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err = env.ioc.Read(ctx, fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	require.NoError(t, env.ioc.Close(fd2))
}

func TestOpenExclFailsWhenExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/dup.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, env.ioc.Close(fd))

	_, err = env.ioc.Open(ctx, AtFDCWD, "/dup.txt", unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY, 0644)
	assert.ErrorIs(t, err, verrno.ErrNotAllowed)
}

func TestMkdirAndReadDir(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ioc.Mkdir(ctx, AtFDCWD, "/sub", 0755))
	fd, err := env.ioc.Open(ctx, AtFDCWD, "/sub", unix.O_RDONLY, 0)
	require.NoError(t, err)

	_, cerr := env.ioc.Open(ctx, fd, "child.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, cerr)

	entries, err := env.ioc.ReadDir(ctx, fd)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "child.txt", entries[0].Name)
	require.NoError(t, env.ioc.Close(fd))
}

func TestUnlinkRemovesEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/gone.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, env.ioc.Close(fd))

	require.NoError(t, env.ioc.Unlink(ctx, AtFDCWD, "/gone.txt"))
	_, err = env.ioc.Open(ctx, AtFDCWD, "/gone.txt", unix.O_RDONLY, 0)
	assert.ErrorIs(t, err, verrno.ErrNotFound)
}

func TestSymlinkTraversal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/real.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = env.ioc.Write(ctx, fd, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, env.ioc.Close(fd))

	require.NoError(t, env.ioc.Symlink(ctx, AtFDCWD, "/link.txt", "/real.txt"))

	target, err := env.ioc.ReadLink(ctx, AtFDCWD, "/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/real.txt", target)

	fd2, err := env.ioc.Open(ctx, AtFDCWD, "/link.txt", unix.O_RDONLY, 0)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := env.ioc.Read(ctx, fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))
	require.NoError(t, env.ioc.Close(fd2))
}

func TestRenameMovesEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/a.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, env.ioc.Close(fd))

	require.NoError(t, env.ioc.Rename(ctx, AtFDCWD, "/a.txt", AtFDCWD, "/b.txt"))

	_, err = env.ioc.Open(ctx, AtFDCWD, "/a.txt", unix.O_RDONLY, 0)
	assert.ErrorIs(t, err, verrno.ErrNotFound)

	fd2, err := env.ioc.Open(ctx, AtFDCWD, "/b.txt", unix.O_RDONLY, 0)
	require.NoError(t, err)
	require.NoError(t, env.ioc.Close(fd2))
}

func TestDupSharesSeekPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/shared.txt", unix.O_CREAT|unix.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = env.ioc.Write(ctx, fd, []byte("0123456789"))
	require.NoError(t, err)

	dupFD, err := env.ioc.Dup(fd)
	require.NoError(t, err)

	_, err = env.ioc.Seek(ctx, dupFD, 0, unix.SEEK_SET)
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := env.ioc.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))

	require.NoError(t, env.ioc.Close(fd))
	require.NoError(t, env.ioc.Close(dupFD))
}

func TestFlockSharedAcrossDup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/locked.txt", unix.O_CREAT|unix.O_RDWR, 0644)
	require.NoError(t, err)
	dupFD, err := env.ioc.Dup(fd)
	require.NoError(t, err)

	require.NoError(t, env.ioc.Flock(ctx, fd, advlock.Exclusive, true))
	// The dup'd descriptor shares the same cookie pointer, so re-acquiring
	// the same exclusive lock through it must not conflict with itself.
	require.NoError(t, env.ioc.Flock(ctx, dupFD, advlock.Exclusive, true))

	require.NoError(t, env.ioc.Close(fd))
	require.NoError(t, env.ioc.Close(dupFD))
}

func TestFcntlRangeLockConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/range.txt", unix.O_CREAT|unix.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = env.ioc.Write(ctx, fd, make([]byte, 100))
	require.NoError(t, err)

	req := advlock.Request{Whence: advlock.SeekSet, Start: 0, Len: 10}
	require.NoError(t, env.ioc.Fcntl(ctx, fd, req, advlock.Exclusive, true))

	other := NewIOContext(env.core, env.ioc.Root(), env.ioc.Root(), 2, 32)
	otherFD, err := other.Open(ctx, AtFDCWD, "/range.txt", unix.O_RDWR, 0)
	require.NoError(t, err)
	err = other.Fcntl(ctx, otherFD, req, advlock.Exclusive, true)
	assert.Error(t, err)

	require.NoError(t, other.Close(otherFD))
	require.NoError(t, env.ioc.Close(fd))
}

func TestAnonymousPipeWriteRead(t *testing.T) {
	env := newTestEnv(t)
	rfd, wfd, err := env.ioc.Pipe()
	require.NoError(t, err)

	n, err := env.ioc.Write(context.Background(), wfd, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 8)
	n, err = env.ioc.Read(context.Background(), rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, env.ioc.Close(rfd))
	require.NoError(t, env.ioc.Close(wfd))
}

func TestMkfifoOpenNonBlockingRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ioc.Mkfifo(ctx, AtFDCWD, "/myfifo", 0644))

	rfd, err := env.ioc.Open(ctx, AtFDCWD, "/myfifo", unix.O_RDONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)
	wfd, err := env.ioc.Open(ctx, AtFDCWD, "/myfifo", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)

	n, err := env.ioc.Write(ctx, wfd, []byte("fifo"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 8)
	n, err = env.ioc.Read(ctx, rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "fifo", string(buf[:n]))

	require.NoError(t, env.ioc.Close(rfd))
	require.NoError(t, env.ioc.Close(wfd))
}

func TestAttrWriteReadRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fd, err := env.ioc.Open(ctx, AtFDCWD, "/attred.txt", unix.O_CREAT|unix.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, env.ioc.Close(fd))

	require.NoError(t, env.ioc.WriteAttr(ctx, AtFDCWD, "/attred.txt", "user.tag", []byte("v1")))

	var out bytes.Buffer
	n, err := env.ioc.ReadAttr(ctx, AtFDCWD, "/attred.txt", "user.tag", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "v1", out.String())

	require.NoError(t, env.ioc.RemoveAttr(ctx, AtFDCWD, "/attred.txt", "user.tag"))
	out.Reset()
	_, err = env.ioc.ReadAttr(ctx, AtFDCWD, "/attred.txt", "user.tag", &out)
	assert.ErrorIs(t, err, verrno.ErrNotFound)
}

func TestGetcwdAfterChdir(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ioc.Mkdir(ctx, AtFDCWD, "/nested", 0755))
	require.NoError(t, env.ioc.Chdir(ctx, "/nested"))

	cwd, err := env.ioc.Getcwd(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/nested", cwd)
}
