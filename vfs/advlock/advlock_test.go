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

package advlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiku/haiku-sub018/vfs/verrno"
)

func TestNormalizeSeekSetWithExplicitLength(t *testing.T) {
	r, err := Normalize(Request{Whence: SeekSet, Start: 10, Len: 5}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 10, End: 14}, r)
}

func TestNormalizeZeroLengthMeansToEndOfFile(t *testing.T) {
	r, err := Normalize(Request{Whence: SeekSet, Start: 10, Len: 0}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 10, End: EndOfFile}, r)
}

func TestNormalizeSeekCurUsesDescriptorPosition(t *testing.T) {
	r, err := Normalize(Request{Whence: SeekCur, Start: 5, Len: 10}, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 105, End: 114}, r)
}

func TestNormalizeSeekEndUsesNodeSize(t *testing.T) {
	r, err := Normalize(Request{Whence: SeekEnd, Start: -10, Len: 10}, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 990, End: 999}, r)
}

func TestNormalizeNegativeLengthReversesRange(t *testing.T) {
	r, err := Normalize(Request{Whence: SeekSet, Start: 20, Len: -10}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 10, End: 19}, r)
}

func TestNormalizeRejectsNegativeStart(t *testing.T) {
	_, err := Normalize(Request{Whence: SeekSet, Start: -5, Len: 1}, 0, 0)
	assert.ErrorIs(t, err, verrno.ErrBadValue)
}

func TestSharedLocksFromDifferentOwnersCoexist(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}
	b := Owner{Flavor: POSIX, Context: "ctx-b", Team: 2}

	require.NoError(t, l.Acquire(context.Background(), a, Shared, Range{0, 99}, true))
	require.NoError(t, l.Acquire(context.Background(), b, Shared, Range{0, 99}, true))
}

func TestOverlappingExclusiveLocksFromDifferentOwnersCollide(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}
	b := Owner{Flavor: POSIX, Context: "ctx-b", Team: 2}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, 99}, true))
	err := l.Acquire(context.Background(), b, Exclusive, Range{50, 60}, true)
	assert.ErrorIs(t, err, verrno.ErrWouldBlock)
}

func TestFlockCollisionReturnsPermissionDenied(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: Flock, Descriptor: "fd-a"}
	b := Owner{Flavor: Flock, Descriptor: "fd-b"}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, EndOfFile}, true))
	err := l.Acquire(context.Background(), b, Exclusive, Range{0, EndOfFile}, true)
	assert.ErrorIs(t, err, verrno.ErrPermissionDenied)
}

func TestSameOwnerReacquireDoesNotCollideWithItself(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, 99}, true))
	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{50, 150}, true))
}

func TestReleaseSplitsSurroundingRange(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}
	b := Owner{Flavor: POSIX, Context: "ctx-b", Team: 2}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, 99}, true))
	l.Release(a, Range{40, 59})

	// The middle of the range is free again; both the head and tail
	// fragments are still held by a and should still collide.
	err := l.Acquire(context.Background(), b, Exclusive, Range{40, 59}, true)
	require.NoError(t, err)

	err = l.Acquire(context.Background(), b, Exclusive, Range{0, 10}, true)
	assert.ErrorIs(t, err, verrno.ErrWouldBlock)
	err = l.Acquire(context.Background(), b, Exclusive, Range{90, 99}, true)
	assert.ErrorIs(t, err, verrno.ErrWouldBlock)
}

func TestReleaseAllDropsEveryRecordForOwner(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}
	b := Owner{Flavor: POSIX, Context: "ctx-b", Team: 2}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, 9}, true))
	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{20, 29}, true))
	l.ReleaseAll(a)

	assert.True(t, l.Empty())
	require.NoError(t, l.Acquire(context.Background(), b, Exclusive, Range{0, 9}, true))
}

func TestBlockingAcquireWakesOnRelease(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}
	b := Owner{Flavor: POSIX, Context: "ctx-b", Team: 2}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, 9}, true))

	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(context.Background(), b, Exclusive, Range{0, 9}, false)
	}()

	time.Sleep(10 * time.Millisecond)
	l.Release(a, Range{0, 9})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocking Acquire did not wake after Release")
	}
}

func TestBlockingAcquireRespectsContextCancellation(t *testing.T) {
	l := NewList()
	a := Owner{Flavor: POSIX, Context: "ctx-a", Team: 1}
	b := Owner{Flavor: POSIX, Context: "ctx-b", Team: 2}

	require.NoError(t, l.Acquire(context.Background(), a, Exclusive, Range{0, 9}, true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(ctx, b, Exclusive, Range{0, 9}, false)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("blocking Acquire did not unblock on context cancellation")
	}
}
