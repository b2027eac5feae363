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

package vfs

import "github.com/haiku/haiku-sub018/vfs/verrno"

// Errno and its sentinel values are re-exported from vfs/verrno so callers
// of the root package can write vfs.ErrNotFound without reaching into the
// leaf package directly.
type Errno = verrno.Errno

const (
	ErrNotFound         = verrno.ErrNotFound
	ErrNameTooLong      = verrno.ErrNameTooLong
	ErrLinkLimit        = verrno.ErrLinkLimit
	ErrNotADirectory    = verrno.ErrNotADirectory
	ErrIsADirectory     = verrno.ErrIsADirectory
	ErrBusy             = verrno.ErrBusy
	ErrFileError        = verrno.ErrFileError
	ErrBadValue         = verrno.ErrBadValue
	ErrWouldBlock       = verrno.ErrWouldBlock
	ErrPipe             = verrno.ErrPipe
	ErrNoMemory         = verrno.ErrNoMemory
	ErrNoMoreFDs        = verrno.ErrNoMoreFDs
	ErrBufferOverflow   = verrno.ErrBufferOverflow
	ErrCrossDeviceLink  = verrno.ErrCrossDeviceLink
	ErrReadOnlyDevice   = verrno.ErrReadOnlyDevice
	ErrPermissionDenied = verrno.ErrPermissionDenied
	ErrNotAllowed       = verrno.ErrNotAllowed
	ErrUnsupported      = verrno.ErrUnsupported
)

// Wrap attaches a driver-side cause to a core errno.
func Wrap(errno Errno, cause error) error { return verrno.Wrap(errno, cause) }
