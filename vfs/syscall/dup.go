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

// Dup installs a second reference to fd's descriptor at the lowest free
// slot. Both descriptors share the underlying Descriptor, including its
// seek position, per real dup() semantics.
func (c *IOContext) Dup(fd int) (int, error) {
	return c.FDs.DupFD(fd, 0)
}

func (c *IOContext) Dup2(oldFD, newFD int) error {
	return c.FDs.Dup2FD(oldFD, newFD)
}

func (c *IOContext) CloseRange(min, max int, closeOnExecOnly bool) error {
	return c.FDs.CloseRange(min, max, closeOnExecOnly)
}

// ExecContext closes every close-on-exec descriptor, for the fork/exec
// path.
func (c *IOContext) ExecContext() {
	c.FDs.ExecContext()
}
