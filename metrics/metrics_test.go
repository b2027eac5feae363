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

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiku/haiku-sub018/vfs/advlock"
	"github.com/haiku/haiku-sub018/vfs/entrycache"
	"github.com/haiku/haiku-sub018/vfs/pipefs"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

func TestNewSatisfiesComponentInterfaces(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	var _ vnode.Metrics = m
	var _ advlock.Metrics = m
	var _ pipefs.Metrics = m
	var _ entrycache.Metrics = m
}

func TestRecordingDoesNotPanic(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.NodeLookupHit()
	m.NodeLookupMiss()
	m.NodePublished()
	m.NodeDestroyed()
	m.LRUReclaimed()
	m.LockWaited(5 * time.Millisecond)
	m.PipeBlocked(2 * time.Millisecond)
	m.CacheRotated()

	assert.NotNil(t, m.Handler())
}
