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

package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(sev Severity) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := &Logger{std: log.New(&buf, "", 0)}
	l.severity.Store(int32(sev))
	return l, &buf
}

func TestSeverityGating(t *testing.T) {
	l, buf := newBufferedLogger(Warning)

	l.Debugf("should not appear")
	assert.Empty(t, buf.String())

	l.Errorf("boom: %d", 42)
	assert.Contains(t, buf.String(), "[ERROR] boom: 42")
}

func TestParseSeverityRoundTrip(t *testing.T) {
	for _, s := range []Severity{Trace, Debug, Info, Warning, Error, Off} {
		assert.Equal(t, s, ParseSeverity(s.String()))
	}
}

func TestParseSeverityUnknownDefaultsToInfo(t *testing.T) {
	assert.Equal(t, Info, ParseSeverity("bogus"))
}

func TestSetGlobalReplacesDefault(t *testing.T) {
	l, buf := newBufferedLogger(Info)
	SetGlobal(l)
	defer SetGlobal(nil)

	Infof("hello %s", "world")
	assert.Contains(t, buf.String(), "[INFO] hello world")
}

func TestNewDefaultsUnsetSeverityToInfo(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, int32(Info), l.severity.Load())
}
