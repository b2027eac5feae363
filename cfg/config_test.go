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

package cfg

import (
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsRegistersAndBindsEveryTunable(t *testing.T) {
	viper.Reset()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)

	require.NoError(t, BindFlags(fs))

	for _, name := range []string{
		"app-name", "debug-invariants", "debug-mutex",
		"lru-hot-capacity", "lru-soft-ceiling",
		"entry-cache-generations", "entry-cache-generation-size",
		"pipe-capacity-bytes", "log-severity", "log-filename",
		"metrics-enabled",
	} {
		assert.NotNilf(t, fs.Lookup(name), "flag %q not registered", name)
	}

	assert.Equal(t, DefaultLRUSoftCeiling, viper.GetInt("lru.soft-ceiling"))
	assert.Equal(t, INFO, viper.GetString("logging.severity"))
}

func TestDefaultsMatchTeacherShape(t *testing.T) {
	lc := GetDefaultLoggingConfig()
	assert.Equal(t, LogSeverity(INFO), lc.Severity)
	assert.Equal(t, 10, lc.LogRotate.BackupFileCount)
	assert.True(t, lc.LogRotate.Compress)
	assert.Equal(t, 512, lc.LogRotate.MaxFileSizeMb)

	assert.Equal(t, CachingConfig{EntryCacheGenerations: DefaultEntryCacheGenerations, EntryCacheGenerationSize: DefaultEntryCacheGenerationSize}, GetDefaultCachingConfig())
	assert.Equal(t, PipeConfig{CapacityBytes: DefaultPipeCapacityBytes}, GetDefaultPipeConfig())
}
