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

import (
	"github.com/haiku/haiku-sub018/cfg"
	"github.com/haiku/haiku-sub018/logger"
	"github.com/haiku/haiku-sub018/vfs/vnode"
)

// ConfigFromCfg translates a bound cfg.Config (populated from flags and/or
// a config file via cfg.BindFlags/viper) into the Config New expects.
// Embedding main programs are expected to call this once at startup
// rather than hand-assembling a Config field by field.
func ConfigFromCfg(c cfg.Config) Config {
	return Config{
		LRU: vnode.LRUConfig{
			HotCapacity: c.LRU.HotCapacity,
			SoftCeiling: c.LRU.SoftCeiling,
		},
		EntryCacheGenerations:    c.Caching.EntryCacheGenerations,
		EntryCacheGenerationSize: c.Caching.EntryCacheGenerationSize,
		PipeCapacityBytes:        c.Pipe.CapacityBytes,
		Logging: logger.Config{
			Severity: logger.ParseSeverity(string(c.Logging.Severity)),
			Rotate: logger.RotateConfig{
				Directory:       c.Logging.Directory,
				Filename:        c.Logging.Filename,
				BackupFileCount: c.Logging.LogRotate.BackupFileCount,
				Compress:        c.Logging.LogRotate.Compress,
				MaxFileSizeMB:   c.Logging.LogRotate.MaxFileSizeMb,
			},
		},
	}
}
