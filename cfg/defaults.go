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

// GetDefaultLoggingConfig returns the default logging configuration used
// during startup, before a config file or flags have been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: INFO,
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultLRUConfig returns the node table's unused-vnode LRU defaults.
func GetDefaultLRUConfig() LRUConfig {
	return LRUConfig{HotCapacity: DefaultLRUHotCapacity, SoftCeiling: DefaultLRUSoftCeiling}
}

// GetDefaultCachingConfig returns the directory-entry cache's default
// generational shape.
func GetDefaultCachingConfig() CachingConfig {
	return CachingConfig{
		EntryCacheGenerations:    DefaultEntryCacheGenerations,
		EntryCacheGenerationSize: DefaultEntryCacheGenerationSize,
	}
}

// GetDefaultPipeConfig returns the FIFO/pipe engine's default ring-buffer
// capacity.
func GetDefaultPipeConfig() PipeConfig {
	return PipeConfig{CapacityBytes: DefaultPipeCapacityBytes}
}
