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

// Package cmd wires cfg.BindFlags, viper's config-file loading, and
// vfs.New into a cobra root command, the bootstrap glue a real deployment
// needs around the Core; mounting/syscall dispatch itself is out of
// scope (the spec's Non-goals exclude an outer FUSE/transport surface).
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/haiku/haiku-sub018/cfg"
	"github.com/haiku/haiku-sub018/logger"
	"github.com/haiku/haiku-sub018/metrics"
	"github.com/haiku/haiku-sub018/vfs"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	boundConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "haiku-vfs-core",
	Short: "Run the VFS kernel core's background services standalone",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}

		vfsCfg := vfs.ConfigFromCfg(boundConfig)

		var m vfs.Metrics
		var shutdownTracing metrics.ShutdownFn
		if boundConfig.Metrics.Enabled {
			handle, err := metrics.New()
			if err != nil {
				return fmt.Errorf("constructing metrics handle: %w", err)
			}
			m = handle

			shutdownTracing, err = metrics.SetupTracing()
			if err != nil {
				return fmt.Errorf("setting up tracing: %w", err)
			}
		}

		core := vfs.New(vfsCfg, m)
		core.StartBackground(context.Background(), 0)
		logger.Infof("haiku-vfs-core: started")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		if shutdownTracing != nil {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Warningf("haiku-vfs-core: tracing shutdown: %v", err)
			}
		}

		logger.Infof("haiku-vfs-core: shutting down")
		return core.Stop()
	},
}

// Execute runs the root command, exiting the process on error. The sole
// entry point cmd/vfscore's main calls.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("reading config file: %w", err)
			return
		}
	}
	unmarshalErr = viper.Unmarshal(&boundConfig, viper.DecodeHook(cfg.DecodeHook()))
}
