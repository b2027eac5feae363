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

// Package metrics implements the core's ambient observability stack: the
// node-table hit/miss/publish/destroy counters, the unused-vnode LRU's
// reclaim counter, advisory-lock wait latency, pipe block latency, and
// entry-cache rotation counter SPEC_FULL.md's ambient stack section
// names, all built on OpenTelemetry instruments and exported through a
// Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
)

// defaultLatencyDistribution buckets latency histograms in milliseconds;
// the same shape common/telemetry.go uses for request/op latencies.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000,
)

var meter = otel.Meter("vfs")

// Metrics is the core's concrete observability handle: it satisfies
// vnode.Metrics, advlock.Metrics, pipefs.Metrics, and entrycache.Metrics
// so that a single value can be handed to vfs.New and registered with
// each sub-component package via their SetMetrics hooks.
type Metrics struct {
	nodeLookupHit  metric.Int64Counter
	nodeLookupMiss metric.Int64Counter
	nodePublished  metric.Int64Counter
	nodeDestroyed  metric.Int64Counter
	lruReclaimed   metric.Int64Counter

	lockWaitLatency metric.Float64Histogram
	pipeBlockLatency metric.Float64Histogram
	cacheRotations  metric.Int64Counter

	registry *prometheus.Registry
}

// New constructs the OTel instruments and a Prometheus registry/reader
// backing them, mirroring common/otel_metrics.go's NewOTelMetrics
// constructor shape (one Meter, instruments built up front, errors
// joined at the end).
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	nodeLookupHit, err1 := meter.Int64Counter("vfs/node_lookup_hit_count",
		metric.WithDescription("The cumulative number of node-table lookups satisfied from the hash table without a driver round trip."))
	nodeLookupMiss, err2 := meter.Int64Counter("vfs/node_lookup_miss_count",
		metric.WithDescription("The cumulative number of node-table lookups that required loading the node from its owning volume."))
	nodePublished, err3 := meter.Int64Counter("vfs/node_published_count",
		metric.WithDescription("The cumulative number of vnodes published into the node table."))
	nodeDestroyed, err4 := meter.Int64Counter("vfs/node_destroyed_count",
		metric.WithDescription("The cumulative number of vnodes destroyed on a 1->0 refcount transition."))
	lruReclaimed, err5 := meter.Int64Counter("vfs/lru_reclaimed_count",
		metric.WithDescription("The cumulative number of unused vnodes freed by the low-resource reclaim probe."))
	lockWaitLatency, err6 := meter.Float64Histogram("vfs/lock_wait_latency",
		metric.WithDescription("The distribution of time a blocking advisory-lock Acquire call spent waiting on a collision."),
		metric.WithUnit("ms"), defaultLatencyDistribution)
	pipeBlockLatency, err7 := meter.Float64Histogram("vfs/pipe_block_latency",
		metric.WithDescription("The distribution of time a pipe/FIFO read, write, or open call spent blocked."),
		metric.WithUnit("ms"), defaultLatencyDistribution)
	cacheRotations, err8 := meter.Int64Counter("vfs/entry_cache_rotation_count",
		metric.WithDescription("The cumulative number of entry-cache generation rotations."))

	if err := joinErrs(err1, err2, err3, err4, err5, err6, err7, err8); err != nil {
		return nil, err
	}

	return &Metrics{
		nodeLookupHit:    nodeLookupHit,
		nodeLookupMiss:   nodeLookupMiss,
		nodePublished:    nodePublished,
		nodeDestroyed:    nodeDestroyed,
		lruReclaimed:     lruReclaimed,
		lockWaitLatency:  lockWaitLatency,
		pipeBlockLatency: pipeBlockLatency,
		cacheRotations:   cacheRotations,
		registry:         registry,
	}, nil
}

func joinErrs(errs ...error) error {
	return errors.Join(errs...)
}

// Handler exposes the Prometheus registry for an embedder to mount on
// its own HTTP server; this package has no server of its own (out of
// scope, per SPEC_FULL.md's Non-goals on outer transport surfaces).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The following methods satisfy vnode.Metrics.

func (m *Metrics) NodeLookupHit()  { m.nodeLookupHit.Add(context.Background(), 1) }
func (m *Metrics) NodeLookupMiss() { m.nodeLookupMiss.Add(context.Background(), 1) }
func (m *Metrics) NodePublished()  { m.nodePublished.Add(context.Background(), 1) }
func (m *Metrics) NodeDestroyed()  { m.nodeDestroyed.Add(context.Background(), 1) }
func (m *Metrics) LRUReclaimed()   { m.lruReclaimed.Add(context.Background(), 1) }

// LockWaited satisfies advlock.Metrics.
func (m *Metrics) LockWaited(d time.Duration) {
	m.lockWaitLatency.Record(context.Background(), float64(d.Microseconds())/1000)
}

// PipeBlocked satisfies pipefs.Metrics.
func (m *Metrics) PipeBlocked(d time.Duration) {
	m.pipeBlockLatency.Record(context.Background(), float64(d.Microseconds())/1000)
}

// CacheRotated satisfies entrycache.Metrics.
func (m *Metrics) CacheRotated() { m.cacheRotations.Add(context.Background(), 1) }
