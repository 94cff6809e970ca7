// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package refresher is the background task that pulls every sharded
// namespace's routing table up to date on secondaries, so a read
// arriving there does not pay a cold-miss round trip to the catalogue.
package refresher

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/routingindex/catalog"
	"github.com/cubefs/routingindex/limiter"
	"github.com/cubefs/routingindex/metrics"
)

// initialJitterMin/Max bound the delay before the first refresh pass, so a
// fleet of secondaries restarted together does not all hit the catalogue
// at once.
const (
	initialJitterMinSeconds = 60
	initialJitterMaxSeconds = 240
)

// steadyJitterMin/Max bound the delay between later passes.
const (
	steadyJitterMinSeconds = 80000
	steadyJitterMaxSeconds = 86400
)

// tickInterval is how often the loop wakes up to check whether
// nextRefreshTime has elapsed; it is much finer than the refresh period
// itself so the jittered schedule is honored promptly.
const tickInterval = time.Minute

// RoleProvider reports whether the current process should run refresh
// passes. Only secondaries refresh in the background; primaries serve
// routing info on demand and refresh lazily on a cache miss.
type RoleProvider interface {
	IsSecondary(ctx context.Context) (bool, error)
}

// Refresher periodically re-pulls every sharded namespace's routing table
// from the CatalogueCache, bounding concurrent per-namespace refreshes
// with a Limiter the way admission control bounds foreground requests.
type Refresher struct {
	cache role
	roles RoleProvider
	lim   limiter.Limiter

	nextRefreshTime time.Time
	done            chan struct{}
	rand            *rand.Rand
}

// role is the subset of *catalog.CatalogueCache the refresher needs; kept
// as an interface so tests can substitute a fake without pulling in a
// real UpstreamClient.
type role interface {
	ListShardedCollections(ctx context.Context) ([]string, error)
	GetRoutingInfo(ctx context.Context, ns string, forceRefresh bool) (*catalog.Result, error)
}

// New builds a Refresher. lim bounds how many namespaces refresh
// concurrently during one pass; a nil lim falls back to limiter.New's
// default capacity.
func New(cache *catalog.CatalogueCache, roles RoleProvider, lim limiter.Limiter) *Refresher {
	if lim == nil {
		lim = limiter.New(limiter.DefaultCapacity)
	}
	r := &Refresher{
		cache: cache,
		roles: roles,
		lim:   lim,
		done:  make(chan struct{}),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.nextRefreshTime = time.Now().Add(r.jitter(initialJitterMinSeconds, initialJitterMaxSeconds))
	return r
}

func (r *Refresher) Name() string { return "AutoRefreshRouting" }

// Run drives the refresh loop until ctx is cancelled or Stop is called.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.DoWork(ctx)
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends a Run loop started on the same Refresher.
func (r *Refresher) Stop() { close(r.done) }

// DoWork checks the secondary role first, before ever touching
// nextRefreshTime — a primary never reads or advances the refresh
// schedule, matching the source's own taskDoWork order. Once secondary
// and due, it lists every sharded namespace, re-checks the role (a role
// flip during a slow listShardedCollections call must not trigger a
// refresh storm on a process that has since become primary), then
// refreshes each namespace concurrently up to the Limiter's capacity.
// When the Limiter refuses a slot, DoWork waits for the pass's in-flight
// refreshes to finish and asks once more; a namespace refused a second
// time is skipped for this pass. A started pass always reschedules nextRefreshTime on exit, even when a
// namespace fails, so one bad pass does not wedge the loop into
// refreshing every tick forever.
func (r *Refresher) DoWork(ctx context.Context) {
	span := trace.SpanFromContextSafe(ctx)

	secondary, err := r.roles.IsSecondary(ctx)
	if err != nil {
		span.Warnf("refresher: check secondary role failed: %s", err)
		return
	}
	if !secondary {
		return
	}

	if time.Now().Before(r.nextRefreshTime) {
		return
	}
	defer r.reschedule()

	namespaces, err := r.cache.ListShardedCollections(ctx)
	if err != nil {
		span.Warnf("refresher: list sharded collections failed: %s", err)
		return
	}

	secondary, err = r.roles.IsSecondary(ctx)
	if err != nil {
		span.Warnf("refresher: re-check secondary role failed: %s", err)
		return
	}
	if !secondary {
		return
	}

	var eg errgroup.Group
	for _, ns := range namespaces {
		ns := ns
		granted := r.lim.Acquire()
		if !granted {
			// Every slot is held: let this pass's in-flight refreshes
			// release theirs, then try once more.
			eg.Wait()
			granted = r.lim.Acquire()
		}
		if !granted {
			metrics.AdmissionRefusals.WithLabelValues("refresher").Inc()
			span.Warnf("refresher: admission refused for %s, skipping this pass", ns)
			continue
		}
		eg.Go(func() error {
			defer r.lim.Release()
			start := time.Now()
			_, err := r.cache.GetRoutingInfo(ctx, ns, true)
			outcome := "success"
			if err != nil {
				outcome = "failure"
				span.Warnf("refresher: refresh %s failed: %s", ns, err)
			}
			metrics.RefreshDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
			return nil
		})
	}
	eg.Wait()
}

func (r *Refresher) reschedule() {
	r.nextRefreshTime = time.Now().Add(r.jitter(steadyJitterMinSeconds, steadyJitterMaxSeconds))
}

func (r *Refresher) jitter(minSeconds, maxSeconds int) time.Duration {
	span := maxSeconds - minSeconds
	return time.Duration(minSeconds+r.rand.Intn(span+1)) * time.Second
}
