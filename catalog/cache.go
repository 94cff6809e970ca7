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

package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/routingindex/counters"
	"github.com/cubefs/routingindex/proto"
	"github.com/cubefs/routingindex/routing"
)

// Result is what GetRoutingInfo answers for one namespace: either a
// sharded collection's RoutingTable, or the primary shard id an
// unsharded collection's reads and writes go to unconditionally.
type Result struct {
	Table          *routing.RoutingTable
	Sharded        bool
	PrimaryShardId proto.ShardId
}

// entry is one namespace's cached state. snapshot holds a *Result behind
// an atomic.Value so readers never block on a refresh in progress.
type entry struct {
	snapshot atomic.Value // *Result
}

func (e *entry) load() (*Result, bool) {
	v := e.snapshot.Load()
	if v == nil {
		return nil, false
	}
	return v.(*Result), true
}

func (e *entry) store(r *Result) { e.snapshot.Store(r) }

// CatalogueCache is the boundary between the routing index and the
// upstream catalogue-metadata store: it owns one RoutingTable per sharded
// namespace, refreshing it from UpstreamClient either incrementally
// (MakeUpdated) against the namespace's last known version, or from
// scratch (Build) on a cold miss, a full delta, or an epoch change.
// Concurrent refreshes of the same namespace are coalesced.
type CatalogueCache struct {
	upstream UpstreamClient
	builder  *routing.RoutingTableBuilder
	bag      *counters.Bag

	entries   sync.Map // namespace string -> *entry
	singleRun singleflight.Group
}

// NewCatalogueCache builds a cache fronting upstream. builder may be nil,
// in which case a RoutingTableBuilder with default bucket sizing is used.
// bag may be nil, in which case refresh failures are not counted.
func NewCatalogueCache(upstream UpstreamClient, builder *routing.RoutingTableBuilder, bag *counters.Bag) *CatalogueCache {
	if builder == nil {
		builder = &routing.RoutingTableBuilder{}
	}
	return &CatalogueCache{upstream: upstream, builder: builder, bag: bag}
}

// GetRoutingInfo answers a namespace's current routing state. forceRefresh
// bypasses the cached snapshot and always pulls from upstream, coalescing
// concurrent callers onto one upstream call. A namespace the catalogue
// does not report as sharded answers with Result.Sharded == false and
// Result.PrimaryShardId set instead of a RoutingTable.
func (c *CatalogueCache) GetRoutingInfo(ctx context.Context, ns string, forceRefresh bool) (*Result, error) {
	span := trace.SpanFromContextSafe(ctx)

	e, _ := c.entries.LoadOrStore(ns, &entry{})
	en := e.(*entry)

	if !forceRefresh {
		if r, ok := en.load(); ok {
			return r, nil
		}
	}

	v, err, _ := c.singleRun.Do(ns, func() (interface{}, error) {
		return c.refresh(ctx, ns, en)
	})
	if err != nil {
		if c.bag != nil {
			c.bag.Increment(counters.RefreshError)
		}
		span.Errorf("refresh routing info for %s failed: %s", ns, err)
		if r, ok := en.load(); ok && !forceRefresh {
			return r, nil
		}
		return nil, err
	}
	return v.(*Result), nil
}

// refresh pulls a chunk delta from upstream and applies it to the cached
// RoutingTable, dispatching to Build on a cold miss, a full delta, or an
// epoch change, and to MakeUpdated otherwise.
func (c *CatalogueCache) refresh(ctx context.Context, ns string, en *entry) (*Result, error) {
	prev, hadPrev := en.load()

	var knownVersion proto.ChunkVersion
	if hadPrev && prev.Sharded && prev.Table != nil {
		knownVersion = prev.Table.GetVersion()
	}

	delta, err := c.upstream.GetChunkDelta(ctx, ns, knownVersion, true)
	if err != nil {
		return nil, err
	}

	if !delta.Meta.Sharded {
		r := &Result{Sharded: false, PrimaryShardId: delta.Meta.PrimaryShardId}
		en.store(r)
		return r, nil
	}

	coldOrEpochChanged := !hadPrev || !prev.Sharded || prev.Table == nil || prev.Table.Epoch != delta.Meta.Epoch

	var table *routing.RoutingTable
	if delta.Full || coldOrEpochChanged {
		table, err = c.builder.Build(delta.Meta, delta.Chunks)
	} else {
		table, err = c.builder.MakeUpdated(prev.Table, delta.Chunks)
	}
	if err != nil {
		return nil, err
	}

	r := &Result{Table: table, Sharded: true}
	en.store(r)
	return r, nil
}

// ListShardedCollections delegates to upstream; it is not cached since
// admin callers are expected to invoke it rarely.
func (c *CatalogueCache) ListShardedCollections(ctx context.Context) ([]string, error) {
	return c.upstream.ListShardedCollections(ctx)
}

// Invalidate drops the cached snapshot for ns, forcing the next
// GetRoutingInfo to pull from upstream regardless of forceRefresh.
func (c *CatalogueCache) Invalidate(ns string) {
	c.entries.Delete(ns)
}

// Peek returns the currently cached snapshot for ns without refreshing,
// used by the admin dump surface to report what is in memory right now.
func (c *CatalogueCache) Peek(ns string) (*Result, bool) {
	v, ok := c.entries.Load(ns)
	if !ok {
		return nil, false
	}
	return v.(*entry).load()
}
