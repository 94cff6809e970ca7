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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/routingindex/proto"
)

type fakeUpstream struct {
	mu     sync.Mutex
	deltas map[string][]proto.ChunkDelta // consumed in order, last one repeats
	calls  int32
	onCall func()
}

func (f *fakeUpstream) ListShardedCollections(ctx context.Context) ([]string, error) {
	var out []string
	for ns := range f.deltas {
		out = append(out, ns)
	}
	return out, nil
}

func (f *fakeUpstream) GetChunkDelta(ctx context.Context, ns string, knownVersion proto.ChunkVersion, forceRefresh bool) (proto.ChunkDelta, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.deltas[ns]
	if len(seq) == 0 {
		return proto.ChunkDelta{}, nil
	}
	d := seq[0]
	if len(seq) > 1 {
		f.deltas[ns] = seq[1:]
	}
	return d, nil
}

func pattern() proto.KeyPattern {
	return proto.KeyPattern{{Field: "x", Direction: proto.Ascending}}
}

func meta(ns string, epoch proto.Epoch) proto.CollectionMeta {
	return proto.CollectionMeta{Namespace: ns, KeyPattern: pattern(), Epoch: epoch, Sharded: true}
}

func fullChunk(min, max interface{}, shard proto.ShardId, minor uint64, epoch proto.Epoch) proto.Chunk {
	return proto.Chunk{
		Min:     proto.ShardKeyDoc{min},
		Max:     proto.ShardKeyDoc{max},
		ShardId: shard,
		Version: proto.ChunkVersion{Major: 1, Minor: minor, Epoch: epoch},
	}
}

func TestGetRoutingInfoColdMiss(t *testing.T) {
	epoch := proto.NewEpoch()
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{
		"db.coll": {{
			Meta: meta("db.coll", epoch),
			Full: true,
			Chunks: []proto.Chunk{
				fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch),
			},
		}},
	}}

	cache := NewCatalogueCache(up, nil, nil)
	res, err := cache.GetRoutingInfo(context.Background(), "db.coll", false)
	require.NoError(t, err)
	require.True(t, res.Sharded)
	require.Equal(t, 1, res.Table.NumChunks())
}

func TestGetRoutingInfoUnsharded(t *testing.T) {
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{
		"db.small": {{
			Meta: proto.CollectionMeta{Namespace: "db.small", Sharded: false, PrimaryShardId: "shardX"},
		}},
	}}

	cache := NewCatalogueCache(up, nil, nil)
	res, err := cache.GetRoutingInfo(context.Background(), "db.small", false)
	require.NoError(t, err)
	require.False(t, res.Sharded)
	require.Equal(t, proto.ShardId("shardX"), res.PrimaryShardId)
}

func TestGetRoutingInfoCachesBetweenCalls(t *testing.T) {
	epoch := proto.NewEpoch()
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{
		"db.coll": {{
			Meta:   meta("db.coll", epoch),
			Full:   true,
			Chunks: []proto.Chunk{fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch)},
		}},
	}}

	cache := NewCatalogueCache(up, nil, nil)
	ctx := context.Background()
	_, err := cache.GetRoutingInfo(ctx, "db.coll", false)
	require.NoError(t, err)
	_, err = cache.GetRoutingInfo(ctx, "db.coll", false)
	require.NoError(t, err)

	require.EqualValues(t, 1, atomic.LoadInt32(&up.calls))
}

func TestGetRoutingInfoForceRefreshAppliesIncrementalDelta(t *testing.T) {
	epoch := proto.NewEpoch()
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{
		"db.coll": {
			{
				Meta:   meta("db.coll", epoch),
				Full:   true,
				Chunks: []proto.Chunk{fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch)},
			},
			{
				Meta: meta("db.coll", epoch),
				Full: false,
				Chunks: []proto.Chunk{
					fullChunk(proto.MinKey, 10.0, "shard0", 1, epoch),
					fullChunk(10.0, proto.MaxKey, "shard1", 1, epoch),
				},
			},
		},
	}}

	cache := NewCatalogueCache(up, nil, nil)
	ctx := context.Background()

	res1, err := cache.GetRoutingInfo(ctx, "db.coll", false)
	require.NoError(t, err)
	require.Equal(t, 1, res1.Table.NumChunks())

	res2, err := cache.GetRoutingInfo(ctx, "db.coll", true)
	require.NoError(t, err)
	require.Equal(t, 2, res2.Table.NumChunks())
	require.ElementsMatch(t, []proto.ShardId{"shard0", "shard1"}, res2.Table.GetAllShardIds())
}

func TestGetRoutingInfoConcurrentForceRefreshCoalesces(t *testing.T) {
	epoch := proto.NewEpoch()
	var inFlight int32
	up := &fakeUpstream{
		deltas: map[string][]proto.ChunkDelta{
			"db.coll": {{
				Meta:   meta("db.coll", epoch),
				Full:   true,
				Chunks: []proto.Chunk{fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch)},
			}},
		},
		onCall: func() { atomic.AddInt32(&inFlight, 1) },
	}

	cache := NewCatalogueCache(up, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetRoutingInfo(ctx, "db.coll", true)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&up.calls), int32(8))
}

func TestListShardedCollectionsDelegates(t *testing.T) {
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{"db.a": nil, "db.b": nil}}
	cache := NewCatalogueCache(up, nil, nil)
	names, err := cache.ListShardedCollections(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"db.a", "db.b"}, names)
}

func TestInvalidateForcesUpstreamPull(t *testing.T) {
	epoch := proto.NewEpoch()
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{
		"db.coll": {
			{Meta: meta("db.coll", epoch), Full: true, Chunks: []proto.Chunk{fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch)}},
			{Meta: meta("db.coll", epoch), Full: true, Chunks: []proto.Chunk{fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch)}},
		},
	}}
	cache := NewCatalogueCache(up, nil, nil)
	ctx := context.Background()

	_, err := cache.GetRoutingInfo(ctx, "db.coll", false)
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&up.calls))

	cache.Invalidate("db.coll")
	_, err = cache.GetRoutingInfo(ctx, "db.coll", false)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&up.calls))
}

func TestPeekReturnsCachedSnapshotWithoutRefreshing(t *testing.T) {
	up := &fakeUpstream{deltas: map[string][]proto.ChunkDelta{}}
	cache := NewCatalogueCache(up, nil, nil)

	_, ok := cache.Peek("db.unknown")
	require.False(t, ok)

	epoch := proto.NewEpoch()
	up.deltas["db.coll"] = []proto.ChunkDelta{{
		Meta:   meta("db.coll", epoch),
		Full:   true,
		Chunks: []proto.Chunk{fullChunk(proto.MinKey, proto.MaxKey, "shard0", 0, epoch)},
	}}
	_, err := cache.GetRoutingInfo(context.Background(), "db.coll", false)
	require.NoError(t, err)

	r, ok := cache.Peek("db.coll")
	require.True(t, ok)
	require.True(t, r.Sharded)
}
