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

package routing

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/cubefs/routingindex/errors"
	"github.com/cubefs/routingindex/proto"
	"github.com/cubefs/routingindex/shardkey"
)

// RoutingTable is an immutable per-collection snapshot: the two-level
// ordered map plus everything needed to target a shard-key, range, or
// query without revisiting the catalogue. Callers hold it behind a shared
// reference; it is never mutated after a builder hands it out.
type RoutingTable struct {
	Namespace         string
	KeyPattern        proto.KeyPattern
	DefaultCollation  proto.Collation
	Unique            bool
	Epoch             proto.Epoch
	CollectionVersion proto.ChunkVersion
	Seq               uint64

	top           *TopIndex
	shardVersions map[proto.ShardId]proto.ChunkVersion
}

// FindIntersectingChunk returns the unique chunk whose [min, max) contains
// shardKey. collation must agree with the collection default whenever the
// key touches a collation-sensitive string field, otherwise targeting is
// unsafe and ShardKeyNotFound is returned.
func (rt *RoutingTable) FindIntersectingChunk(doc proto.ShardKeyDoc, collation proto.Collation) (proto.Chunk, error) {
	if !collation.IsEmpty() && !collation.Equal(rt.DefaultCollation) && shardkey.ContainsStringType(doc, rt.KeyPattern) {
		return proto.Chunk{}, errors.ErrShardKeyNotFound
	}
	return rt.findIntersectingChunk(doc)
}

// FindIntersectingChunkWithSimpleCollation is FindIntersectingChunk for
// callers that already know the simple (byte-wise) collation applies.
func (rt *RoutingTable) FindIntersectingChunkWithSimpleCollation(doc proto.ShardKeyDoc) (proto.Chunk, error) {
	return rt.findIntersectingChunk(doc)
}

func (rt *RoutingTable) findIntersectingChunk(doc proto.ShardKeyDoc) (proto.Chunk, error) {
	key := shardkey.Encode(doc, rt.KeyPattern)

	topEntry, ok := rt.top.upperBound(key)
	if !ok {
		return proto.Chunk{}, errors.ErrInvariantViolation
	}
	inner, ok := topEntry.bucket.upperBound(key)
	if !ok {
		return proto.Chunk{}, errors.ErrInvariantViolation
	}
	if !inner.contains(key, rt.KeyPattern) {
		return proto.Chunk{}, errors.ErrShardKeyNotFound
	}
	return inner.chunk, nil
}

// GetShardIdsForRange returns every shard id owning a chunk that overlaps
// [min, max], both bounds inclusive.
func (rt *RoutingTable) GetShardIdsForRange(minDoc, maxDoc proto.ShardKeyDoc) map[proto.ShardId]struct{} {
	out := make(map[proto.ShardId]struct{})
	minKey := shardkey.Encode(minDoc, rt.KeyPattern)
	maxKey := shardkey.Encode(maxDoc, rt.KeyPattern)
	total := len(rt.shardVersions)

	first, ok := rt.top.upperBound(minKey)
	if !ok {
		return out
	}
	topEnd, ok := rt.top.max()
	if !ok {
		return out
	}

	rt.top.ascendRange(first.lastMax, topEnd.lastMax, func(be bucketEntry) bool {
		be.bucket.ascendOverlapping(minKey, maxKey, func(ce chunkEntry) bool {
			out[ce.chunk.ShardId] = struct{}{}
			return !(total > 0 && len(out) >= total)
		})
		if total > 0 && len(out) >= total {
			return false
		}
		return bytes.Compare(be.lastMax, maxKey) < 0
	})
	return out
}

// GetShardIdsForQuery targets filter, falling back to bounds-based
// targeting whenever point targeting cannot be established, and to "all
// shards" whenever no narrower bound can be derived.
func (rt *RoutingTable) GetShardIdsForQuery(filter proto.Filter, collation proto.Collation) (map[proto.ShardId]struct{}, error) {
	if filter.GeoNear {
		return nil, errors.ErrGeoNearNotSupported
	}

	if doc, ok := extractEqualityDoc(filter, rt.KeyPattern); ok {
		if chunk, err := rt.FindIntersectingChunk(doc, collation); err == nil {
			return map[proto.ShardId]struct{}{chunk.ShardId: {}}, nil
		}
	}

	ranges, fallbackAll := deriveBounds(filter, rt.KeyPattern)
	if fallbackAll {
		return rt.allShardIdsSet(), nil
	}

	out := make(map[proto.ShardId]struct{})
	total := len(rt.shardVersions)
	for _, r := range ranges {
		for shardId := range rt.GetShardIdsForRange(r.min, r.max) {
			out[shardId] = struct{}{}
		}
		if total > 0 && len(out) >= total {
			break
		}
	}

	if len(out) == 0 {
		if first, ok := rt.firstShardId(); ok {
			out[first] = struct{}{}
		}
	}
	return out, nil
}

// GetAllShardIds returns every shard id the collection currently owns
// chunks on, sorted for deterministic callers.
func (rt *RoutingTable) GetAllShardIds() []proto.ShardId {
	out := make([]proto.ShardId, 0, len(rt.shardVersions))
	for id := range rt.shardVersions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (rt *RoutingTable) allShardIdsSet() map[proto.ShardId]struct{} {
	out := make(map[proto.ShardId]struct{}, len(rt.shardVersions))
	for id := range rt.shardVersions {
		out[id] = struct{}{}
	}
	return out
}

func (rt *RoutingTable) firstShardId() (proto.ShardId, bool) {
	ids := rt.GetAllShardIds()
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// NumChunks is the sum of bucket sizes across the whole TopIndex.
func (rt *RoutingTable) NumChunks() int { return rt.top.numChunks() }

// GetVersion returns the collection version: the max chunk version across
// every shard this table knows about.
func (rt *RoutingTable) GetVersion() proto.ChunkVersion { return rt.CollectionVersion }

// GetVersionForShard returns the highest chunk version recorded for
// shardId, or a zero version carrying this table's epoch when the shard
// is unknown.
func (rt *RoutingTable) GetVersionForShard(shardId proto.ShardId) proto.ChunkVersion {
	if v, ok := rt.shardVersions[shardId]; ok {
		return v
	}
	return proto.ChunkVersion{Epoch: rt.Epoch}
}

// IteratorChunks is an admin-oriented cursor over all chunks in key order,
// returning at most limit chunks starting at logical offset start, plus
// the total chunk count — computed in the same sweep used to collect the
// page, rather than a second pass over the index.
func (rt *RoutingTable) IteratorChunks(start, limit int) ([]proto.Chunk, int) {
	var result []proto.Chunk
	total := 0
	rt.top.ascend(func(be bucketEntry) bool {
		be.bucket.ascend(func(ce chunkEntry) bool {
			if total >= start && (limit <= 0 || len(result) < limit) {
				result = append(result, ce.chunk)
			}
			total++
			return true
		})
		return true
	})
	return result, total
}

// String is a pure formatter: it has no logging side effect, unlike the
// source's toString. Use Dump to write the same text to an arbitrary
// sink.
func (rt *RoutingTable) String() string {
	var buf bytes.Buffer
	rt.Dump(&buf)
	return buf.String()
}

// Dump writes this table's description to w.
func (rt *RoutingTable) Dump(w io.Writer) {
	fmt.Fprintf(w, "RoutingTable{ns=%s epoch=%s version=%s seq=%d chunks=%d shards=%d}",
		rt.Namespace, rt.Epoch, rt.CollectionVersion, rt.Seq, rt.NumChunks(), len(rt.shardVersions))
}
