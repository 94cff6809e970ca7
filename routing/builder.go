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
	"github.com/cubefs/routingindex/errors"
	"github.com/cubefs/routingindex/proto"
	"github.com/cubefs/routingindex/shardkey"
)

// DefaultBucketSize is B from the routing-table design: the maximum
// number of chunks one inner ChunkMap may hold before the builder opens
// another bucket.
const DefaultBucketSize = 10000

// RoutingTableBuilder constructs RoutingTable snapshots, either from a
// full chunk list (Build) or incrementally against a prior snapshot
// (MakeUpdated), sharing every untouched bucket between the two.
type RoutingTableBuilder struct {
	// BucketSize overrides DefaultBucketSize; zero means use the default.
	BucketSize int
}

func (b *RoutingTableBuilder) bucketSize() int {
	if b.BucketSize > 0 {
		return b.BucketSize
	}
	return DefaultBucketSize
}

// Build constructs a fresh RoutingTable from a complete chunk set.
// changedChunks must be sorted in ascending chunk-version order and all
// carry epoch; meta.Epoch is the table's declared epoch.
func (b *RoutingTableBuilder) Build(meta proto.CollectionMeta, changedChunks []proto.Chunk) (*RoutingTable, error) {
	temp := newChunkMap()
	for _, c := range changedChunks {
		if c.Version.Epoch != meta.Epoch {
			return nil, errors.ErrConflictingOperationInProgress
		}
		entry := newChunkEntry(c, meta.KeyPattern)
		minKey := shardkey.Encode(c.Min, meta.KeyPattern)
		temp.deleteOverlapping(minKey, entry.maxKey)
		temp.put(entry)
	}

	if err := verifyFullCoverage(temp, meta.KeyPattern); err != nil {
		return nil, err
	}

	shardVersions := sweepShardVersions(temp)
	top := newTopIndex()
	for _, bucket := range splitTopK(temp, b.bucketSize()) {
		last, _ := bucket.max()
		top.put(bucketEntry{lastMax: last.maxKey, bucket: bucket})
	}

	return &RoutingTable{
		Namespace:         meta.Namespace,
		KeyPattern:        meta.KeyPattern,
		DefaultCollation:  meta.DefaultCollation,
		Unique:            meta.Unique,
		Epoch:             meta.Epoch,
		CollectionVersion: maxShardVersion(shardVersions, meta.Epoch),
		Seq:               1,
		top:               top,
		shardVersions:     shardVersions,
	}, nil
}

// MakeUpdated produces a new snapshot from prev that shares every bucket
// the delta does not touch. changedChunks must carry prev's epoch; any
// mismatch fails with ConflictingOperationInProgress and leaves prev
// untouched and still usable. A delta chunk whose range the current
// TopIndex cannot locate is an InvariantViolation — the in-memory view
// cannot be trusted to route correctly after that and the caller should
// treat it as fatal.
func (b *RoutingTableBuilder) MakeUpdated(prev *RoutingTable, changedChunks []proto.Chunk) (*RoutingTable, error) {
	for _, c := range changedChunks {
		if c.Version.Epoch != prev.Epoch {
			return nil, errors.ErrConflictingOperationInProgress
		}
	}

	newTop := prev.top.clone()
	shardVersions := make(map[proto.ShardId]proto.ChunkVersion, len(prev.shardVersions))
	for id, v := range prev.shardVersions {
		shardVersions[id] = v
	}

	// copied buckets are looked up against prev.top, not newTop, so that
	// multiple delta chunks falling in the same original bucket keep
	// resolving to the one in-progress copy even though newTop itself
	// is not mutated until every chunk has been applied.
	copied := make(map[string]*ChunkMap)

	for _, c := range changedChunks {
		entry := newChunkEntry(c, prev.KeyPattern)
		minKey := shardkey.Encode(c.Min, prev.KeyPattern)

		be, ok := prev.top.ceiling(entry.maxKey)
		if !ok {
			return nil, errors.ErrInvariantViolation
		}

		origKey := string(be.lastMax)
		bucket, ok := copied[origKey]
		if !ok {
			bucket = be.bucket.clone()
			copied[origKey] = bucket
		}

		bucket.deleteOverlapping(minKey, entry.maxKey)
		bucket.put(entry)

		if existing, ok := shardVersions[c.ShardId]; !ok || existing.Less(c.Version) {
			shardVersions[c.ShardId] = c.Version
		}
	}

	for origKey, bucket := range copied {
		newTop.delete(bucketEntry{lastMax: []byte(origKey)})
		for _, resized := range splitTopK(bucket, b.bucketSize()) {
			last, _ := resized.max()
			newTop.put(bucketEntry{lastMax: last.maxKey, bucket: resized})
		}
	}

	return &RoutingTable{
		Namespace:         prev.Namespace,
		KeyPattern:        prev.KeyPattern,
		DefaultCollation:  prev.DefaultCollation,
		Unique:            prev.Unique,
		Epoch:             prev.Epoch,
		CollectionVersion: maxShardVersion(shardVersions, prev.Epoch),
		Seq:               prev.Seq + 1,
		top:               newTop,
		shardVersions:     shardVersions,
	}, nil
}

// verifyFullCoverage checks that temp's smallest min is MinKey and its
// largest max is MaxKey, for every field of pattern.
func verifyFullCoverage(temp *ChunkMap, pattern proto.KeyPattern) error {
	first, ok := temp.min()
	if !ok {
		return errors.ErrConflictingOperationInProgress
	}
	last, ok := temp.max()
	if !ok {
		return errors.ErrConflictingOperationInProgress
	}
	if !isAllSentinel(first.chunk.Min, proto.IsMinKey) || !isAllSentinel(last.chunk.Max, proto.IsMaxKey) {
		return errors.ErrConflictingOperationInProgress
	}
	return nil
}

func isAllSentinel(doc proto.ShardKeyDoc, is func(interface{}) bool) bool {
	if len(doc) == 0 {
		return false
	}
	for _, v := range doc {
		if !is(v) {
			return false
		}
	}
	return true
}

// sweepShardVersions does a single pass over temp, tracking the maximum
// chunk version observed per shard.
func sweepShardVersions(temp *ChunkMap) map[proto.ShardId]proto.ChunkVersion {
	out := make(map[proto.ShardId]proto.ChunkVersion)
	temp.ascend(func(e chunkEntry) bool {
		if existing, ok := out[e.chunk.ShardId]; !ok || existing.Less(e.chunk.Version) {
			out[e.chunk.ShardId] = e.chunk.Version
		}
		return true
	})
	return out
}

func maxShardVersion(shardVersions map[proto.ShardId]proto.ChunkVersion, epoch proto.Epoch) proto.ChunkVersion {
	max := proto.ChunkVersion{Epoch: epoch}
	for _, v := range shardVersions {
		if max.Less(v) {
			max = v
		}
	}
	return max
}
