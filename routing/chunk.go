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

// Package routing holds the two-level ordered map (TopIndex over ChunkMap
// buckets) that answers shard-key targeting for one collection, and the
// builder that produces new immutable snapshots from a chunk delta.
package routing

import (
	"bytes"

	"github.com/cubefs/routingindex/proto"
	"github.com/cubefs/routingindex/shardkey"
)

// chunkEntry is the item type stored in a ChunkMap, keyed by the encoded
// max of the chunk it carries.
type chunkEntry struct {
	maxKey []byte
	chunk  proto.Chunk
}

func chunkLess(a, b chunkEntry) bool { return bytes.Compare(a.maxKey, b.maxKey) < 0 }

func newChunkEntry(c proto.Chunk, pattern proto.KeyPattern) chunkEntry {
	return chunkEntry{maxKey: shardkey.Encode(c.Max, pattern), chunk: c}
}

// contains reports whether key falls in [chunk.min, chunk.max) under the
// encoded byte ordering, used as the sanity check findIntersectingChunk
// performs after the two-level lookup.
func (e chunkEntry) contains(key []byte, pattern proto.KeyPattern) bool {
	minKey := shardkey.Encode(e.chunk.Min, pattern)
	return shardkey.Compare(minKey, key) <= 0 && shardkey.Compare(key, e.maxKey) < 0
}
