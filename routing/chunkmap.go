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

	"github.com/google/btree"
)

// chunkMapDegree is the btree node fan-out for inner buckets. It is a
// tuning knob only; it has no relation to B, the chunk-count ceiling.
const chunkMapDegree = 32

// ChunkMap is one inner bucket: an ordered map from the encoded max of a
// chunk to the chunk itself, holding at most B contiguous chunks.
type ChunkMap struct {
	tree *btree.BTreeG[chunkEntry]
}

func newChunkMap() *ChunkMap {
	return &ChunkMap{tree: btree.NewG(chunkMapDegree, chunkLess)}
}

// clone is O(1): google/btree.Clone marks the root copy-on-write and only
// materialises new nodes on the first write that touches them, which is
// exactly the sharing guarantee makeUpdated needs between snapshots.
func (m *ChunkMap) clone() *ChunkMap {
	return &ChunkMap{tree: m.tree.Clone()}
}

func (m *ChunkMap) Len() int { return m.tree.Len() }

func (m *ChunkMap) put(e chunkEntry) { m.tree.ReplaceOrInsert(e) }

func (m *ChunkMap) delete(e chunkEntry) { m.tree.Delete(e) }

// upperBound returns the first entry whose key is strictly greater than
// key, mirroring std::map::upper_bound used throughout the source
// algorithm. Because chunks are keyed by their exclusive max, this is the
// chunk that may contain key.
func (m *ChunkMap) upperBound(key []byte) (chunkEntry, bool) {
	var found chunkEntry
	ok := false
	m.tree.AscendGreaterOrEqual(chunkEntry{maxKey: key}, func(e chunkEntry) bool {
		if bytes.Equal(e.maxKey, key) {
			return true
		}
		found = e
		ok = true
		return false
	})
	return found, ok
}

// ascendRange visits entries with lo <= key <= hi in ascending order.
func (m *ChunkMap) ascendRange(lo, hi []byte, fn func(chunkEntry) bool) {
	m.tree.AscendGreaterOrEqual(chunkEntry{maxKey: lo}, func(e chunkEntry) bool {
		if bytes.Compare(e.maxKey, hi) > 0 {
			return false
		}
		return fn(e)
	})
}

// deleteOverlapping removes every entry whose key lies in (lo, hi] — the
// exact range build/makeUpdated must clear before inserting a chunk keyed
// by hi, since any surviving entry in that range would overlap it.
func (m *ChunkMap) deleteOverlapping(lo, hi []byte) []chunkEntry {
	var removed []chunkEntry
	m.ascendRange(lo, hi, func(e chunkEntry) bool {
		if bytes.Equal(e.maxKey, lo) {
			return true
		}
		removed = append(removed, e)
		return true
	})
	for _, e := range removed {
		m.delete(e)
	}
	return removed
}

// ascendOverlapping visits every entry whose chunk range can overlap
// [minKey, maxKey]: starting just past minKey (an entry keyed exactly at
// minKey ends there, exclusive, and cannot overlap) and continuing past
// maxKey by exactly one entry, since that entry's own min may still be
// below maxKey even though its max reaches beyond it.
func (m *ChunkMap) ascendOverlapping(minKey, maxKey []byte, fn func(chunkEntry) bool) {
	m.tree.AscendGreaterOrEqual(chunkEntry{maxKey: minKey}, func(e chunkEntry) bool {
		if bytes.Equal(e.maxKey, minKey) {
			return true
		}
		if !fn(e) {
			return false
		}
		return bytes.Compare(e.maxKey, maxKey) < 0
	})
}

func (m *ChunkMap) ascend(fn func(chunkEntry) bool) { m.tree.Ascend(fn) }

func (m *ChunkMap) min() (chunkEntry, bool) { return m.tree.Min() }

func (m *ChunkMap) max() (chunkEntry, bool) { return m.tree.Max() }

// splitTopK splits m into buckets of at most k chunks, filling from the
// largest key downward so a partially-filled bucket ends up holding the
// smallest keys — this keeps the split point for future deltas stable,
// per the build algorithm's fourth step.
func splitTopK(m *ChunkMap, k int) []*ChunkMap {
	var all []chunkEntry
	m.ascend(func(e chunkEntry) bool {
		all = append(all, e)
		return true
	})
	if len(all) == 0 {
		return nil
	}

	var buckets []*ChunkMap
	for end := len(all); end > 0; {
		start := end - k
		if start < 0 {
			start = 0
		}
		b := newChunkMap()
		for _, e := range all[start:end] {
			b.put(e)
		}
		buckets = append(buckets, b)
		end = start
	}
	// buckets were appended largest-keys-first; reverse to ascending order.
	for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
		buckets[i], buckets[j] = buckets[j], buckets[i]
	}
	return buckets
}
