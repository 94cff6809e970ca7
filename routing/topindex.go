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

const topIndexDegree = 32

// bucketEntry is the item type stored in a TopIndex, keyed by the encoded
// max of the last (largest) chunk its bucket holds.
type bucketEntry struct {
	lastMax []byte
	bucket  *ChunkMap
}

func bucketLess(a, b bucketEntry) bool { return bytes.Compare(a.lastMax, b.lastMax) < 0 }

// TopIndex is the outer level of the routing index: an ordered map from
// bucket-last-max to ChunkMap, covering [MinKey, MaxKey) in its entirety.
type TopIndex struct {
	tree *btree.BTreeG[bucketEntry]
}

func newTopIndex() *TopIndex {
	return &TopIndex{tree: btree.NewG(topIndexDegree, bucketLess)}
}

func (t *TopIndex) clone() *TopIndex {
	return &TopIndex{tree: t.tree.Clone()}
}

func (t *TopIndex) Len() int { return t.tree.Len() }

func (t *TopIndex) put(e bucketEntry) { t.tree.ReplaceOrInsert(e) }

func (t *TopIndex) delete(e bucketEntry) { t.tree.Delete(e) }

func (t *TopIndex) upperBound(key []byte) (bucketEntry, bool) {
	var found bucketEntry
	ok := false
	t.tree.AscendGreaterOrEqual(bucketEntry{lastMax: key}, func(e bucketEntry) bool {
		if bytes.Equal(e.lastMax, key) {
			return true
		}
		found = e
		ok = true
		return false
	})
	return found, ok
}

// ceiling returns the first entry whose key is greater than or equal to
// key — used to locate the bucket an updated chunk's max falls into,
// since a bucket's lastMax may exactly equal that chunk's encoded max.
func (t *TopIndex) ceiling(key []byte) (bucketEntry, bool) {
	var found bucketEntry
	ok := false
	t.tree.AscendGreaterOrEqual(bucketEntry{lastMax: key}, func(e bucketEntry) bool {
		found = e
		ok = true
		return false
	})
	return found, ok
}

func (t *TopIndex) ascendRange(lo, hi []byte, fn func(bucketEntry) bool) {
	t.tree.AscendGreaterOrEqual(bucketEntry{lastMax: lo}, func(e bucketEntry) bool {
		if bytes.Compare(e.lastMax, hi) > 0 {
			return false
		}
		return fn(e)
	})
}

func (t *TopIndex) ascend(fn func(bucketEntry) bool) { t.tree.Ascend(fn) }

func (t *TopIndex) min() (bucketEntry, bool) { return t.tree.Min() }

func (t *TopIndex) max() (bucketEntry, bool) { return t.tree.Max() }

// numChunks sums bucket sizes across the whole index.
func (t *TopIndex) numChunks() int {
	n := 0
	t.ascend(func(e bucketEntry) bool {
		n += e.bucket.Len()
		return true
	})
	return n
}
