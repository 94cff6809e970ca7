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

package proto

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Direction is one of the three orderings a shard-key field can carry.
type Direction int

const (
	Ascending Direction = iota
	Descending
	Hashed
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	case Hashed:
		return "hashed"
	default:
		return "unknown"
	}
}

// KeyField is one (field, direction) pair of a shard-key pattern.
type KeyField struct {
	Field     string
	Direction Direction
}

// KeyPattern is the ordered list of fields a collection is sharded on.
type KeyPattern []KeyField

func (p KeyPattern) Fields() []string {
	out := make([]string, len(p))
	for i, f := range p {
		out[i] = f.Field
	}
	return out
}

// Len returns the number of fields in the pattern. Whether a key is
// collation-sensitive depends on its runtime values, not on the pattern,
// so that is decided per document by shardkey.ContainsStringType.
func (p KeyPattern) Len() int { return len(p) }

// ShardKeyDoc is the positional value tuple extracted from a document for
// one KeyPattern. Values are compared positionally; field names carried in
// the original document are discarded, matching spec.md's "field
// stripping" requirement.
type ShardKeyDoc []interface{}

// MinKey and MaxKey are the sentinel boundary values of the keyspace. A
// real value never equals either sentinel; they only ever appear in
// Chunk.Min / Chunk.Max.
type minKeyType struct{}
type maxKeyType struct{}

// minKeyJSONToken/maxKeyJSONToken are the sentinels' wire representation.
// A bare Go struct marshals to "{}" and decodes back into a
// map[string]interface{}, losing its identity, so minKeyType/maxKeyType
// marshal to a reserved string token instead; ShardKeyDoc.UnmarshalJSON
// recognizes the token and restores the sentinel rather than decoding it
// as a literal string value.
const (
	minKeyJSONToken = "$routingIndexMinKey"
	maxKeyJSONToken = "$routingIndexMaxKey"
)

func (minKeyType) MarshalJSON() ([]byte, error) { return json.Marshal(minKeyJSONToken) }
func (maxKeyType) MarshalJSON() ([]byte, error) { return json.Marshal(maxKeyJSONToken) }

var (
	MinKey interface{} = minKeyType{}
	MaxKey interface{} = maxKeyType{}
)

// IsMinKey and IsMaxKey test a single positional value for a sentinel.
func IsMinKey(v interface{}) bool { _, ok := v.(minKeyType); return ok }
func IsMaxKey(v interface{}) bool { _, ok := v.(maxKeyType); return ok }

// MinKeyDoc / MaxKeyDoc build a full ShardKeyDoc of sentinels for a
// pattern of the given width, used as Chunk.Min/Chunk.Max at the ends of
// the keyspace.
func MinKeyDoc(width int) ShardKeyDoc {
	d := make(ShardKeyDoc, width)
	for i := range d {
		d[i] = MinKey
	}
	return d
}

func MaxKeyDoc(width int) ShardKeyDoc {
	d := make(ShardKeyDoc, width)
	for i := range d {
		d[i] = MaxKey
	}
	return d
}

// UnmarshalJSON restores MinKey/MaxKey sentinels by token instead of
// decoding every element as a bare interface{}, which would otherwise
// turn a sentinel's marshaled string token back into a literal string.
func (d *ShardKeyDoc) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(ShardKeyDoc, len(raw))
	for i, r := range raw {
		var tok string
		if err := json.Unmarshal(r, &tok); err == nil {
			switch tok {
			case minKeyJSONToken:
				out[i] = MinKey
				continue
			case maxKeyJSONToken:
				out[i] = MaxKey
				continue
			}
		}
		var v interface{}
		if err := json.Unmarshal(r, &v); err != nil {
			return err
		}
		out[i] = v
	}
	*d = out
	return nil
}

// Epoch identifies a collection's sharding incarnation. It changes only
// when the collection is dropped and re-sharded, invalidating every prior
// routing snapshot and in-flight delta for the old incarnation.
type Epoch uuid.UUID

func NewEpoch() Epoch { return Epoch(uuid.New()) }

func (e Epoch) String() string { return uuid.UUID(e).String() }

func (e Epoch) IsZero() bool { return e == Epoch{} }

// ChunkVersion is the triple (major, minor, epoch) versioning scheme of
// one chunk. Comparisons within one epoch are lexicographic on
// (Major, Minor); across epochs a version is incomparable and callers
// must detect the epoch mismatch explicitly.
type ChunkVersion struct {
	Major uint64
	Minor uint64
	Epoch Epoch
}

// Less reports whether v is strictly older than other within the same
// epoch. Callers must check SameEpoch first.
func (v ChunkVersion) Less(other ChunkVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

func (v ChunkVersion) SameEpoch(other ChunkVersion) bool { return v.Epoch == other.Epoch }

func (v ChunkVersion) IsZero() bool { return v.Major == 0 && v.Minor == 0 && v.Epoch.IsZero() }

func (v ChunkVersion) String() string {
	return fmt.Sprintf("%d|%d||%s", v.Major, v.Minor, v.Epoch)
}

// Chunk is the immutable descriptor of one chunk of keyspace.
type Chunk struct {
	Namespace string
	Min       ShardKeyDoc
	Max       ShardKeyDoc
	ShardId   ShardId
	Version   ChunkVersion
}
