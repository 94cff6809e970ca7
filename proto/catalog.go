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

// Collation carries the locale-sensitive string-comparison rules used to
// target a query. The empty Collation means "use the collection default".
type Collation struct {
	Locale   string
	Strength int
}

func (c Collation) IsEmpty() bool { return c == Collation{} }

func (c Collation) Equal(other Collation) bool { return c == other }

// CollectionMeta is the sharding metadata of one namespace, as carried by
// the upstream catalogue-metadata store.
type CollectionMeta struct {
	Namespace        string
	KeyPattern       KeyPattern
	DefaultCollation Collation
	Unique           bool
	Epoch            Epoch

	// Sharded is false for namespaces the catalogue still owns but has
	// not sharded; GetRoutingInfo answers these with PrimaryShardId
	// instead of a RoutingTable.
	Sharded        bool
	PrimaryShardId ShardId
}

// ChunkDelta is what the CatalogueCache boundary returns for one
// collection: either the full chunk list (cold miss) or the chunks that
// changed since the caller's last known version (warm refresh), always
// sorted ascending by ChunkVersion and all carrying CollectionMeta.Epoch.
type ChunkDelta struct {
	Meta   CollectionMeta
	Chunks []Chunk
	Full   bool
}
