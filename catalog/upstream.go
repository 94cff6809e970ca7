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

// Package catalog is the CatalogueCache boundary: it fronts the upstream
// catalogue-metadata store with a per-namespace RoutingTable cache, and
// is the only component that invokes the RoutingTableBuilder.
package catalog

import (
	"context"

	"github.com/cubefs/routingindex/proto"
)

// UpstreamClient is the opaque upstream this cache pulls from: given a
// namespace, it returns an ordered-by-version list of chunks (full on
// cold miss or epoch change, incremental on warm refresh) plus the
// collection's current metadata.
type UpstreamClient interface {
	// ListShardedCollections returns every namespace the catalogue
	// currently reports as sharded.
	ListShardedCollections(ctx context.Context) ([]string, error)

	// GetChunkDelta returns the chunks that changed since knownVersion
	// (or the full chunk list when knownVersion is the zero value or the
	// namespace's epoch does not match), plus the namespace's current
	// CollectionMeta. forceRefresh asks the upstream to pull its latest
	// chunk state before answering.
	GetChunkDelta(ctx context.Context, ns string, knownVersion proto.ChunkVersion, forceRefresh bool) (proto.ChunkDelta, error)
}
