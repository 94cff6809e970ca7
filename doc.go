/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# RoutingIndex: a sharded-collection query router

## What this is

A routing tier that sits in front of a sharded collection and answers,
for a given shard key, range, or query filter, which shard(s) own the
matching data — without touching the data itself. It is the in-memory
half of a mongos-style query router: the catalogue-metadata store owns
the durable chunk list; this module turns that list into a structure fast
enough to consult on every request.

## Data Model

* KeyEncoder turns a document's shard-key fields into an order-preserving
  byte string, so chunk boundaries can be compared with plain byte
  comparison instead of re-parsing values every lookup.

* Chunk, the unit of ownership: a half-open [min, max) range of shard-key
  space assigned to one shard, carrying a (major, minor, epoch) version.

* ChunkMap/TopIndex, a two-level ordered map: TopIndex buckets the
  keyspace into B-sized ChunkMap segments, so updating one bucket never
  touches the others — the basis for cheap copy-on-write snapshots.

* RoutingTable, one collection's immutable snapshot: the two-level map
  plus per-shard version bookkeeping, safe to share across goroutines
  without locking.

## Architecture

* RoutingTableBuilder turns a chunk delta into a new RoutingTable,
  either from scratch (Build) or incrementally against a prior snapshot
  (MakeUpdated), sharing every bucket the delta does not touch.

* CatalogueCache is the boundary to the upstream catalogue-metadata
  store: one cached RoutingTable per namespace, refreshed on demand or in
  the background.

* Refresher periodically re-pulls every sharded namespace's routing
  table on secondaries, bounded by a count-based Limiter.

* adminserver exposes dumpChunks and getShardInfoWithQuery over HTTP for
  operators and client-driver explain paths.

## Building Blocks

* google/btree
* gRPC
* Prometheus

*/

package routingindex
