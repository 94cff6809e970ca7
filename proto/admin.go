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

// DumpChunksRequest/Response back the dumpChunks admin command (spec.md §6).
type (
	DumpChunksRequest struct {
		Ns    string `json:"ns"`
		Start int    `json:"start"`
		Limit int    `json:"limit"`
		Print bool   `json:"print,omitempty"`
	}

	ChunkSummary struct {
		Min     ShardKeyDoc `json:"min"`
		Max     ShardKeyDoc `json:"max"`
		ShardId ShardId     `json:"shard"`
	}

	DumpChunksResponse struct {
		Chunks     []ChunkSummary `json:"chunks"`
		ChunksSize int            `json:"chunksSize"`
	}
)

// GetShardInfoWithQueryRequest/Response back the getShardInfoWithQuery
// admin command (spec.md §6).
type (
	GetShardInfoWithQueryRequest struct {
		Find      string    `json:"find"`
		Filter    Filter    `json:"filter"`
		Collation Collation `json:"collation,omitempty"`
	}

	ShardInfo struct {
		ShardName ShardId `json:"shardName"`
	}

	GetShardInfoWithQueryResponse struct {
		Shards []ShardInfo `json:"shards"`
	}
)
