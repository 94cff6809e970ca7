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
	"context"

	"google.golang.org/grpc"
)

// ListShardedCollectionsRequest/Response and GetChunkDeltaRequest/Response
// are the wire messages the routing tier exchanges with the upstream
// catalogue-metadata store. They carry no BSON, unlike the original — the
// catalogue boundary here is plain protobuf-shaped structs over gRPC.
type (
	ListShardedCollectionsRequest struct{}

	ListShardedCollectionsResponse struct {
		Namespaces []string
	}

	GetChunkDeltaRequest struct {
		Namespace    string
		KnownVersion ChunkVersion
		ForceRefresh bool
	}

	GetChunkDeltaResponse struct {
		Delta ChunkDelta
	}
)

// CatalogueServiceName is the gRPC service name the upstream
// catalogue-metadata store registers under.
const CatalogueServiceName = "catalogue.Catalogue"

// CatalogueClient is the generated-shape gRPC client interface for the
// catalogue-metadata store boundary. Its two methods are exactly
// UpstreamClient's, expressed as proto request/response pairs instead of
// Go-native arguments.
type CatalogueClient interface {
	ListShardedCollections(ctx context.Context, in *ListShardedCollectionsRequest, opts ...grpc.CallOption) (*ListShardedCollectionsResponse, error)
	GetChunkDelta(ctx context.Context, in *GetChunkDeltaRequest, opts ...grpc.CallOption) (*GetChunkDeltaResponse, error)
}

type catalogueClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogueClient(cc grpc.ClientConnInterface) CatalogueClient {
	return &catalogueClient{cc: cc}
}

func (c *catalogueClient) ListShardedCollections(ctx context.Context, in *ListShardedCollectionsRequest, opts ...grpc.CallOption) (*ListShardedCollectionsResponse, error) {
	out := new(ListShardedCollectionsResponse)
	if err := c.cc.Invoke(ctx, "/"+CatalogueServiceName+"/ListShardedCollections", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *catalogueClient) GetChunkDelta(ctx context.Context, in *GetChunkDeltaRequest, opts ...grpc.CallOption) (*GetChunkDeltaResponse, error) {
	out := new(GetChunkDeltaResponse)
	if err := c.cc.Invoke(ctx, "/"+CatalogueServiceName+"/GetChunkDelta", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
