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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// fakeCatalogueServer stands in for the catalogue-metadata store's gRPC
// server, which is out of scope for this module — it exists only to
// drive CatalogueClient end to end and catch codec mismatches the unit
// tests around the resolver and dial defaults never would.
type fakeCatalogueServer struct {
	namespaces []string
	delta      ChunkDelta
}

func (s *fakeCatalogueServer) listShardedCollections(context.Context, *ListShardedCollectionsRequest) (*ListShardedCollectionsResponse, error) {
	return &ListShardedCollectionsResponse{Namespaces: s.namespaces}, nil
}

func (s *fakeCatalogueServer) getChunkDelta(context.Context, *GetChunkDeltaRequest) (*GetChunkDeltaResponse, error) {
	return &GetChunkDeltaResponse{Delta: s.delta}, nil
}

// fakeCatalogueServiceDesc hand-wires the two RPCs to fakeCatalogueServer,
// the same shape protoc-gen-go-grpc emits for a server stub, since no
// such generated stub exists for this boundary (the catalogue-metadata
// store's own server is a named Non-goal).
var fakeCatalogueServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogueServiceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListShardedCollections",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(ListShardedCollectionsRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(*fakeCatalogueServer).listShardedCollections(ctx, in)
			},
		},
		{
			MethodName: "GetChunkDelta",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(GetChunkDeltaRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(*fakeCatalogueServer).getChunkDelta(ctx, in)
			},
		},
	},
}

func dialFakeCatalogue(t *testing.T, impl *fakeCatalogueServer) (CatalogueClient, func()) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&fakeCatalogueServiceDesc, impl)
	go srv.Serve(lis)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(JSONCodecName)),
	)
	require.NoError(t, err)

	return NewCatalogueClient(conn), func() {
		conn.Close()
		srv.Stop()
	}
}

func TestCatalogueClientListShardedCollectionsRoundTripsThroughRealServer(t *testing.T) {
	client, closeAll := dialFakeCatalogue(t, &fakeCatalogueServer{namespaces: []string{"db.a", "db.b"}})
	defer closeAll()

	resp, err := client.ListShardedCollections(context.Background(), &ListShardedCollectionsRequest{})
	require.NoError(t, err)
	require.Equal(t, []string{"db.a", "db.b"}, resp.Namespaces)
}

func TestCatalogueClientGetChunkDeltaRoundTripsThroughRealServer(t *testing.T) {
	epoch := NewEpoch()
	delta := ChunkDelta{
		Meta: CollectionMeta{Namespace: "db.a", Epoch: epoch, Sharded: true},
		Full: true,
		Chunks: []Chunk{
			{Namespace: "db.a", Min: MinKeyDoc(1), Max: MaxKeyDoc(1), ShardId: "s0", Version: ChunkVersion{Major: 1, Epoch: epoch}},
		},
	}
	client, closeAll := dialFakeCatalogue(t, &fakeCatalogueServer{delta: delta})
	defer closeAll()

	resp, err := client.GetChunkDelta(context.Background(), &GetChunkDeltaRequest{Namespace: "db.a"})
	require.NoError(t, err)
	require.Equal(t, delta.Meta.Namespace, resp.Delta.Meta.Namespace)
	require.True(t, resp.Delta.Full)
	require.Len(t, resp.Delta.Chunks, 1)
	require.Equal(t, ShardId("s0"), resp.Delta.Chunks[0].ShardId)

	// The JSON codec must preserve MinKey/MaxKey sentinel identity across
	// the wire, not decode them back into a literal string or map.
	require.True(t, IsMinKey(resp.Delta.Chunks[0].Min[0]))
	require.True(t, IsMaxKey(resp.Delta.Chunks[0].Max[0]))
}
