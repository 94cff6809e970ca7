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

package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/resolver"

	"github.com/cubefs/routingindex/proto"
)

// staticListResolverSchema is the scheme the CatalogueClient dials
// through when it is given a fixed, comma-separated endpoint list rather
// than discovering the catalogue-metadata store through some other
// service-discovery mechanism.
const staticListResolverSchema = "catalogue-static"

func init() {
	resolver.Register(&staticListBuilder{})
}

type staticListBuilder struct{}

func (staticListBuilder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	r := &staticListResolver{endpoints: strings.Split(target.Endpoint(), ","), cc: cc}
	r.ResolveNow(resolver.ResolveNowOptions{})
	return r, nil
}

func (staticListBuilder) Scheme() string { return staticListResolverSchema }

// staticListResolver hands gRPC a fixed address set once, unconditionally.
// It never re-resolves: the catalogue-metadata store's own membership
// changes are out of scope here (spec.md §1's boundary), so clients are
// expected to be reconfigured and restarted on a membership change.
type staticListResolver struct {
	endpoints []string
	cc        resolver.ClientConn
}

func (r *staticListResolver) ResolveNow(resolver.ResolveNowOptions) {
	addresses := make([]resolver.Address, len(r.endpoints))
	for i, addr := range r.endpoints {
		addresses[i] = resolver.Address{Addr: addr, ServerName: fmt.Sprintf("catalogue-%d", i+1)}
	}
	r.cc.UpdateState(resolver.State{Addresses: addresses})
}

func (r *staticListResolver) Close() {}

// TransportConfig dials the upstream catalogue-metadata store.
type TransportConfig struct {
	// Endpoints is a comma-separated host:port list of catalogue-metadata
	// store replicas.
	Endpoints string `json:"endpoints"`

	DialTimeoutMs int `json:"dial_timeout_ms"`
}

func (c TransportConfig) dialTimeout() time.Duration {
	if c.DialTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// grpcUpstreamClient adapts a generated proto.CatalogueClient to the
// Go-native UpstreamClient the CatalogueCache depends on.
type grpcUpstreamClient struct {
	conn   *grpc.ClientConn
	client proto.CatalogueClient
}

// DialUpstream connects to the catalogue-metadata store named by cfg and
// returns an UpstreamClient backed by it.
func DialUpstream(cfg TransportConfig) (UpstreamClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.dialTimeout())
	defer cancel()

	target := staticListResolverSchema + ":///" + cfg.Endpoints
	conn, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(math.MaxInt32),
			grpc.MaxCallRecvMsgSize(math.MaxInt32),
			grpc.CallContentSubtype(proto.JSONCodecName),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, err
	}
	return &grpcUpstreamClient{conn: conn, client: proto.NewCatalogueClient(conn)}, nil
}

func (c *grpcUpstreamClient) ListShardedCollections(ctx context.Context) ([]string, error) {
	resp, err := c.client.ListShardedCollections(ctx, &proto.ListShardedCollectionsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Namespaces, nil
}

func (c *grpcUpstreamClient) GetChunkDelta(ctx context.Context, ns string, knownVersion proto.ChunkVersion, forceRefresh bool) (proto.ChunkDelta, error) {
	resp, err := c.client.GetChunkDelta(ctx, &proto.GetChunkDeltaRequest{
		Namespace:    ns,
		KnownVersion: knownVersion,
		ForceRefresh: forceRefresh,
	})
	if err != nil {
		return proto.ChunkDelta{}, err
	}
	return resp.Delta, nil
}

func (c *grpcUpstreamClient) Close() error { return c.conn.Close() }
