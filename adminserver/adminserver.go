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

// Package adminserver is the HTTP surface fronting one CatalogueCache:
// dumpChunks and getShardInfoWithQuery, the two read-only commands an
// operator or a client driver's explain path calls directly.
package adminserver

import (
	"context"
	"net/http"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/routingindex/catalog"
	"github.com/cubefs/routingindex/counters"
	apierrors "github.com/cubefs/routingindex/errors"
	"github.com/cubefs/routingindex/metrics"
	"github.com/cubefs/routingindex/proto"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 30
)

// Server is the admin HTTP server. It holds no routing state of its own —
// every command is answered straight from the CatalogueCache.
type Server struct {
	cache   *catalog.CatalogueCache
	bag     *counters.Bag
	details *counters.DetailRegistry

	httpServer *http.Server
}

func New(cache *catalog.CatalogueCache, bag *counters.Bag, details *counters.DetailRegistry) *Server {
	return &Server{cache: cache, bag: bag, details: details}
}

func (s *Server) Serve(addr string) {
	ph := profile.NewProfileHandler(addr)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(s.newHandler(), ph),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin http server exits:", err)
		}
	}()
	s.httpServer = httpServer

	log.Info("admin http server is running at:", addr)
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	s.httpServer.Shutdown(ctx)
}

func (s *Server) newHandler() *rpc.Router {
	rpc.GET("/dumpchunks", s.DumpChunks, rpc.OptArgsQuery())
	rpc.GET("/getShardInfoWithQuery", s.GetShardInfoWithQuery, rpc.OptArgsBody())
	rpc.GET("/stats", s.Stats, rpc.OptArgsQuery())

	metricsHandler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	rpc.GET("/metrics", func(c *rpc.Context) {
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})

	return rpc.DefaultRouter
}

// DumpChunks answers spec.md §6's dumpChunks: a namespace's chunk list
// page, always refreshed first when Start is zero — mirroring the
// original's "start from 0 forces a routing refresh" behavior so a
// from-the-top dump never serves a stale chunk list.
func (s *Server) DumpChunks(c *rpc.Context) {
	span := trace.SpanFromContextSafe(c.Request.Context())

	args := new(proto.DumpChunksRequest)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}

	start := time.Now()
	res, err := s.cache.GetRoutingInfo(c.Request.Context(), args.Ns, args.Start == 0)
	if err != nil {
		s.recordFailure("dumpChunks", start)
		c.RespondError(apierrors.ErrNamespaceNotFound)
		return
	}
	if !res.Sharded {
		s.recordFailure("dumpChunks", start)
		c.RespondError(apierrors.ErrNamespaceNotFound)
		return
	}

	chunks, total := res.Table.IteratorChunks(args.Start, args.Limit)
	out := make([]proto.ChunkSummary, len(chunks))
	for i, ch := range chunks {
		out[i] = proto.ChunkSummary{Min: ch.Min, Max: ch.Max, ShardId: ch.ShardId}
	}

	if args.Print {
		span.Infof("dumpchunks[%s @ %s]", args.Ns, res.Table.GetVersion())
	}

	s.recordLatency("dumpChunks", start)
	c.RespondJSON(&proto.DumpChunksResponse{Chunks: out, ChunksSize: total})
}

// GetShardInfoWithQuery answers spec.md §6's getShardInfoWithQuery: the
// set of shards a filter would route to, without executing it.
func (s *Server) GetShardInfoWithQuery(c *rpc.Context) {
	span := trace.SpanFromContextSafe(c.Request.Context())

	args := new(proto.GetShardInfoWithQueryRequest)
	if err := c.ParseArgs(args); err != nil {
		c.RespondError(err)
		return
	}

	start := time.Now()
	res, err := s.cache.GetRoutingInfo(c.Request.Context(), args.Find, false)
	if err != nil {
		s.recordFailure("getShardInfoWithQuery", start)
		c.RespondError(apierrors.ErrNamespaceNotFound)
		return
	}

	var shardIds map[proto.ShardId]struct{}
	if res.Sharded {
		shardIds, err = res.Table.GetShardIdsForQuery(args.Filter, args.Collation)
		if err != nil {
			span.Warnf("getShardInfoWithQuery: resolve %s failed: %s", args.Find, err)
			s.recordFailure("getShardInfoWithQuery", start)
			c.RespondError(err)
			return
		}
	} else {
		shardIds = map[proto.ShardId]struct{}{res.PrimaryShardId: {}}
	}

	out := make([]proto.ShardInfo, 0, len(shardIds))
	for id := range shardIds {
		out = append(out, proto.ShardInfo{ShardName: id})
	}

	s.recordLatency("getShardInfoWithQuery", start)
	c.RespondJSON(&proto.GetShardInfoWithQueryResponse{Shards: out})
}

func (s *Server) Stats(c *rpc.Context) {
	c.RespondJSON(s.bag.Snapshot())
}

func (s *Server) recordLatency(cmd string, start time.Time) {
	if s.details == nil {
		return
	}
	dc, ok := s.details.Get(cmd)
	if !ok {
		dc = counters.NewDetailCounter(cmd)
		s.details.Register(dc)
	}
	dc.RecordLatency(time.Since(start))
}

func (s *Server) recordFailure(cmd string, start time.Time) {
	if s.details == nil {
		return
	}
	dc, ok := s.details.Get(cmd)
	if !ok {
		dc = counters.NewDetailCounter(cmd)
		s.details.Register(dc)
	}
	dc.RecordFailure()
}
