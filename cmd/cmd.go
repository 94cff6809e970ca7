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

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	_ "github.com/cubefs/cubefs/blobstore/util/version"

	"github.com/cubefs/routingindex/adminserver"
	"github.com/cubefs/routingindex/catalog"
	"github.com/cubefs/routingindex/counters"
	"github.com/cubefs/routingindex/limiter"
	"github.com/cubefs/routingindex/refresher"
	"github.com/cubefs/routingindex/routing"
)

// Config is the routing-index process's configuration.
type Config struct {
	Transport catalog.TransportConfig `json:"transport"`

	HttpBindPort uint32    `json:"http_bind_port"`
	LogLevel     log.Level `json:"log_level"`

	// BucketSize overrides RoutingTableBuilder's default chunk-map
	// bucket size; zero keeps the default.
	BucketSize int `json:"bucket_size"`

	// RefreshConcurrency bounds how many namespaces the Refresher
	// refreshes concurrently in one pass; zero falls back to
	// limiter.DefaultCapacity.
	RefreshConcurrency int `json:"refresh_concurrency"`

	// Secondary marks this process as a routing-table refresh
	// secondary. True runs the background Refresher loop; false serves
	// routing info lazily on a cache miss only, matching the original's
	// "only secondaries auto-refresh" rule.
	Secondary bool `json:"secondary"`
}

func main() {
	config.Init("f", "", "routing_index.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}
	log.SetOutputLevel(cfg.LogLevel)
	registerLogLevel()

	upstream, err := catalog.DialUpstream(cfg.Transport)
	if err != nil {
		log.Fatalf("dial upstream catalogue-metadata store failed: %s", err)
	}

	bag := counters.NewBag()
	details := counters.NewDetailRegistry()
	details.OnDuplicate(func(name string) {
		log.Warnf("duplicate detail counter registration for %s", name)
	})

	builder := &routing.RoutingTableBuilder{BucketSize: cfg.BucketSize}
	cache := catalog.NewCatalogueCache(upstream, builder, bag)

	lim := limiter.New(int64(cfg.RefreshConcurrency))
	ref := refresher.New(cache, staticRole(cfg.Secondary), lim)

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Secondary {
		go ref.Run(ctx)
	}

	admin := adminserver.New(cache, bag, details)
	admin.Serve(":" + strconv.Itoa(int(cfg.HttpBindPort)))

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	ref.Stop()
	cancel()
	admin.Stop()
}

// staticRole answers IsSecondary from the process's own static config,
// since this routing tier has no replication role of its own to poll —
// the catalogue-metadata store's replica topology is a boundary concern.
type staticRole bool

func (s staticRole) IsSecondary(context.Context) (bool, error) { return bool(s), nil }

func registerLogLevel() {
	logLevelPath, logLevelHandler := log.ChangeDefaultLevelHandler()
	profile.HandleFunc(http.MethodPost, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
	profile.HandleFunc(http.MethodGet, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
}
