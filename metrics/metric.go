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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "RoutingIndex"

var (
	Registry = prometheus.NewRegistry()

	// RefreshDuration tracks how long one CatalogueCache refresh pass
	// takes per namespace, split by outcome.
	RefreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "refresher",
		Name:      "refresh_duration_seconds",
		Help:      "latency of one namespace's routing-table refresh",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// AdmissionRefusals counts Limiter.Acquire calls that returned false,
	// split by caller (refresher vs foreground request path).
	AdmissionRefusals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "limiter",
		Name:      "admission_refusals_total",
		Help:      "count of Acquire calls refused by a Limiter",
	}, []string{"caller"})
)

func init() {
	Registry.MustRegister(
		RefreshDuration,
		AdmissionRefusals,
	)
}
