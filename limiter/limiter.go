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

// Package limiter is a count-based admission token: Acquire/Release pairs
// bound in-flight work without blocking or queuing. Callers decide what
// to do on refusal.
package limiter

import "sync/atomic"

// DefaultCapacity mirrors the source's kDefaultLimits fallback for a
// misconfigured (zero or negative) capacity.
const DefaultCapacity = 100

// Limiter is the only capability interface in this module: callers that
// need a different admission strategy (leaky bucket, rate-based) can slot
// in an alternative implementation behind the same three methods.
type Limiter interface {
	// Acquire returns granted when a slot was available, refused
	// otherwise. Never blocks.
	Acquire() (granted bool)
	// Release returns a slot to the pool. It must pair with a prior
	// granted Acquire; an unpaired Release is tolerated and simply
	// raises the effective capacity.
	Release()
	// Running reports the current remaining capacity, a fuzzy snapshot.
	Running() int
}

// countLimiter is a signed remaining-capacity counter. Acquire is an
// atomic fetch-sub-by-one with rollback (atomic add-one) on under-run, so
// two concurrent Acquire calls can never both succeed when exactly one
// slot remains.
type countLimiter struct {
	remaining int64
}

// New returns a Limiter with capacity slots available. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int64) Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &countLimiter{remaining: capacity}
}

func (l *countLimiter) Acquire() bool {
	if atomic.AddInt64(&l.remaining, -1) >= 0 {
		return true
	}
	atomic.AddInt64(&l.remaining, 1)
	return false
}

func (l *countLimiter) Release() {
	atomic.AddInt64(&l.remaining, 1)
}

func (l *countLimiter) Running() int {
	return int(atomic.LoadInt64(&l.remaining))
}
