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

package limiter

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario F: capacity 2, three concurrent Acquire calls, exactly two
// granted, one refused; after a Release, the next Acquire is granted.
func TestScenarioFCapacityTwo(t *testing.T) {
	lim := New(2)

	var wg sync.WaitGroup
	var granted int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Acquire() {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 2, granted)

	lim.Release()
	require.True(t, lim.Acquire())
}

func TestAcquireNeverOvergrants(t *testing.T) {
	const capacity = 8
	lim := New(capacity)

	var wg sync.WaitGroup
	var granted int32
	for i := 0; i < capacity*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Acquire() {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, capacity, granted)
}

func TestReleaseWithoutAcquireRaisesCapacity(t *testing.T) {
	lim := New(1)
	require.True(t, lim.Acquire())
	require.False(t, lim.Acquire())

	lim.Release()
	lim.Release()
	require.True(t, lim.Acquire())
	require.True(t, lim.Acquire())
}

func TestNonPositiveCapacityFallsBackToDefault(t *testing.T) {
	lim := New(0)
	require.Equal(t, DefaultCapacity, lim.Running())
}

func TestRunningReflectsRemainingCapacity(t *testing.T) {
	lim := New(3)
	require.Equal(t, 3, lim.Running())
	lim.Acquire()
	require.Equal(t, 2, lim.Running())
	lim.Release()
	require.Equal(t, 3, lim.Running())
}
