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

package counters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBagIncrementAndSnapshot(t *testing.T) {
	b := NewBag()
	b.Increment(ReadTargeted)
	b.Increment(ReadTargeted)
	b.Increment(AdmissionRefused)

	snap := b.Snapshot()
	require.EqualValues(t, 2, snap[ReadTargeted.String()])
	require.EqualValues(t, 1, snap[AdmissionRefused.String()])
	require.EqualValues(t, 0, snap[SlowLogRead.String()])
}

// Counter wrap: after any counter exceeds 2^30, a subsequent snapshot
// observes all counters reset to zero.
func TestBagWrapResetsAllCounters(t *testing.T) {
	b := NewBag()
	b.counters[ReadTargeted] = maxCounterValue + 1
	b.counters[SlowLogRead] = 42

	b.Increment(AdmissionRefused)

	snap := b.Snapshot()
	for _, v := range snap {
		require.LessOrEqual(t, v, uint32(maxCounterValue))
	}
	require.EqualValues(t, 0, snap[ReadTargeted.String()])
	require.EqualValues(t, 0, snap[SlowLogRead.String()])
}

func TestDetailCounterLatencyAndFailure(t *testing.T) {
	c := NewDetailCounter("dumpChunks")
	c.RecordLatency(5 * time.Microsecond)
	c.RecordLatency(5 * time.Microsecond)
	c.RecordLatency(2 * time.Millisecond)
	c.RecordFailure()

	snap := c.Snapshot()
	require.Equal(t, "dumpChunks", snap.Name)
	require.EqualValues(t, 1, snap.FailureCount)

	total := uint64(0)
	for _, v := range snap.Buckets {
		total += v
	}
	require.EqualValues(t, 3, total)
}

func TestDetailRegistryRegisterUnregister(t *testing.T) {
	r := NewDetailRegistry()
	dupCalls := 0
	r.OnDuplicate(func(name string) { dupCalls++ })

	r.Register(NewDetailCounter("dumpChunks"))
	require.Equal(t, 1, r.Size())

	r.Register(NewDetailCounter("dumpChunks"))
	require.Equal(t, 1, dupCalls)
	require.Equal(t, 1, r.Size())

	r.Unregister("dumpChunks")
	require.Equal(t, 0, r.Size())

	// idempotent
	r.Unregister("dumpChunks")
	require.Equal(t, 0, r.Size())
}

func TestDetailRegistrySnapshotSortedByName(t *testing.T) {
	r := NewDetailRegistry()
	r.Register(NewDetailCounter("getShardInfoWithQuery"))
	r.Register(NewDetailCounter("dumpChunks"))

	snaps := r.Snapshot()
	require.Len(t, snaps, 2)
	require.Equal(t, "dumpChunks", snaps[0].Name)
	require.Equal(t, "getShardInfoWithQuery", snaps[1].Name)
}
