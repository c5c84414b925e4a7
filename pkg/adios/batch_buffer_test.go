// Copyright 2026 The Adios Authors.
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

package adios

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// warmModels returns a models array with every op's Base already learned,
// so refillLocked's modelReady gate doesn't reject candidates in tests
// that don't care about cold-start behavior.
func warmModels(t *testing.T, clock Clock) *[numOpTypes]*LatencyModel {
	t.Helper()
	var models [numOpTypes]*LatencyModel
	ctx := context.Background()
	for op := OpType(0); op < numOpTypes; op++ {
		m := newLatencyModel(op, clock)
		m.Input(ctx, 4096, 1000, 0)
		require.NotZero(t, m.Base())
		models[op] = m
	}
	return &models
}

func TestBatchBufferDispatchDrainsIndexInDeadlineOrder(t *testing.T) {
	clock := newManualClock()
	knobs := NewKnobs()
	index := NewDeadlineIndex()
	bb := NewBatchBuffer(index, knobs)
	models := warmModels(t, clock)

	for i, start := range []uint64{300, 100, 200} {
		_, rd := newIndexedRequest(OpRead, start)
		rd.PredLat = uint64(i)
		index.Insert(rd, 1000)
	}

	got := []uint64{}
	for {
		rd := bb.Dispatch(models)
		if rd == nil {
			break
		}
		got = append(got, rd.Request.StartTimeNs())
	}
	require.Equal(t, []uint64{100, 200, 300}, got)
}

func TestBatchBufferRespectsPerOpBatchLimit(t *testing.T) {
	clock := newManualClock()
	knobs := NewKnobs()
	require.NoError(t, knobs.SetBatchLimit(OpRead, 4))
	knobs.SetGlobalLatencyWindowNs(1 << 40) // effectively unlimited for this test

	index := NewDeadlineIndex()
	bb := NewBatchBuffer(index, knobs)
	models := warmModels(t, clock)

	for i := 0; i < 10; i++ {
		_, rd := newIndexedRequest(OpRead, uint64(i))
		index.Insert(rd, 1000)
	}

	dispatched := 0
	for {
		rd := bb.Dispatch(models)
		if rd == nil {
			break
		}
		dispatched++
	}
	require.Equal(t, 10, dispatched)
	require.LessOrEqual(t, bb.MaxObservedBatchSize(OpRead), uint32(4))
	require.GreaterOrEqual(t, bb.MaxObservedBatchSize(OpRead), uint32(1))
}

func TestBatchBufferFirstCandidateAlwaysAccepted(t *testing.T) {
	clock := newManualClock()
	knobs := NewKnobs()
	knobs.SetGlobalLatencyWindowNs(1) // tiny window: nothing but the first ever fits

	index := NewDeadlineIndex()
	bb := NewBatchBuffer(index, knobs)
	models := warmModels(t, clock)

	_, rd := newIndexedRequest(OpRead, 0)
	rd.PredLat = 1_000_000
	index.Insert(rd, 1000)

	got := bb.Dispatch(models)
	require.NotNil(t, got)
	require.Equal(t, rd, got)
}

func TestBatchBufferHasWorkIgnoresUnstagedIndexedRequests(t *testing.T) {
	clock := newManualClock()
	knobs := NewKnobs()
	index := NewDeadlineIndex()
	bb := NewBatchBuffer(index, knobs)
	models := warmModels(t, clock)

	require.False(t, bb.HasWork())

	_, rd := newIndexedRequest(OpRead, 0)
	index.Insert(rd, 1000)

	require.True(t, index.HasWork())
	require.False(t, bb.HasWork()) // not staged yet, still sitting in the index

	got := bb.Dispatch(models)
	require.Equal(t, rd, got)
}

func TestBatchBufferRejectsColdModelExceptFirst(t *testing.T) {
	clock := newManualClock()
	knobs := NewKnobs()
	index := NewDeadlineIndex()
	bb := NewBatchBuffer(index, knobs)

	var models [numOpTypes]*LatencyModel
	for op := OpType(0); op < numOpTypes; op++ {
		models[op] = newLatencyModel(op, clock)
	}
	// Every model is cold (Base == 0).

	for i := 0; i < 3; i++ {
		_, rd := newIndexedRequest(OpRead, uint64(i))
		index.Insert(rd, 1000)
	}

	first := bb.Dispatch(&models)
	require.NotNil(t, first)
	// refillLocked only staged the first candidate before the cold-model
	// gate stopped it; the rest remain in the index for the next refill.
	require.Equal(t, 2, index.Len())
}
