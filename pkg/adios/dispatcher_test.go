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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	clock := newManualClock()
	return NewScheduler(clock, noopMergeHost{}, fixedDepthHost{nrRequests: 64})
}

func TestSchedulerReadsDispatchBeforeLaterWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()

	write := &fakeRequest{op: OpWrite, startNs: 0, totalBytes: 4096}
	read := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}

	s.PrepareRequest(write)
	s.PrepareRequest(read)
	s.InsertRequests(ctx, []Request{write, read}, false)

	first := s.DispatchRequest(ctx)
	require.Same(t, Request(read), first)
}

func TestSchedulerPriorityQueueBypassesDeadlineIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()

	read := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}
	urgent := &fakeRequest{op: OpWrite, startNs: 0, totalBytes: 4096}

	s.PrepareRequest(read)
	s.PrepareRequest(urgent)
	s.InsertRequests(ctx, []Request{read}, false)
	s.InsertRequests(ctx, []Request{urgent}, true)

	got := s.DispatchRequest(ctx)
	require.Same(t, Request(urgent), got)
}

func TestSchedulerFullRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()
	s.DepthUpdated()

	rq := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}
	s.PrepareRequest(rq)
	require.NotNil(t, rq.SchedulerState())

	s.InsertRequests(ctx, []Request{rq}, false)
	require.True(t, s.HasWork())

	dispatched := s.DispatchRequest(ctx)
	require.Same(t, Request(rq), dispatched)
	require.False(t, s.HasWork())

	rq.ioStartNs = 1
	s.CompletedRequest(ctx, rq, 5000)

	s.FinishRequest(rq)
	require.Nil(t, rq.SchedulerState())
}

func TestSchedulerHasWorkTracksIndexedRequestUntilDispatched(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()
	require.False(t, s.HasWork())

	rq := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}
	s.PrepareRequest(rq)
	s.InsertRequests(ctx, []Request{rq}, false)
	require.True(t, s.HasWork()) // sitting in the deadline index

	_ = s.DispatchRequest(ctx) // now dispatched, nothing left anywhere
	require.False(t, s.HasWork())
}

func TestSchedulerSetLatencyTargetInvalidatesBaseOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()

	for i := 0; i < 5; i++ {
		s.models[OpRead].Input(ctx, 4096, 1000, 0)
	}
	require.NotZero(t, s.models[OpRead].Base())

	s.SetLatencyTargetNs(OpRead, 5_000_000)
	require.Zero(t, s.models[OpRead].Base())
	require.Equal(t, uint64(5_000_000), s.Knobs().LatencyTargetNs(OpRead))
}

func TestSchedulerLatModelStringUsesBareIntegers(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()
	// The first Input call bootstraps Base immediately (see LatencyModel's
	// cold-start rule), so ten identical samples still leave Base at the
	// single bootstrapped value and Slope at zero: nothing here exercises
	// the large-request path.
	for i := 0; i < 10; i++ {
		s.models[OpRead].Input(ctx, 4096, 1234567, 0)
	}
	str := s.LatModelString(OpRead)
	require.Equal(t, "base : 1234567 ns\nslope: 0 ns/KiB\n", str)
}

func TestSchedulerBatchActualMaxStringFieldOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()
	for i := 0; i < 20; i++ {
		s.models[OpRead].Input(ctx, 4096, 1000, 0)
	}
	for i := 0; i < 20; i++ {
		rq := &fakeRequest{op: OpRead, startNs: uint64(i), totalBytes: 4096}
		s.PrepareRequest(rq)
		s.InsertRequests(ctx, []Request{rq}, false)
	}
	for s.HasWork() {
		s.DispatchRequest(ctx)
	}

	str := s.BatchActualMaxString()
	totalIdx := strings.Index(str, "total  :")
	discardIdx := strings.Index(str, "discard:")
	readIdx := strings.Index(str, "read   :")
	writeIdx := strings.Index(str, "write  :")
	require.True(t, totalIdx >= 0 && discardIdx >= 0 && readIdx >= 0 && writeIdx >= 0)
	require.True(t, totalIdx < discardIdx)
	require.True(t, discardIdx < readIdx)
	require.True(t, readIdx < writeIdx)
}

func TestSchedulerResetBQStatsZeroesHighWaterMarks(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()
	for i := 0; i < 20; i++ {
		s.models[OpRead].Input(ctx, 4096, 1000, 0)
	}

	for i := 0; i < 20; i++ {
		rq := &fakeRequest{op: OpRead, startNs: uint64(i), totalBytes: 4096}
		s.PrepareRequest(rq)
		s.InsertRequests(ctx, []Request{rq}, false)
	}
	for s.HasWork() {
		s.DispatchRequest(ctx)
	}
	require.NotZero(t, s.bq.MaxObservedBatchTotal())

	s.ResetBQStats()
	require.Zero(t, s.bq.MaxObservedBatchTotal())
	require.Zero(t, s.bq.MaxObservedBatchSize(OpRead))
}

type fakeBio struct {
	op OpType
}

func (b fakeBio) OpType() OpType      { return b.op }
func (b fakeBio) SectorCount() uint64 { return 8 }

// bioMergeHost records whether the index lock was already held when
// TryMergeBio ran, and whether the redundant request it hands back
// reaches FreeRequest.
type bioMergeHost struct {
	noopMergeHost
	idx *DeadlineIndex

	lockHeldDuringCall bool
	redundant          Request
	freed              Request
}

func (h *bioMergeHost) TryMergeBio(context.Context, Bio) (bool, Request) {
	h.lockHeldDuringCall = !h.idx.mu.TryLock()
	return true, h.redundant
}

func (h *bioMergeHost) FreeRequest(rq Request) {
	h.freed = rq
}

func TestSchedulerBioMergeHoldsIndexLockAndFreesRedundant(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	s := NewScheduler(clock, noopMergeHost{}, fixedDepthHost{nrRequests: 64})

	redundant := &fakeRequest{op: OpWrite, startNs: 0, totalBytes: 4096}
	host := &bioMergeHost{idx: s.index, redundant: redundant}
	s.merge = host

	consumed := s.BioMerge(ctx, fakeBio{op: OpWrite})
	require.True(t, consumed)
	require.True(t, host.lockHeldDuringCall)
	require.Same(t, Request(redundant), host.freed)
}

// trackingMergeHost records RemoveMergeHash/ClearLastMerge calls so tests
// can confirm RequestsMerged's cleanup reaches the host.
type trackingMergeHost struct {
	noopMergeHost
	removed        Request
	lastMergeClear Request
}

func (h *trackingMergeHost) RemoveMergeHash(rq Request) { h.removed = rq }
func (h *trackingMergeHost) ClearLastMerge(rq Request)  { h.lastMergeClear = rq }

func TestSchedulerRequestMergedRepositionsOnFrontMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()

	// Warm the read model with both a small sample (bootstraps Base) and
	// a large one (gives Slope a nonzero value), so growing the request's
	// block size actually changes its predicted latency and deadline.
	m := s.models[OpRead]
	m.Input(ctx, 4096, 1000, 0)
	m.Input(ctx, 64*1024, 50_000, 5_000)
	m.Update(ctx)
	require.NotZero(t, m.Base())
	require.NotZero(t, m.Slope())

	rq := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}
	s.PrepareRequest(rq)
	s.InsertRequests(ctx, []Request{rq}, false)

	rd := rq.SchedulerState()
	require.True(t, rd.InDeadlineIndex())
	oldDeadline := rd.Deadline
	oldPredLat := rd.PredLat

	rq.totalBytes = 128 * 1024
	s.RequestMerged(ctx, rq, true)

	require.Equal(t, uint64(128*1024), rd.BlockSize)
	require.True(t, rd.InDeadlineIndex())
	require.Greater(t, rd.PredLat, oldPredLat)
	require.Greater(t, rd.Deadline, oldDeadline)
	require.Equal(t, 1, s.index.Len())
}

func TestSchedulerRequestMergedIgnoresBackMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()

	rq := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}
	s.PrepareRequest(rq)
	s.InsertRequests(ctx, []Request{rq}, false)

	rd := rq.SchedulerState()
	oldDeadline := rd.Deadline
	oldGroup := rd.dlGroup

	rq.totalBytes = 128 * 1024
	s.RequestMerged(ctx, rq, false)

	require.Equal(t, uint64(4096), rd.BlockSize, "back merge must not touch bookkeeping")
	require.Equal(t, oldDeadline, rd.Deadline)
	require.Same(t, oldGroup, rd.dlGroup)
}

func TestSchedulerRequestsMergedDropsAbsorbedRequest(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	host := &trackingMergeHost{}
	s := NewScheduler(clock, host, fixedDepthHost{nrRequests: 64})

	next := &fakeRequest{op: OpRead, startNs: 0, totalBytes: 4096}
	s.PrepareRequest(next)
	s.InsertRequests(ctx, []Request{next}, false)
	require.True(t, next.SchedulerState().InDeadlineIndex())

	s.RequestsMerged(next)

	require.False(t, next.SchedulerState().InDeadlineIndex())
	require.Equal(t, 0, s.index.Len())
	require.Same(t, Request(next), host.removed)
	require.Same(t, Request(next), host.lastMergeClear)
}

func TestSchedulerResetLatModelZeroesAllOps(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler()
	for _, op := range []OpType{OpRead, OpWrite, OpDiscard, OpOther} {
		for i := 0; i < 10; i++ {
			s.models[op].Input(ctx, 4096, 1000, 0)
		}
		require.NotZero(t, s.models[op].Base())
	}
	s.ResetLatModel()
	for _, op := range []OpType{OpRead, OpWrite, OpDiscard, OpOther} {
		require.Zero(t, s.models[op].Base())
	}
}
