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
	"fmt"

	"github.com/adios-io/adios/pkg/adios/adioslog"
	"github.com/dustin/go-humanize"
)

// Scheduler is the top-level ADIOS core: four per-op LatencyModels feeding
// a DeadlineIndex, drained through a BatchBuffer, plus a PriorityQueue
// bypass. It exposes the host hook surface the reference implementation
// wires up as struct elevator_type's callback table; a host embeds or
// wraps a Scheduler and calls these methods from the corresponding
// request-queue events.
//
// Locking follows a fixed hierarchy documented on each subsystem: index,
// then batch buffer, then priority queue, then a model's parameter lock,
// then its bucket lock. No method here holds more than one of those at a
// time except where a subsystem's own method already composes them
// correctly, so Scheduler methods never need to reason about nesting
// beyond calling subsystems in that order.
type Scheduler struct {
	clock Clock
	knobs *Knobs

	models [numOpTypes]*LatencyModel
	index  *DeadlineIndex
	bq     *BatchBuffer
	pq     *PriorityQueue
	timer  *updateTimer

	merge MergeHost
	depth DepthHost

	asyncDepth uint32
}

// NewScheduler wires up a Scheduler against the given host adapters,
// using clock as the monotonic time source (pass a *realClock in
// production, a fake in tests).
func NewScheduler(clock Clock, merge MergeHost, depth DepthHost) *Scheduler {
	s := &Scheduler{
		clock: clock,
		knobs: NewKnobs(),
		merge: merge,
		depth: depth,
	}
	for op := OpType(0); op < numOpTypes; op++ {
		s.models[op] = newLatencyModel(op, clock)
	}
	s.index = NewDeadlineIndex()
	s.bq = NewBatchBuffer(s.index, s.knobs)
	s.pq = NewPriorityQueue()
	s.timer = newUpdateTimer(&s.models)
	return s
}

// Knobs returns the runtime-tunable parameter surface, exposed through
// the host's attribute/sysfs-equivalent layer.
func (s *Scheduler) Knobs() *Knobs { return s.knobs }

// InitSched finishes setting up scheduler-wide state once the host has a
// queue ready. The reference implementation allocates the rq_data and
// dl_group slab caches here; this core instead primes the shared
// sync.Pool-backed allocators, which need no per-queue setup, so InitSched
// mainly exists as a documented lifecycle hook host adapters can rely on
// being called exactly once.
func (s *Scheduler) InitSched(ctx context.Context) error {
	adioslog.Infof(ctx, "adios: scheduler initialized (version %s)", Version)
	return nil
}

// ExitSched releases scheduler-wide state, most importantly stopping the
// update timer so it can't fire after the host has torn down the queue.
func (s *Scheduler) ExitSched(ctx context.Context) {
	s.timer.Stop()
	adioslog.Infof(ctx, "adios: scheduler exited")
}

// InitHCtx is a no-op lifecycle hook mirroring adios_init_hctx: the
// reference implementation has nothing hardware-context-specific to set
// up either, since all scheduler state lives at the queue level.
func (s *Scheduler) InitHCtx(context.Context) error { return nil }

// LimitDepth reduces the shallow allocation depth for asynchronous and
// write requests, reserving tag space for synchronous reads. sync
// reports whether the request is synchronous and write reports whether
// it's a write; the reference implementation derives both from a single
// blk_opf_t but the host interface here keeps them as separate bools
// since Go has no request-flags bitmask to decode.
func (s *Scheduler) LimitDepth(sync, write bool) uint32 {
	if sync && !write {
		return 0
	}
	return s.depth.ToWordDepth(s.asyncDepth)
}

// DepthUpdated recomputes async_depth from the host's configured queue
// depth whenever it changes, and re-primes the host's minimum shallow
// depth the same way adios_depth_updated does.
func (s *Scheduler) DepthUpdated() {
	s.asyncDepth = s.depth.NRRequests()
	s.depth.SetMinShallowDepth(1)
}

// PrepareRequest attaches a fresh RqData to rq before it's inserted,
// drawn from the shared pool instead of allocated fresh each time.
func (s *Scheduler) PrepareRequest(rq Request) {
	rd := getRqData()
	rd.Request = rq
	rq.SetSchedulerState(rd)
}

// FinishRequest releases rq's RqData back to the pool. Called once the
// host is completely done with rq, after CompletedRequest.
func (s *Scheduler) FinishRequest(rq Request) {
	rd := rq.SchedulerState()
	if rd == nil {
		return
	}
	rq.SetSchedulerState(nil)
	putRqData(rd)
}

// insertOne is the single-request body of InsertRequests: try an insert
// merge, and failing that, compute the request's predicted latency and
// deadline and place it in the index.
func (s *Scheduler) insertOne(ctx context.Context, rq Request, atHead bool) {
	if atHead {
		s.pq.PushBack(rq)
		return
	}

	if s.merge.TryMergeOnInsert(ctx, rq) {
		// rq's bytes were folded into an existing request; rq itself is
		// now redundant and goes back to the host's request pool rather
		// than ever reaching the deadline index.
		s.merge.FreeRequest(rq)
		return
	}

	rd := rq.SchedulerState()
	assertf(ctx, rd != nil, "insertOne: request has no scheduler state")

	op := rq.OpType()
	rd.BlockSize = rq.TotalBytes()
	rd.PredLat = s.models[op].Predict(rd.BlockSize)
	s.index.Insert(rd, s.knobs.LatencyTargetNs(op))

	if rq.Mergeable() {
		s.merge.AddMergeHash(rq)
		if !s.merge.HasLastMerge() {
			s.merge.SetLastMerge(rq)
		}
	}
}

// InsertRequests inserts a batch of requests, in order, mirroring
// adios_insert_requests draining its input list under one lock
// acquisition per request. atHead requests bypass the deadline index
// entirely and go straight to the PriorityQueue.
func (s *Scheduler) InsertRequests(ctx context.Context, rqs []Request, atHead bool) {
	for _, rq := range rqs {
		s.insertOne(ctx, rq, atHead)
	}
}

// removeFromIndex detaches rq's RqData from the DeadlineIndex if it's
// currently indexed, mirroring del_from_dl_tree guarded by a nil check
// (a request may be absent from the index while it's mid insert-merge).
func (s *Scheduler) removeFromIndex(rq Request) {
	rd := rq.SchedulerState()
	if rd == nil || !rd.InDeadlineIndex() {
		return
	}
	s.index.Remove(rd)
}

// RequestMerged repositions req in the deadline index after a front
// merge changed its size: its BlockSize, PredLat and deadline are
// recomputed, so a request that grew gets a later deadline. Back merges
// and other merge types leave the deadline unaffected and need no
// repositioning.
func (s *Scheduler) RequestMerged(ctx context.Context, req Request, frontMerge bool) {
	if !frontMerge {
		return
	}
	s.removeFromIndex(req)
	rd := req.SchedulerState()
	op := req.OpType()
	rd.BlockSize = req.TotalBytes()
	rd.PredLat = s.models[op].Predict(rd.BlockSize)
	s.index.Insert(rd, s.knobs.LatencyTargetNs(op))
}

// RequestsMerged drops all scheduler bookkeeping for next, which has
// been folded into another request and is now being discarded.
func (s *Scheduler) RequestsMerged(next Request) {
	s.removeFromIndex(next)
	s.merge.RemoveMergeHash(next)
	s.merge.ClearLastMerge(next)
}

// BioMerge attempts to fold bio into an already-dispatched request
// before the host allocates a Request for it at all, mirroring
// adios_bio_merge taking ad->lock around blk_mq_sched_try_merge and
// freeing whatever request the merge leaves redundant.
func (s *Scheduler) BioMerge(ctx context.Context, bio Bio) bool {
	s.index.Lock()
	consumed, redundant := s.merge.TryMergeBio(ctx, bio)
	s.index.Unlock()

	if redundant != nil {
		s.merge.FreeRequest(redundant)
	}
	return consumed
}

// NextRequest returns the request immediately after rq in deadline
// order — the next request in rq's deadline group, or the first request
// of the following group. It returns nil if rq is the last indexed
// request. Mirrors elv_rb_latter_request applied to the deadline index
// instead of a plain rbtree.
func (s *Scheduler) NextRequest(rq Request) Request {
	rd := rq.SchedulerState()
	if rd == nil || rd.dlGroup == nil {
		return nil
	}
	if next := rd.dlElem.Next(); next != nil {
		return next.Value.(*RqData).Request
	}
	return s.index.successorGroupFront(rd.dlGroup)
}

// FormerRequest returns the request immediately before rq in deadline
// order, the mirror image of NextRequest.
func (s *Scheduler) FormerRequest(rq Request) Request {
	rd := rq.SchedulerState()
	if rd == nil || rd.dlGroup == nil {
		return nil
	}
	if prev := rd.dlElem.Prev(); prev != nil {
		return prev.Value.(*RqData).Request
	}
	return s.index.predecessorGroupBack(rd.dlGroup)
}

// DispatchRequest returns the next request the host should hand to the
// device, preferring the PriorityQueue bypass over the BatchBuffer. The
// batch buffer refills itself from the DeadlineIndex first if its staged
// predicted-latency budget has run low. Returns nil if there's nothing
// to dispatch.
func (s *Scheduler) DispatchRequest(ctx context.Context) Request {
	if rq := s.pq.Dispatch(); rq != nil {
		return rq
	}

	rd := s.bq.Dispatch(&s.models)
	if rd == nil {
		return nil
	}
	return rd.Request
}

// CompletedRequest records a completion's latency against the request's
// op-type model and arms the coalesced model update timer, mirroring
// adios_completed_request. It also releases the request's PredLat from
// the running batch-buffer total, since that latency budget is now
// spent rather than pending.
func (s *Scheduler) CompletedRequest(ctx context.Context, rq Request, nowNs uint64) {
	rd := rq.SchedulerState()
	if rd == nil {
		return
	}
	subUint64(&s.bq.totalPredLat, rd.PredLat)

	if rq.IOStartTimeNs() == 0 || rd.BlockSize == 0 {
		return
	}
	latency := nowNs - rq.IOStartTimeNs()
	s.models[rq.OpType()].Input(ctx, rd.BlockSize, latency, rd.PredLat)
	s.timer.Reduce(ctx)
}

// SetLatencyTargetNs updates op's deadline-offset knob and invalidates
// its model's Base, since deadlines computed under the old target no
// longer correspond to what Base was measuring against.
func (s *Scheduler) SetLatencyTargetNs(op OpType, ns uint64) {
	s.models[op].ResetBase()
	s.knobs.setLatencyTargetNs(op, ns)
}

// LatModelString formats op's learned parameters for the read-only
// lat_model_* knob, matching the reference implementation's sysfs
// "base : %llu ns\nslope: %llu ns/KiB\n" attribute output exactly: this
// is a documented wire format, not an operator report, so it gets bare
// integers rather than humanize.Comma's thousands separators.
func (s *Scheduler) LatModelString(op OpType) string {
	m := s.models[op]
	return fmt.Sprintf("base : %d ns\nslope: %d ns/KiB\n", m.Base(), m.Slope())
}

// BatchActualMaxString formats the observed batch high-water marks for
// the read-only batch_actual_max knob, in the reference implementation's
// total/discard/read/write field order.
func (s *Scheduler) BatchActualMaxString() string {
	return fmt.Sprintf("total  : %s\ndiscard: %s\nread   : %s\nwrite  : %s\n",
		humanize.Comma(int64(s.bq.MaxObservedBatchTotal())),
		humanize.Comma(int64(s.bq.MaxObservedBatchSize(OpDiscard))),
		humanize.Comma(int64(s.bq.MaxObservedBatchSize(OpRead))),
		humanize.Comma(int64(s.bq.MaxObservedBatchSize(OpWrite))))
}

// ResetBQStats clears the batch buffer's observed high-water marks,
// implementing the write-only reset_bq_stats knob.
func (s *Scheduler) ResetBQStats() {
	for op := OpType(0); op < numOpTypes; op++ {
		s.bq.batchActualMaxSize[op].Store(0)
	}
	s.bq.batchActualMaxTotal.Store(0)
}

// ResetLatModel zeros every op's learned parameters and aggregates,
// implementing the write-only reset_lat_model knob.
func (s *Scheduler) ResetLatModel() {
	for op := OpType(0); op < numOpTypes; op++ {
		s.models[op].Reset()
	}
}

// HasWork reports whether the scheduler currently holds any request,
// anywhere: the priority queue, the active batch page, or the deadline
// index. The host polls this to decide whether to keep pulling via
// DispatchRequest.
func (s *Scheduler) HasWork() bool {
	return s.pq.HasWork() || s.bq.HasWork() || s.index.HasWork()
}
