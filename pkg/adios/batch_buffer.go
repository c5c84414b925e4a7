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
	"container/list"
	"sync/atomic"

	"github.com/adios-io/adios/pkg/adios/syncutil"
)

// subUint64 subtracts delta from a's current value. atomic.Uint64 has no
// native Add-negative, so this uses the standard two's-complement trick
// from the sync/atomic docs instead of introducing a signed counter.
func subUint64(a *atomic.Uint64, delta uint64) {
	a.Add(^(delta - 1))
}

// bqPages is the number of pages the BatchBuffer double-buffers between:
// one page is being dispatched from while the other is refilled from the
// DeadlineIndex.
const bqPages = 2

// batchPage holds one generation's worth of staged requests, grouped by
// op type in fixed dispatch order (READ, WRITE, DISCARD, OTHER).
type batchPage struct {
	queues [numOpTypes]list.List
	counts [numOpTypes]uint32
}

func (p *batchPage) reset() {
	for op := OpType(0); op < numOpTypes; op++ {
		p.queues[op].Init()
		p.counts[op] = 0
	}
}

// BatchBuffer is the double-buffered staging area between the
// DeadlineIndex and dispatch. Refill drains the index into the inactive
// page under per-op batch caps and a global predicted-latency window;
// Dispatch serves from the active page and flips pages once it and every
// queue on it are empty but a fresher page is ready.
//
// It is the Go analog of the reference implementation's batch_queue
// array plus bq_page/more_bq_ready/total_pred_lat state: a two-element
// page array indexed by the active page number, with the other page
// reached as (active+1)%bqPages in place of C's "index xor 1".
type BatchBuffer struct {
	knobs *Knobs
	index *DeadlineIndex

	totalPredLat atomic.Uint64

	batchActualMaxSize  [numOpTypes]atomic.Uint32
	batchActualMaxTotal atomic.Uint32

	mu struct {
		syncutil.Mutex
		pages     [bqPages]batchPage
		active    int
		moreReady bool
	}
}

// NewBatchBuffer returns an empty BatchBuffer that refills from index
// using knobs for its caps and window.
func NewBatchBuffer(index *DeadlineIndex, knobs *Knobs) *BatchBuffer {
	bb := &BatchBuffer{index: index, knobs: knobs}
	for i := range bb.mu.pages {
		bb.mu.pages[i].reset()
	}
	return bb
}

// TotalPredLat returns the sum of PredLat across every request Refill has
// staged that has not yet completed, whether still in a page or already
// dispatched, used by Refill to decide when to stop and by Dispatch to
// decide when to trigger a refill.
func (bb *BatchBuffer) TotalPredLat() uint64 {
	return bb.totalPredLat.Load()
}

// modelReady reports whether models[op] has produced at least one Base
// estimate, mirroring the reference's "!ad->latency_model[optype].base"
// stop condition: a batch is not started for an op the model has no
// opinion about yet, so cold-start traffic drains one request at a time
// via the always-armed count==0 escape hatch below.
func modelReady(models *[numOpTypes]*LatencyModel, op OpType) bool {
	return models[op].Base() != 0
}

// refillLocked drains the DeadlineIndex into the currently inactive page.
// Caller must hold bb.mu. It stops when the index is empty, or (once at
// least one request has been staged) when the next candidate's op has no
// ready model yet, has hit its per-page batch cap, or would push the
// running predicted-latency total past the global window. The first
// request is always accepted regardless of these caps, so a saturated
// model or a single huge request can never wedge Refill into staging
// nothing at all.
func (bb *BatchBuffer) refillLocked(models *[numOpTypes]*LatencyModel) bool {
	page := &bb.mu.pages[(bb.mu.active+1)%bqPages]
	page.reset()

	var optypeCount [numOpTypes]uint32
	var count uint32
	currentLat := bb.totalPredLat.Load()
	window := bb.knobs.GlobalLatencyWindowNs()

	for {
		rd := bb.index.Peek()
		if rd == nil {
			break
		}

		op := rd.Request.OpType()
		currentLat += rd.PredLat

		if count > 0 && (!modelReady(models, op) ||
			optypeCount[op] >= bb.knobs.BatchLimit(op) ||
			currentLat > window) {
			// Left in the index for the next Refill; only accepted
			// candidates are removed.
			break
		}

		bb.index.Remove(rd)
		page.queues[op].PushBack(rd)
		page.counts[op]++
		bb.totalPredLat.Add(rd.PredLat)
		optypeCount[op]++
		count++
	}

	if count == 0 {
		return false
	}

	for op := OpType(0); op < numOpTypes; op++ {
		for {
			cur := bb.batchActualMaxSize[op].Load()
			if optypeCount[op] <= cur || bb.batchActualMaxSize[op].CompareAndSwap(cur, optypeCount[op]) {
				break
			}
		}
	}
	for {
		cur := bb.batchActualMaxTotal.Load()
		if count <= cur || bb.batchActualMaxTotal.CompareAndSwap(cur, count) {
			break
		}
	}

	bb.mu.moreReady = true
	return true
}

// flipPage advances to the next page and clears moreReady, mirroring
// flip_bq_page. Caller must hold bb.mu.
func (bb *BatchBuffer) flipPage() {
	bb.mu.moreReady = false
	bb.mu.active = (bb.mu.active + 1) % bqPages
}

// shouldRefillLocked reports whether the total predicted latency
// currently staged has dropped low enough, relative to the global window
// and the configured refill-below ratio, that Dispatch should trigger a
// refill before serving another request. Caller must hold bb.mu. Mirrors
// dispatch_from_bq's "!more_bq_ready && (!tpl || tpl < window * ratio /
// 100)" guard.
func (bb *BatchBuffer) shouldRefillLocked() bool {
	if bb.mu.moreReady {
		return false
	}
	tpl := bb.totalPredLat.Load()
	if tpl == 0 {
		return true
	}
	window := bb.knobs.GlobalLatencyWindowNs()
	threshold := window * uint64(bb.knobs.RefillBelowRatioPct()) / 100
	return tpl < threshold
}

// Dispatch returns the next staged RqData in fixed op priority order
// (READ, WRITE, DISCARD, OTHER) from the active page. It first refills
// from the DeadlineIndex if the staged predicted-latency budget has run
// low, and flips to the refilled page and retries if the active page is
// exhausted but a fresher one is ready. Returns nil if nothing is staged
// anywhere. Mirrors dispatch_from_bq's single critical section: check,
// optional fill, and drain all happen under one lock acquisition.
func (bb *BatchBuffer) Dispatch(models *[numOpTypes]*LatencyModel) *RqData {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.shouldRefillLocked() {
		bb.refillLocked(models)
	}

	for {
		page := &bb.mu.pages[bb.mu.active]
		for op := OpType(0); op < numOpTypes; op++ {
			q := &page.queues[op]
			if front := q.Front(); front != nil {
				rd := q.Remove(front).(*RqData)
				page.counts[op]--
				// totalPredLat is not released here: it tracks every
				// staged-but-not-yet-completed request, dispatched or
				// not, and is only given back in CompletedRequest,
				// mirroring adios_completed_request's atomic64_sub.
				return rd
			}
		}
		if bb.mu.moreReady {
			bb.flipPage()
			continue
		}
		return nil
	}
}

// HasWork reports whether the active page currently holds any staged
// request, falling back to moreReady when it doesn't: the active page can
// be momentarily drained by Dispatch without a flip happening in that same
// call, and moreReady is how the caller learns the other page still holds
// real work. Mirrors bq_has_work's fallback to ad->more_bq_ready.
func (bb *BatchBuffer) HasWork() bool {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	page := &bb.mu.pages[bb.mu.active]
	for op := OpType(0); op < numOpTypes; op++ {
		if page.queues[op].Len() > 0 {
			return true
		}
	}
	return bb.mu.moreReady
}

// MaxObservedBatchSize returns the largest single-op batch Refill has
// ever staged for op, a diagnostic high-water mark surfaced through the
// host's stats interface.
func (bb *BatchBuffer) MaxObservedBatchSize(op OpType) uint32 {
	return bb.batchActualMaxSize[op].Load()
}

// MaxObservedBatchTotal returns the largest total batch size (summed
// across every op) Refill has ever staged in one page.
func (bb *BatchBuffer) MaxObservedBatchTotal() uint32 {
	return bb.batchActualMaxTotal.Load()
}
