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
	"context"
	"time"
)

// Request is the seam between the core and whatever owns the actual I/O
// request objects. The core never constructs or frees a Request; it only
// reads the fields below and carries one piece of private state
// (SchedulerState) between PrepareRequest and FinishRequest.
type Request interface {
	// OpType classifies the request for latency modeling and deadline
	// targets.
	OpType() OpType
	// StartTimeNs is the monotonic submission timestamp, in nanoseconds.
	StartTimeNs() uint64
	// IOStartTimeNs is the monotonic dispatch timestamp set by the host
	// when it hands the request to the device, or 0 if service has not
	// started.
	IOStartTimeNs() uint64
	// TotalBytes is the request's total transfer length.
	TotalBytes() uint64
	// Mergeable reports whether the host's merge hash should track this
	// request.
	Mergeable() bool

	// SchedulerState returns the core's private per-request metadata, or
	// nil if none has been attached yet.
	SchedulerState() *RqData
	// SetSchedulerState attaches (or clears, with nil) the core's private
	// per-request metadata.
	SetSchedulerState(*RqData)
}

// RqData is the core's private per-request scheduler state, allocated in
// PrepareRequest and freed in FinishRequest. It is the Go analog of
// adios_rq_data in the reference implementation: a back-pointer to the
// Request plus the fields the scheduler computed for it.
type RqData struct {
	Request Request

	// Deadline is the absolute nanosecond deadline computed at insert
	// time: StartTimeNs + latency target for the op + PredLat.
	Deadline uint64
	// PredLat is the model's predicted latency at insert time, used both
	// to compute Deadline and to track totalPredLat while the request
	// sits in a BatchBuffer page.
	PredLat uint64
	// BlockSize is TotalBytes captured at insert time.
	BlockSize uint64

	// dlGroup is the DeadlineGroup this request currently belongs to, or
	// nil if it is not in the DeadlineIndex. Guarded by the index lock.
	dlGroup *DeadlineGroup
	// dlElem is this request's position within dlGroup's FIFO list,
	// letting Remove detach it in O(1) without a linear scan.
	dlElem *list.Element
}

// InDeadlineIndex reports whether this request currently sits in the
// DeadlineIndex. It is the Go equivalent of checking rd->dl_group != NULL.
func (rd *RqData) InDeadlineIndex() bool {
	return rd.dlGroup != nil
}

// DeadlineGroup collects every RqData sharing one absolute deadline, kept
// in FIFO order so that requests with identical deadlines dispatch in
// insertion order. It is a node of DeadlineIndex's ordered map, created on
// first insert at its deadline and destroyed when its list empties.
type DeadlineGroup struct {
	deadline uint64
	rqs      list.List
}

// Deadline returns the group's key.
func (g *DeadlineGroup) Deadline() uint64 { return g.deadline }

// Len returns the number of requests currently sharing this deadline.
func (g *DeadlineGroup) Len() int { return g.rqs.Len() }

// Clock abstracts the monotonic time source so tests can control the
// passage of time deterministically. Production wiring uses realClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// jiffiesHz is the tick rate used to quantize Clock.Now() into the coarse
// counter the latency model gates its update interval on, standing in for
// the kernel's jiffies. The exact rate doesn't matter for correctness —
// only that it's coarser than nanoseconds and monotonic with wall time —
// so a round, arbitrary value is used.
const jiffiesHz = 250

func jiffies(t time.Time) uint64 {
	return uint64(t.UnixNano()) / (uint64(time.Second) / jiffiesHz)
}

func msToJiffies(ms uint64) uint64 {
	return ms * jiffiesHz / 1000
}

// Bio is the minimal view of an in-flight bio the core needs in order to
// sequence a pre-request merge attempt. It carries no scheduler state of
// its own; the host owns the real bio and only hands the core enough to
// log and to satisfy BioMerge's signature.
type Bio interface {
	// OpType classifies the bio the same way Request.OpType does.
	OpType() OpType
	// SectorCount is the bio's length in device sectors, used only for
	// diagnostics around merge attempts.
	SectorCount() uint64
}

// MergeHost is the subset of the host I/O framework the core calls into
// while inserting or merging requests: front/back merging, the merge
// hash, and the request pool. All merge logic itself belongs to the host;
// the core only sequences the calls under its own locks.
type MergeHost interface {
	// TryMergeOnInsert attempts to fold rq into an existing, already
	// hashed request (an "insert merge"). Returns true if rq was
	// consumed and should not be inserted into the DeadlineIndex.
	TryMergeOnInsert(ctx context.Context, rq Request) bool
	// TryMergeBio attempts to fold bio into an already-dispatched request
	// before the host even allocates a Request for it. Returns true if bio
	// was consumed, plus any request the merge left redundant (non-nil
	// only when consumed is true) for the caller to hand to FreeRequest.
	// Called from BioMerge, before PrepareRequest ever sees this I/O, and
	// while BioMerge holds the index lock.
	TryMergeBio(ctx context.Context, bio Bio) (consumed bool, redundant Request)
	// AddMergeHash registers rq so future bios can be merged into it.
	AddMergeHash(rq Request)
	// RemoveMergeHash unregisters rq from the merge hash.
	RemoveMergeHash(rq Request)
	// HasLastMerge reports whether the host currently has a last-merge
	// hint recorded.
	HasLastMerge() bool
	// SetLastMerge records rq as the most recently merged-into request.
	SetLastMerge(rq Request)
	// ClearLastMerge drops the last-merge hint if it currently points at
	// rq.
	ClearLastMerge(rq Request)
	// FreeRequest returns a request object to the host's pool. Called for
	// requests the core determines are now redundant (absorbed by a
	// merge).
	FreeRequest(rq Request)
}

// DepthHost is the subset of the host's tag/bitmap allocator the core
// calls into to throttle asynchronous and write allocations, reserving
// capacity for synchronous reads.
type DepthHost interface {
	// NRRequests returns the queue's configured request pool size.
	NRRequests() uint32
	// ToWordDepth converts a target queue depth into the host bitmap
	// allocator's shallow-depth unit.
	ToWordDepth(qdepth uint32) uint32
	// SetShallowDepth applies the computed shallow depth to the next
	// allocation on the current hardware context.
	SetShallowDepth(depth uint32)
	// SetMinShallowDepth is called once depth accounting is (re)primed,
	// mirroring sbitmap_queue_min_shallow_depth.
	SetMinShallowDepth(depth uint32)
}
