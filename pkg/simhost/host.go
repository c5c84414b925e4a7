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

package simhost

import (
	"context"
	"sync"

	"github.com/adios-io/adios/pkg/adios"
)

// Host implements adios.MergeHost and adios.DepthHost against an
// in-memory merge hash keyed by request ID and scanned for adjacency, standing in for the block
// layer's elv_rqhash and sbitmap_queue depth accounting.
type Host struct {
	nrRequests uint32

	mu struct {
		sync.Mutex
		hash      map[string]*Request // by ID, for TryMergeOnInsert/TryMergeBio scans
		lastMerge *Request
	}

	// shallowDepth records the last value SetShallowDepth was called
	// with, for tests to inspect. Nothing in simhost reads it
	// concurrently with the write, so a plain field is enough.
	shallowDepth uint32
}

// NewHost returns a Host configured for a device queue of the given
// depth.
func NewHost(nrRequests uint32) *Host {
	h := &Host{nrRequests: nrRequests}
	h.mu.hash = make(map[string]*Request)
	return h
}

// TryMergeOnInsert scans the merge hash for a request adjacent to rq and
// folds rq into it if found. This is a simplified stand-in for
// blk_mq_sched_try_insert_merge's plug-list and hash-table scan: simhost
// only tracks one hash bucket, not per-hardware-context plug lists.
func (h *Host) TryMergeOnInsert(_ context.Context, rq adios.Request) bool {
	r := rq.(*Request)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cand := range h.mu.hash {
		if cand.adjacent(r) {
			cand.totalBytes += r.totalBytes
			cand.lastSector = r.lastSector
			cand.sectorCount += r.sectorCount
			return true
		}
	}
	return false
}

// TryMergeBio mirrors TryMergeOnInsert but for a bio that hasn't been
// promoted to a Request yet. simhost has no separate bio representation
// beyond adios.Bio, so it degrades to "never merges" — a real host's bio
// merge path has substantially more context (the bio's actual sector
// range) than adios.Bio exposes, and reproducing that isn't useful for
// exercising the scheduler core.
func (h *Host) TryMergeBio(context.Context, adios.Bio) (bool, adios.Request) {
	return false, nil
}

// AddMergeHash registers rq for future adjacency scans.
func (h *Host) AddMergeHash(rq adios.Request) {
	r := rq.(*Request)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mu.hash[r.ID()] = r
}

// RemoveMergeHash unregisters rq.
func (h *Host) RemoveMergeHash(rq adios.Request) {
	r := rq.(*Request)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.mu.hash, r.ID())
	if h.mu.lastMerge == r {
		h.mu.lastMerge = nil
	}
}

// HasLastMerge reports whether a last-merge hint is currently set.
func (h *Host) HasLastMerge() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mu.lastMerge != nil
}

// SetLastMerge records rq as the most recently touched request.
func (h *Host) SetLastMerge(rq adios.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mu.lastMerge = rq.(*Request)
}

// ClearLastMerge drops the hint if it currently points at rq.
func (h *Host) ClearLastMerge(rq adios.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mu.lastMerge == rq.(*Request) {
		h.mu.lastMerge = nil
	}
}

// FreeRequest is a no-op: simhost's Request objects are ordinary
// heap values collected by the garbage collector, not slab-allocated, so
// there's no pool to return them to.
func (h *Host) FreeRequest(adios.Request) {}

// NRRequests returns the configured queue depth.
func (h *Host) NRRequests() uint32 { return h.nrRequests }

// ToWordDepth scales qdepth against the configured queue depth the same
// way the kernel's shift-based sbitmap conversion does, using a fixed
// notional bitmap width since simhost has no real bitmap allocator.
func (h *Host) ToWordDepth(qdepth uint32) uint32 {
	const notionalBitmapWidth = 1 << 10
	if h.nrRequests == 0 {
		return 0
	}
	return (qdepth*notionalBitmapWidth + h.nrRequests - 1) / h.nrRequests
}

// SetShallowDepth records the computed shallow depth for inspection by
// tests.
func (h *Host) SetShallowDepth(depth uint32) { h.shallowDepth = depth }

// SetMinShallowDepth is a no-op in simhost: there's no real sbitmap_queue
// whose minimum needs priming.
func (h *Host) SetMinShallowDepth(uint32) {}
