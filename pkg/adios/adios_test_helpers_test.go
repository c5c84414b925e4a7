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
	"sync"
	"time"
)

// manualClock is a Clock whose Now() only advances when told to,
// letting tests control jiffies-based update gating deterministically.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(0, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRequest is a minimal Request used to drive the core in tests
// without a real host underneath it.
type fakeRequest struct {
	id         string
	op         OpType
	startNs    uint64
	ioStartNs  uint64
	totalBytes uint64
	mergeable  bool
	rd         *RqData
}

func (r *fakeRequest) OpType() OpType             { return r.op }
func (r *fakeRequest) StartTimeNs() uint64        { return r.startNs }
func (r *fakeRequest) IOStartTimeNs() uint64      { return r.ioStartNs }
func (r *fakeRequest) TotalBytes() uint64         { return r.totalBytes }
func (r *fakeRequest) Mergeable() bool            { return r.mergeable }
func (r *fakeRequest) SchedulerState() *RqData    { return r.rd }
func (r *fakeRequest) SetSchedulerState(rd *RqData) { r.rd = rd }

// noopMergeHost implements MergeHost by never merging anything, giving
// scheduler tests a host that always inserts requests into the index.
type noopMergeHost struct{}

func (noopMergeHost) TryMergeOnInsert(context.Context, Request) bool { return false }
func (noopMergeHost) TryMergeBio(context.Context, Bio) (bool, Request) { return false, nil }
func (noopMergeHost) AddMergeHash(Request)                           {}
func (noopMergeHost) RemoveMergeHash(Request)                        {}
func (noopMergeHost) HasLastMerge() bool                             { return false }
func (noopMergeHost) SetLastMerge(Request)                           {}
func (noopMergeHost) ClearLastMerge(Request)                         {}
func (noopMergeHost) FreeRequest(Request)                            {}

// fixedDepthHost implements DepthHost with a fixed queue depth and a
// 1:1 word-depth conversion, giving scheduler tests a host that never
// throttles.
type fixedDepthHost struct {
	nrRequests uint32
}

func (h fixedDepthHost) NRRequests() uint32          { return h.nrRequests }
func (h fixedDepthHost) ToWordDepth(qdepth uint32) uint32 { return qdepth }
func (h fixedDepthHost) SetShallowDepth(uint32)      {}
func (h fixedDepthHost) SetMinShallowDepth(uint32)   {}
