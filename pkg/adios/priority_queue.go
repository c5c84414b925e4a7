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

	"github.com/adios-io/adios/pkg/adios/syncutil"
)

// PriorityQueue is the bypass FIFO used for requests the host inserts
// "at head" — typically flush and barrier requests the host wants
// serviced ahead of anything the deadline model has staged. Dispatch
// always drains PriorityQueue before touching BatchBuffer, matching
// dispatch_from_pq being tried before dispatch_from_bq.
type PriorityQueue struct {
	mu struct {
		syncutil.Mutex
		rqs list.List
	}
}

// NewPriorityQueue returns an empty PriorityQueue.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{}
	pq.mu.rqs.Init()
	return pq
}

// PushBack appends rq to the tail of the bypass queue.
func (pq *PriorityQueue) PushBack(rq Request) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.mu.rqs.PushBack(rq)
}

// Dispatch removes and returns the request at the head of the bypass
// queue, or nil if it is empty.
func (pq *PriorityQueue) Dispatch() Request {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	front := pq.mu.rqs.Front()
	if front == nil {
		return nil
	}
	return pq.mu.rqs.Remove(front).(Request)
}

// HasWork reports whether the bypass queue currently holds any request.
func (pq *PriorityQueue) HasWork() bool {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.mu.rqs.Len() > 0
}
