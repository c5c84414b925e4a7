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
	"github.com/adios-io/adios/pkg/adios/syncutil"
	"github.com/google/btree"
)

// deadlineIndexDegree is the B-tree minimum degree backing DeadlineIndex.
// Deadlines are inserted and removed constantly under load, so a modest
// degree that keeps nodes cache-friendly without making every insert
// touch a huge node is preferred over btree.New's default of 2.
const deadlineIndexDegree = 32

// Less implements btree.Item, ordering groups by their deadline.
func (g *DeadlineGroup) Less(than btree.Item) bool {
	return g.deadline < than.(*DeadlineGroup).deadline
}

// DeadlineIndex is an ordered map from absolute deadline to the
// DeadlineGroup of requests sharing it, with O(log N) insert/remove and
// O(1) access to the earliest deadline. It is the Go analog of the
// reference implementation's rb_root_cached dl_tree, using
// github.com/google/btree instead of a hand-rolled red-black tree —
// btree.BTree already tracks the same "cached leftmost" property
// internally via Min, so no separate leftmost pointer needs to be
// maintained by hand.
type DeadlineIndex struct {
	mu struct {
		syncutil.Mutex
		tree *btree.BTree
	}
}

// NewDeadlineIndex returns an empty DeadlineIndex.
func NewDeadlineIndex() *DeadlineIndex {
	idx := &DeadlineIndex{}
	idx.mu.tree = btree.New(deadlineIndexDegree)
	return idx
}

// Lock and Unlock expose the index's own lock to callers that need to
// sequence an external operation (a host merge callback) with index
// access under the same critical section, mirroring adios_bio_merge
// taking ad->lock directly around blk_mq_sched_try_merge.
func (idx *DeadlineIndex) Lock()   { idx.mu.Lock() }
func (idx *DeadlineIndex) Unlock() { idx.mu.Unlock() }

// Insert computes rq's deadline from the given predicted latency and
// latency target, then places it into the group for that deadline
// (creating the group if this is the first request at that exact
// deadline). Requests inserted at the same deadline dispatch in the
// order they were inserted, since DeadlineGroup keeps a FIFO list.
func (idx *DeadlineIndex) Insert(rd *RqData, latencyTarget uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rd.Deadline = rd.Request.StartTimeNs() + latencyTarget + rd.PredLat

	probe := &DeadlineGroup{deadline: rd.Deadline}
	found := idx.mu.tree.Get(probe)

	var group *DeadlineGroup
	if found != nil {
		group = found.(*DeadlineGroup)
	} else {
		group = getDeadlineGroup(rd.Deadline)
		idx.mu.tree.ReplaceOrInsert(group)
	}
	rd.dlGroup = group
	rd.dlElem = group.rqs.PushBack(rd)
}

// Remove detaches rq from its group, erasing the group from the index if
// it was the last request sharing that deadline. It is a no-op if rq is
// not currently indexed.
func (idx *DeadlineIndex) Remove(rd *RqData) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(rd)
}

func (idx *DeadlineIndex) removeLocked(rd *RqData) {
	group := rd.dlGroup
	if group == nil {
		return
	}
	group.rqs.Remove(rd.dlElem)
	rd.dlGroup = nil
	rd.dlElem = nil
	if group.rqs.Len() == 0 {
		idx.mu.tree.Delete(group)
		putDeadlineGroup(group)
	}
}

// Peek returns the RqData at the front of the earliest-deadline group,
// without removing it, or nil if the index is empty.
func (idx *DeadlineIndex) Peek() *RqData {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.peekLocked()
}

func (idx *DeadlineIndex) peekLocked() *RqData {
	min := idx.mu.tree.Min()
	if min == nil {
		return nil
	}
	group := min.(*DeadlineGroup)
	return group.rqs.Front().Value.(*RqData)
}

// PopEarliest removes and returns the RqData at the front of the
// earliest-deadline group, or nil if the index is empty, under a single
// lock acquisition. Refill does not use it: it peeks first and removes
// only the candidates it accepts, so a rejected one stays indexed.
func (idx *DeadlineIndex) PopEarliest() *RqData {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rd := idx.peekLocked()
	if rd == nil {
		return nil
	}
	idx.removeLocked(rd)
	return rd
}

// Len reports how many requests (not groups) the index currently holds.
// It's O(number of groups), used only by tests, never on a hot path;
// HasWork checks the group count instead.
func (idx *DeadlineIndex) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	total := 0
	idx.mu.tree.Ascend(func(i btree.Item) bool {
		total += i.(*DeadlineGroup).Len()
		return true
	})
	return total
}

// successorGroupFront returns the first request of the group with the
// smallest deadline strictly greater than g's, or nil if g is the last
// group. Used by Scheduler.NextRequest when rq is the last request of
// its own group.
func (idx *DeadlineIndex) successorGroupFront(g *DeadlineGroup) Request {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var found Request
	idx.mu.tree.AscendGreaterOrEqual(g, func(i btree.Item) bool {
		cand := i.(*DeadlineGroup)
		if cand == g {
			return true // keep scanning past g itself
		}
		found = cand.rqs.Front().Value.(*RqData).Request
		return false
	})
	return found
}

// predecessorGroupBack returns the last request of the group with the
// largest deadline strictly less than g's, or nil if g is the first
// group. Used by Scheduler.FormerRequest when rq is the first request of
// its own group.
func (idx *DeadlineIndex) predecessorGroupBack(g *DeadlineGroup) Request {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var found Request
	idx.mu.tree.DescendLessOrEqual(g, func(i btree.Item) bool {
		cand := i.(*DeadlineGroup)
		if cand == g {
			return true // keep scanning past g itself
		}
		found = cand.rqs.Back().Value.(*RqData).Request
		return false
	})
	return found
}

// HasWork reports whether any request is currently indexed.
func (idx *DeadlineIndex) HasWork() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.mu.tree.Len() > 0
}
