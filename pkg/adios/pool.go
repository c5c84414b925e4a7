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

import "sync"

// rqDataPool recycles RqData allocations across PrepareRequest/
// FinishRequest pairs, standing in for the reference implementation's
// kmem_cache-backed rq_data_pool. sync.Pool is the idiomatic Go
// equivalent: per-P free lists with no explicit high/low watermark
// tuning required.
var rqDataPool = sync.Pool{
	New: func() interface{} { return new(RqData) },
}

func getRqData() *RqData {
	return rqDataPool.Get().(*RqData)
}

func putRqData(rd *RqData) {
	*rd = RqData{}
	rqDataPool.Put(rd)
}

// dlGroupPool recycles DeadlineGroup allocations, standing in for
// dl_group_pool. DeadlineIndex draws from and returns to this pool
// instead of calling new/letting the garbage collector reclaim groups,
// since groups are created and destroyed at the same rate requests are
// inserted and removed under load.
var dlGroupPool = sync.Pool{
	New: func() interface{} { return new(DeadlineGroup) },
}

func getDeadlineGroup(deadline uint64) *DeadlineGroup {
	g := dlGroupPool.Get().(*DeadlineGroup)
	g.deadline = deadline
	g.rqs.Init()
	return g
}

func putDeadlineGroup(g *DeadlineGroup) {
	g.deadline = 0
	dlGroupPool.Put(g)
}
