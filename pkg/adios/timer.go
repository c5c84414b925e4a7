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

// updateTimerCoalesceWindow is how far into the future CompletedRequest
// pushes the pending model update, matching the reference's
// msecs_to_jiffies(100) reduce window: bursts of completions coalesce
// into a single Update call instead of one per completion.
const updateTimerCoalesceWindow = 100 * time.Millisecond

// updateTimer arms a single coalesced timer.AfterFunc that, once it
// fires, calls Update on every LatencyModel. CompletedRequest calls
// Reduce, which leaves an already-pending timer in place (it only ever
// moves a pending timer sooner) instead of arming a fresh timer per
// completion, the Go equivalent of timer_reduce.
type updateTimer struct {
	models *[numOpTypes]*LatencyModel

	mu struct {
		sync.Mutex
		t         *time.Timer
		fireAt    time.Time
		stopped   bool
	}
}

func newUpdateTimer(models *[numOpTypes]*LatencyModel) *updateTimer {
	return &updateTimer{models: models}
}

// Reduce arms the timer to fire in updateTimerCoalesceWindow if it isn't
// already scheduled to fire sooner. Safe to call concurrently from any
// number of completion paths.
func (ut *updateTimer) Reduce(ctx context.Context) {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	if ut.mu.stopped {
		return
	}

	deadline := time.Now().Add(updateTimerCoalesceWindow)
	// The reduce-only rule only holds while a timer is pending: once fire
	// has run, ut.mu.t is nil again and this call must re-arm unconditionally.
	if ut.mu.t != nil && !ut.mu.fireAt.After(deadline) {
		return
	}
	if ut.mu.t != nil {
		ut.mu.t.Stop()
	}
	ut.mu.fireAt = deadline
	ut.mu.t = time.AfterFunc(updateTimerCoalesceWindow, func() { ut.fire(ctx) })
}

func (ut *updateTimer) fire(ctx context.Context) {
	ut.mu.Lock()
	ut.mu.t = nil
	ut.mu.fireAt = time.Time{}
	ut.mu.Unlock()

	for op := OpType(0); op < numOpTypes; op++ {
		ut.models[op].Update(ctx)
	}
}

// Stop cancels any pending timer and prevents future Reduce calls from
// arming a new one. Called from ExitSched.
func (ut *updateTimer) Stop() {
	ut.mu.Lock()
	defer ut.mu.Unlock()
	ut.mu.stopped = true
	if ut.mu.t != nil {
		ut.mu.t.Stop()
	}
}
