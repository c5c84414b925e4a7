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

// Package syncutil provides mutex wrappers used across the scheduler's
// components. The core takes several locks in a fixed hierarchy (index,
// batch queue, priority queue, then per-op model locks); AssertHeld gives
// call sites a way to document and check "the caller must already hold
// this lock" without pulling in the race detector.
package syncutil

import "sync"

// Mutex wraps sync.Mutex with an AssertHeld hook used to document lock
// hierarchy requirements at call sites (see the design's Concurrency
// section). AssertHeld is a documentation aid, not an enforcement
// mechanism: like the reference this is adapted from, it does not track
// which goroutine holds the lock, only that someone does.
type Mutex struct {
	sync.Mutex
}

// AssertHeld panics if the mutex is definitely not held. It is not
// required to catch every violation, only obviously wrong call sequences.
func (m *Mutex) AssertHeld() {
	if m.TryLock() {
		m.Unlock()
		panic("syncutil: mutex not held")
	}
}

// RWMutex wraps sync.RWMutex the same way.
type RWMutex struct {
	sync.RWMutex
}

// AssertHeld panics if the mutex is definitely not held for writing.
func (rw *RWMutex) AssertHeld() {
	if rw.TryLock() {
		rw.Unlock()
		panic("syncutil: mutex not held")
	}
}
