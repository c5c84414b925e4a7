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
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// Version is the ADIOS core version string, surfaced through the
// read-only "adios_version" knob.
const Version = "1.0.0"

// defaultLatencyTarget mirrors default_latency_target in the reference
// implementation: the fixed offset added to a request's predicted latency
// to compute its deadline.
var defaultLatencyTarget = [numOpTypes]uint64{
	OpRead:    2 * uint64(time.Millisecond),
	OpWrite:   750 * uint64(time.Millisecond),
	OpDiscard: 5 * uint64(time.Second),
	OpOther:   0,
}

// defaultBatchLimit mirrors default_batch_limit: the per-op cap on how
// many requests a single BatchBuffer page may hold.
var defaultBatchLimit = [numOpTypes]uint32{
	OpRead:    16,
	OpWrite:   8,
	OpDiscard: 1,
	OpOther:   1,
}

const (
	defaultGlobalLatencyWindowNs uint64 = 16_000_000
	defaultBQRefillBelowRatio    int32  = 15
)

// Knobs is the runtime-tunable parameter surface described in the design
// as the Knobs component. It holds only atomics — every field here is
// read on hot paths (Refill, Insert, Dispatch) without additional
// locking, so tearing is tolerated by design: a knob value observed
// mid-write is still a valid ratio or duration, just possibly one write
// behind. Reset semantics that touch other subsystems (resetting a
// LatencyModel's Base, clearing BatchBuffer high-water marks) live on
// Scheduler, which owns those subsystems; Knobs itself only stores
// values.
type Knobs struct {
	globalLatencyWindowNs atomic.Uint64
	bqRefillBelowRatio    atomic.Int32
	batchLimit            [numOpTypes]atomic.Uint32
	latencyTargetNs       [numOpTypes]atomic.Uint64
}

// NewKnobs returns a Knobs populated with the defaults from the design's
// tunables table.
func NewKnobs() *Knobs {
	k := &Knobs{}
	k.globalLatencyWindowNs.Store(defaultGlobalLatencyWindowNs)
	k.bqRefillBelowRatio.Store(defaultBQRefillBelowRatio)
	for op := OpType(0); op < numOpTypes; op++ {
		k.batchLimit[op].Store(defaultBatchLimit[op])
		k.latencyTargetNs[op].Store(defaultLatencyTarget[op])
	}
	return k
}

// GlobalLatencyWindowNs returns the predicted-latency budget for one
// refill, in nanoseconds.
func (k *Knobs) GlobalLatencyWindowNs() uint64 {
	return k.globalLatencyWindowNs.Load()
}

// SetGlobalLatencyWindowNs updates the refill budget. Any non-negative
// value is accepted; a window of 0 is legal and simply forces every
// refill to stop after its first request.
func (k *Knobs) SetGlobalLatencyWindowNs(ns uint64) {
	k.globalLatencyWindowNs.Store(ns)
}

// RefillBelowRatioPct returns the percentage of GlobalLatencyWindowNs
// below which Dispatch triggers a Refill.
func (k *Knobs) RefillBelowRatioPct() int32 {
	return k.bqRefillBelowRatio.Load()
}

// SetRefillBelowRatioPct validates and updates the refill trigger ratio.
func (k *Knobs) SetRefillBelowRatioPct(pct int32) error {
	if pct < 0 || pct > 100 {
		return errors.Newf("bq_refill_below_ratio must be in [0, 100], got %d", pct)
	}
	k.bqRefillBelowRatio.Store(pct)
	return nil
}

// BatchLimit returns the per-page cap for op.
func (k *Knobs) BatchLimit(op OpType) uint32 {
	return k.batchLimit[op].Load()
}

// SetBatchLimit validates and updates the per-page cap for op. A limit of
// 0 is rejected: Refill would then stage a request for that op only when
// it is the first candidate of a refill.
func (k *Knobs) SetBatchLimit(op OpType, limit uint32) error {
	if limit == 0 {
		return errors.Newf("batch_limit_%s must be > 0", op)
	}
	k.batchLimit[op].Store(limit)
	return nil
}

// LatencyTargetNs returns the deadline offset for op, in nanoseconds.
func (k *Knobs) LatencyTargetNs(op OpType) uint64 {
	return k.latencyTargetNs[op].Load()
}

// setLatencyTargetNs stores the new target. Resetting the associated
// model's Base is the caller's (Scheduler's) responsibility, since Knobs
// doesn't reference the LatencyModel array.
func (k *Knobs) setLatencyTargetNs(op OpType, ns uint64) {
	k.latencyTargetNs[op].Store(ns)
}
