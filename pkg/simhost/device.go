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
	"math/rand"

	"github.com/adios-io/adios/pkg/adios"
)

// ServiceTimeModel returns a synthetic service time, in nanoseconds, for
// a request of the given op type and block size. Device calls it once
// per dispatched request; tests and cmd/adios-sim can substitute their
// own to exercise particular learning curves.
type ServiceTimeModel func(op adios.OpType, blockSize uint64, rng *rand.Rand) uint64

// DefaultServiceTimeModel approximates a modest SSD: a fixed per-op
// overhead plus a per-KiB charge above 4KiB, jittered by +/-20% to give
// the latency model's outlier trimming something to trim.
func DefaultServiceTimeModel(op adios.OpType, blockSize uint64, rng *rand.Rand) uint64 {
	var base, perKiB uint64
	switch op {
	case adios.OpRead:
		base, perKiB = 80_000, 400
	case adios.OpWrite:
		base, perKiB = 150_000, 900
	case adios.OpDiscard:
		base, perKiB = 500_000, 50
	default:
		base, perKiB = 100_000, 0
	}
	total := base
	if blockSize > 4096 {
		total += perKiB * ((blockSize - 4096 + 1023) / 1024)
	}
	jitter := 0.8 + 0.4*rng.Float64()
	return uint64(float64(total) * jitter)
}

// Device is a single-queue synthetic block device: it services requests
// one at a time, in the order the scheduler dispatches them, using a
// ServiceTimeModel to decide how long each one takes. It has no
// real concurrency of its own since the reference elevator also assumes
// one dispatch stream per hardware context; simhost only models one.
type Device struct {
	model ServiceTimeModel
	rng   *rand.Rand
}

// NewDevice returns a Device using model, seeded from seed so runs are
// reproducible.
func NewDevice(model ServiceTimeModel, seed int64) *Device {
	if model == nil {
		model = DefaultServiceTimeModel
	}
	return &Device{model: model, rng: rand.New(rand.NewSource(seed))}
}

// Service returns how long, in nanoseconds, rq should take to complete.
func (d *Device) Service(rq *Request) uint64 {
	return d.model(rq.OpType(), rq.TotalBytes(), d.rng)
}
