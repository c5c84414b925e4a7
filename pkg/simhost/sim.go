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
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/adios-io/adios/pkg/adios"
)

// Simulation drives an adios.Scheduler against a synthetic Host and
// Device, standing in for a real block layer's submission and completion
// interrupt paths. Submission, dispatch and completion all run on the
// caller's goroutine, and service times are reproducible given a fixed
// Device seed. The scheduler's model-update timer is the exception: it
// fires on real time, on its own goroutine, so how often the models are
// recomputed depends on wall-clock speed rather than on VirtualClock.
type Simulation struct {
	Scheduler *adios.Scheduler
	Host      *Host
	Device    *Device
	Clock     *VirtualClock

	nextSector uint64
	inFlight   map[string]*Request

	// MeasuredVsPredicted records, for every completed request, the ratio
	// of measured to predicted latency in basis points (measured*10000/
	// predicted), giving cmd/adios-sim something to report beyond raw
	// Base/Slope: how well calibrated the model actually is in practice.
	MeasuredVsPredicted *hdrhistogram.Histogram
}

// NewSimulation wires up a Simulation with a fresh Scheduler, Host,
// Device and VirtualClock.
func NewSimulation(nrRequests uint32, model ServiceTimeModel, seed int64) *Simulation {
	clock := NewVirtualClock()
	host := NewHost(nrRequests)
	sched := adios.NewScheduler(clock, host, host)
	sched.DepthUpdated()
	return &Simulation{
		Scheduler:           sched,
		Host:                host,
		Device:              NewDevice(model, seed),
		Clock:               clock,
		inFlight:            make(map[string]*Request),
		MeasuredVsPredicted: hdrhistogram.New(1, 10_000_00, 3),
	}
}

// Submit creates a new request of the given op type and size and inserts
// it into the scheduler, as if the host had just received it from a
// caller. sync marks the request as a synchronous allocation (a blocking
// read waiting on this tag, as opposed to buffered writeback); it drives
// the depth-limiting call every real allocation path makes before a tag
// is handed out. atHead requests bypass the deadline index (the
// PriorityQueue bypass).
func (s *Simulation) Submit(ctx context.Context, op adios.OpType, blockSize uint64, sync, atHead bool) *Request {
	shallowDepth := s.Scheduler.LimitDepth(sync, op == adios.OpWrite)
	s.Host.SetShallowDepth(shallowDepth)

	rq := NewRequest(op, s.Clock.NowNs(), blockSize, s.nextSector)
	s.nextSector += blockSize/512 + 1
	s.Scheduler.PrepareRequest(rq)
	s.Scheduler.InsertRequests(ctx, []adios.Request{rq}, atHead)
	s.inFlight[rq.ID()] = rq
	return rq
}

// Step dispatches the next request the scheduler will hand off, services
// it against Device (advancing the clock by the simulated service time),
// and completes and finishes it. Returns nil if there was nothing to
// dispatch.
func (s *Simulation) Step(ctx context.Context) *Request {
	dispatched := s.Scheduler.DispatchRequest(ctx)
	if dispatched == nil {
		return nil
	}
	rq := dispatched.(*Request)
	rq.SetIOStartTimeNs(s.Clock.NowNs())

	serviceTime := s.Device.Service(rq)
	s.Clock.Advance(time.Duration(serviceTime))

	predLat := rq.SchedulerState().PredLat
	now := s.Clock.NowNs()
	s.Scheduler.CompletedRequest(ctx, rq, now)
	if predLat > 0 {
		measured := now - rq.IOStartTimeNs()
		_ = s.MeasuredVsPredicted.RecordValue(int64(measured * 10000 / predLat))
	}
	s.Scheduler.FinishRequest(rq)
	delete(s.inFlight, rq.ID())
	return rq
}

// HasWork reports whether the scheduler currently holds any request the
// next Step call could dispatch.
func (s *Simulation) HasWork() bool {
	return s.Scheduler.HasWork()
}
