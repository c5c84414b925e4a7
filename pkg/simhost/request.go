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

// Package simhost is a synthetic in-process implementation of the
// pkg/adios host seam: it stands in for the real block layer so the
// scheduler core can be driven end to end without a kernel underneath
// it. It is not part of the scheduler's public surface; cmd/adios-sim
// uses it to build a runnable demonstration and integration test bed.
package simhost

import (
	"github.com/adios-io/adios/pkg/adios"
	"github.com/google/uuid"
)

// Request is simhost's adios.Request implementation: a synthetic I/O
// request identified by a UUID rather than a real kernel bio chain.
type Request struct {
	id string

	opType      adios.OpType
	startNs     uint64
	ioStartNs   uint64
	totalBytes  uint64
	mergeable   bool
	lastSector  uint64
	sectorCount uint64

	sched *adios.RqData
}

// NewRequest returns a Request with a fresh synthetic ID.
func NewRequest(op adios.OpType, startNs, totalBytes uint64, sector uint64) *Request {
	return &Request{
		id:          uuid.NewString(),
		opType:      op,
		startNs:     startNs,
		totalBytes:  totalBytes,
		mergeable:   op == adios.OpRead || op == adios.OpWrite,
		lastSector:  sector + totalBytes/sectorSize,
		sectorCount: totalBytes / sectorSize,
	}
}

// sectorSize is the device's logical block size used to convert byte
// lengths into sector counts for merge-adjacency checks.
const sectorSize = 512

// ID returns the request's synthetic identifier, used as the key of
// Host's merge hash and of Simulation's in-flight set.
func (r *Request) ID() string { return r.id }

func (r *Request) OpType() adios.OpType    { return r.opType }
func (r *Request) StartTimeNs() uint64     { return r.startNs }
func (r *Request) IOStartTimeNs() uint64   { return r.ioStartNs }
func (r *Request) TotalBytes() uint64      { return r.totalBytes }
func (r *Request) Mergeable() bool         { return r.mergeable }
func (r *Request) SchedulerState() *adios.RqData {
	return r.sched
}
func (r *Request) SetSchedulerState(rd *adios.RqData) {
	r.sched = rd
}

// SetIOStartTimeNs is called by Simulation.Step just before Device
// services the request, mirroring the host setting rq->io_start_time_ns.
func (r *Request) SetIOStartTimeNs(ns uint64) { r.ioStartNs = ns }

// SectorCount reports the request's length in sectors, satisfying
// adios.Bio for the bio-merge path.
func (r *Request) SectorCount() uint64 { return r.sectorCount }

// adjacent reports whether other's first sector immediately follows this
// request's last sector, the simple back-merge adjacency test Host uses.
func (r *Request) adjacent(other *Request) bool {
	return r.opType == other.opType && r.lastSector == other.lastSector-other.sectorCount
}
