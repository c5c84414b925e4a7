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

// Package adios implements the core of an adaptive-deadline block I/O
// scheduler: a request dispatcher that orders pending storage requests so
// each is served before a per-request deadline computed from a learned
// device latency model, while capping per-dispatch batch sizes to a global
// predicted-latency budget.
//
// The package is deliberately host-agnostic. It knows nothing about bios,
// hardware queues, or merge primitives; it consumes requests through the
// Request, MergeHost and DepthHost interfaces and hands back the next Request a
// caller should service. A real block layer, or the synthetic pkg/simhost
// used by this repository's tests and cmd/adios-sim, supplies the other
// side of that seam.
package adios
