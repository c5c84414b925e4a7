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

// adios-sim drives pkg/simhost against a synthetic workload and reports
// the resulting latency model and batch statistics, giving the scheduler
// core a runnable demonstration outside of the test suite.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/adios-io/adios/pkg/adios"
	"github.com/adios-io/adios/pkg/simhost"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type optsT struct {
	requests       int
	queueDepth     uint32
	seed           int64
	readRatio      float64
	discardRatio   float64
	headRatio      float64
	syncRatio      float64
	minBlockKiB    int
	maxBlockKiB    int
	latencyWindow  uint64
	refillBelowPct int32
	batchLimitRead uint32
	batchLimitWr   uint32
}

var opts = optsT{
	requests:       10000,
	queueDepth:     32,
	seed:           1,
	readRatio:      0.7,
	discardRatio:   0.02,
	headRatio:      0.0,
	syncRatio:      0.3,
	minBlockKiB:    4,
	maxBlockKiB:    256,
	latencyWindow:  16_000_000,
	refillBelowPct: 15,
	batchLimitRead: 16,
	batchLimitWr:   8,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.IntVar(&opts.requests, "requests", opts.requests, "number of synthetic requests to submit")
	f.Uint32Var(&opts.queueDepth, "queue-depth", opts.queueDepth, "notional device queue depth reported to LimitDepth")
	f.Int64Var(&opts.seed, "seed", opts.seed, "seed for the device's service-time jitter and the workload generator")
	f.Float64Var(&opts.readRatio, "read-ratio", opts.readRatio, "fraction of requests that are reads; the remainder minus discard-ratio are writes")
	f.Float64Var(&opts.discardRatio, "discard-ratio", opts.discardRatio, "fraction of requests that are discards")
	f.Float64Var(&opts.headRatio, "head-ratio", opts.headRatio, "fraction of requests inserted at head, bypassing the deadline index")
	f.Float64Var(&opts.syncRatio, "sync-ratio", opts.syncRatio, "fraction of requests allocated as synchronous, exempting sync reads from depth limiting")
	f.IntVar(&opts.minBlockKiB, "min-block-kib", opts.minBlockKiB, "minimum request size in KiB")
	f.IntVar(&opts.maxBlockKiB, "max-block-kib", opts.maxBlockKiB, "maximum request size in KiB")
	f.Uint64Var(&opts.latencyWindow, "global-latency-window-ns", opts.latencyWindow, "predicted-latency budget for one batch refill")
	f.Int32Var(&opts.refillBelowPct, "bq-refill-below-ratio", opts.refillBelowPct, "percent of the latency window below which a refill triggers")
	f.Uint32Var(&opts.batchLimitRead, "batch-limit-read", opts.batchLimitRead, "per-page cap on read requests")
	f.Uint32Var(&opts.batchLimitWr, "batch-limit-write", opts.batchLimitWr, "per-page cap on write requests")
}

var rootCmd = &cobra.Command{
	Use:   "adios-sim",
	Short: "run a synthetic workload through the adios scheduler core",
	RunE: func(cmd *cobra.Command, args []string) error {
		return opts.run(cmd.OutOrStdout())
	},
}

func (o *optsT) run(out io.Writer) error {
	ctx := context.Background()
	sim := simhost.NewSimulation(o.queueDepth, simhost.DefaultServiceTimeModel, o.seed)

	knobs := sim.Scheduler.Knobs()
	knobs.SetGlobalLatencyWindowNs(o.latencyWindow)
	if err := knobs.SetRefillBelowRatioPct(o.refillBelowPct); err != nil {
		return err
	}
	if err := knobs.SetBatchLimit(adios.OpRead, o.batchLimitRead); err != nil {
		return err
	}
	if err := knobs.SetBatchLimit(adios.OpWrite, o.batchLimitWr); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(o.seed))
	blockRange := o.maxBlockKiB - o.minBlockKiB
	if blockRange < 0 {
		blockRange = 0
	}

	dispatched := 0
	for i := 0; i < o.requests; i++ {
		op := adios.OpWrite
		switch r := rng.Float64(); {
		case r < o.readRatio:
			op = adios.OpRead
		case r < o.readRatio+o.discardRatio:
			op = adios.OpDiscard
		}
		blockSize := uint64(o.minBlockKiB+rng.Intn(blockRange+1)) * 1024
		atHead := rng.Float64() < o.headRatio
		sync := rng.Float64() < o.syncRatio
		sim.Submit(ctx, op, blockSize, sync, atHead)

		for sim.HasWork() {
			if sim.Step(ctx) == nil {
				break
			}
			dispatched++
		}
	}
	for sim.HasWork() {
		if sim.Step(ctx) == nil {
			break
		}
		dispatched++
	}

	fmt.Fprintf(out, "dispatched %s requests\n\n", humanize.Comma(int64(dispatched)))
	for _, op := range []adios.OpType{adios.OpRead, adios.OpWrite, adios.OpDiscard, adios.OpOther} {
		fmt.Fprintf(out, "%s:\n%s\n", op, sim.Scheduler.LatModelString(op))
	}
	fmt.Fprintf(out, "%s\n", sim.Scheduler.BatchActualMaxString())

	h := sim.MeasuredVsPredicted
	if h.TotalCount() > 0 {
		fmt.Fprintf(out, "measured/predicted latency ratio (basis points, 10000 = exact):\n")
		fmt.Fprintf(out, "  p50: %s  p90: %s  p99: %s\n",
			humanize.Comma(h.ValueAtQuantile(50)),
			humanize.Comma(h.ValueAtQuantile(90)),
			humanize.Comma(h.ValueAtQuantile(99)))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
