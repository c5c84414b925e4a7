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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKnobsDefaults(t *testing.T) {
	k := NewKnobs()
	require.Equal(t, defaultGlobalLatencyWindowNs, k.GlobalLatencyWindowNs())
	require.Equal(t, defaultBQRefillBelowRatio, k.RefillBelowRatioPct())
	for op := OpType(0); op < numOpTypes; op++ {
		require.Equal(t, defaultBatchLimit[op], k.BatchLimit(op))
		require.Equal(t, defaultLatencyTarget[op], k.LatencyTargetNs(op))
	}
}

func TestKnobsSetRefillBelowRatioValidatesRange(t *testing.T) {
	k := NewKnobs()
	require.Error(t, k.SetRefillBelowRatioPct(-1))
	require.Error(t, k.SetRefillBelowRatioPct(101))
	require.NoError(t, k.SetRefillBelowRatioPct(50))
	require.Equal(t, int32(50), k.RefillBelowRatioPct())
}

func TestKnobsSetBatchLimitRejectsZero(t *testing.T) {
	k := NewKnobs()
	require.Error(t, k.SetBatchLimit(OpRead, 0))
	require.NoError(t, k.SetBatchLimit(OpRead, 1))
	require.Equal(t, uint32(1), k.BatchLimit(OpRead))
}

func TestKnobsSetGlobalLatencyWindowAcceptsZero(t *testing.T) {
	k := NewKnobs()
	k.SetGlobalLatencyWindowNs(0)
	require.Zero(t, k.GlobalLatencyWindowNs())
}
