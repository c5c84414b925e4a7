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

func TestRqDataPoolZeroesOnReturn(t *testing.T) {
	rd := getRqData()
	rd.PredLat = 42
	rd.BlockSize = 100
	putRqData(rd)

	rd2 := getRqData()
	require.Zero(t, rd2.PredLat)
	require.Zero(t, rd2.BlockSize)
	require.Nil(t, rd2.Request)
}

func TestDeadlineGroupPoolResetsDeadline(t *testing.T) {
	g := getDeadlineGroup(1234)
	require.Equal(t, uint64(1234), g.Deadline())
	require.Equal(t, 0, g.Len())

	rd := &RqData{}
	g.rqs.PushBack(rd)
	putDeadlineGroup(g)

	g2 := getDeadlineGroup(5678)
	require.Equal(t, uint64(5678), g2.Deadline())
}
