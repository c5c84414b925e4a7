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
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// OpType classifies a Request for the purposes of latency modeling,
// deadline targets and batch caps. Every per-op array in this package is
// indexed by OpType, so new members must be added before numOpTypes.
type OpType int8

const (
	// OpRead is a read request.
	OpRead OpType = iota
	// OpWrite is a write request.
	OpWrite
	// OpDiscard is a discard (trim) request.
	OpDiscard
	// OpOther covers flush, fua and any operation that doesn't fit the
	// other three buckets.
	OpOther
	numOpTypes
)

// String implements fmt.Stringer.
func (t OpType) String() string {
	return string(opTypeName(t))
}

// SafeFormat implements redact.SafeFormatter so OpType values can appear
// directly in adioslog calls without leaking into redacted output.
func (t OpType) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(opTypeName(t))
}

func opTypeName(t OpType) redact.RedactableString {
	switch t {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDiscard:
		return "discard"
	case OpOther:
		return "other"
	default:
		panic(errors.AssertionFailedf("unknown OpType %d", int8(t)))
	}
}
