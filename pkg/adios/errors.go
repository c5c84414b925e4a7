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
	"context"

	"github.com/adios-io/adios/pkg/adios/adioslog"
	"github.com/cockroachdb/errors"
)

// assertf reports a host-contract violation. These never fire on a
// correctly wired host; they exist to catch bugs in the surrounding
// integration rather than conditions the core is expected to recover
// from. Logged once, then it panics — mirroring the "assertions (warn
// once)" contract from the design.
func assertf(ctx context.Context, cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	err := errors.AssertionFailedf(format, args...)
	adioslog.Errorf(ctx, "assertion failed: %v", err)
	panic(err)
}
