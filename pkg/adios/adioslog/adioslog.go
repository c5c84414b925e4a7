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

// Package adioslog is the ambient logging seam used throughout pkg/adios.
// It wraps a single *zap.SugaredLogger the way CockroachDB's pkg/util/log
// wraps its own backend: every call site takes a context.Context first
// (even though nothing here blocks on it or extracts anything from it
// today) so that a caller embedding this package into a larger service can
// later thread tracing/log-tag information through without touching every
// call site.
package adioslog

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.SugaredLogger]

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	SetLogger(l.Sugar())
}

// SetLogger installs the logger used by every package-level call below. It
// exists so a host program can redirect adios's logging into its own zap
// core (or, in tests, into an observed logger) instead of the default
// production config.
func SetLogger(l *zap.SugaredLogger) {
	logger.Store(l)
}

// Verbosity gates VEventf. It is intentionally coarse — this is a small
// core, not a subsystem with dozens of independently-tunable log sites.
var verbosity atomic.Int32

// SetVerbosity controls which VEventf calls are emitted. Level 0 (the
// default) suppresses all of them.
func SetVerbosity(level int32) {
	verbosity.Store(level)
}

// Infof logs at info level.
func Infof(_ context.Context, format string, args ...interface{}) {
	logger.Load().Infof(format, args...)
}

// Warningf logs at warn level.
func Warningf(_ context.Context, format string, args ...interface{}) {
	logger.Load().Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(_ context.Context, format string, args ...interface{}) {
	logger.Load().Errorf(format, args...)
}

// VEventf logs at debug level if the configured verbosity is at least
// level. Used for the high-frequency events (refill, model update) that
// would otherwise flood production logs.
func VEventf(_ context.Context, level int32, format string, args ...interface{}) {
	if verbosity.Load() < level {
		return
	}
	logger.Load().Debugf(format, args...)
}
