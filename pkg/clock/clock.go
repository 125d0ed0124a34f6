// Copyright 2024 The Activity Supervisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock provides an injectable time source so that deadline,
// crash-window, and throttle logic throughout the supervisor can be tested
// without sleeping. The launch wait and the shutdown deadline are armed
// against a clock.Clock; pause, stop and destroy deadlines are timestamps
// read from it. The user-switch observer timeout is a context deadline on
// wall-clock time.
package clock

import (
	"time"

	k8sclock "k8s.io/apimachinery/pkg/util/clock"
)

// Clock is the time source used throughout the supervisor.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a cancellable, fireable timer bound to a Clock.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Real is the production Clock. It delegates to k8s.io/apimachinery's
// clock.RealClock rather than calling the time package directly, the same
// indirection client-go's shared informer takes so that every real-clock
// caller in the pack shares one implementation of "wall clock behind an
// interface."
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return k8sclock.RealClock{}.Now() }

// After returns a channel that fires once after d.
func (Real) After(d time.Duration) <-chan time.Time { return k8sclock.RealClock{}.After(d) }

// NewTimer returns a real, cancellable timer.
func (Real) NewTimer(d time.Duration) Timer {
	return &realTimer{t: k8sclock.RealClock{}.NewTimer(d)}
}

type realTimer struct{ t k8sclock.Timer }

func (r *realTimer) C() <-chan time.Time { return r.t.C() }
func (r *realTimer) Stop() bool          { return r.t.Stop() }
