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

package supervisorlock

import (
	"time"

	"github.com/android-os/activitysupervisor/pkg/clock"
)

// Deadline bounds a WaitUntil call; the stack supervisor's shutdown wait
// is bounded by one. A zero Deadline disables the bound and waits
// indefinitely for the predicate to be satisfied after a Broadcast.
type Deadline struct {
	Clock clock.Clock
	At    time.Time
}

// NewDeadline returns a Deadline d in the future, measured against clk.
func NewDeadline(clk clock.Clock, d time.Duration) Deadline {
	return Deadline{Clock: clk, At: clk.Now().Add(d)}
}

// Expired reports whether the deadline has already passed.
func (d Deadline) Expired() bool {
	if d.Clock == nil {
		return false
	}
	return !d.At.After(d.Clock.Now())
}

// Remaining returns the time left until the deadline, or 0 if there is no
// bound.
func (d Deadline) Remaining() time.Duration {
	if d.Clock == nil {
		return 0
	}
	r := d.At.Sub(d.Clock.Now())
	if r < 0 {
		return 0
	}
	return r
}
