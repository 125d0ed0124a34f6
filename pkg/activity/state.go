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

// Package activity implements component A: the Activity record and its
// per-activity state machine (resume, pause, stop, destroy). Every method
// here assumes the caller holds the supervisor lock for the entire call,
// matching the spec's single-global-lock concurrency model; Activity
// itself owns no mutex.
package activity

import "fmt"

// State is one of the activity lifecycle states of spec.md §3.
type State int

const (
	Initializing State = iota
	Resumed
	Pausing
	Paused
	Stopping
	Stopped
	Finishing
	Destroying
	Destroyed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Resumed:
		return "RESUMED"
	case Pausing:
		return "PAUSING"
	case Paused:
		return "PAUSED"
	case Stopping:
		return "STOPPING"
	case Stopped:
		return "STOPPED"
	case Finishing:
		return "FINISHING"
	case Destroying:
		return "DESTROYING"
	case Destroyed:
		return "DESTROYED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// InHistory reports whether an activity in this state is still considered
// part of its task's back-stack history (spec.md §3: "in history iff the
// state is not DESTROYED").
func (s State) InHistory() bool { return s != Destroyed }

// validTransitions enumerates the edges the state machine allows; an
// attempt to cross any other edge panics, matching the teacher's
// updateContainerState guarded-transition idiom
// (pkg/sentry/control/lifecycle.go) rather than silently clamping to a
// plausible-looking state.
var validTransitions = map[State]map[State]bool{
	Initializing: {Resumed: true, Stopped: true, Destroyed: true, Finishing: true},
	Resumed:      {Pausing: true, Finishing: true},
	Pausing:      {Paused: true, Finishing: true},
	Paused:       {Resumed: true, Stopping: true, Finishing: true, Destroying: true},
	Stopping:     {Stopped: true, Resumed: true, Finishing: true},
	Stopped:      {Resumed: true, Destroying: true, Finishing: true},
	Finishing:    {Destroying: true},
	Destroying:   {Destroyed: true},
	Destroyed:    {Initializing: true}, // restart after full teardown
}

func (s State) canTransitionTo(next State) bool {
	edges, ok := validTransitions[s]
	if !ok {
		return false
	}
	return edges[next]
}
