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

// Package launchparams implements component H: a chain-of-responsibility
// over registered launch-parameter modifiers, per spec.md §4.H. The shape
// generalizes pkg/shim/v1/runsccmd's decorator-over-interface wrapping
// (ProcessMonitor/LogMonitor layered over a single Monitor) from one
// wrapped interface to an ordered chain of peers, each returning one of
// {Skip, Done, Continue} instead of delegating unconditionally.
package launchparams

import (
	"github.com/android-os/activitysupervisor/pkg/display"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/stack"
)

// Outcome is a modifier's verdict for one OnCalculate call.
type Outcome int

const (
	// Skip leaves the running result unchanged and defers to the next
	// modifier in the chain.
	Skip Outcome = iota
	// Done terminates the chain, taking this modifier's output as final.
	Done
	// Continue updates the running result and keeps evaluating earlier
	// (lower-priority) modifiers.
	Continue
)

func (o Outcome) String() string {
	switch o {
	case Skip:
		return "SKIP"
	case Done:
		return "DONE"
	case Continue:
		return "CONTINUE"
	default:
		return "UNKNOWN"
	}
}

// Bounds is a simple screen-space rectangle; zero value means unset.
type Bounds struct {
	Left, Top, Right, Bottom int
}

// Empty reports whether the bounds carry no size.
func (b Bounds) Empty() bool { return b.Left == b.Right || b.Top == b.Bottom }

// Params is the launch-parameter record a chain run computes: where to
// place a task's windows. Use NewParams, not the zero value: a zero
// DisplayID collides with the always-present default display, so "no
// opinion yet" is represented by ids.InvalidDisplayID.
type Params struct {
	PreferredDisplay ids.DisplayID
	Bounds           Bounds
	WindowingMode    stack.WindowingMode
	HasBounds        bool
	HasWindowingMode bool
}

// NewParams returns a Params with no opinion expressed on any field yet.
func NewParams() Params {
	return Params{PreferredDisplay: ids.InvalidDisplayID}
}

// Request bundles the inputs every modifier's OnCalculate sees: the task
// being positioned, an optional source activity whose bounds are a
// reasonable default, the caller-declared hint, and the resolve-time
// options bundle.
type Request struct {
	Task          ids.TaskID
	Activity      ids.ActivityID
	Source        ids.ActivityID
	Hint          display.Hint
	FreeformHint  Bounds
	HasFreeform   bool
}

// Modifier is a single link in the chain. current is the result computed
// by every later-registered (higher-priority) modifier so far; a
// Continue verdict writes this modifier's opinion into out.
type Modifier interface {
	OnCalculate(req Request, current Params) (Outcome, Params)
}

// ModifierFunc adapts a plain function to Modifier.
type ModifierFunc func(req Request, current Params) (Outcome, Params)

// OnCalculate implements Modifier.
func (f ModifierFunc) OnCalculate(req Request, current Params) (Outcome, Params) {
	return f(req, current)
}

// Controller runs the registered modifier chain of spec.md §4.H.
// Registration order is deliberately reversed at evaluation time: the
// last-registered modifier runs first, so product-specific modifiers
// registered after the platform defaults can override them.
type Controller struct {
	modifiers []Modifier
}

// New returns a controller with no modifiers registered.
func New() *Controller { return &Controller{} }

// Register appends m to the chain. Because evaluation runs
// last-registered-first, callers should register general, platform-level
// modifiers first and more specific overrides last.
func (c *Controller) Register(m Modifier) {
	c.modifiers = append(c.modifiers, m)
}

// Calculate runs the chain for req and returns the computed launch
// parameters. A Done verdict short-circuits the remaining, lower-priority
// modifiers; reaching the front of the chain with no Done simply returns
// whatever Continue verdicts accumulated.
func (c *Controller) Calculate(req Request) Params {
	result := NewParams()
	for i := len(c.modifiers) - 1; i >= 0; i-- {
		outcome, out := c.modifiers[i].OnCalculate(req, result)
		switch outcome {
		case Done:
			return out
		case Continue:
			result = out
		case Skip:
			// leave result untouched
		}
	}
	return result
}

// DefaultDisplayModifier is the lowest-priority, platform-default
// modifier: if nothing more specific claimed a display, use the default
// display and fullscreen windowing mode.
func DefaultDisplayModifier() Modifier {
	return ModifierFunc(func(_ Request, current Params) (Outcome, Params) {
		if current.PreferredDisplay != ids.InvalidDisplayID {
			return Skip, current
		}
		current.PreferredDisplay = ids.DefaultDisplayID
		if !current.HasWindowingMode {
			current.WindowingMode = stack.WindowingModeFullscreen
			current.HasWindowingMode = true
		}
		return Continue, current
	})
}

// LayoutHintModifier resolves the caller-declared display.Hint into a
// windowing mode and freeform bounds, taking priority over the platform
// default but yielding to any later-registered (product-specific)
// modifier that already produced a Done verdict.
func LayoutHintModifier() Modifier {
	return ModifierFunc(func(req Request, current Params) (Outcome, Params) {
		if req.Hint == display.HintNone {
			return Skip, current
		}
		mode := req.Hint.Resolved()
		current.WindowingMode = mode
		current.HasWindowingMode = true
		if mode == stack.WindowingModeFreeform && req.HasFreeform {
			current.Bounds = req.FreeformHint
			current.HasBounds = true
		}
		return Continue, current
	})
}
