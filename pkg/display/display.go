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

// Package display implements component C: ActivityDisplay, the per-
// display stack order and the windowing-mode resolution and singleton
// bookkeeping spec.md §4.C describes. Unlike pkg/stack, a Display owns its
// Stack records directly (it is their factory, per get_or_create_stack),
// the way the teacher's container record owns its child namespaces
// rather than referencing them through a shared arena.
package display

import (
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/lifecycleerr"
	"github.com/android-os/activitysupervisor/pkg/log"
	"github.com/android-os/activitysupervisor/pkg/stack"
)

// Capabilities are the device-capability flags windowing-mode resolution
// clamps against (spec.md §4.C).
type Capabilities struct {
	MultiWindow      bool
	SplitScreen      bool
	Freeform         bool
	PictureInPicture bool
}

func (c Capabilities) allows(mode stack.WindowingMode) bool {
	switch mode {
	case stack.WindowingModeFreeform:
		return c.Freeform
	case stack.WindowingModePinned, stack.WindowingModeSplitPrimary, stack.WindowingModeSplitSecondary:
		return c.SplitScreen || c.MultiWindow
	case stack.WindowingModeFullscreen, stack.WindowingModeUndefined:
		return true
	default:
		return true
	}
}

// Hint is an options-supplied windowing-mode preference; it is a
// superset of stack.WindowingMode because FullscreenOrSplitSecondary has
// no corresponding persisted stack mode.
type Hint int

const (
	HintNone Hint = iota
	HintFullscreen
	HintFreeform
	HintPinned
	HintSplitPrimary
	HintSplitSecondary
	HintFullscreenOrSplitSecondary
)

// Resolved maps a Hint to the stack.WindowingMode it requests; used both
// internally by ResolveWindowingMode and by pkg/launchparams modifiers
// that need to interpret a caller-declared hint on its own.
func (h Hint) Resolved() stack.WindowingMode {
	switch h {
	case HintFullscreen:
		return stack.WindowingModeFullscreen
	case HintFreeform:
		return stack.WindowingModeFreeform
	case HintPinned:
		return stack.WindowingModePinned
	case HintSplitPrimary:
		return stack.WindowingModeSplitPrimary
	case HintSplitSecondary:
		return stack.WindowingModeSplitSecondary
	default:
		return stack.WindowingModeUndefined
	}
}

// OrderChangeListener is notified whenever PositionChildAt changes the
// front-to-back stack order.
type OrderChangeListener func(order []ids.StackID)

// SplitScreenDismissedListener is notified once per DismissSplitScreen
// call, mirroring onSplitScreenModeDismissed of spec.md §8 scenario 5.
type SplitScreenDismissedListener func()

// Display is the per-display stack container of spec.md §4.C.
type Display struct {
	ID           ids.DisplayID
	Capabilities Capabilities
	DefaultMode  stack.WindowingMode

	order  []ids.StackID // back-to-front; order[len-1] is topmost
	stacks map[ids.StackID]*stack.Stack

	homeID          ids.StackID
	recentsID       ids.StackID
	pinnedID        ids.StackID
	splitPrimaryID  ids.StackID

	listeners        []OrderChangeListener
	dismissListeners []SplitScreenDismissedListener
}

// New creates an empty display with no stacks.
func New(id ids.DisplayID, caps Capabilities, defaultMode stack.WindowingMode) *Display {
	return &Display{
		ID:             id,
		Capabilities:   caps,
		DefaultMode:    defaultMode,
		stacks:         map[ids.StackID]*stack.Stack{},
		homeID:         ids.InvalidStackID,
		recentsID:      ids.InvalidStackID,
		pinnedID:       ids.InvalidStackID,
		splitPrimaryID: ids.InvalidStackID,
	}
}

// Stacks returns every stack on the display, front-to-back order not
// guaranteed by iteration; use Order for the front-to-back sequence.
func (d *Display) Stacks() map[ids.StackID]*stack.Stack { return d.stacks }

// Order returns the back-to-front stack id sequence; Order[len-1] is the
// topmost (frontmost) stack.
func (d *Display) Order() []ids.StackID { return d.order }

// Stack looks up a stack by id, or nil.
func (d *Display) Stack(id ids.StackID) *stack.Stack { return d.stacks[id] }

// AddListener registers an order-change observer, invoked synchronously
// from PositionChildAt.
func (d *Display) AddListener(l OrderChangeListener) { d.listeners = append(d.listeners, l) }

// AddSplitScreenDismissedListener registers an observer invoked once,
// synchronously, from DismissSplitScreen.
func (d *Display) AddSplitScreenDismissedListener(l SplitScreenDismissedListener) {
	d.dismissListeners = append(d.dismissListeners, l)
}

// GetOrCreateStack implements spec.md §4.C's get_or_create_stack.
func (d *Display) GetOrCreateStack(mode stack.WindowingMode, atype stack.ActivityType, onTop bool, newID func() ids.StackID) (*stack.Stack, error) {
	switch atype {
	case stack.ActivityTypeHome:
		return d.singleton(&d.homeID, mode, atype, onTop, newID)
	case stack.ActivityTypeRecents:
		return d.singleton(&d.recentsID, mode, atype, onTop, newID)
	}

	switch mode {
	case stack.WindowingModePinned:
		return d.singleton(&d.pinnedID, mode, atype, onTop, newID)
	case stack.WindowingModeSplitPrimary:
		return d.singleton(&d.splitPrimaryID, mode, atype, onTop, newID)
	}

	// Scan top-down (front to back) for a compatible existing stack.
	if mode != stack.WindowingModeFullscreen && mode != stack.WindowingModeFreeform && mode != stack.WindowingModeSplitSecondary {
		for i := len(d.order) - 1; i >= 0; i-- {
			s := d.stacks[d.order[i]]
			if s != nil && s.WindowingMode == mode && s.ActivityType == atype {
				return s, nil
			}
		}
	}

	// STANDARD activities in FULLSCREEN/FREEFORM/SPLIT_SECONDARY always
	// get a fresh stack to preserve independent back-stack ordering.
	return d.createStack(mode, atype, onTop, newID), nil
}

func (d *Display) singleton(slot *ids.StackID, mode stack.WindowingMode, atype stack.ActivityType, onTop bool, newID func() ids.StackID) (*stack.Stack, error) {
	if *slot != ids.InvalidStackID {
		if existing, ok := d.stacks[*slot]; ok {
			return existing, nil
		}
	}
	if *slot != ids.InvalidStackID {
		return nil, lifecycleerr.Wrapf(lifecycleerr.ErrConfigurationError, "display %s: singleton slot already allocated for %s/%s", d.ID, mode, atype)
	}
	s := d.createStack(mode, atype, onTop, newID)
	*slot = s.ID
	return s, nil
}

func (d *Display) createStack(mode stack.WindowingMode, atype stack.ActivityType, onTop bool, newID func() ids.StackID) *stack.Stack {
	s := stack.New(newID(), d.ID, mode, atype)
	d.stacks[s.ID] = s
	if onTop {
		d.order = append(d.order, s.ID)
	} else {
		d.order = append([]ids.StackID{s.ID}, d.order...)
	}
	pos := len(d.order) - 1
	if !onTop {
		pos = 0
	}
	d.PositionChildAt(s.ID, pos)
	return s
}

// RemoveStack deletes an empty stack from the display and clears any
// singleton slot it held. Removing the split-primary stack dismisses
// split-screen mode, per spec.md §8 scenario 5.
func (d *Display) RemoveStack(id ids.StackID) {
	wasSplitPrimary := id == d.splitPrimaryID

	delete(d.stacks, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	for _, slot := range []*ids.StackID{&d.homeID, &d.recentsID, &d.pinnedID, &d.splitPrimaryID} {
		if *slot == id {
			*slot = ids.InvalidStackID
		}
	}

	if wasSplitPrimary {
		d.DismissSplitScreen()
	}
}

// PositionChildAt implements spec.md §4.C's position_child_at: candidate
// is clamped downward until the pinned-always-topmost and always-on-top-
// above-normal invariants hold, then listeners are notified.
func (d *Display) PositionChildAt(id ids.StackID, candidate int) {
	s := d.stacks[id]
	if s == nil {
		return
	}
	// Remove id from its current position first.
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if candidate > len(d.order) {
		candidate = len(d.order)
	}
	if candidate < 0 {
		candidate = 0
	}

	// Pinned stacks are always topmost.
	if s.WindowingMode != stack.WindowingModePinned {
		for candidate > 0 && d.order[candidate-1] == d.pinnedID && d.pinnedID != ids.InvalidStackID {
			candidate--
		}
	} else {
		candidate = len(d.order)
	}
	// Always-on-top stacks sort above non-always-on-top but below pinned.
	if !s.AlwaysOnTop {
		for candidate > 0 {
			above := d.stacks[d.order[candidate-1]]
			if above != nil && above.AlwaysOnTop && above.WindowingMode != stack.WindowingModePinned {
				candidate--
				continue
			}
			break
		}
	}

	d.order = append(d.order, ids.InvalidStackID)
	copy(d.order[candidate+1:], d.order[candidate:])
	d.order[candidate] = id

	for _, l := range d.listeners {
		l(d.order)
	}
	log.Debugf("display %s: stack %s positioned at %d", d.ID, id, candidate)
}

// ResolveWindowingMode implements spec.md §4.C's resolve_windowing_mode:
// preference order options-hint -> task -> activity -> display default ->
// FULLSCREEN, clamped to device capabilities, with the
// FULLSCREEN_OR_SPLIT_SECONDARY and resizable-promotion special cases.
func (d *Display) ResolveWindowingMode(hint Hint, taskMode, activityMode stack.WindowingMode, resizable bool) stack.WindowingMode {
	if hint == HintFullscreenOrSplitSecondary {
		if d.splitPrimaryID == ids.InvalidStackID {
			return stack.WindowingModeFullscreen
		}
		return stack.WindowingModeSplitSecondary
	}

	candidates := []stack.WindowingMode{hint.Resolved(), taskMode, activityMode, d.DefaultMode, stack.WindowingModeFullscreen}
	for _, c := range candidates {
		if c == stack.WindowingModeUndefined || !d.Capabilities.allows(c) {
			continue
		}
		if c == stack.WindowingModeFullscreen && resizable && d.splitPrimaryID != ids.InvalidStackID {
			return stack.WindowingModeSplitSecondary
		}
		return c
	}
	return stack.WindowingModeFullscreen
}

// ActivateSplitScreen reassigns every resizable non-primary stack to
// SPLIT_SECONDARY, per spec.md §4.C's activation side-effect.
func (d *Display) ActivateSplitScreen() {
	for id, s := range d.stacks {
		if id == d.splitPrimaryID {
			continue
		}
		if s.WindowingMode.Resizable() {
			s.WindowingMode = stack.WindowingModeSplitSecondary
		}
	}
}

// DismissSplitScreen reassigns every SPLIT_SECONDARY stack back to
// FULLSCREEN and moves the home stack directly behind the topmost
// fullscreen stack, per spec.md §4.C's dismissal side-effect. Fires
// onSplitScreenModeDismissed exactly once, per spec.md §8 scenario 5.
func (d *Display) DismissSplitScreen() {
	for _, s := range d.stacks {
		if s.WindowingMode == stack.WindowingModeSplitSecondary {
			s.WindowingMode = stack.WindowingModeFullscreen
		}
	}
	defer func() {
		for _, l := range d.dismissListeners {
			l()
		}
	}()
	if d.homeID == ids.InvalidStackID {
		return
	}
	topFullscreen := -1
	for i := len(d.order) - 1; i >= 0; i-- {
		if d.order[i] == d.homeID {
			continue
		}
		if s := d.stacks[d.order[i]]; s != nil && s.WindowingMode == stack.WindowingModeFullscreen {
			topFullscreen = i
			break
		}
	}
	if topFullscreen >= 0 {
		// PositionChildAt removes home before inserting it, which shifts
		// the fullscreen stack down by one when home sat below it.
		target := topFullscreen
		for i, id := range d.order {
			if id == d.homeID && i < topFullscreen {
				target--
				break
			}
		}
		d.PositionChildAt(d.homeID, target)
	}
}

// HomeStack returns the display's singleton home stack, or nil.
func (d *Display) HomeStack() *stack.Stack {
	if d.homeID == ids.InvalidStackID {
		return nil
	}
	return d.stacks[d.homeID]
}
