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

package launchparams

import (
	"testing"

	"github.com/android-os/activitysupervisor/pkg/display"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/stack"
)

func TestCalculateFallsBackToPlatformDefault(t *testing.T) {
	c := New()
	c.Register(DefaultDisplayModifier())

	got := c.Calculate(Request{})
	if got.PreferredDisplay != ids.DefaultDisplayID {
		t.Fatalf("got display %v, want default", got.PreferredDisplay)
	}
	if !got.HasWindowingMode || got.WindowingMode != stack.WindowingModeFullscreen {
		t.Fatalf("got mode %v, want fullscreen", got.WindowingMode)
	}
}

func TestCalculateLastRegisteredWinsOverPlatformDefault(t *testing.T) {
	c := New()
	c.Register(DefaultDisplayModifier())
	c.Register(LayoutHintModifier())

	got := c.Calculate(Request{Hint: display.HintFreeform})
	if got.WindowingMode != stack.WindowingModeFreeform {
		t.Fatalf("got mode %v, want freeform from the later-registered hint modifier", got.WindowingMode)
	}
	// The platform default still contributed the display, since the
	// hint modifier never touches PreferredDisplay.
	if got.PreferredDisplay != ids.DefaultDisplayID {
		t.Fatalf("got display %v, want default", got.PreferredDisplay)
	}
}

func TestDoneShortCircuitsRemainingModifiers(t *testing.T) {
	c := New()
	c.Register(DefaultDisplayModifier())
	c.Register(ModifierFunc(func(_ Request, _ Params) (Outcome, Params) {
		p := NewParams()
		p.PreferredDisplay = ids.DisplayID(7)
		p.WindowingMode = stack.WindowingModePinned
		p.HasWindowingMode = true
		return Done, p
	}))

	got := c.Calculate(Request{})
	if got.PreferredDisplay != ids.DisplayID(7) {
		t.Fatalf("got display %v, want 7 from the short-circuiting modifier", got.PreferredDisplay)
	}
	if got.WindowingMode != stack.WindowingModePinned {
		t.Fatalf("got mode %v, want pinned", got.WindowingMode)
	}
}

func TestSkipLeavesResultUnchanged(t *testing.T) {
	c := New()
	c.Register(DefaultDisplayModifier())
	c.Register(ModifierFunc(func(_ Request, current Params) (Outcome, Params) {
		return Skip, current
	}))

	got := c.Calculate(Request{})
	if got.PreferredDisplay != ids.DefaultDisplayID {
		t.Fatalf("got display %v, want default to survive the skipping modifier", got.PreferredDisplay)
	}
}

func TestLayoutHintModifierCarriesFreeformBounds(t *testing.T) {
	c := New()
	c.Register(LayoutHintModifier())

	req := Request{
		Hint:         display.HintFreeform,
		HasFreeform:  true,
		FreeformHint: Bounds{Left: 0, Top: 0, Right: 400, Bottom: 300},
	}
	got := c.Calculate(req)
	if !got.HasBounds || got.Bounds.Right != 400 {
		t.Fatalf("got bounds %+v, want freeform hint bounds carried through", got.Bounds)
	}
}
