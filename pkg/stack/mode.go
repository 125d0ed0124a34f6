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

package stack

// WindowingMode is one of the stack windowing modes of spec.md §3.
type WindowingMode int

const (
	WindowingModeUndefined WindowingMode = iota
	WindowingModeFullscreen
	WindowingModeFreeform
	WindowingModePinned
	WindowingModeSplitPrimary
	WindowingModeSplitSecondary
)

func (m WindowingMode) String() string {
	switch m {
	case WindowingModeFullscreen:
		return "FULLSCREEN"
	case WindowingModeFreeform:
		return "FREEFORM"
	case WindowingModePinned:
		return "PINNED"
	case WindowingModeSplitPrimary:
		return "SPLIT_PRIMARY"
	case WindowingModeSplitSecondary:
		return "SPLIT_SECONDARY"
	default:
		return "UNDEFINED"
	}
}

// ActivityType is one of the stack activity types of spec.md §3.
type ActivityType int

const (
	ActivityTypeUndefined ActivityType = iota
	ActivityTypeStandard
	ActivityTypeHome
	ActivityTypeRecents
)

func (t ActivityType) String() string {
	switch t {
	case ActivityTypeStandard:
		return "STANDARD"
	case ActivityTypeHome:
		return "HOME"
	case ActivityTypeRecents:
		return "RECENTS"
	default:
		return "UNDEFINED"
	}
}

// Resizable reports whether a windowing mode can be reassigned to
// SPLIT_SECONDARY when the display activates split-screen (spec.md
// §4.C). FULLSCREEN and FREEFORM are resizable; PINNED and the split
// modes themselves are not.
func (m WindowingMode) Resizable() bool {
	return m == WindowingModeFullscreen || m == WindowingModeFreeform
}
