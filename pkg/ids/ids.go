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

// Package ids defines the typed identifiers used by the arena-with-indices
// design: every cross-record reference (stack to display, activity to
// task, process to activity) is one of these, never a pointer. This is
// what lets Activity, Task, Stack, Display, and Process live in separate
// packages without an import cycle, and it is what lets records be saved,
// copied, and compared without aliasing concerns.
package ids

import "fmt"

// ActivityID uniquely identifies an activity for its lifetime. Zero is
// never allocated by an arena and is used as the "no activity" sentinel.
type ActivityID uint64

func (id ActivityID) String() string { return fmt.Sprintf("activity#%d", uint64(id)) }

// InvalidActivityID is the "no activity" sentinel.
const InvalidActivityID ActivityID = 0

// InvalidTaskID is the "no task" sentinel; like ActivityID, arenas never
// allocate the zero value.
const InvalidTaskID TaskID = 0

// InvalidStackID is the "no stack" sentinel.
const InvalidStackID StackID = 0

// TaskID is a positive integer, unique across all stacks.
type TaskID int64

func (id TaskID) String() string { return fmt.Sprintf("task#%d", int64(id)) }

// StackID is a positive integer, unique across displays.
type StackID int64

func (id StackID) String() string { return fmt.Sprintf("stack#%d", int64(id)) }

// DisplayID identifies a physical or virtual display.
type DisplayID int

func (id DisplayID) String() string { return fmt.Sprintf("display#%d", int(id)) }

// DefaultDisplayID is the always-present primary display.
const DefaultDisplayID DisplayID = 0

// ProcessKey is the (processName, uid) identity tuple of a hosting
// process; the OS pid is assigned later, post-fork, and is not part of
// identity.
type ProcessKey struct {
	ProcessName string
	UID         int32
}

func (k ProcessKey) String() string { return fmt.Sprintf("%s/%d", k.ProcessName, k.UID) }

// UserID identifies a logical user. UserID 0 is always the system user.
type UserID int32

// SystemUserID is the always-present, never-evictable system user.
const SystemUserID UserID = 0

func (id UserID) String() string { return fmt.Sprintf("user#%d", int32(id)) }

// InvalidDisplayID is used by LaunchParams to mean "no preferred display."
const InvalidDisplayID DisplayID = -1
