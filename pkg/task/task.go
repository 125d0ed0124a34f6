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

// Package task implements component A's Task record: an ordered sequence
// of activities sharing a back-stack history and an affinity (spec.md
// §3). A task belongs to exactly one stack; removing its last activity
// destroys it.
package task

import (
	"github.com/android-os/activitysupervisor/pkg/activity"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

// Task is the ordered, bottom-to-top sequence of activities of spec.md §3.
type Task struct {
	ID       ids.TaskID
	Stack    ids.StackID
	Affinity string
	RootIntent map[string]any
	User     ids.UserID

	activities []ids.ActivityID
}

// New creates an empty task owned by stack.
func New(id ids.TaskID, stack ids.StackID, affinity string, rootIntent map[string]any, user ids.UserID) *Task {
	return &Task{ID: id, Stack: stack, Affinity: affinity, RootIntent: rootIntent, User: user}
}

// Activities returns the bottom-to-top activity id sequence. Callers must
// not mutate the returned slice.
func (t *Task) Activities() []ids.ActivityID { return t.activities }

// Top returns the topmost activity id, or false if the task is empty.
func (t *Task) Top() (ids.ActivityID, bool) {
	if len(t.activities) == 0 {
		return 0, false
	}
	return t.activities[len(t.activities)-1], true
}

// TopNonFinishing returns the topmost activity whose record (looked up via
// lookup) is not FINISHING/DESTROYING/DESTROYED, per the resume_top_activity
// algorithm of spec.md §4.B step 1.
func (t *Task) TopNonFinishing(lookup func(ids.ActivityID) *activity.Activity) (ids.ActivityID, bool) {
	for i := len(t.activities) - 1; i >= 0; i-- {
		id := t.activities[i]
		a := lookup(id)
		if a == nil {
			continue
		}
		switch a.State() {
		case activity.Finishing, activity.Destroying, activity.Destroyed:
			continue
		}
		return id, true
	}
	return 0, false
}

// Push adds a new activity to the top of the task.
func (t *Task) Push(id ids.ActivityID) {
	t.activities = append(t.activities, id)
}

// Remove deletes id from the task, wherever it sits. It returns true if
// the task is now empty and should be destroyed, per spec.md §3
// ("removing the last activity destroys the task").
func (t *Task) Remove(id ids.ActivityID) (empty bool) {
	for i, existing := range t.activities {
		if existing == id {
			t.activities = append(t.activities[:i], t.activities[i+1:]...)
			break
		}
	}
	return len(t.activities) == 0
}

// Contains reports whether id belongs to this task.
func (t *Task) Contains(id ids.ActivityID) bool {
	for _, existing := range t.activities {
		if existing == id {
			return true
		}
	}
	return false
}
