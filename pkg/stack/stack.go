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

// Package stack implements component B: the Stack record and the
// resume_top_activity choreography that is the heart of the supervisor's
// pause/resume ordering law (spec.md §4.B). A Stack never touches another
// stack's state directly; cross-stack visibility is recomputed by the
// caller (component C) walking the display's stack order.
//
// Stack depends on pkg/activity and pkg/task for the records it
// orchestrates, but never on pkg/processregistry: process existence and
// start requests are abstracted behind the ProcessPort interface declared
// here, so pkg/stacksupervisor can wire a real ProcessRegistry in without
// stack importing it back. This mirrors the teacher's decorator-over-
// interface style (pkg/sentry/control.ProcessMonitor) more than its
// concrete types.
package stack

import (
	"context"
	"time"

	"github.com/android-os/activitysupervisor/pkg/activity"
	"github.com/android-os/activitysupervisor/pkg/apprpc"
	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/lifecycleerr"
	"github.com/android-os/activitysupervisor/pkg/log"
	"github.com/android-os/activitysupervisor/pkg/task"
)

// LaunchWaiter is a blocked StartActivityMayWait caller, parked on the
// stack's WaitingActivityLaunched queue until the routine that admitted it
// is satisfied. Nothing in this package adds to WaitingActivityVisible.
type LaunchWaiter struct {
	Activity  ids.ActivityID
	Requested time.Time
	Done      chan LaunchResult
}

// LaunchResult is delivered to a LaunchWaiter once its activity has
// either been scheduled for resume (LaunchOutcomeSuccess) or is already
// visible at the front (LaunchOutcomeTaskToFront), per spec.md §4.B's
// "TASK_TO_FRONT short-circuit" rule.
type LaunchResult struct {
	Outcome    LaunchOutcome
	ThisTime   time.Duration
	TotalTime  time.Duration
}

// LaunchOutcome is the coarse result code delivered to a launch waiter.
type LaunchOutcome int

const (
	LaunchOutcomeSuccess LaunchOutcome = iota
	LaunchOutcomeTaskToFront
)

// TaskLookup resolves a task id to its record; supplied by the owning
// supervisor's task arena.
type TaskLookup func(ids.TaskID) *task.Task

// ActivityLookup resolves an activity id to its record; supplied by the
// owning supervisor's activity arena.
type ActivityLookup func(ids.ActivityID) *activity.Activity

// ProcessPort is the narrow process-existence/start surface
// resume_top_activity needs from component E, declared on the consumer
// side so stack never imports pkg/processregistry directly.
type ProcessPort interface {
	// IsRunning reports whether key already has a live hosting process.
	IsRunning(key ids.ProcessKey) bool
	// RequestStart asks the process registry to start key asynchronously;
	// the eventual AttachApplication callback re-enters ResumeTopActivity.
	RequestStart(key ids.ProcessKey)
	// AppThread returns the RPC surface for an already-running process.
	AppThread(key ids.ProcessKey) apprpc.AppThread
}

// Deps bundles the collaborators ResumeTopActivity needs beyond the
// stack's own fields, so the method signature stays stable as those
// collaborators evolve.
type Deps struct {
	Tasks      TaskLookup
	Activities ActivityLookup
	Processes  ProcessPort
	Clock      clock.Clock

	PauseTimeout   time.Duration
	StopTimeout    time.Duration
	DestroyTimeout time.Duration

	// HomeActive reports whether this stack's display's home stack is
	// already the frontmost, resumed stack; consulted only when this
	// stack itself has no non-finishing activity, and then only to decide
	// whether to log that the stack is idling.
	HomeActive func() bool
}

// Stack is the ordered task container of spec.md §3/§4.B.
type Stack struct {
	ID            ids.StackID
	Display       ids.DisplayID
	WindowingMode WindowingMode
	ActivityType  ActivityType
	AlwaysOnTop   bool

	tasks []ids.TaskID

	ResumedActivity ids.ActivityID
	PausingActivity ids.ActivityID

	WaitingVisible          []ids.ActivityID
	Stopping                []ids.ActivityID
	GoingToSleep            []ids.ActivityID
	FinishingActivities     []ids.ActivityID
	WaitingActivityLaunched []LaunchWaiter
	WaitingActivityVisible  []LaunchWaiter
}

// New creates an empty stack.
func New(id ids.StackID, display ids.DisplayID, mode WindowingMode, atype ActivityType) *Stack {
	return &Stack{ID: id, Display: display, WindowingMode: mode, ActivityType: atype, ResumedActivity: ids.InvalidActivityID, PausingActivity: ids.InvalidActivityID}
}

// Tasks returns the bottom-to-top task id sequence. Callers must not
// mutate the returned slice.
func (s *Stack) Tasks() []ids.TaskID { return s.tasks }

// PushTask adds a new task to the top of the stack.
func (s *Stack) PushTask(id ids.TaskID) { s.tasks = append(s.tasks, id) }

// RemoveTask deletes id from the stack's task order.
func (s *Stack) RemoveTask(id ids.TaskID) {
	for i, existing := range s.tasks {
		if existing == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// IsEmpty reports whether the stack has no tasks left.
func (s *Stack) IsEmpty() bool { return len(s.tasks) == 0 }

// topNonFinishing implements step 1 of resume_top_activity: scan tasks
// top-down, within each task scan activities top-down, skipping
// FINISHING/DESTROYING/DESTROYED.
func (s *Stack) topNonFinishing(deps Deps) (ids.ActivityID, bool) {
	for i := len(s.tasks) - 1; i >= 0; i-- {
		tk := deps.Tasks(s.tasks[i])
		if tk == nil {
			continue
		}
		if id, ok := tk.TopNonFinishing(deps.Activities); ok {
			return id, true
		}
	}
	return ids.InvalidActivityID, false
}

// ResumeTopActivity runs the central routine of spec.md §4.B. It is
// re-entrant: CompletePause, AttachApplication, and a process-start
// completion all call back into it, and each call only ever advances the
// state machine by one step before returning, matching the spec's
// "return; the eventual completion re-enters this routine" language.
func (s *Stack) ResumeTopActivity(ctx context.Context, deps Deps) error {
	top, ok := s.topNonFinishing(deps)
	if !ok {
		// Step 1: nothing of our own to resume. This routine does not
		// resume the display's home stack; it returns without change
		// whether or not the home stack is already active.
		if deps.HomeActive != nil && deps.HomeActive() {
			return nil
		}
		log.Debugf("%s: no non-finishing activity, idling", s.ID)
		return nil
	}

	now := deps.Clock.Now()

	// Step 2: pause whatever is currently resumed, if it isn't T itself.
	if s.ResumedActivity != ids.InvalidActivityID && s.ResumedActivity != top {
		resumed := deps.Activities(s.ResumedActivity)
		if resumed == nil {
			s.ResumedActivity = ids.InvalidActivityID
		} else {
			thread := deps.Processes.AppThread(resumed.Process)
			s.PausingActivity = resumed.ID
			s.ResumedActivity = ids.InvalidActivityID
			if err := resumed.SchedulePause(ctx, thread, false, false, now, deps.PauseTimeout); err != nil {
				log.Warningf("%s: pause of %s returned %v", s.ID, resumed.ID, err)
			}
			return nil
		}
	}

	// Step 3: a pause is already outstanding; wait for complete_pause.
	if s.PausingActivity != ids.InvalidActivityID {
		return nil
	}

	t := deps.Activities(top)
	if t == nil {
		return lifecycleerr.Wrapf(lifecycleerr.ErrUserOpInvalid, "%s: topNonFinishing returned unknown activity %s", s.ID, top)
	}

	// Step 4: make sure T's process exists before resuming into it.
	if !deps.Processes.IsRunning(t.Process) {
		deps.Processes.RequestStart(t.Process)
		s.WaitingVisible = appendUnique(s.WaitingVisible, top)
		return nil
	}

	// Step 5: schedule T for resume. An activity that still has a live
	// instance in its process (PAUSED/STOPPED) is resumed in place;
	// INITIALIZING (cold) or DESTROYED (restart) requires a fresh launch.
	thread := deps.Processes.AppThread(t.Process)
	var scheduleErr error
	switch t.State() {
	case activity.Paused, activity.Stopped:
		scheduleErr = t.ScheduleResume(ctx, thread, now)
	default:
		scheduleErr = t.ScheduleLaunch(ctx, thread, t.Process, false, false, now)
	}
	if scheduleErr != nil {
		return lifecycleerr.Wrapf(scheduleErr, "%s: resuming %s", s.ID, top)
	}
	s.ResumedActivity = top
	s.WaitingVisible = removeID(s.WaitingVisible, top)
	s.satisfyLaunchWaiters(top, now)
	return nil
}

// CompletePause is the callback that re-enters ResumeTopActivity once the
// previously resumed activity reports its pause complete. An activity
// paused by GoToSleep does not trigger a fresh resume_top_activity: it
// stays parked on GoingToSleep until WakeUp runs, otherwise resume_top
// would immediately re-resume the very activity shutdown_locked just put
// to sleep.
func (s *Stack) CompletePause(ctx context.Context, deps Deps, who ids.ActivityID) error {
	if s.PausingActivity != who {
		return nil
	}
	asleep := containsID(s.GoingToSleep, who)
	a := deps.Activities(who)
	if a != nil {
		a.CompletePause()
		s.moveToStoppingOrFinishing(a)
	}
	s.PausingActivity = ids.InvalidActivityID
	if asleep {
		return nil
	}
	return s.ResumeTopActivity(ctx, deps)
}

// GoToSleep pauses this stack's resumed activity (if any) without
// advancing to the next candidate, parking it on GoingToSleep. This is
// shutdown_locked's per-stack half of spec.md §4.D: it initiates the
// pause and returns immediately, the same fire-and-return shape as
// ResumeTopActivity's own step 2.
func (s *Stack) GoToSleep(ctx context.Context, deps Deps) error {
	if s.ResumedActivity == ids.InvalidActivityID {
		return nil
	}
	resumed := deps.Activities(s.ResumedActivity)
	if resumed == nil {
		s.ResumedActivity = ids.InvalidActivityID
		return nil
	}
	thread := deps.Processes.AppThread(resumed.Process)
	s.PausingActivity = resumed.ID
	s.ResumedActivity = ids.InvalidActivityID
	s.GoingToSleep = appendUnique(s.GoingToSleep, resumed.ID)
	now := deps.Clock.Now()
	if err := resumed.SchedulePause(ctx, thread, false, false, now, deps.PauseTimeout); err != nil {
		log.Warningf("%s: sleep-pause of %s returned %v", s.ID, resumed.ID, err)
	}
	return nil
}

// WakeUp clears the GoingToSleep parking list and resumes normal
// resume_top_activity behavior.
func (s *Stack) WakeUp(ctx context.Context, deps Deps) error {
	s.GoingToSleep = nil
	return s.ResumeTopActivity(ctx, deps)
}

// moveToStoppingOrFinishing queues a just-paused activity for stop (or,
// if it was finishing, onto the FinishingActivities queue) per spec.md
// §4.B's "finishing activities are moved to the FinishingActivities
// queue; their destroy is deferred."
func (s *Stack) moveToStoppingOrFinishing(a *activity.Activity) {
	switch a.State() {
	case activity.Finishing:
		s.FinishingActivities = appendUnique(s.FinishingActivities, a.ID)
	case activity.Paused:
		s.Stopping = appendUnique(s.Stopping, a.ID)
	}
}

// Finish marks activity id FINISHING and, if it was the resumed (or
// pausing) activity, re-enters resume_top_activity so the next candidate
// takes over. Mirrors spec.md §4.B.
func (s *Stack) Finish(ctx context.Context, deps Deps, id ids.ActivityID, reason activity.FinishReason) error {
	a := deps.Activities(id)
	if a == nil {
		return nil
	}
	wasFront := id == s.ResumedActivity || id == s.PausingActivity
	a.Finish(reason)
	if a.State() == activity.Finishing {
		s.FinishingActivities = appendUnique(s.FinishingActivities, id)
	}
	if id == s.ResumedActivity {
		s.ResumedActivity = ids.InvalidActivityID
	}
	if id == s.PausingActivity {
		s.PausingActivity = ids.InvalidActivityID
	}
	if wasFront {
		return s.ResumeTopActivity(ctx, deps)
	}
	return nil
}

// AttachApplication is called once a process requested in step 4 has
// finished starting; it clears the wait and re-enters resume_top_activity
// for every activity that was waiting on it.
func (s *Stack) AttachApplication(ctx context.Context, deps Deps, key ids.ProcessKey) error {
	var remaining []ids.ActivityID
	var toResume []ids.ActivityID
	for _, id := range s.WaitingVisible {
		a := deps.Activities(id)
		if a != nil && a.Process == key {
			toResume = append(toResume, id)
			continue
		}
		remaining = append(remaining, id)
	}
	s.WaitingVisible = remaining
	if len(toResume) == 0 {
		return nil
	}
	return s.ResumeTopActivity(ctx, deps)
}

// satisfyLaunchWaiters wakes every LaunchWaiter parked on `who`, delivering
// START_SUCCESS with the elapsed launch time, per spec.md §4.B.
func (s *Stack) satisfyLaunchWaiters(who ids.ActivityID, now time.Time) {
	var remaining []LaunchWaiter
	for _, w := range s.WaitingActivityLaunched {
		if w.Activity != who {
			remaining = append(remaining, w)
			continue
		}
		elapsed := now.Sub(w.Requested)
		w.Done <- LaunchResult{Outcome: LaunchOutcomeSuccess, ThisTime: elapsed, TotalTime: elapsed}
		close(w.Done)
	}
	s.WaitingActivityLaunched = remaining
}

// AddLaunchWaiter parks a StartActivityMayWait caller. If who is already
// the resumed, visible activity, the TASK_TO_FRONT short-circuit of
// spec.md §4.B fires immediately instead of queueing.
func (s *Stack) AddLaunchWaiter(who ids.ActivityID, requested time.Time, visible bool) <-chan LaunchResult {
	done := make(chan LaunchResult, 1)
	if who == s.ResumedActivity && visible {
		done <- LaunchResult{Outcome: LaunchOutcomeTaskToFront}
		close(done)
		return done
	}
	s.WaitingActivityLaunched = append(s.WaitingActivityLaunched, LaunchWaiter{Activity: who, Requested: requested, Done: done})
	return done
}

func appendUnique(list []ids.ActivityID, id ids.ActivityID) []ids.ActivityID {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func removeID(list []ids.ActivityID, id ids.ActivityID) []ids.ActivityID {
	for i, existing := range list {
		if existing == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func containsID(list []ids.ActivityID, id ids.ActivityID) bool {
	for _, existing := range list {
		if existing == id {
			return true
		}
	}
	return false
}
