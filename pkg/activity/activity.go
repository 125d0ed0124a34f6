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

package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/android-os/activitysupervisor/pkg/apprpc"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/lifecycleerr"
	"github.com/android-os/activitysupervisor/pkg/log"
)

// Result is a single entry of an activity's results queue, delivered at
// the next resume or immediately if the activity is already RESUMED.
type Result struct {
	From       ids.ActivityID
	RequestCode int
	ResultCode int
	Data       map[string]any
}

// FinishReason records why an activity left history, for diagnostics and
// for the "2nd-crash" semantics of spec.md §7.
type FinishReason string

const (
	FinishReasonNone      FinishReason = ""
	FinishReasonUser      FinishReason = "user-request"
	FinishReasonCrash     FinishReason = "2nd-crash"
	FinishReasonAppDied   FinishReason = "app-died"
	FinishReasonTaskToFront FinishReason = "task-to-front"
)

// Activity is the record and state machine of spec.md §3/§4.A.
type Activity struct {
	ID ids.ActivityID

	Task    ids.TaskID
	Process ids.ProcessKey // zero value means "not yet assigned a process"

	ComponentPkg   string
	ComponentClass string
	Intent         map[string]any

	SavedState []byte

	results    []Result
	newIntents []map[string]any

	Visible      bool
	Sleeping     bool
	LaunchFailed bool
	LastLaunch   time.Time
	LaunchCount  int

	state        State
	FinishReason FinishReason

	// pauseDeadline/stopDeadline/destroyDeadline are set by
	// SchedulePause/ScheduleStop/ScheduleDestroy and read by the owning
	// stack to arm the corresponding timer; Activity itself never
	// schedules a goroutine.
	PauseDeadline   time.Time
	StopDeadline    time.Time
	DestroyDeadline time.Time
}

// New creates an activity in INITIALIZING state, owned by task.
func New(id ids.ActivityID, task ids.TaskID, pkg, class string, intent map[string]any) *Activity {
	return &Activity{
		ID:             id,
		Task:           task,
		ComponentPkg:   pkg,
		ComponentClass: class,
		Intent:         intent,
		state:          Initializing,
	}
}

// State returns the activity's current lifecycle state.
func (a *Activity) State() State { return a.state }

func (a *Activity) transition(next State) {
	if !a.state.canTransitionTo(next) {
		panic(fmt.Sprintf("%s: invalid state transition %s => %s", a.ID, a.state, next))
	}
	log.Debugf("%s: %s => %s", a.ID, a.state, next)
	a.state = next
}

// ScheduleLaunch emits an asynchronous start to the hosting process.
// Preconditions: state is INITIALIZING, or DESTROYED for a restart.
// On success (the RPC returns nil), the activity transitions to RESUMED
// unless notResumed is true, in which case it transitions to STOPPED.
func (a *Activity) ScheduleLaunch(ctx context.Context, thread apprpc.AppThread, process ids.ProcessKey, notResumed, isForward bool, now time.Time) error {
	if a.state != Initializing && a.state != Destroyed {
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: schedule_launch from invalid state %s", a.ID, a.state)
	}
	if a.state == Destroyed {
		a.transition(Initializing)
	}
	a.Process = process
	a.LaunchCount++
	a.LastLaunch = now

	req := apprpc.LaunchActivityRequest{
		Token:          a.ID,
		ComponentPkg:   a.ComponentPkg,
		ComponentClass: a.ComponentClass,
		Intent:         a.Intent,
		Icicle:         a.SavedState,
		NotResumed:     notResumed,
		IsForward:      isForward,
	}
	if err := thread.ScheduleLaunchActivity(ctx, req); err != nil {
		return a.onLaunchRemoteFailure(err)
	}
	if notResumed {
		a.transition(Stopped)
	} else {
		a.transition(Resumed)
		a.Visible = true
		a.drainResultsAndIntents()
	}
	return nil
}

// ScheduleResume asks an activity that is still initialized and hosted
// (PAUSED or STOPPED, never torn down) to resume in place, per spec.md
// §4.B step 5's "schedule T for resume" wording for the case where T was
// never destroyed: a fresh schedule_launch would be wrong here since the
// process already holds a live instance of T. A RemoteException here is
// handled by the same two-strikes rule as a cold launch failure, since it
// means the hosting process died mid-resume just as it might mid-launch.
func (a *Activity) ScheduleResume(ctx context.Context, thread apprpc.AppThread, now time.Time) error {
	if a.state != Paused && a.state != Stopped {
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: schedule_resume from invalid state %s", a.ID, a.state)
	}
	if err := thread.ScheduleResumeActivity(ctx, a.ID); err != nil {
		return a.onLaunchRemoteFailure(err)
	}
	a.LastLaunch = now
	a.transition(Resumed)
	a.Visible = true
	a.drainResultsAndIntents()
	return nil
}

// onLaunchRemoteFailure implements the two-strikes rule of spec.md §4.A/§7:
// the first RemoteException sets LaunchFailed and is recoverable (caller
// should restart the process and retry); a second failure within the same
// launch attempt is fatal.
func (a *Activity) onLaunchRemoteFailure(cause error) error {
	if a.LaunchFailed {
		a.FinishReason = FinishReasonCrash
		a.transition(Finishing)
		return lifecycleerr.Wrapf(lifecycleerr.ErrCrashFatal, "%s: second launch failure, finishing with reason %q: %v", a.ID, a.FinishReason, cause)
	}
	a.LaunchFailed = true
	return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: first launch failure, retry scheduled: %v", a.ID, cause)
}

// SchedulePause requests the activity relinquish focus. Precondition:
// state is RESUMED. Arms PauseDeadline for the caller to enforce.
func (a *Activity) SchedulePause(ctx context.Context, thread apprpc.AppThread, userLeaving, finishing bool, now time.Time, timeout time.Duration) error {
	if a.state != Resumed {
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: schedule_pause from invalid state %s", a.ID, a.state)
	}
	a.transition(Pausing)
	a.PauseDeadline = now.Add(timeout)
	req := apprpc.PauseActivityRequest{Token: a.ID, Finishing: finishing, UserLeaving: userLeaving}
	if err := thread.SchedulePauseActivity(ctx, req); err != nil {
		// The process died mid-pause; force the transition the deadline
		// would have forced anyway, so the stack can keep making
		// progress per spec.md §4.B's "pause that misses its deadline is
		// forced."
		a.ForcePaused()
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: pause RPC failed, forced paused: %v", a.ID, err)
	}
	return nil
}

// CompletePause is called on the pause-completion report.
func (a *Activity) CompletePause() {
	if a.state != Pausing {
		panic(fmt.Sprintf("%s: complete_pause from invalid state %s", a.ID, a.state))
	}
	a.transition(Paused)
	a.Visible = false
}

// ForcePaused is invoked by the owning stack when PauseDeadline elapses
// without a completion report; the spec calls for a logged warning and a
// forced PAUSED, not a rollback.
func (a *Activity) ForcePaused() {
	if a.state != Pausing {
		return
	}
	log.Warningf("%s: pause deadline exceeded, forcing PAUSED", a.ID)
	a.transition(Paused)
	a.Visible = false
}

// ScheduleStop requests the activity become invisible. Precondition:
// state is PAUSED.
func (a *Activity) ScheduleStop(ctx context.Context, thread apprpc.AppThread, now time.Time, timeout time.Duration) error {
	if a.state != Paused {
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: schedule_stop from invalid state %s", a.ID, a.state)
	}
	a.transition(Stopping)
	a.StopDeadline = now.Add(timeout)
	if err := thread.ScheduleStopActivity(ctx, a.ID); err != nil {
		a.ForceStopped()
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: stop RPC failed, forced stopped: %v", a.ID, err)
	}
	return nil
}

// CompleteStop is called on the stop-completion report.
func (a *Activity) CompleteStop() {
	if a.state != Stopping {
		panic(fmt.Sprintf("%s: complete_stop from invalid state %s", a.ID, a.state))
	}
	a.transition(Stopped)
}

// ForceStopped forces STOPPED when StopDeadline elapses; the caller is
// responsible for killing the process per spec.md §4.B ("a destroy that
// misses its deadline kills the process" — stop itself only forces state).
func (a *Activity) ForceStopped() {
	if a.state != Stopping {
		return
	}
	log.Warningf("%s: stop deadline exceeded, forcing STOPPED", a.ID)
	a.transition(Stopped)
}

// ScheduleDestroy requests teardown. Precondition: state is one of
// PAUSED, STOPPED, FINISHING.
func (a *Activity) ScheduleDestroy(ctx context.Context, thread apprpc.AppThread, now time.Time, timeout time.Duration) error {
	if a.state != Paused && a.state != Stopped && a.state != Finishing {
		return lifecycleerr.Wrapf(lifecycleerr.ErrLaunchFailed, "%s: schedule_destroy from invalid state %s", a.ID, a.state)
	}
	a.transition(Destroying)
	a.DestroyDeadline = now.Add(timeout)
	if err := thread.ScheduleDestroyActivity(ctx, a.ID); err != nil {
		// Destroy timeouts (and RPC failure, which the spec treats the
		// same as a missed deadline) are the caller's cue to kill the
		// process; Activity only reports it.
		return lifecycleerr.Wrapf(lifecycleerr.ErrTimeout, "%s: destroy RPC failed: %v", a.ID, err)
	}
	return nil
}

// CompleteDestroy is called on the destroy-completion report.
func (a *Activity) CompleteDestroy() {
	if a.state != Destroying {
		panic(fmt.Sprintf("%s: complete_destroy from invalid state %s", a.ID, a.state))
	}
	a.transition(Destroyed)
}

// Finish marks the activity FINISHING with reason (spec.md §4.B:
// finishing activities move to a queue and their destroy is deferred).
// It is a no-op if the activity cannot reach FINISHING from its current
// state (e.g. it is already DESTROYED).
func (a *Activity) Finish(reason FinishReason) {
	if !a.state.canTransitionTo(Finishing) {
		return
	}
	a.FinishReason = reason
	a.transition(Finishing)
}

// ScheduleResult enqueues a result; if the activity is RESUMED it is
// considered delivered immediately (drainResultsAndIntents would be called
// by the owning stack's resume path otherwise).
func (a *Activity) ScheduleResult(r Result) {
	a.results = append(a.results, r)
	if a.state == Resumed {
		a.drainResultsAndIntents()
	}
}

// ScheduleNewIntent enqueues a new intent delivery.
func (a *Activity) ScheduleNewIntent(intent map[string]any) {
	a.newIntents = append(a.newIntents, intent)
	if a.state == Resumed {
		a.drainResultsAndIntents()
	}
}

// PendingResults and PendingNewIntents expose the queues for the owning
// stack to deliver at resume time.
func (a *Activity) PendingResults() []Result             { return a.results }
func (a *Activity) PendingNewIntents() []map[string]any { return a.newIntents }

func (a *Activity) drainResultsAndIntents() {
	a.results = nil
	a.newIntents = nil
}
