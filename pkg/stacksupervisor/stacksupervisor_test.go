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

package stacksupervisor

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/android-os/activitysupervisor/pkg/activity"
	"github.com/android-os/activitysupervisor/pkg/appcrash"
	"github.com/android-os/activitysupervisor/pkg/apprpc"
	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/external/externaltest"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/lifecycleerr"
	"github.com/android-os/activitysupervisor/pkg/processregistry"
	"github.com/android-os/activitysupervisor/pkg/stack"
	"github.com/android-os/activitysupervisor/pkg/supervisorlock"
	"github.com/android-os/activitysupervisor/pkg/task"
	"github.com/android-os/activitysupervisor/pkg/usercontroller"
)

type testRig struct {
	sup      *Supervisor
	resolver *externaltest.Resolver
	wm       *externaltest.WindowManager
	launcher *externaltest.ProcessLauncher
}

func newTestRig(cfg *config.Config) *testRig {
	lock := &supervisorlock.Lock{}
	clk := clock.Real{}
	resolver := externaltest.NewResolver()
	wm := externaltest.NewWindowManager()
	launcher := externaltest.NewProcessLauncher()
	processes := processregistry.New(launcher, nil, cfg, clk, lock)
	crashes := appcrash.New(cfg, clk)
	storage := externaltest.NewStorage()
	broadcaster := externaltest.NewBroadcaster()
	users := usercontroller.New(cfg, clk, storage, broadcaster, wm)

	sup := New(lock, clk, cfg, resolver, wm, processes, crashes, users)
	return &testRig{sup: sup, resolver: resolver, wm: wm, launcher: launcher}
}

func testInfo(action string) *external.ActivityInfo {
	return &external.ActivityInfo{
		ComponentPkg:   "com.example",
		ComponentClass: ".Main",
		ProcessName:    "com.example:" + action,
		Affinity:       "com.example." + action,
		Resizable:      true,
	}
}

func TestStartActivityMayWaitColdLaunchResumesActivity(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("launch", testInfo("launch"))

	result, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "launch"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait: %v", err)
	}
	if result.Outcome != StartOutcomeSuccess {
		t.Fatalf("got outcome %v, want StartOutcomeSuccess", result.Outcome)
	}
	act := rig.sup.lookupActivity(result.Activity)
	if act == nil {
		t.Fatalf("activity %s not registered in the arena", result.Activity)
	}
	if act.State() != activity.Resumed {
		t.Fatalf("got state %s, want RESUMED", act.State())
	}
	if len(rig.launcher.Started) != 1 {
		t.Fatalf("got %d process starts, want 1", len(rig.launcher.Started))
	}
}

func TestStartActivityMayWaitResolveFailureReturnsError(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	// "missing" is never registered with the resolver.

	_, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "missing"}, nil, ids.SystemUserID)
	if !errors.Is(err, lifecycleerr.ErrResolveFailed) {
		t.Fatalf("got %v, want ErrResolveFailed", err)
	}
}

func TestStartActivitiesShortCircuitsOnFirstFailure(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("first", testInfo("first"))

	intents := []*external.Intent{
		{Action: "first"},
		{Action: "second-does-not-resolve"},
		{Action: "third-never-reached"},
	}
	results, err := rig.sup.StartActivities(context.Background(), intents, nil, ids.SystemUserID)
	if err == nil {
		t.Fatal("got nil error, want the second intent's resolve failure")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (first succeeded, second failed, third never attempted)", len(results))
	}
	if results[0].Outcome != StartOutcomeSuccess {
		t.Fatalf("got first outcome %v, want success", results[0].Outcome)
	}
}

func TestHandleAppDiedFinishesEveryActivityInTheDeadProcess(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("launch", testInfo("launch"))

	result, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "launch"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait: %v", err)
	}
	act := rig.sup.lookupActivity(result.Activity)
	key := act.Process

	if err := rig.sup.HandleAppDied(context.Background(), key, false); err != nil {
		t.Fatalf("HandleAppDied: %v", err)
	}
	if act.State() != activity.Finishing {
		t.Fatalf("got state %s, want FINISHING", act.State())
	}
	if act.FinishReason != activity.FinishReasonAppDied {
		t.Fatalf("got finish reason %q, want app-died", act.FinishReason)
	}
}

func TestHandleAppDiedSkipsRootActivityWhenRestarting(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("launch", testInfo("launch"))

	result, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "launch"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait: %v", err)
	}
	act := rig.sup.lookupActivity(result.Activity)
	key := act.Process

	// This task has exactly one activity, so it is simultaneously the
	// root and the top; restarting==true must skip finishing it.
	if err := rig.sup.HandleAppDied(context.Background(), key, true); err != nil {
		t.Fatalf("HandleAppDied: %v", err)
	}
	if act.State() == activity.Finishing {
		t.Fatalf("root activity was finished despite restarting==true")
	}
}

func TestHandleAppDiedRestartingStillFinishesNonRootActivities(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	key := ids.ProcessKey{ProcessName: "com.example:shared"}
	thread := apprpc.NewSimulated()

	root := activity.New(rig.sup.newActivityID(), 0, "com.example", ".Root", nil)
	root.Process = key
	if err := root.ScheduleLaunch(context.Background(), thread, key, false, false, time.Now()); err != nil {
		t.Fatalf("root ScheduleLaunch: %v", err)
	}
	if err := root.SchedulePause(context.Background(), thread, false, false, time.Now(), time.Second); err != nil {
		t.Fatalf("root SchedulePause: %v", err)
	}
	root.CompletePause()

	child := activity.New(rig.sup.newActivityID(), 0, "com.example", ".Child", nil)
	child.Process = key
	if err := child.ScheduleLaunch(context.Background(), thread, key, false, false, time.Now()); err != nil {
		t.Fatalf("child ScheduleLaunch: %v", err)
	}

	tk := task.New(rig.sup.newTaskID(), 0, "com.example.shared", nil, ids.SystemUserID)
	tk.Push(root.ID)
	tk.Push(child.ID)
	root.Task, child.Task = tk.ID, tk.ID

	rig.sup.activities[root.ID] = root
	rig.sup.activities[child.ID] = child
	rig.sup.tasks[tk.ID] = tk

	d := rig.sup.displays[ids.DefaultDisplayID]
	st, err := d.GetOrCreateStack(stack.WindowingModeFullscreen, stack.ActivityTypeStandard, true, rig.sup.newStackID)
	if err != nil {
		t.Fatalf("GetOrCreateStack: %v", err)
	}
	st.PushTask(tk.ID)
	st.ResumedActivity = child.ID

	if err := rig.sup.HandleAppDied(context.Background(), key, true); err != nil {
		t.Fatalf("HandleAppDied: %v", err)
	}
	if root.State() == activity.Finishing {
		t.Fatal("root activity was finished despite restarting==true")
	}
	if child.State() != activity.Finishing {
		t.Fatalf("got child state %s, want FINISHING", child.State())
	}
}

func TestReportCrashQuickCrashFinishesActivitiesAndRefusesBroadcasts(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("launch", testInfo("launch"))

	result, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "launch"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait: %v", err)
	}
	act := rig.sup.lookupActivity(result.Activity)
	key := act.Process

	if !rig.sup.CanDeliverBroadcastTo(key) {
		t.Fatal("a process with no crash history must not start out refused")
	}

	if _, err := rig.sup.ReportCrash(context.Background(), key, false, "first crash", "stack1"); err != nil {
		t.Fatalf("first ReportCrash should not be fatal: %v", err)
	}
	if act.State() == activity.Finishing {
		t.Fatal("a single crash must not finish the activity")
	}

	outcome, err := rig.sup.ReportCrash(context.Background(), key, false, "second crash", "stack2")
	if !errors.Is(err, lifecycleerr.ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded on the quick second crash", err)
	}
	if !outcome.Bad {
		t.Fatal("expected the outcome to report the process as bad")
	}
	if act.State() != activity.Finishing {
		t.Fatalf("got state %s, want FINISHING", act.State())
	}
	if act.FinishReason != activity.FinishReasonCrash {
		t.Fatalf("got finish reason %q, want %q", act.FinishReason, activity.FinishReasonCrash)
	}
	if rig.sup.CanDeliverBroadcastTo(key) {
		t.Fatal("a bad process must have broadcasts refused")
	}
}

func TestAttachApplicationIsANoOpWithNoWaitingStacks(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)

	if err := rig.sup.AttachApplication(context.Background(), ids.ProcessKey{ProcessName: "com.example:idle"}); err != nil {
		t.Fatalf("AttachApplication: %v", err)
	}
}

func TestShutdownLockedSettlesEveryResumedStack(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("launch", testInfo("launch"))

	result, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "launch"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait: %v", err)
	}
	act := rig.sup.lookupActivity(result.Activity)
	if act.State() != activity.Resumed {
		t.Fatalf("got state %s before shutdown, want RESUMED", act.State())
	}

	// Nothing drives the fake app thread's pause completion on its own,
	// so play the part of the hosting process reporting completion once
	// ShutdownLocked has had a moment to initiate the sleep.
	done := make(chan error, 1)
	go func() { done <- rig.sup.ShutdownLocked(context.Background(), time.Second) }()

	time.Sleep(20 * time.Millisecond)
	rig.sup.lock.Acquire()
	var st *stack.Stack
	rig.sup.allStacks(func(s *stack.Stack) {
		if s.PausingActivity == act.ID {
			st = s
		}
	})
	if st == nil {
		rig.sup.lock.Release()
		t.Fatal("ShutdownLocked did not put the stack's resumed activity into PAUSING")
	}
	if err := st.CompletePause(context.Background(), rig.sup.deps(st.Display), act.ID); err != nil {
		rig.sup.lock.Release()
		t.Fatalf("CompletePause: %v", err)
	}
	rig.sup.lock.Broadcast()
	rig.sup.lock.Release()

	if err := <-done; err != nil {
		t.Fatalf("ShutdownLocked: %v", err)
	}
	if act.State() != activity.Paused {
		t.Fatalf("got state %s after shutdown, want PAUSED", act.State())
	}
}

func TestShutdownLockedTimesOutWhenPauseNeverCompletes(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	rig.resolver.Register("launch", testInfo("launch"))

	result, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "launch"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait: %v", err)
	}
	// The fake app thread's SchedulePauseActivity records the call but
	// never invokes CompletePause on its own (no OnPause hook is set),
	// so the stack's pause started by ShutdownLocked never settles and
	// the bounded wait below must time out.
	err = rig.sup.ShutdownLocked(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, lifecycleerr.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestHeavyweightLaunchOfSecondProcessRequiresConfirmation(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	first := testInfo("first")
	first.Heavyweight = true
	second := testInfo("second")
	second.Heavyweight = true
	rig.resolver.Register("first", first)
	rig.resolver.Register("second", second)

	firstResult, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "first"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait(first): %v", err)
	}
	if firstResult.Outcome != StartOutcomeSuccess {
		t.Fatalf("got first outcome %v, want success (first heavyweight launch is never intercepted)", firstResult.Outcome)
	}

	secondResult, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "second"}, nil, ids.SystemUserID)
	if err != nil {
		t.Fatalf("StartActivityMayWait(second): %v", err)
	}
	if secondResult.Outcome != StartOutcomeHeavyweightConfirmationRequired {
		t.Fatalf("got second outcome %v, want StartOutcomeHeavyweightConfirmationRequired", secondResult.Outcome)
	}
	if rig.sup.pendingHeavyweight == nil {
		t.Fatal("expected a pending heavyweight switch to be recorded")
	}
}

func TestConfirmHeavyweightSwitchProceedKillsOldAndReplaysIntent(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	first := testInfo("first")
	first.Heavyweight = true
	second := testInfo("second")
	second.Heavyweight = true
	rig.resolver.Register("first", first)
	rig.resolver.Register("second", second)

	if _, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "first"}, nil, ids.SystemUserID); err != nil {
		t.Fatalf("StartActivityMayWait(first): %v", err)
	}
	if _, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "second"}, nil, ids.SystemUserID); err != nil {
		t.Fatalf("StartActivityMayWait(second): %v", err)
	}

	result, err := rig.sup.ConfirmHeavyweightSwitch(context.Background(), true)
	if err != nil {
		t.Fatalf("ConfirmHeavyweightSwitch: %v", err)
	}
	if result == nil || result.Outcome != StartOutcomeSuccess {
		t.Fatalf("got %+v, want a successful replay of the deferred intent", result)
	}
	if len(rig.launcher.Killed) != 1 {
		t.Fatalf("got %d kills, want 1 (the first heavyweight process)", len(rig.launcher.Killed))
	}
	if rig.sup.pendingHeavyweight != nil {
		t.Fatal("pending heavyweight switch was not cleared")
	}
}

func TestConfirmHeavyweightSwitchDeclineDiscardsPending(t *testing.T) {
	cfg := config.Default()
	rig := newTestRig(cfg)
	first := testInfo("first")
	first.Heavyweight = true
	second := testInfo("second")
	second.Heavyweight = true
	rig.resolver.Register("first", first)
	rig.resolver.Register("second", second)

	if _, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "first"}, nil, ids.SystemUserID); err != nil {
		t.Fatalf("StartActivityMayWait(first): %v", err)
	}
	if _, err := rig.sup.StartActivityMayWait(context.Background(), &external.Intent{Action: "second"}, nil, ids.SystemUserID); err != nil {
		t.Fatalf("StartActivityMayWait(second): %v", err)
	}

	result, err := rig.sup.ConfirmHeavyweightSwitch(context.Background(), false)
	if err != nil {
		t.Fatalf("ConfirmHeavyweightSwitch: %v", err)
	}
	if result != nil {
		t.Fatalf("got %+v, want nil result on decline", result)
	}
	if len(rig.launcher.Killed) != 0 {
		t.Fatalf("got %d kills, want 0 on decline", len(rig.launcher.Killed))
	}
}
