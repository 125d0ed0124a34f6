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
	"testing"
	"time"

	"github.com/android-os/activitysupervisor/pkg/apprpc"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

func TestScheduleLaunchResumes(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()

	if err := a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{ProcessName: "com.example"}, false, false, time.Now()); err != nil {
		t.Fatal(err)
	}
	if a.State() != Resumed {
		t.Fatalf("got %s, want RESUMED", a.State())
	}
	if !a.Visible {
		t.Fatal("expected resumed activity to be visible")
	}
}

func TestScheduleLaunchNotResumedStops(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()

	if err := a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{}, true, false, time.Now()); err != nil {
		t.Fatal(err)
	}
	if a.State() != Stopped {
		t.Fatalf("got %s, want STOPPED", a.State())
	}
}

func TestTwoStrikesRuleFinishesOnSecondFailure(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()
	thread.MarkDead()

	err := a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{}, false, false, time.Now())
	if err == nil {
		t.Fatal("expected first failure to be reported")
	}
	if !a.LaunchFailed {
		t.Fatal("expected LaunchFailed to be set after first failure")
	}
	if a.State() != Initializing {
		t.Fatalf("first failure should not change state, got %s", a.State())
	}

	err = a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{}, false, false, time.Now())
	if err == nil {
		t.Fatal("expected second failure to be fatal")
	}
	if a.State() != Finishing {
		t.Fatalf("got %s, want FINISHING after second failure", a.State())
	}
	if a.FinishReason != FinishReasonCrash {
		t.Fatalf("got reason %q, want %q", a.FinishReason, FinishReasonCrash)
	}
}

func TestPauseResumeChoreography(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()
	if err := a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{}, false, false, time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := a.SchedulePause(context.Background(), thread, false, false, time.Now(), time.Second); err != nil {
		t.Fatal(err)
	}
	if a.State() != Pausing {
		t.Fatalf("got %s, want PAUSING", a.State())
	}
	a.CompletePause()
	if a.State() != Paused {
		t.Fatalf("got %s, want PAUSED", a.State())
	}
	if a.Visible {
		t.Fatal("expected paused activity to no longer be visible")
	}
}

func TestForcePausedOnDeadlineMiss(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()
	thread.OnPause = func(apprpc.PauseActivityRequest) {} // never completes
	_ = a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{}, false, false, time.Now())
	_ = a.SchedulePause(context.Background(), thread, false, false, time.Now(), time.Millisecond)

	a.ForcePaused()
	if a.State() != Paused {
		t.Fatalf("got %s, want PAUSED after forced timeout", a.State())
	}
}

func TestScheduleResumeFromPaused(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()
	if err := a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{ProcessName: "com.example"}, false, false, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := a.SchedulePause(context.Background(), thread, false, false, time.Now(), time.Second); err != nil {
		t.Fatal(err)
	}
	a.CompletePause()

	if err := a.ScheduleResume(context.Background(), thread, time.Now()); err != nil {
		t.Fatal(err)
	}
	if a.State() != Resumed {
		t.Fatalf("got %s, want RESUMED", a.State())
	}
	if !a.Visible {
		t.Fatal("expected resumed activity to be visible")
	}
	if len(thread.Calls) == 0 || thread.Calls[len(thread.Calls)-1] != "resume:"+a.ID.String() {
		t.Fatalf("expected a resume RPC, not a fresh launch, got %v", thread.Calls)
	}
}

func TestScheduleResumeFromStopped(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()
	if err := a.ScheduleLaunch(context.Background(), thread, ids.ProcessKey{ProcessName: "com.example"}, true, false, time.Now()); err != nil {
		t.Fatal(err)
	}
	if a.State() != Stopped {
		t.Fatalf("got %s, want STOPPED", a.State())
	}

	if err := a.ScheduleResume(context.Background(), thread, time.Now()); err != nil {
		t.Fatal(err)
	}
	if a.State() != Resumed {
		t.Fatalf("got %s, want RESUMED", a.State())
	}
}

func TestScheduleResumeRejectsInvalidState(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	thread := apprpc.NewSimulated()
	if err := a.ScheduleResume(context.Background(), thread, time.Now()); err == nil {
		t.Fatal("expected schedule_resume from INITIALIZING to be rejected")
	}
}

func TestPendingResultsQueuedWhileNotResumed(t *testing.T) {
	a := New(1, 1, "com.example", ".Main", nil)
	a.ScheduleResult(Result{From: 2, RequestCode: 1, ResultCode: 0})
	if len(a.PendingResults()) != 1 {
		t.Fatalf("expected queued result while not resumed")
	}
}
