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

package usercontroller

import (
	"context"
	"testing"
	"time"

	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/external/externaltest"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

func newTestController(maxRunning int) (*Controller, *externaltest.Broadcaster) {
	cfg := config.Default()
	cfg.MaxRunningUsers = maxRunning
	broadcaster := externaltest.NewBroadcaster()
	c := New(cfg, clock.NewFake(time.Unix(0, 0)), externaltest.NewStorage(), broadcaster, externaltest.NewWindowManager())
	return c, broadcaster
}

func TestStartUserEnforcesMaxRunningUsersByEvictingLRU(t *testing.T) {
	c, _ := newTestController(2) // system user counts as one of the two

	fake := c.clk.(*clock.Fake)
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	fake.Advance(time.Minute)
	if _, err := c.StartUser(context.Background(), 11, 11, false); err != nil {
		t.Fatal(err)
	}

	// Starting user 10 was the least-recently-foregrounded non-system,
	// non-current user and should have been stopped to make room; the
	// fake broadcaster completes synchronously so the two-phase shutdown
	// has already run to SHUTDOWN by the time StartUser returns.
	u10 := c.User(10)
	if u10 == nil || u10.State() != Shutdown {
		t.Fatalf("expected user 10 evicted into SHUTDOWN, got %v", u10)
	}
	if u11 := c.User(11); u11 == nil || u11.State() != RunningLocked {
		t.Fatalf("expected user 11 running locked, got %v", u11)
	}
}

func TestStopUserRefusesCurrentUserWithoutForce(t *testing.T) {
	c, _ := newTestController(5)
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	c.current = 10

	if err := c.StopUser(context.Background(), 10, false); err == nil {
		t.Fatal("expected an error stopping the current user without force")
	}
}

func TestStopUserRelatedUsersCannotStopBlocksNonForce(t *testing.T) {
	c, _ := newTestController(5)
	// Two profiles (11, 12) sharing group 10, with 10 current.
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartUser(context.Background(), 11, 10, false); err != nil {
		t.Fatal(err)
	}
	c.current = 10

	err := c.StopUser(context.Background(), 11, false)
	if err == nil {
		t.Fatal("expected ErrRelatedUsersCannotStop because 10 (current) shares the profile group")
	}
}

func TestStopUserTwoPhaseBroadcastOrdering(t *testing.T) {
	c, broadcaster := newTestController(5)
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}

	if err := c.StopUser(context.Background(), 10, false); err != nil {
		t.Fatal(err)
	}

	wantOrder := []string{"user-stopping@user#10", "shutdown@user#10"}
	if len(broadcaster.Log) != len(wantOrder) {
		t.Fatalf("got broadcast log %v, want %v", broadcaster.Log, wantOrder)
	}
	for i, want := range wantOrder {
		if broadcaster.Log[i] != want {
			t.Fatalf("broadcast %d: got %q, want %q", i, broadcaster.Log[i], want)
		}
	}
	if u := c.User(10); u == nil || u.State() != Shutdown {
		t.Fatalf("expected user 10 in SHUTDOWN after finish_user_stop, got %v", u)
	}
}

func TestStopUserEphemeralDeletesRecordAfterShutdown(t *testing.T) {
	c, _ := newTestController(5)
	if _, err := c.StartUser(context.Background(), 10, 10, true); err != nil {
		t.Fatal(err)
	}
	if err := c.StopUser(context.Background(), 10, false); err != nil {
		t.Fatal(err)
	}
	if u := c.User(10); u != nil {
		t.Fatalf("expected ephemeral user 10 deleted, got %v", u)
	}
}

func TestStartUserDuringStoppingRevertsToPriorState(t *testing.T) {
	c, broadcaster := newTestController(5)
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	u := c.User(10)
	u.state = Stopping
	u.priorState = Running
	broadcaster.Log = nil

	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	if u.State() != Running {
		t.Fatalf("got state %s, want RUNNING after revert", u.State())
	}
}

type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) OnUserSwitching(_ context.Context, from, to ids.UserID) error {
	o.calls = append(o.calls, from.String()+"->"+to.String())
	return nil
}

func TestSwitchUserFansOutToObserversAndBroadcastsTriad(t *testing.T) {
	c, broadcaster := newTestController(5)
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	obs := &recordingObserver{}
	c.AddObserver(obs)

	homeCalled := ids.UserID(-1)
	c.OnHomeToFront = func(user ids.UserID) { homeCalled = user }

	if err := c.SwitchUser(context.Background(), 10); err != nil {
		t.Fatal(err)
	}

	if c.CurrentUser() != 10 {
		t.Fatalf("got current user %s, want user#10", c.CurrentUser())
	}
	if len(obs.calls) != 1 || obs.calls[0] != "user#0->user#10" {
		t.Fatalf("got observer calls %v, want one call from system to user#10", obs.calls)
	}
	if homeCalled != 10 {
		t.Fatalf("expected OnHomeToFront(10), got %v", homeCalled)
	}

	wantTail := []string{"USER_BACKGROUND@user#0", "USER_FOREGROUND@user#10", "USER_SWITCHED@user#10"}
	got := broadcaster.Log[len(broadcaster.Log)-3:]
	for i, want := range wantTail {
		if got[i] != want {
			t.Fatalf("broadcast %d: got %q, want %q", i, got[i], want)
		}
	}
}

func TestUnlockUserTransitionsRunningLockedToRunning(t *testing.T) {
	c, broadcaster := newTestController(5)
	if _, err := c.StartUser(context.Background(), 10, 10, false); err != nil {
		t.Fatal(err)
	}
	if u := c.User(10); u.State() != RunningLocked {
		t.Fatalf("expected RUNNING_LOCKED after boot, got %s", u.State())
	}

	if err := c.UnlockUser(context.Background(), 10, 1, []byte("token"), []byte("secret")); err != nil {
		t.Fatal(err)
	}
	if u := c.User(10); u.State() != Running {
		t.Fatalf("expected RUNNING after unlock, got %s", u.State())
	}
	found := false
	for _, l := range broadcaster.Log {
		if l == "USER_UNLOCKED@user#10" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a USER_UNLOCKED broadcast, got %v", broadcaster.Log)
	}
}
