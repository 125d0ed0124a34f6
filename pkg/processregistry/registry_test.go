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

package processregistry

import (
	"context"
	"testing"
	"time"

	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/external/externaltest"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/supervisorlock"
)

func TestAttachApplicationMarksProcessRunning(t *testing.T) {
	launcher := externaltest.NewProcessLauncher()
	reg := New(launcher, nil, config.Default(), clock.Real{}, &supervisorlock.Lock{})

	key := ids.ProcessKey{ProcessName: "com.example", UID: 10}
	if reg.IsRunning(key) {
		t.Fatal("new registry should report nothing running")
	}

	handle, err := launcher.StartProcess(context.Background(), key, external.AppInfo{}, "activity", "com.example")
	if err != nil {
		t.Fatal(err)
	}
	reg.AttachApplication(key, handle, external.AppInfo{}, nil)

	if !reg.IsRunning(key) {
		t.Fatal("expected process running after AttachApplication")
	}
}

func TestLRUVictimReturnsOldestInBucket(t *testing.T) {
	launcher := externaltest.NewProcessLauncher()
	fake := clock.NewFake(time.Unix(0, 0))
	reg := New(launcher, nil, config.Default(), fake, &supervisorlock.Lock{})

	keyOld := ids.ProcessKey{ProcessName: "com.old", UID: 1}
	keyNew := ids.ProcessKey{ProcessName: "com.new", UID: 2}

	hOld, _ := launcher.StartProcess(context.Background(), keyOld, external.AppInfo{}, "activity", "com.old")
	reg.AttachApplication(keyOld, hOld, external.AppInfo{}, nil)
	fake.Advance(time.Minute)
	hNew, _ := launcher.StartProcess(context.Background(), keyNew, external.AppInfo{}, "activity", "com.new")
	reg.AttachApplication(keyNew, hNew, external.AppInfo{}, nil)

	reg.SetBucket(keyOld, config.BucketCachedMin)
	reg.SetBucket(keyNew, config.BucketCachedMin)

	victim, ok := reg.LRUVictim(config.BucketCachedMin)
	if !ok || victim != keyOld {
		t.Fatalf("got (%v, %v), want (%v, true)", victim, ok, keyOld)
	}
}

func TestApplyBindAboveClientDropsOneBucket(t *testing.T) {
	launcher := externaltest.NewProcessLauncher()
	reg := New(launcher, nil, config.Default(), clock.Real{}, &supervisorlock.Lock{})
	key := ids.ProcessKey{ProcessName: "com.example"}
	handle, _ := launcher.StartProcess(context.Background(), key, external.AppInfo{}, "activity", "com.example")
	reg.AttachApplication(key, handle, external.AppInfo{}, nil)
	reg.SetBucket(key, config.BucketService)

	reg.ApplyBindAboveClient(key)

	if reg.Record(key).Bucket != config.BucketBackup {
		t.Fatalf("got %s, want %s", reg.Record(key).Bucket, config.BucketBackup)
	}
}

func TestKillRemovesRecord(t *testing.T) {
	launcher := externaltest.NewProcessLauncher()
	reg := New(launcher, nil, config.Default(), clock.Real{}, &supervisorlock.Lock{})
	key := ids.ProcessKey{ProcessName: "com.example"}
	handle, _ := launcher.StartProcess(context.Background(), key, external.AppInfo{}, "activity", "com.example")
	reg.AttachApplication(key, handle, external.AppInfo{}, nil)

	if err := reg.Kill(context.Background(), key, "oom"); err != nil {
		t.Fatal(err)
	}
	if reg.IsRunning(key) {
		t.Fatal("expected process removed after Kill")
	}
	if len(launcher.Killed) != 1 || launcher.Killed[0] != key {
		t.Fatalf("expected launcher.KillProcess called for %s, got %v", key, launcher.Killed)
	}
}
