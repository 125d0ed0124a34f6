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

package main

import (
	"github.com/android-os/activitysupervisor/pkg/appcrash"
	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/external/externaltest"
	"github.com/android-os/activitysupervisor/pkg/processregistry"
	"github.com/android-os/activitysupervisor/pkg/stacksupervisor"
	"github.com/android-os/activitysupervisor/pkg/supervisorlock"
	"github.com/android-os/activitysupervisor/pkg/usercontroller"
)

// demoApps is the fixed resolver table every subcommand boots against.
// This binary has no real package manager or process host to resolve
// against, so it stands in the same role runsc/cmd/do.go's synthesized
// OCI spec plays for a single ad hoc container: enough of a real
// collaborator graph to exercise the supervisor end to end.
var demoApps = map[string]*external.ActivityInfo{
	"home": {
		ComponentPkg: "com.android.launcher", ComponentClass: "home",
		ProcessName: "com.android.launcher", Affinity: "com.android.launcher.home", Resizable: true,
	},
	"browser": {
		ComponentPkg: "com.android.browser", ComponentClass: ".BrowserActivity",
		ProcessName: "com.android.browser", Affinity: "com.android.browser.main", Resizable: true,
	},
	"settings": {
		ComponentPkg: "com.android.settings", ComponentClass: ".SettingsActivity",
		ProcessName: "com.android.settings", Affinity: "com.android.settings.main", Resizable: true, Heavyweight: true,
	},
	"camera": {
		ComponentPkg: "com.android.camera", ComponentClass: ".CameraActivity",
		ProcessName: "com.android.camera", Affinity: "com.android.camera.main", Resizable: false, Heavyweight: true,
	},
}

// newDemoSupervisor wires a fresh Supervisor against the in-memory fakes
// of pkg/external/externaltest, since this binary is a standalone demo
// harness with no real window manager, package manager, or process host
// to attach to.
func newDemoSupervisor(cfg *config.Config) *stacksupervisor.Supervisor {
	lock := &supervisorlock.Lock{}
	clk := clock.Real{}

	resolver := externaltest.NewResolver()
	for action, info := range demoApps {
		resolver.Register(action, info)
	}
	wm := externaltest.NewWindowManager()
	launcher := externaltest.NewProcessLauncher()
	processes := processregistry.New(launcher, nil, cfg, clk, lock)
	crashes := appcrash.New(cfg, clk)
	storage := externaltest.NewStorage()
	broadcaster := externaltest.NewBroadcaster()
	users := usercontroller.New(cfg, clk, storage, broadcaster, wm)

	return stacksupervisor.New(lock, clk, cfg, resolver, wm, processes, crashes, users)
}
