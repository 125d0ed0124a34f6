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

// Package external declares the narrow interfaces the core consumes from
// collaborators explicitly out of scope for this module: the package
// resolver, the window/surface manager, the process launcher, the storage
// service, and the broadcast dispatcher (spec.md §6). Each is defined next
// to the shared wire-shaped types it operates on, the way the teacher
// defines ProcessMonitor beside the record it decorates.
package external

import (
	"context"

	"github.com/android-os/activitysupervisor/pkg/ids"
)

// Intent is the minimal shape of an Android-style intent the supervisor
// threads through launches, results, and broadcasts.
type Intent struct {
	Action         string
	ComponentPkg   string
	ComponentClass string
	Flags          uint32
	Extras         map[string]any
	// ResolvedComponent is cached back into the intent once resolved, so
	// that replaying it is idempotent (spec.md §8 round-trip property).
	ResolvedComponent string
}

// ActivityInfo is what the package resolver returns for an intent.
type ActivityInfo struct {
	ComponentPkg     string
	ComponentClass   string
	ProcessName      string
	Affinity         string
	Resizable        bool
	Heavyweight      bool
	RequestedOrientation int
}

// AppInfo is the application-level metadata a launched process needs.
type AppInfo struct {
	PackageName string
	UID         int32
	Persistent  bool
	Isolated    bool
}

// PackageResolver resolves an intent to the activity that should handle
// it. The core caches the resolved component back into the intent to
// guarantee idempotent replay.
type PackageResolver interface {
	ResolveIntent(ctx context.Context, intent *Intent, resolvedType string, flags uint32, user ids.UserID) (*ActivityInfo, error)
}

// WindowManager is the narrow surface-composition collaborator.
type WindowManager interface {
	SetVisibility(token ids.ActivityID, visible bool)
	UpdateOrientation(freezeToken ids.ActivityID) error
	DeferSurfaceLayout()
	ContinueSurfaceLayout()
	DismissKeyguard()
	StartFreezingScreen(enterAnim, exitAnim string)
	StopFreezingScreen()
	LockNow()
	SetCurrentUser(user ids.UserID, profileIDs []ids.UserID)
}

// ProcessHandle is an opaque reference to an OS process returned by the
// launcher; the real pid is assigned post-fork and may not be known yet.
type ProcessHandle struct {
	Key ids.ProcessKey
	Pid int
}

// ProcessLauncher starts a new hosting process and posts an asynchronous
// attach; AttachApplication is called back once the process thread
// registers.
type ProcessLauncher interface {
	StartProcess(ctx context.Context, key ids.ProcessKey, info AppInfo, hostingType, hostingName string) (ProcessHandle, error)
	// KillProcess is the low-memory killer's and the destroy-deadline
	// enforcer's path to tear down a hosting process that is no longer
	// cooperating.
	KillProcess(ctx context.Context, handle ProcessHandle, reason string) error
}

// StorageService unlocks a user's credential-encrypted storage.
type StorageService interface {
	UnlockUserKey(ctx context.Context, user ids.UserID, serial int64, token, secret []byte) error
	IsUserKeyUnlocked(user ids.UserID) bool
}

// BroadcastDispatcher delivers an intent to registered receivers, used
// only for user lifecycle broadcasts in this module's scope.
type BroadcastDispatcher interface {
	BroadcastIntent(ctx context.Context, intent *Intent, resultTo chan<- error, permission string, user ids.UserID) error
}
