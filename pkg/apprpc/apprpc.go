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

// Package apprpc models the "application thread" collaborator of spec.md
// §6: the per-process RPC surface the supervisor uses to schedule
// lifecycle transitions inside a hosted process
// (schedule_launch_activity, schedule_pause_activity,
// schedule_stop_activity, schedule_destroy_activity, schedule_crash).
//
// Every call here is fire-and-forget from the supervisor's point of view,
// exactly like the real binder calls it models: a method either returns
// immediately with a RemoteException-shaped error (the process is dead or
// unreachable), or it returns nil and the eventual completion arrives out
// of band as a call back into the stack's CompletePause/CompleteStop/
// CompleteDestroy. This file defines the interface and request shapes,
// grounded on pkg/sentry/control.Lifecycle's "method takes a request
// struct, returns error" RPC convention.
package apprpc

import (
	"context"

	"github.com/android-os/activitysupervisor/pkg/ids"
)

// LaunchActivityRequest is the payload of schedule_launch_activity.
type LaunchActivityRequest struct {
	Token        ids.ActivityID
	ComponentPkg string
	ComponentClass string
	Intent       map[string]any
	Icicle       []byte
	NotResumed   bool
	IsForward    bool
}

// PauseActivityRequest is the payload of schedule_pause_activity.
type PauseActivityRequest struct {
	Token       ids.ActivityID
	Finishing   bool
	UserLeaving bool
}

// AppThread is the per-process RPC surface the supervisor calls into.
type AppThread interface {
	ScheduleLaunchActivity(ctx context.Context, req LaunchActivityRequest) error
	// ScheduleResumeActivity asks an activity that is already initialized
	// and hosted in this process (PAUSED or STOPPED, never torn down) to
	// resume, without the create-and-attach work ScheduleLaunchActivity
	// does for a cold or post-restart launch.
	ScheduleResumeActivity(ctx context.Context, token ids.ActivityID) error
	SchedulePauseActivity(ctx context.Context, req PauseActivityRequest) error
	ScheduleStopActivity(ctx context.Context, token ids.ActivityID) error
	ScheduleDestroyActivity(ctx context.Context, token ids.ActivityID) error
	ScheduleCrash(ctx context.Context, message string) error
}
