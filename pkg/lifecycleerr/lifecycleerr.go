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

// Package lifecycleerr defines the error taxonomy surfaced to callers of
// the supervisor, per the error handling design: transient faults are
// recovered locally with bounded retries, persistent faults are surfaced
// as activity finishes.
package lifecycleerr

import (
	"github.com/pkg/errors"
)

// Sentinel errors. Use errors.Is to match against these; the actual value
// returned to a caller is usually wrapped with errors.Wrap for context.
var (
	// ErrPermissionDenied means the caller lacks a required capability.
	// The caller's operation aborts with no state change.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBadIntent means the intent carried a file-descriptor payload or
	// malformed options. The caller's operation aborts.
	ErrBadIntent = errors.New("bad intent")

	// ErrResolveFailed means the package resolver returned no activity
	// for the intent.
	ErrResolveFailed = errors.New("resolve failed")

	// ErrProcessStartFailed is transient: the activity remains
	// INITIALIZING and is retried when a process becomes available.
	ErrProcessStartFailed = errors.New("process start failed")

	// ErrLaunchFailed corresponds to a RemoteException from the hosting
	// process. First occurrence triggers a restart and retry.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrCrashFatal is the second LaunchFailed within the same launch
	// attempt; the activity finishes with reason "2nd-crash". Finishing
	// sends no RESULT_CANCELED result back to the activity's caller.
	ErrCrashFatal = errors.New("second crash, activity finished")

	// ErrQuotaExceeded means the quick-crash rule tripped: the process
	// is marked bad and its broadcasts are refused.
	ErrQuotaExceeded = errors.New("quota exceeded, process marked bad")

	// ErrUserOpInvalid means the caller attempted to stop the system
	// user or the current user.
	ErrUserOpInvalid = errors.New("invalid user operation")

	// ErrRelatedUsersCannotStop is returned by a non-force stop when a
	// related (profile-group) user is the system or current user.
	ErrRelatedUsersCannotStop = errors.New("related users cannot be stopped")

	// ErrTimeout means a bounded wait exceeded its deadline. The target
	// state still advances to its deadline-driven next state; there is
	// no rollback.
	ErrTimeout = errors.New("timeout")

	// ErrConfigurationError is raised by the display when an operation
	// would create a second singleton stack of a role that permits only
	// one (pinned, split-primary, home, recents).
	ErrConfigurationError = errors.New("configuration error")
)

// Wrap attaches a message to an error chain without losing the sentinel
// for errors.Is matching.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// Wrapf is the formatted form of Wrap.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
