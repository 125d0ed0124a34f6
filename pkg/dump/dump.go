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

// Package dump implements the diagnostic state dump of spec.md §7: a
// human-readable text rendering of every display, stack, task, activity,
// process, and user the supervisor currently tracks. The shape follows
// pkg/shim/v1/runsc/debug.go's diagnostic-subcommand convention of a
// plain indented text block rather than a structured encoding, since the
// only consumer is an operator staring at a terminal.
package dump

import (
	"fmt"
	"strings"

	"github.com/android-os/activitysupervisor/pkg/stacksupervisor"
)

// StateSnapshot renders snap as the text block a "dump" CLI subcommand or
// a bug-report attachment would print. It takes no lock itself: callers
// obtain snap via Supervisor.TakeFullSnapshot (or FullSnapshotLocked, if
// already holding the lock) so the render step never blocks other
// supervisor work.
func StateSnapshot(snap stacksupervisor.FullSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DISPLAYS (%d)\n", len(snap.Displays))
	for _, d := range snap.Displays {
		fmt.Fprintf(&b, "  display %s (%d stacks)\n", d.ID, len(d.Stacks))
		for _, st := range d.Stacks {
			fmt.Fprintf(&b, "    stack %s mode=%s type=%s resumed=%s pausing=%s\n",
				st.ID, st.WindowingMode, st.ActivityType, st.ResumedActivity, st.PausingActivity)
			for _, t := range st.Tasks {
				fmt.Fprintf(&b, "      task %s affinity=%q user=%s\n", t.ID, t.Affinity, t.User)
				for _, a := range t.Activities {
					fmt.Fprintf(&b, "        activity %s %s/%s state=%s process=%s\n",
						a.ID, a.ComponentPkg, a.ComponentClass, a.State, a.Process)
				}
			}
		}
	}

	fmt.Fprintf(&b, "PROCESSES (%d)\n", len(snap.Processes))
	for _, rec := range snap.Processes {
		fmt.Fprintf(&b, "  %s bucket=%s adj=%d boundAboveClient=%t lastUsed=%s activities=%d\n",
			rec.Key, rec.Bucket, rec.Adjustment, rec.BoundAboveClient, rec.LastUsed.Format("15:04:05.000"), len(rec.Activities))
	}

	fmt.Fprintf(&b, "USERS (%d)\n", len(snap.Users))
	for _, u := range snap.Users {
		fmt.Fprintf(&b, "  %s profileGroup=%s ephemeral=%t state=%s\n", u.ID, u.ProfileGroupID, u.Ephemeral, u.State())
	}

	return b.String()
}
