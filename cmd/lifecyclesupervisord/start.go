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
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/google/subcommands"

	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/dump"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

// startCmd implements subcommands.Command for the "start" command.
type startCmd struct {
	user int
}

func (*startCmd) Name() string { return "start" }

func (*startCmd) Synopsis() string {
	return "start an activity by demo action name and print the resulting state"
}

func (*startCmd) Usage() string {
	names := make([]string, 0, len(demoApps))
	for name := range demoApps {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("start [-user N] <action>\nknown actions: %s\n", strings.Join(names, ", "))
}

func (c *startCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.user, "user", 0, "user id to launch as")
}

func (c *startCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	action := f.Arg(0)
	if _, ok := demoApps[action]; !ok {
		fmt.Printf("unknown action %q\n", action)
		return subcommands.ExitUsageError
	}

	cfg := args[0].(*config.Config)
	sup := newDemoSupervisor(cfg)

	result, err := sup.StartActivityMayWait(ctx, &external.Intent{Action: action}, nil, ids.UserID(c.user))
	if err != nil {
		fmt.Printf("start_activity_may_wait failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("launched %s outcome=%s thisTime=%s totalTime=%s\n", result.Activity, result.Outcome, result.ThisTime, result.TotalTime)
	fmt.Print(dump.StateSnapshot(sup.TakeFullSnapshot()))
	return subcommands.ExitSuccess
}
