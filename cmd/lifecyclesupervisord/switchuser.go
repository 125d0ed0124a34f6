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
	"strconv"

	"github.com/google/subcommands"

	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/dump"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

// switchUserCmd implements subcommands.Command for the "switch-user"
// command.
type switchUserCmd struct{}

func (*switchUserCmd) Name() string     { return "switch-user" }
func (*switchUserCmd) Synopsis() string { return "boot and switch the foreground user" }
func (*switchUserCmd) Usage() string    { return "switch-user <user id>\n" }

func (*switchUserCmd) SetFlags(*flag.FlagSet) {}

func (c *switchUserCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	target, err := strconv.Atoi(f.Arg(0))
	if err != nil {
		fmt.Printf("invalid user id %q: %v\n", f.Arg(0), err)
		return subcommands.ExitUsageError
	}

	cfg := args[0].(*config.Config)
	sup := newDemoSupervisor(cfg)

	if err := sup.SwitchToUser(ctx, ids.UserID(target)); err != nil {
		fmt.Printf("switch-user failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("switched to user#%d\n", target)
	fmt.Print(dump.StateSnapshot(sup.TakeFullSnapshot()))
	return subcommands.ExitSuccess
}
