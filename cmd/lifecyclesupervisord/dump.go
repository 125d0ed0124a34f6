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

	"github.com/google/subcommands"

	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/dump"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

// dumpCmd implements subcommands.Command for the "dump" command. It boots
// a fresh demo supervisor, optionally seeds it with a launch, and prints
// StateSnapshot — the in-process equivalent of gVisor's SIGUSR2 debug
// dump, minus the signal plumbing this binary has no long-lived daemon to
// receive it in.
type dumpCmd struct {
	seed string
}

func (*dumpCmd) Name() string     { return "dump" }
func (*dumpCmd) Synopsis() string { return "print a textual snapshot of supervisor state" }
func (*dumpCmd) Usage() string    { return "dump [-seed action]\n" }

func (c *dumpCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.seed, "seed", "", "optionally launch this demo action before dumping")
}

func (c *dumpCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	sup := newDemoSupervisor(cfg)

	if c.seed != "" {
		if _, ok := demoApps[c.seed]; !ok {
			fmt.Printf("unknown seed action %q\n", c.seed)
			return subcommands.ExitUsageError
		}
		if _, err := sup.StartActivityMayWait(ctx, &external.Intent{Action: c.seed}, nil, ids.SystemUserID); err != nil {
			fmt.Printf("seed launch failed: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	fmt.Print(dump.StateSnapshot(sup.TakeFullSnapshot()))
	return subcommands.ExitSuccess
}
