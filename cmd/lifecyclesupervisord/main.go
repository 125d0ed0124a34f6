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

// Binary lifecyclesupervisord is a single-shot demo harness for the
// activity/process lifecycle supervisor: each subcommand boots a fresh
// Supervisor wired against the in-memory external.* fakes, runs one
// operation, and prints a state dump, the way `runsc do` stands up and
// drives a single container in one process rather than talking to a
// long-lived daemon.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file; defaults are used when empty")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warning, error")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(new(startCmd), "")
	subcommands.Register(new(dumpCmd), "")
	subcommands.Register(new(switchUserCmd), "")

	flag.Parse()

	if err := log.SetLevel(*logLevel); err != nil {
		log.Errorf("lifecyclesupervisord: invalid -log-level %q: %v", *logLevel, err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("lifecyclesupervisord: loading config %q: %v", *configPath, err)
		os.Exit(int(subcommands.ExitFailure))
	}

	os.Exit(int(subcommands.Execute(context.Background(), cfg)))
}
