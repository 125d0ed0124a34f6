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

// Package appcrash implements component F: per-(processName, uid) crash
// and ANR bookkeeping, the quick-crash rule, and the bad-process list of
// spec.md §4.F.
package appcrash

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/log"
)

// record is the per-process crash ledger of spec.md §4.F.
type record struct {
	lastCrash           time.Time
	lastCrashPersistent time.Time
	windowStart         time.Time
	windowCount         int

	dialogLimiter *rate.Limiter

	bad        bool
	badMessage string
	badStack   string

	usedServiceException bool
}

// Outcome reports what RecordCrash decided for this occurrence.
type Outcome struct {
	// Bad is true if this crash caused (or confirms) the process being
	// marked bad: future broadcasts are refused, activities finish.
	Bad bool
	// RestartableForService is true if the bound-foreground-service
	// exception granted one additional retry instead of marking bad.
	RestartableForService bool
}

// Registry is the supervisor-wide crash ledger, keyed by process identity.
// Like the other component packages it keeps no lock of its own.
type Registry struct {
	records map[ids.ProcessKey]*record
	cfg     *config.Config
	clk     clock.Clock
}

// New creates an empty crash registry.
func New(cfg *config.Config, clk clock.Clock) *Registry {
	return &Registry{records: map[ids.ProcessKey]*record{}, cfg: cfg, clk: clk}
}

func (r *Registry) recordFor(key ids.ProcessKey) *record {
	rec, ok := r.records[key]
	if !ok {
		rec = &record{dialogLimiter: rate.NewLimiter(rate.Every(r.cfg.CrashDialogThrottle()), 1)}
		r.records[key] = rec
	}
	return rec
}

// RecordCrash implements the quick-crash rule of spec.md §4.F. Isolated
// processes bypass the bad-process list entirely (they have no
// persistent identity to blacklist); persistent processes are never
// marked bad but still have their counts recorded for diagnostics.
func (r *Registry) RecordCrash(key ids.ProcessKey, persistent, isolated, boundForegroundService bool, message, stack string) Outcome {
	now := r.clk.Now()
	rec := r.recordFor(key)

	quick := !rec.lastCrash.IsZero() && now.Sub(rec.lastCrash) < r.cfg.MinCrashInterval()

	if rec.windowStart.IsZero() || now.Sub(rec.windowStart) > r.cfg.CrashWindowReset() {
		rec.windowStart = now
		rec.windowCount = 0
	}
	rec.windowCount++
	if rec.windowCount > r.cfg.CrashCountLimit {
		quick = true
	}

	rec.lastCrash = now
	if persistent {
		rec.lastCrashPersistent = now
	}

	var outcome Outcome
	if quick && !persistent && !isolated {
		if boundForegroundService && !rec.usedServiceException {
			rec.usedServiceException = true
			outcome.RestartableForService = true
			log.Warningf("appcrash: %s granted bound-foreground-service retry", key)
		} else {
			rec.bad = true
			rec.badMessage = message
			rec.badStack = stack
			outcome.Bad = true
			log.Warningf("appcrash: %s marked bad after quick crash: %s", key, message)
		}
	}
	return outcome
}

// ShouldShowDialog reports whether the user should be shown an error
// dialog for key right now, throttled to at most one per
// CrashDialogThrottleSeconds.
func (r *Registry) ShouldShowDialog(key ids.ProcessKey) bool {
	rec := r.recordFor(key)
	return rec.dialogLimiter.AllowN(r.clk.Now(), 1)
}

// IsBad reports whether key is on the bad-process list.
func (r *Registry) IsBad(key ids.ProcessKey) bool {
	rec, ok := r.records[key]
	return ok && rec.bad
}

// BadInfo returns the message and stack recorded when key was marked bad.
func (r *Registry) BadInfo(key ids.ProcessKey) (message, stack string, ok bool) {
	rec, exists := r.records[key]
	if !exists || !rec.bad {
		return "", "", false
	}
	return rec.badMessage, rec.badStack, true
}

// ClearBad removes key from the bad-process list; only an explicit user
// command ("clear app data", "force restart") does this.
func (r *Registry) ClearBad(key ids.ProcessKey) {
	if rec, ok := r.records[key]; ok {
		rec.bad = false
		rec.badMessage = ""
		rec.badStack = ""
	}
}

// ResetOnRestart clears crash_times (but never crash_times_persistent) on
// an explicit process restart, per spec.md §4.F.
func (r *Registry) ResetOnRestart(key ids.ProcessKey) {
	rec, ok := r.records[key]
	if !ok {
		return
	}
	rec.lastCrash = time.Time{}
	rec.windowStart = time.Time{}
	rec.windowCount = 0
	rec.usedServiceException = false
}
