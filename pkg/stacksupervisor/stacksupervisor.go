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

// Package stacksupervisor implements component D: the top-level
// coordinating record that owns every display's stacks, the activity and
// task arenas, and the multi-display operations of spec.md §4.D
// (start_activity_may_wait, start_activities, attach_application,
// handle_app_died, shutdown_locked) plus the single-heavyweight-process
// interception policy.
//
// Like runsc/container.Container, Supervisor is a single record composing
// many independently-testable sub-records (pkg/activity, pkg/task,
// pkg/stack, pkg/display, pkg/processregistry, pkg/appcrash,
// pkg/usercontroller) behind a handful of high-level verbs; the
// synchronous-looking StartActivityMayWait that blocks on internally
// asynchronous work mirrors runsc/cmd/wait.go's Wait command blocking on
// a container that is brought up by a separate goroutine.
package stacksupervisor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/android-os/activitysupervisor/pkg/activity"
	"github.com/android-os/activitysupervisor/pkg/appcrash"
	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/display"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/launchparams"
	"github.com/android-os/activitysupervisor/pkg/lifecycleerr"
	"github.com/android-os/activitysupervisor/pkg/log"
	"github.com/android-os/activitysupervisor/pkg/processregistry"
	"github.com/android-os/activitysupervisor/pkg/stack"
	"github.com/android-os/activitysupervisor/pkg/supervisorlock"
	"github.com/android-os/activitysupervisor/pkg/task"
	"github.com/android-os/activitysupervisor/pkg/usercontroller"
)

// StartOutcome is the coarse result of StartActivityMayWait, a superset of
// stack.LaunchOutcome that also covers resolve failure and the
// heavyweight-confirmation redirect.
type StartOutcome int

const (
	StartOutcomeSuccess StartOutcome = iota
	StartOutcomeTaskToFront
	StartOutcomeHeavyweightConfirmationRequired
	StartOutcomeTimeout
)

func (o StartOutcome) String() string {
	switch o {
	case StartOutcomeSuccess:
		return "SUCCESS"
	case StartOutcomeTaskToFront:
		return "TASK_TO_FRONT"
	case StartOutcomeHeavyweightConfirmationRequired:
		return "HEAVYWEIGHT_CONFIRMATION_REQUIRED"
	case StartOutcomeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// StartResult is returned to a StartActivityMayWait caller.
type StartResult struct {
	Outcome   StartOutcome
	Activity  ids.ActivityID
	ThisTime  time.Duration
	TotalTime time.Duration
}

// pendingHeavyweight records the deferred original intent while the user
// is asked to confirm switching away from the current heavyweight
// process, per spec.md §4.D.
type pendingHeavyweight struct {
	intent  *external.Intent
	options map[string]any
	user    ids.UserID
	info    *external.ActivityInfo
}

// Supervisor is the component D coordinator.
type Supervisor struct {
	lock *supervisorlock.Lock
	clk  clock.Clock
	cfg  *config.Config

	resolver external.PackageResolver
	wm       external.WindowManager

	Processes *processregistry.Registry
	Crashes   *appcrash.Registry
	Users     *usercontroller.Controller
	LaunchParams *launchparams.Controller

	activities map[ids.ActivityID]*activity.Activity
	tasks      map[ids.TaskID]*task.Task
	displays   map[ids.DisplayID]*display.Display

	nextActivityID uint64
	nextTaskID     int64
	nextStackID    int

	heavyweight        ids.ProcessKey
	pendingHeavyweight *pendingHeavyweight
}

// New creates a supervisor with a single default display registered.
func New(lock *supervisorlock.Lock, clk clock.Clock, cfg *config.Config, resolver external.PackageResolver, wm external.WindowManager, processes *processregistry.Registry, crashes *appcrash.Registry, users *usercontroller.Controller) *Supervisor {
	s := &Supervisor{
		lock:         lock,
		clk:          clk,
		cfg:          cfg,
		resolver:     resolver,
		wm:           wm,
		Processes:    processes,
		Crashes:      crashes,
		Users:        users,
		LaunchParams: launchparams.New(),
		activities:   map[ids.ActivityID]*activity.Activity{},
		tasks:        map[ids.TaskID]*task.Task{},
		displays:     map[ids.DisplayID]*display.Display{},
	}
	s.LaunchParams.Register(launchparams.DefaultDisplayModifier())
	s.LaunchParams.Register(launchparams.LayoutHintModifier())
	s.displays[ids.DefaultDisplayID] = display.New(ids.DefaultDisplayID, display.Capabilities{MultiWindow: true, SplitScreen: true, Freeform: true, PictureInPicture: true}, stack.WindowingModeFullscreen)
	processes.OnAttach = s.onProcessAttach
	return s
}

// RegisterDisplay adds (or replaces) a secondary display.
func (s *Supervisor) RegisterDisplay(d *display.Display) { s.displays[d.ID] = d }

// Display returns a display by id, or nil.
func (s *Supervisor) Display(id ids.DisplayID) *display.Display { return s.displays[id] }

func (s *Supervisor) newActivityID() ids.ActivityID {
	s.nextActivityID++
	return ids.ActivityID(s.nextActivityID)
}

func (s *Supervisor) newTaskID() ids.TaskID {
	s.nextTaskID++
	return ids.TaskID(s.nextTaskID)
}

func (s *Supervisor) newStackID() ids.StackID {
	s.nextStackID++
	return ids.StackID(s.nextStackID)
}

func (s *Supervisor) lookupTask(id ids.TaskID) *task.Task { return s.tasks[id] }

func (s *Supervisor) lookupActivity(id ids.ActivityID) *activity.Activity { return s.activities[id] }

// deps builds the stack.Deps bundle for a stack living on displayID.
func (s *Supervisor) deps(displayID ids.DisplayID) stack.Deps {
	return stack.Deps{
		Tasks:          s.lookupTask,
		Activities:     s.lookupActivity,
		Processes:      s.Processes,
		Clock:          s.clk,
		PauseTimeout:   s.cfg.PauseTimeout(),
		StopTimeout:    s.cfg.StopTimeout(),
		DestroyTimeout: s.cfg.DestroyTimeout(),
		HomeActive: func() bool {
			d := s.displays[displayID]
			if d == nil {
				return false
			}
			home := d.HomeStack()
			return home != nil && home.ResumedActivity != ids.InvalidActivityID
		},
	}
}

// allStacks iterates every stack on every display.
func (s *Supervisor) allStacks(fn func(*stack.Stack)) {
	for _, d := range s.displays {
		for _, st := range d.Stacks() {
			fn(st)
		}
	}
}

// findTaskByAffinity returns the first task matching affinity for user,
// scanning all displays, or nil. Used so a launch matching an existing
// task's affinity reuses that task rather than creating a new one.
func (s *Supervisor) findTaskByAffinity(affinity string, user ids.UserID) (*task.Task, *stack.Stack, ids.DisplayID) {
	if affinity == "" {
		return nil, nil, ids.InvalidDisplayID
	}
	var found *task.Task
	var foundStack *stack.Stack
	var foundDisplay ids.DisplayID
	for did, d := range s.displays {
		for _, st := range d.Stacks() {
			for _, tid := range st.Tasks() {
				t := s.tasks[tid]
				if t != nil && t.Affinity == affinity && t.User == user {
					found, foundStack, foundDisplay = t, st, did
				}
			}
		}
	}
	return found, foundStack, foundDisplay
}

// StartActivityMayWait implements spec.md §4.D's start_activity_may_wait.
// It resolves the intent, applies the heavyweight-process policy and the
// launch-params chain, resolves (or creates) the destination task and
// stack, drives resume_top_activity, and blocks the caller (outside the
// supervisor lock) until the target activity reaches RESUMED/visible or
// LaunchTimeout elapses.
func (s *Supervisor) StartActivityMayWait(ctx context.Context, intent *external.Intent, options map[string]any, user ids.UserID) (StartResult, error) {
	s.lock.Acquire()

	info, err := s.resolver.ResolveIntent(ctx, intent, "", intent.Flags, user)
	if err != nil {
		s.lock.Release()
		return StartResult{}, lifecycleerr.Wrapf(lifecycleerr.ErrResolveFailed, "resolve %s: %v", intent.Action, err)
	}

	if redirect := s.maybeInterceptHeavyweight(intent, options, user, info); redirect {
		s.lock.Release()
		return StartResult{Outcome: StartOutcomeHeavyweightConfirmationRequired}, nil
	}

	processKey := ids.ProcessKey{ProcessName: info.ProcessName}
	hint := hintFromOptions(options)
	params := s.LaunchParams.Calculate(launchparams.Request{Hint: hint})

	d := s.displays[params.PreferredDisplay]
	if d == nil {
		d = s.displays[ids.DefaultDisplayID]
	}
	mode := d.ResolveWindowingMode(hint, stack.WindowingModeUndefined, stack.WindowingModeUndefined, info.Resizable)
	atype := stack.ActivityTypeStandard
	if info.ComponentClass == "home" {
		atype = stack.ActivityTypeHome
	}
	st, err := d.GetOrCreateStack(mode, atype, true, s.newStackID)
	if err != nil {
		s.lock.Release()
		return StartResult{}, err
	}

	existingTask, existingStack, _ := s.findTaskByAffinity(info.Affinity, user)
	var target *task.Task
	var targetStack *stack.Stack
	if existingTask != nil {
		target, targetStack = existingTask, existingStack
	} else {
		target = task.New(s.newTaskID(), st.ID, info.Affinity, map[string]any{"action": intent.Action}, user)
		s.tasks[target.ID] = target
		st.PushTask(target.ID)
		targetStack = st
	}

	act := activity.New(s.newActivityID(), target.ID, info.ComponentPkg, info.ComponentClass, intentToMap(intent))
	act.Process = processKey
	s.activities[act.ID] = act
	target.Push(act.ID)
	s.Processes.RegisterAppInfo(processKey, external.AppInfo{PackageName: info.ComponentPkg})

	if err := targetStack.ResumeTopActivity(ctx, s.deps(targetStack.Display)); err != nil {
		s.lock.Release()
		return StartResult{}, err
	}

	now := s.clk.Now()
	waiter := targetStack.AddLaunchWaiter(act.ID, now, true)
	timeout := s.cfg.LaunchTimeout()
	s.lock.Release()

	select {
	case result, ok := <-waiter:
		if !ok {
			return StartResult{Activity: act.ID}, nil
		}
		outcome := StartOutcomeSuccess
		if result.Outcome == stack.LaunchOutcomeTaskToFront {
			outcome = StartOutcomeTaskToFront
		}
		return StartResult{Outcome: outcome, Activity: act.ID, ThisTime: result.ThisTime, TotalTime: result.TotalTime}, nil
	case <-s.clk.After(timeout):
		log.Warningf("stacksupervisor: start_activity_may_wait timed out waiting for %s", act.ID)
		return StartResult{Outcome: StartOutcomeTimeout, Activity: act.ID}, lifecycleerr.Wrap(lifecycleerr.ErrTimeout, "start_activity_may_wait")
	}
}

// DisplaySnapshot is one display's stack/task/activity tree as seen by
// Snapshot.
type DisplaySnapshot struct {
	ID     ids.DisplayID
	Stacks []StackSnapshot
}

// StackSnapshot is one stack's task/activity tree as seen by Snapshot.
type StackSnapshot struct {
	ID              ids.StackID
	WindowingMode   stack.WindowingMode
	ActivityType    stack.ActivityType
	ResumedActivity ids.ActivityID
	PausingActivity ids.ActivityID
	Tasks           []TaskSnapshot
}

// TaskSnapshot is one task's activity list as seen by Snapshot.
type TaskSnapshot struct {
	ID         ids.TaskID
	Affinity   string
	User       ids.UserID
	Activities []ActivitySnapshot
}

// ActivitySnapshot is one activity's identifying fields and current state
// as seen by Snapshot.
type ActivitySnapshot struct {
	ID             ids.ActivityID
	ComponentPkg   string
	ComponentClass string
	Process        ids.ProcessKey
	State          activity.State
}

// Snapshot acquires the supervisor lock and walks every display, stack,
// task, and activity, returning a point-in-time copy suitable for a
// diagnostic dump (pkg/dump).
func (s *Supervisor) Snapshot() []DisplaySnapshot {
	s.lock.Acquire()
	defer s.lock.Release()
	return s.snapshotLocked()
}

// FullSnapshot is Snapshot plus the process table and user list, all
// taken under one acquisition of the supervisor lock so the three views
// are mutually consistent.
type FullSnapshot struct {
	Displays  []DisplaySnapshot
	Processes []*processregistry.Record
	Users     []*usercontroller.User
}

// FullSnapshotLocked is FullSnapshot's body, callable by a caller that
// already holds the supervisor lock.
func (s *Supervisor) FullSnapshotLocked() FullSnapshot {
	return FullSnapshot{
		Displays:  s.snapshotLocked(),
		Processes: s.Processes.Records(),
		Users:     s.Users.Users(),
	}
}

// TakeFullSnapshot acquires the supervisor lock and returns FullSnapshotLocked's result.
func (s *Supervisor) TakeFullSnapshot() FullSnapshot {
	s.lock.Acquire()
	defer s.lock.Release()
	return s.FullSnapshotLocked()
}

func (s *Supervisor) snapshotLocked() []DisplaySnapshot {
	var out []DisplaySnapshot
	for did, d := range s.displays {
		ds := DisplaySnapshot{ID: did}
		for _, st := range d.Stacks() {
			ss := StackSnapshot{
				ID:              st.ID,
				WindowingMode:   st.WindowingMode,
				ActivityType:    st.ActivityType,
				ResumedActivity: st.ResumedActivity,
				PausingActivity: st.PausingActivity,
			}
			for _, tid := range st.Tasks() {
				t := s.tasks[tid]
				if t == nil {
					continue
				}
				ts := TaskSnapshot{ID: t.ID, Affinity: t.Affinity, User: t.User}
				for _, aid := range t.Activities() {
					a := s.activities[aid]
					if a == nil {
						continue
					}
					ts.Activities = append(ts.Activities, ActivitySnapshot{
						ID:             a.ID,
						ComponentPkg:   a.ComponentPkg,
						ComponentClass: a.ComponentClass,
						Process:        a.Process,
						State:          a.State(),
					})
				}
				ss.Tasks = append(ss.Tasks, ts)
			}
			ds.Stacks = append(ds.Stacks, ss)
		}
		out = append(out, ds)
	}
	return out
}

// SwitchToUser boots target (if not already known) and switches the
// foreground user to it. usercontroller.Controller assumes its caller
// holds the supervisor lock for every call; this module wires no
// SwitchObserver that re-enters the supervisor, so holding the lock
// across SwitchUser's fan-out is safe here.
func (s *Supervisor) SwitchToUser(ctx context.Context, target ids.UserID) error {
	s.lock.Acquire()
	defer s.lock.Release()
	if _, err := s.Users.StartUser(ctx, target, target, false); err != nil {
		return err
	}
	return s.Users.SwitchUser(ctx, target)
}

func intentToMap(intent *external.Intent) map[string]any {
	return map[string]any{
		"action":    intent.Action,
		"component": intent.ResolvedComponent,
		"extras":    intent.Extras,
	}
}

func hintFromOptions(options map[string]any) display.Hint {
	if options == nil {
		return display.HintNone
	}
	if h, ok := options["windowingModeHint"].(display.Hint); ok {
		return h
	}
	return display.HintNone
}

// maybeInterceptHeavyweight implements spec.md §4.D's single-heavyweight-
// process policy: a launch targeting a different heavyweight application
// than the one already running is redirected to a pending confirmation
// instead of proceeding, with the original intent parked as a deferred
// sender. Returns true if the caller's launch was intercepted.
func (s *Supervisor) maybeInterceptHeavyweight(intent *external.Intent, options map[string]any, user ids.UserID, info *external.ActivityInfo) bool {
	if !s.cfg.HeavyweightPolicyEnabled || !info.Heavyweight {
		return false
	}
	candidate := ids.ProcessKey{ProcessName: info.ProcessName}
	if s.heavyweight == (ids.ProcessKey{}) || s.heavyweight == candidate {
		s.heavyweight = candidate
		return false
	}
	s.pendingHeavyweight = &pendingHeavyweight{intent: intent, options: options, user: user, info: info}
	log.Infof("stacksupervisor: heavyweight launch of %s deferred behind confirmation, current heavyweight is %s", candidate, s.heavyweight)
	return true
}

// ConfirmHeavyweightSwitch resolves a pending heavyweight-switch
// confirmation. If proceed is true, the previous heavyweight process is
// killed and the deferred intent is replayed; otherwise it is discarded.
func (s *Supervisor) ConfirmHeavyweightSwitch(ctx context.Context, proceed bool) (*StartResult, error) {
	s.lock.Acquire()
	pending := s.pendingHeavyweight
	s.pendingHeavyweight = nil
	old := s.heavyweight
	s.lock.Release()

	if pending == nil {
		return nil, nil
	}
	if !proceed {
		return nil, nil
	}
	if old != (ids.ProcessKey{}) {
		if err := s.Processes.Kill(ctx, old, "heavyweight-switch"); err != nil {
			log.Warningf("stacksupervisor: killing prior heavyweight process %s: %v", old, err)
		}
	}
	s.lock.Acquire()
	s.heavyweight = ids.ProcessKey{ProcessName: pending.info.ProcessName}
	s.lock.Release()
	result, err := s.StartActivityMayWait(ctx, pending.intent, pending.options, pending.user)
	return &result, err
}

// StartActivities implements spec.md §4.D's start_activities: a batch
// launch where each intermediate activity becomes the resultTo of the
// next, short-circuiting on the first non-success result.
func (s *Supervisor) StartActivities(ctx context.Context, intents []*external.Intent, options map[string]any, user ids.UserID) ([]StartResult, error) {
	var results []StartResult
	for _, intent := range intents {
		res, err := s.StartActivityMayWait(ctx, intent, options, user)
		results = append(results, res)
		if err != nil || (res.Outcome != StartOutcomeSuccess && res.Outcome != StartOutcomeTaskToFront) {
			return results, err
		}
	}
	return results, nil
}

// onProcessAttach is wired as processregistry.Registry.OnAttach; it is
// invoked with the supervisor lock already held.
func (s *Supervisor) onProcessAttach(key ids.ProcessKey) {
	s.attachApplicationLocked(context.Background(), key)
}

// AttachApplication implements spec.md §4.D's attach_application for a
// process that attached outside the RequestStart path (e.g. a
// pre-forked or test-simulated process registered synchronously).
func (s *Supervisor) AttachApplication(ctx context.Context, key ids.ProcessKey) error {
	s.lock.Acquire()
	defer s.lock.Release()
	return s.attachApplicationLocked(ctx, key)
}

func (s *Supervisor) attachApplicationLocked(ctx context.Context, key ids.ProcessKey) error {
	var firstErr error
	s.allStacks(func(st *stack.Stack) {
		if err := st.AttachApplication(ctx, s.deps(st.Display), key); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// HandleAppDied implements spec.md §4.D's handle_app_died: every stack
// finishes the activities it hosted in the dead process, unless an
// activity sits in the root task position with a restart already in
// flight (restarting == true skips those).
func (s *Supervisor) HandleAppDied(ctx context.Context, key ids.ProcessKey, restarting bool) error {
	s.lock.Acquire()
	defer s.lock.Release()

	var firstErr error
	s.allStacks(func(st *stack.Stack) {
		for _, tid := range append([]ids.TaskID{}, st.Tasks()...) {
			t := s.tasks[tid]
			if t == nil {
				continue
			}
			activities := t.Activities()
			var rootID ids.ActivityID
			hasRoot := len(activities) > 0
			if hasRoot {
				rootID = activities[0]
			}
			for _, aid := range append([]ids.ActivityID{}, activities...) {
				a := s.activities[aid]
				if a == nil || a.Process != key {
					continue
				}
				if restarting && hasRoot && aid == rootID {
					continue
				}
				if err := st.Finish(ctx, s.deps(st.Display), aid, activity.FinishReasonAppDied); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	})
	s.Processes.Remove(key)
	return firstErr
}

// ReportCrash implements the quick-crash rule's supervisor-facing half of
// spec.md §4.F/§7 (QuotaExceeded): a reported crash is recorded against
// key's ledger, and if that recording trips the quick-crash rule, every
// activity key is hosting is finished with reason 2nd-crash and the
// process is dropped from the registry, same as an app-died teardown.
// A RestartableForService outcome is not an error: the process keeps
// running and the caller should simply retry.
func (s *Supervisor) ReportCrash(ctx context.Context, key ids.ProcessKey, boundForegroundService bool, message, stackTrace string) (appcrash.Outcome, error) {
	s.lock.Acquire()
	defer s.lock.Release()

	rec := s.Processes.Record(key)
	var persistent, isolated bool
	if rec != nil {
		persistent, isolated = rec.Info.Persistent, rec.Info.Isolated
	}
	outcome := s.Crashes.RecordCrash(key, persistent, isolated, boundForegroundService, message, stackTrace)
	if !outcome.Bad {
		return outcome, nil
	}

	s.allStacks(func(st *stack.Stack) {
		for _, tid := range append([]ids.TaskID{}, st.Tasks()...) {
			t := s.tasks[tid]
			if t == nil {
				continue
			}
			for _, aid := range append([]ids.ActivityID{}, t.Activities()...) {
				a := s.activities[aid]
				if a == nil || a.Process != key {
					continue
				}
				_ = st.Finish(ctx, s.deps(st.Display), aid, activity.FinishReasonCrash)
			}
		}
	})
	s.Processes.Remove(key)
	return outcome, lifecycleerr.Wrapf(lifecycleerr.ErrQuotaExceeded, "%s: marked bad after quick crash: %s", key, message)
}

// CanDeliverBroadcastTo reports whether key may still receive a targeted
// broadcast; a process on the bad-process list has every such delivery
// refused per spec.md §4.F, independent of its activities already having
// been finished by ReportCrash.
func (s *Supervisor) CanDeliverBroadcastTo(key ids.ProcessKey) bool {
	s.lock.Acquire()
	defer s.lock.Release()
	return !s.Crashes.IsBad(key)
}

// ShutdownLocked implements spec.md §4.D's shutdown_locked: initiate
// sleep (pause) on every resumed/pausing activity across every stack and
// wait, bounded by timeout, until all have settled. Stack settlement is
// fanned out with errgroup since each stack's pause is independent.
func (s *Supervisor) ShutdownLocked(ctx context.Context, timeout time.Duration) error {
	s.lock.Acquire()
	var targets []*stack.Stack
	s.allStacks(func(st *stack.Stack) {
		if st.ResumedActivity != ids.InvalidActivityID || st.PausingActivity != ids.InvalidActivityID {
			targets = append(targets, st)
		}
	})
	deps := map[ids.DisplayID]stack.Deps{}
	for _, st := range targets {
		if _, ok := deps[st.Display]; !ok {
			deps[st.Display] = s.deps(st.Display)
		}
	}
	for _, st := range targets {
		if err := st.GoToSleep(ctx, deps[st.Display]); err != nil {
			log.Warningf("stacksupervisor: shutdown sleep of stack %s: %v", st.ID, err)
		}
	}
	s.lock.Release()

	g, gctx := errgroup.WithContext(ctx)
	deadline := supervisorlock.NewDeadline(s.clk, timeout)
	for _, st := range targets {
		st := st
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			s.lock.Acquire()
			settled := s.lock.WaitUntil(deadline, func() bool {
				return st.ResumedActivity == ids.InvalidActivityID && st.PausingActivity == ids.InvalidActivityID
			})
			s.lock.Release()
			if !settled {
				return lifecycleerr.Wrapf(lifecycleerr.ErrTimeout, "shutdown_locked: stack %s did not settle", st.ID)
			}
			return nil
		})
	}
	return g.Wait()
}
