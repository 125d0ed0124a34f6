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

// Package usercontroller implements component G: user start/stop/switch,
// the bounded running-user LRU, the two-phase shutdown broadcast, and the
// unlock flow of spec.md §4.G.
package usercontroller

import (
	"context"
	"sort"
	"time"

	"github.com/google/btree"
	"golang.org/x/sync/errgroup"

	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/lifecycleerr"
	"github.com/android-os/activitysupervisor/pkg/log"
)

// State is one of the user lifecycle states of spec.md §4.G.
type State int

const (
	Booting State = iota
	RunningLocked
	Running
	Stopping
	Shutdown
)

func (s State) String() string {
	switch s {
	case Booting:
		return "BOOTING"
	case RunningLocked:
		return "RUNNING_LOCKED"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// User is a logical account partition's bookkeeping record.
type User struct {
	ID             ids.UserID
	ProfileGroupID ids.UserID // own id for a non-profile user
	Ephemeral      bool

	state         State
	priorState    State // remembered across a STOPPING that gets reverted
	lastForeground time.Time
}

// State returns the user's current lifecycle state.
func (u *User) State() State { return u.state }

// SwitchObserver is notified when the foreground user is about to change,
// per spec.md §4.G's onUserSwitching fan-out.
type SwitchObserver interface {
	OnUserSwitching(ctx context.Context, from, to ids.UserID) error
}

// lruItem orders running users by last-foreground time for eviction when
// MaxRunningUsers is exceeded.
type lruItem struct {
	lastForeground time.Time
	id             ids.UserID
}

func (a lruItem) Less(than btree.Item) bool {
	b := than.(lruItem)
	if !a.lastForeground.Equal(b.lastForeground) {
		return a.lastForeground.Before(b.lastForeground)
	}
	return a.id < b.id
}

// Controller is the user-lifecycle coordinator of component G. Like its
// sibling components it assumes the supervisor lock is held for the
// duration of every method call.
type Controller struct {
	users       map[ids.UserID]*User
	runningLRU  *btree.BTree
	current     ids.UserID

	cfg         *config.Config
	clk         clock.Clock
	storage     external.StorageService
	broadcaster external.BroadcastDispatcher
	wm          external.WindowManager

	observers []SwitchObserver

	// OnHomeToFront is invoked once a switch's observer fan-out settles,
	// so the stack supervisor can move the new user's home stack to the
	// front. Kept as a callback rather than an import to avoid a cycle
	// with pkg/stacksupervisor.
	OnHomeToFront func(user ids.UserID)
}

// New creates a controller with only the system user running.
func New(cfg *config.Config, clk clock.Clock, storage external.StorageService, broadcaster external.BroadcastDispatcher, wm external.WindowManager) *Controller {
	c := &Controller{
		users:       map[ids.UserID]*User{},
		runningLRU:  btree.New(16),
		current:     ids.SystemUserID,
		cfg:         cfg,
		clk:         clk,
		storage:     storage,
		broadcaster: broadcaster,
		wm:          wm,
	}
	sys := &User{ID: ids.SystemUserID, ProfileGroupID: ids.SystemUserID, state: Running, lastForeground: clk.Now()}
	c.users[ids.SystemUserID] = sys
	c.runningLRU.ReplaceOrInsert(lruItem{lastForeground: sys.lastForeground, id: sys.ID})
	return c
}

// AddObserver registers a switch observer; evaluated in registration
// order during the onUserSwitching fan-out.
func (c *Controller) AddObserver(o SwitchObserver) { c.observers = append(c.observers, o) }

// CurrentUser returns the foreground user.
func (c *Controller) CurrentUser() ids.UserID { return c.current }

// User returns a user's record, or nil.
func (c *Controller) User(id ids.UserID) *User { return c.users[id] }

// Users returns every tracked user, sorted by ID for deterministic
// diagnostic output (pkg/dump's consumer).
func (c *Controller) Users() []*User {
	out := make([]*User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartUser implements the BOOTING entry point of spec.md §4.G. A start
// targeting a user mid-STOPPING (before its shutdown broadcast completes)
// reverts to the user's prior state instead of re-booting; a start
// targeting a SHUTDOWN user re-enters BOOTING.
func (c *Controller) StartUser(ctx context.Context, id ids.UserID, profileGroup ids.UserID, ephemeral bool) (*User, error) {
	if u, ok := c.users[id]; ok {
		switch u.state {
		case Stopping:
			u.state = u.priorState
			log.Infof("usercontroller: %s start reverted STOPPING to %s", id, u.state)
			return u, nil
		case Shutdown:
			u.state = Booting
		default:
			return u, nil
		}
		return u, nil
	}

	if err := c.evictIfOverLimit(); err != nil {
		return nil, err
	}

	u := &User{ID: id, ProfileGroupID: profileGroup, Ephemeral: ephemeral, state: Booting, lastForeground: c.clk.Now()}
	c.users[id] = u
	u.state = RunningLocked
	c.runningLRU.ReplaceOrInsert(lruItem{lastForeground: u.lastForeground, id: id})
	log.Infof("usercontroller: %s booted to RUNNING_LOCKED", id)
	return u, nil
}

// evictIfOverLimit stops the least-recently-foregrounded eligible user if
// starting one more would exceed MaxRunningUsers. The system user and the
// current user are never eligible (spec.md §4.G).
func (c *Controller) evictIfOverLimit() error {
	if c.runningLRU.Len() < c.cfg.MaxRunningUsers {
		return nil
	}
	var victim ids.UserID
	found := false
	c.runningLRU.Ascend(func(i btree.Item) bool {
		item := i.(lruItem)
		if item.id == ids.SystemUserID || item.id == c.current {
			return true
		}
		victim = item.id
		found = true
		return false
	})
	if !found {
		return nil
	}
	return c.StopUser(context.Background(), victim, false)
}

// UnlockUser implements spec.md §4.G's unlock flow: storage is unlocked
// with the caller-supplied token, the user transitions RUNNING_LOCKED to
// RUNNING, and USER_UNLOCKED (and, for profiles, MANAGED_PROFILE_UNLOCKED
// to the parent) is broadcast.
func (c *Controller) UnlockUser(ctx context.Context, id ids.UserID, serial int64, token, secret []byte) error {
	u, ok := c.users[id]
	if !ok {
		return lifecycleerr.Wrapf(lifecycleerr.ErrUserOpInvalid, "unlock: unknown user %s", id)
	}
	if u.state != RunningLocked {
		return nil
	}
	if err := c.storage.UnlockUserKey(ctx, id, serial, token, secret); err != nil {
		return lifecycleerr.Wrapf(err, "unlock: storage service refused user %s", id)
	}
	u.state = Running
	c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "USER_UNLOCKED"}, nil, "", id)
	if u.ProfileGroupID != id {
		c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "MANAGED_PROFILE_UNLOCKED"}, nil, "", u.ProfileGroupID)
	}
	return nil
}

// relatedRunningUsers returns every other currently-running user sharing
// id's profile-group.
func (c *Controller) relatedRunningUsers(id ids.UserID) []*User {
	group := c.users[id].ProfileGroupID
	var related []*User
	for uid, u := range c.users {
		if uid == id {
			continue
		}
		if u.ProfileGroupID != group {
			continue
		}
		if u.state == Running || u.state == RunningLocked {
			related = append(related, u)
		}
	}
	return related
}

// StopUser implements the related-users-stop rule and the two-phase
// shutdown broadcast of spec.md §4.G.
func (c *Controller) StopUser(ctx context.Context, id ids.UserID, force bool) error {
	if id == ids.SystemUserID {
		return lifecycleerr.Wrapf(lifecycleerr.ErrUserOpInvalid, "cannot stop the system user")
	}
	if id == c.current && !force {
		return lifecycleerr.Wrapf(lifecycleerr.ErrUserOpInvalid, "cannot stop the current user")
	}

	targets := append([]*User{c.users[id]}, c.relatedRunningUsers(id)...)
	for _, u := range targets {
		if u == nil {
			continue
		}
		if (u.ID == ids.SystemUserID || u.ID == c.current) && !force {
			return lifecycleerr.Wrap(lifecycleerr.ErrRelatedUsersCannotStop, "related users cannot be stopped")
		}
	}
	for _, u := range targets {
		if u == nil || u.ID == ids.SystemUserID || u.ID == c.current {
			continue
		}
		c.beginStop(ctx, u)
	}
	return nil
}

// beginStop runs the two-phase shutdown broadcast of spec.md §4.G. Each
// phase's delivery completes before the next begins, matching "on
// delivery completion, transition..."; a StartUser racing in between the
// two phases (observed via u.state no longer being Stopping) aborts the
// second phase instead of reviving a user that asked to restart.
func (c *Controller) beginStop(ctx context.Context, u *User) {
	u.priorState = u.state
	u.state = Stopping
	log.Infof("usercontroller: %s entering STOPPING", u.ID)

	c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "user-stopping"}, nil, "INTERACT_ACROSS_USERS", u.ID)
	if u.state != Stopping {
		return // reverted by a concurrent StartUser
	}
	u.state = Shutdown

	c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "shutdown"}, nil, "", u.ID)
	c.finishUserStop(u)
}

// finishUserStop removes the user from the running-user LRU once the
// shutdown broadcast completes; the user record stays, in SHUTDOWN. It
// does not finish the user's activities or kill its processes. Ephemeral
// users are deleted outright.
func (c *Controller) finishUserStop(u *User) {
	c.runningLRU.Delete(lruItem{lastForeground: u.lastForeground, id: u.ID})
	if u.Ephemeral {
		delete(c.users, u.ID)
		log.Infof("usercontroller: ephemeral user %s deleted", u.ID)
		return
	}
	log.Infof("usercontroller: %s stopped", u.ID)
}

// SwitchUser implements spec.md §4.G's switch protocol: freeze the
// screen, fan out onUserSwitching to every observer bounded by
// UserSwitchTimeoutMillis, then move the new user's home stack to front
// and broadcast the foreground/background/switched triad.
func (c *Controller) SwitchUser(parent context.Context, target ids.UserID) error {
	if _, ok := c.users[target]; !ok {
		return lifecycleerr.Wrapf(lifecycleerr.ErrUserOpInvalid, "switch: unknown user %s", target)
	}
	from := c.current
	c.wm.StartFreezingScreen("switch-enter", "switch-exit")

	ctx, cancel := context.WithTimeout(parent, c.cfg.UserSwitchTimeout())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, obs := range c.observers {
		obs := obs
		g.Go(func() error { return obs.OnUserSwitching(gctx, from, target) })
	}
	if err := g.Wait(); err != nil {
		log.Warningf("usercontroller: switch observer fan-out returned %v, continuing anyway", err)
	}

	c.continueUserSwitch(parent, from, target)
	return nil
}

// continueUserSwitch is CONTINUE_USER_SWITCH: it is reached whether the
// observer fan-out acked in time or the deadline simply expired, per
// spec.md §4.G ("when all observers ack, or the timeout fires").
func (c *Controller) continueUserSwitch(ctx context.Context, from, to ids.UserID) {
	c.current = to
	u := c.users[to]
	if u != nil {
		u.lastForeground = c.clk.Now()
		c.runningLRU.ReplaceOrInsert(lruItem{lastForeground: u.lastForeground, id: to})
	}
	c.wm.StopFreezingScreen()
	c.wm.SetCurrentUser(to, nil)

	if c.OnHomeToFront != nil {
		c.OnHomeToFront(to)
	}

	c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "USER_BACKGROUND"}, nil, "", from)
	c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "USER_FOREGROUND"}, nil, "", to)
	c.broadcaster.BroadcastIntent(ctx, &external.Intent{Action: "USER_SWITCHED"}, nil, "", to)
	log.Infof("usercontroller: switched from %s to %s", from, to)
}
