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

// Package externaltest provides hand-rolled fakes of the external
// collaborator interfaces, for use by every other package's tests. This
// mirrors the teacher's own preference for small hand-written fakes over a
// mocking framework.
package externaltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/ids"
)

// Resolver is a fake PackageResolver backed by a static map keyed by
// action.
type Resolver struct {
	mu    sync.Mutex
	Infos map[string]*external.ActivityInfo
	Err   error
}

// NewResolver returns an empty fake resolver.
func NewResolver() *Resolver {
	return &Resolver{Infos: map[string]*external.ActivityInfo{}}
}

// Register maps an action string to the ActivityInfo it resolves to.
func (r *Resolver) Register(action string, info *external.ActivityInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Infos[action] = info
}

// ResolveIntent implements external.PackageResolver.
func (r *Resolver) ResolveIntent(_ context.Context, intent *external.Intent, _ string, _ uint32, _ ids.UserID) (*external.ActivityInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	info, ok := r.Infos[intent.Action]
	if !ok {
		return nil, fmt.Errorf("no activity registered for action %q", intent.Action)
	}
	intent.ResolvedComponent = info.ComponentPkg + "/" + info.ComponentClass
	return info, nil
}

// WindowManager is a fake that records calls instead of touching any real
// surface.
type WindowManager struct {
	mu         sync.Mutex
	Visibility map[ids.ActivityID]bool
	Frozen     bool
	CurrentUser ids.UserID
}

// NewWindowManager returns an empty fake window manager.
func NewWindowManager() *WindowManager {
	return &WindowManager{Visibility: map[ids.ActivityID]bool{}}
}

func (w *WindowManager) SetVisibility(token ids.ActivityID, visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Visibility[token] = visible
}

func (w *WindowManager) UpdateOrientation(ids.ActivityID) error { return nil }
func (w *WindowManager) DeferSurfaceLayout()                    {}
func (w *WindowManager) ContinueSurfaceLayout()                 {}
func (w *WindowManager) DismissKeyguard()                       {}

func (w *WindowManager) StartFreezingScreen(string, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Frozen = true
}

func (w *WindowManager) StopFreezingScreen() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Frozen = false
}

func (w *WindowManager) LockNow() {}

func (w *WindowManager) SetCurrentUser(user ids.UserID, _ []ids.UserID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.CurrentUser = user
}

// IsVisible reports the last value SetVisibility recorded for token.
func (w *WindowManager) IsVisible(token ids.ActivityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Visibility[token]
}

// ProcessLauncher is a fake that hands back a synthesized pid.
type ProcessLauncher struct {
	mu      sync.Mutex
	nextPid int
	Fail    map[ids.ProcessKey]error
	Started []ids.ProcessKey
	Killed  []ids.ProcessKey
}

// NewProcessLauncher returns a fake launcher starting pid allocation at 100.
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{nextPid: 100, Fail: map[ids.ProcessKey]error{}}
}

func (p *ProcessLauncher) StartProcess(_ context.Context, key ids.ProcessKey, _ external.AppInfo, _, _ string) (external.ProcessHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.Fail[key]; ok && err != nil {
		return external.ProcessHandle{}, err
	}
	p.nextPid++
	p.Started = append(p.Started, key)
	return external.ProcessHandle{Key: key, Pid: p.nextPid}, nil
}

func (p *ProcessLauncher) KillProcess(_ context.Context, handle external.ProcessHandle, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Killed = append(p.Killed, handle.Key)
	return nil
}

// Storage is a fake StorageService; any (user, token) pair other than an
// explicitly registered failure unlocks successfully.
type Storage struct {
	mu      sync.Mutex
	unlocked map[ids.UserID]bool
	FailFor map[ids.UserID]error
}

// NewStorage returns a fake storage service with nothing unlocked yet.
func NewStorage() *Storage {
	return &Storage{unlocked: map[ids.UserID]bool{}, FailFor: map[ids.UserID]error{}}
}

func (s *Storage) UnlockUserKey(_ context.Context, user ids.UserID, _ int64, _, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailFor[user]; ok && err != nil {
		return err
	}
	s.unlocked[user] = true
	return nil
}

func (s *Storage) IsUserKeyUnlocked(user ids.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked[user]
}

// Broadcaster is a fake BroadcastDispatcher that immediately completes
// every broadcast and records the order intents were sent in.
type Broadcaster struct {
	mu  sync.Mutex
	Log []string
}

// NewBroadcaster returns an empty fake broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) BroadcastIntent(_ context.Context, intent *external.Intent, resultTo chan<- error, _ string, user ids.UserID) error {
	b.mu.Lock()
	b.Log = append(b.Log, fmt.Sprintf("%s@%s", intent.Action, user))
	b.mu.Unlock()
	if resultTo != nil {
		resultTo <- nil
	}
	return nil
}
