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

package apprpc

import (
	"context"
	"sync"

	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/pkg/errors"
)

// ErrRemoteDead is returned by a Simulated thread whose process has been
// marked dead; it stands in for a RemoteException from a dead binder peer.
var ErrRemoteDead = errors.New("remote exception: process is dead")

// Simulated is an in-process AppThread used by tests (and the demo CLI):
// calls are recorded and, unless the thread has been marked dead, a
// caller-supplied hook decides the completion callback to invoke
// synchronously, mirroring the near-instant turnaround of an in-process
// simulation while preserving the same call shape a real binder proxy
// would have.
type Simulated struct {
	mu   sync.Mutex
	dead bool

	OnLaunch  func(LaunchActivityRequest)
	OnResume  func(ids.ActivityID)
	OnPause   func(PauseActivityRequest)
	OnStop    func(ids.ActivityID)
	OnDestroy func(ids.ActivityID)
	OnCrash   func(string)

	Calls []string
}

// NewSimulated returns a live Simulated app thread with no hooks set; a
// caller that wants completion behavior must set the On* fields.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// MarkDead causes every subsequent call to fail with ErrRemoteDead.
func (s *Simulated) MarkDead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
}

func (s *Simulated) checkDead() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return ErrRemoteDead
	}
	return nil
}

func (s *Simulated) record(call string) {
	s.mu.Lock()
	s.Calls = append(s.Calls, call)
	s.mu.Unlock()
}

func (s *Simulated) ScheduleLaunchActivity(_ context.Context, req LaunchActivityRequest) error {
	if err := s.checkDead(); err != nil {
		return err
	}
	s.record("launch:" + req.Token.String())
	if s.OnLaunch != nil {
		s.OnLaunch(req)
	}
	return nil
}

func (s *Simulated) ScheduleResumeActivity(_ context.Context, token ids.ActivityID) error {
	if err := s.checkDead(); err != nil {
		return err
	}
	s.record("resume:" + token.String())
	if s.OnResume != nil {
		s.OnResume(token)
	}
	return nil
}

func (s *Simulated) SchedulePauseActivity(_ context.Context, req PauseActivityRequest) error {
	if err := s.checkDead(); err != nil {
		return err
	}
	s.record("pause:" + req.Token.String())
	if s.OnPause != nil {
		s.OnPause(req)
	}
	return nil
}

func (s *Simulated) ScheduleStopActivity(_ context.Context, token ids.ActivityID) error {
	if err := s.checkDead(); err != nil {
		return err
	}
	s.record("stop:" + token.String())
	if s.OnStop != nil {
		s.OnStop(token)
	}
	return nil
}

func (s *Simulated) ScheduleDestroyActivity(_ context.Context, token ids.ActivityID) error {
	if err := s.checkDead(); err != nil {
		return err
	}
	s.record("destroy:" + token.String())
	if s.OnDestroy != nil {
		s.OnDestroy(token)
	}
	return nil
}

func (s *Simulated) ScheduleCrash(_ context.Context, message string) error {
	if err := s.checkDead(); err != nil {
		return err
	}
	s.record("crash:" + message)
	if s.OnCrash != nil {
		s.OnCrash(message)
	}
	return nil
}
