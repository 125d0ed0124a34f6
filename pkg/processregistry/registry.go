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

// Package processregistry implements component E: the process table, its
// LRU recency order, and the OOM-adjustment bucket policy of spec.md
// §4.E. It satisfies pkg/stack.ProcessPort so a *Registry can be handed
// straight to a Stack without stack importing this package.
//
// Like pkg/activity and pkg/stack, Registry keeps no lock of its own: the
// supervisor lock already serializes every call, matching the teacher's
// single `pkg/sentry/control.Lifecycle` convention of one coarse lock
// guarding an entire collaborator graph. The one exception is the
// asynchronous process-start path, which necessarily runs off the lock
// while the external launcher does its (slow) work, and only reacquires
// it — via the caller-supplied Lock — to publish the result.
package processregistry

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/btree"

	"github.com/android-os/activitysupervisor/pkg/apprpc"
	"github.com/android-os/activitysupervisor/pkg/clock"
	"github.com/android-os/activitysupervisor/pkg/config"
	"github.com/android-os/activitysupervisor/pkg/external"
	"github.com/android-os/activitysupervisor/pkg/ids"
	"github.com/android-os/activitysupervisor/pkg/log"
	"github.com/android-os/activitysupervisor/pkg/supervisorlock"
	"github.com/android-os/activitysupervisor/pkg/sysfswriter"
)

// Record is a single hosting process's bookkeeping entry.
type Record struct {
	Key    ids.ProcessKey
	Handle external.ProcessHandle
	Info   external.AppInfo
	Thread apprpc.AppThread

	Bucket           config.OOMBucket
	Adjustment       int
	BoundAboveClient bool

	LastUsed   time.Time
	Activities map[ids.ActivityID]bool
}

// lruItem orders records for btree.BTree by (LastUsed, Key) so the least-
// recently-used process within a bucket sorts first, per spec.md §4.E's
// "LRU order within the same bucket decides kill victim selection."
type lruItem struct {
	lastUsed time.Time
	key      ids.ProcessKey
}

func (a lruItem) Less(than btree.Item) bool {
	b := than.(lruItem)
	if !a.lastUsed.Equal(b.lastUsed) {
		return a.lastUsed.Before(b.lastUsed)
	}
	return a.key.String() < b.key.String()
}

// Registry is the process table of component E.
type Registry struct {
	records map[ids.ProcessKey]*Record
	lru     *btree.BTree
	pending map[ids.ProcessKey]external.AppInfo

	launcher external.ProcessLauncher
	writer   *sysfswriter.Writer
	cfg      *config.Config
	clk      clock.Clock
	lock     *supervisorlock.Lock

	// DisplayWidth/DisplayHeight feed the OOM-policy display-area scale;
	// set once at startup from the primary display's metrics.
	TotalMemoryMB int
	DisplayWidth  int
	DisplayHeight int

	// OnAttach is invoked (with the supervisor lock already held) once a
	// requested process finishes starting, so the stack that asked for it
	// can re-run resume_top_activity.
	OnAttach func(ids.ProcessKey)
}

// New creates an empty process registry.
func New(launcher external.ProcessLauncher, writer *sysfswriter.Writer, cfg *config.Config, clk clock.Clock, lock *supervisorlock.Lock) *Registry {
	return &Registry{
		records:  map[ids.ProcessKey]*Record{},
		lru:      btree.New(32),
		pending:  map[ids.ProcessKey]external.AppInfo{},
		launcher: launcher,
		writer:   writer,
		cfg:      cfg,
		clk:      clk,
		lock:     lock,
	}
}

// RegisterAppInfo records what a ProcessKey should be started with before
// RequestStart is ever called for it; the resolver populates this at
// intent-resolution time.
func (r *Registry) RegisterAppInfo(key ids.ProcessKey, info external.AppInfo) {
	r.pending[key] = info
}

// IsRunning implements stack.ProcessPort.
func (r *Registry) IsRunning(key ids.ProcessKey) bool {
	_, ok := r.records[key]
	return ok
}

// AppThread implements stack.ProcessPort.
func (r *Registry) AppThread(key ids.ProcessKey) apprpc.AppThread {
	rec, ok := r.records[key]
	if !ok {
		return nil
	}
	return rec.Thread
}

// Record returns the process record for key, or nil.
func (r *Registry) Record(key ids.ProcessKey) *Record { return r.records[key] }

// Records returns every tracked process record, sorted by key for
// deterministic diagnostic output (pkg/dump's consumer).
func (r *Registry) Records() []*Record {
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// RequestStart implements stack.ProcessPort: it launches key
// asynchronously, retrying transient launcher failures with an
// exponential backoff, and reacquires the supervisor lock only to publish
// the result and invoke OnAttach.
func (r *Registry) RequestStart(key ids.ProcessKey) {
	info := r.pending[key]
	go func() {
		handle, thread, err := r.startWithRetry(key, info)

		r.lock.Acquire()
		defer r.lock.Release()
		defer r.lock.Broadcast()

		if err != nil {
			log.Errorf("processregistry: giving up starting %s: %v", key, err)
			return
		}
		r.attach(key, handle, info, thread)
	}()
}

// startWithRetry is the unlocked half of RequestStart; it never touches
// shared state, only the external launcher.
func (r *Registry) startWithRetry(key ids.ProcessKey, info external.AppInfo) (external.ProcessHandle, apprpc.AppThread, error) {
	var handle external.ProcessHandle
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 10 * time.Second

	op := func() error {
		h, err := r.launcher.StartProcess(context.Background(), key, info, "activity", key.ProcessName)
		if err != nil {
			return err
		}
		handle = h
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return external.ProcessHandle{}, nil, err
	}
	return handle, apprpc.NewSimulated(), nil
}

// attach registers a freshly started process; must be called with the
// supervisor lock held.
func (r *Registry) attach(key ids.ProcessKey, handle external.ProcessHandle, info external.AppInfo, thread apprpc.AppThread) {
	rec := &Record{
		Key:        key,
		Handle:     handle,
		Info:       info,
		Thread:     thread,
		Bucket:     config.BucketCachedMin,
		LastUsed:   r.clk.Now(),
		Activities: map[ids.ActivityID]bool{},
	}
	r.records[key] = rec
	r.lru.ReplaceOrInsert(lruItem{lastUsed: rec.LastUsed, key: key})
	log.Infof("processregistry: %s attached, pid=%d", key, handle.Pid)
	if r.OnAttach != nil {
		r.OnAttach(key)
	}
}

// AttachApplication is the synchronous counterpart used for simulated or
// pre-forked processes (used by the tests) that never go through
// RequestStart's goroutine. Caller must hold the supervisor lock.
func (r *Registry) AttachApplication(key ids.ProcessKey, handle external.ProcessHandle, info external.AppInfo, thread apprpc.AppThread) {
	r.attach(key, handle, info, thread)
}

// Touch updates a record's LRU position and its activity-hosting set.
// The stack supervisor does not call it when an activity becomes visible
// or resumed; only direct callers refresh a record this way.
func (r *Registry) Touch(key ids.ProcessKey, activity ids.ActivityID) {
	rec, ok := r.records[key]
	if !ok {
		return
	}
	r.lru.Delete(lruItem{lastUsed: rec.LastUsed, key: key})
	rec.LastUsed = r.clk.Now()
	rec.Activities[activity] = true
	r.lru.ReplaceOrInsert(lruItem{lastUsed: rec.LastUsed, key: key})
}

// Detach removes an activity from a process's hosted set; if the process
// now hosts nothing it remains in the registry (callers decide whether to
// kill it) but is eligible for CACHED-bucket reclamation.
func (r *Registry) Detach(key ids.ProcessKey, activity ids.ActivityID) {
	rec, ok := r.records[key]
	if !ok {
		return
	}
	delete(rec.Activities, activity)
}

// Remove deletes a process record entirely, e.g. after HandleAppDied.
func (r *Registry) Remove(key ids.ProcessKey) {
	rec, ok := r.records[key]
	if !ok {
		return
	}
	r.lru.Delete(lruItem{lastUsed: rec.LastUsed, key: key})
	delete(r.records, key)
}

// SetBucket assigns an explicit OOM bucket to a process, overriding the
// computed default; used for PERSISTENT/FOREGROUND/VISIBLE assignment
// driven by activity visibility, which this package does not itself
// observe.
func (r *Registry) SetBucket(key ids.ProcessKey, bucket config.OOMBucket) {
	if rec, ok := r.records[key]; ok {
		rec.Bucket = bucket
	}
}

// ApplyBindAboveClient drops key's effective adjustment by exactly one
// bucket, per spec.md §4.E's BIND_ABOVE_CLIENT rule. It has no effect on
// already-reserved system buckets (index 0, PERSISTENT).
func (r *Registry) ApplyBindAboveClient(key ids.ProcessKey) {
	rec, ok := r.records[key]
	if !ok {
		return
	}
	table := r.bucketOrder()
	for i, b := range table {
		if b == rec.Bucket && i > 0 {
			rec.Bucket = table[i-1]
			rec.BoundAboveClient = true
			return
		}
	}
}

func (r *Registry) bucketOrder() []config.OOMBucket {
	return []config.OOMBucket{
		config.BucketPersistent, config.BucketForeground, config.BucketVisible,
		config.BucketPerceptible, config.BucketBackup, config.BucketService,
		config.BucketHome, config.BucketPrevious, config.BucketServiceB,
		config.BucketCachedMin, config.BucketCachedMax,
	}
}

// RecomputeAndPublish blends the OOM table for the current memory/display
// profile and writes it to the sysfs nodes, per spec.md §4.E. It runs
// only when a caller invokes it; SetBucket and ApplyBindAboveClient do
// not trigger it.
func (r *Registry) RecomputeAndPublish() error {
	if r.writer == nil {
		return nil
	}
	table := r.cfg.BlendedOOMTable(r.TotalMemoryMB, r.DisplayWidth, r.DisplayHeight)
	extra := config.ScreenBufferReserveKB(r.DisplayWidth, r.DisplayHeight)
	return r.writer.Write(table, extra)
}

// LRUVictim returns the least-recently-used process whose bucket is
// bucket, or a zero ProcessKey and false if none exists. This is the
// "LRU order within the same bucket" tie-break of spec.md §4.E — the
// external killer consults it, this package only exposes the order.
func (r *Registry) LRUVictim(bucket config.OOMBucket) (ids.ProcessKey, bool) {
	var found ids.ProcessKey
	var ok bool
	r.lru.Ascend(func(i btree.Item) bool {
		item := i.(lruItem)
		rec := r.records[item.key]
		if rec != nil && rec.Bucket == bucket {
			found = item.key
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// Kill tears down a process via the external launcher, used both by the
// low-memory killer path and by a destroy-deadline enforcer.
func (r *Registry) Kill(ctx context.Context, key ids.ProcessKey, reason string) error {
	rec, ok := r.records[key]
	if !ok {
		return nil
	}
	err := r.launcher.KillProcess(ctx, rec.Handle, reason)
	r.Remove(key)
	return err
}
