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

// Package sysfswriter serializes the two writes spec.md §4.E/§6 describes
// for the kernel low-memory killer: two CSV lines (the min-free page
// counts, then the adjustments, one entry per OOM table level), and a
// single "extra free kbytes" value. A Writer built with New takes a file
// lock around both so that OOM-policy recomputation from different
// processes never interleaves a partial write.
package sysfswriter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/android-os/activitysupervisor/pkg/config"
)

// Writer owns the two sysfs-shaped destinations the low-memory killer
// reads from. In production these are real files under /sys; tests
// substitute in-memory buffers via NewWriterTo.
type Writer struct {
	minFreeAdj io.Writer
	extraFree  io.Writer
	lock       *flock.Flock
}

// New opens the real sysfs nodes at the given paths, guarded by a flock
// file alongside them so writers across processes serialize too.
func New(minFreeAdjPath, extraFreeKBPath, lockPath string) (*Writer, error) {
	minFree, err := os.OpenFile(minFreeAdjPath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening minfree/adj sysfs node: %w", err)
	}
	extraFree, err := os.OpenFile(extraFreeKBPath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening extra-free-kbytes sysfs node: %w", err)
	}
	return &Writer{minFreeAdj: minFree, extraFree: extraFree, lock: flock.New(lockPath)}, nil
}

// NewWriterTo builds a Writer over arbitrary writers, for tests; no file
// lock is taken since there is nothing to share across processes.
func NewWriterTo(minFreeAdj, extraFree io.Writer) *Writer {
	return &Writer{minFreeAdj: minFreeAdj, extraFree: extraFree}
}

// pageSizeKB matches the platform's page size for the minfree-pages CSV,
// which is expressed in pages, not bytes.
const pageSizeKB = 4

// Write pushes a full OOM table and the screen-buffer reserve through to
// the two sysfs nodes, taking the file lock around both writes so a
// concurrent recomputation from another process cannot interleave one
// table's adjustments with another's min-free thresholds.
func (w *Writer) Write(table []config.OOMLevel, extraFreeKB int) error {
	if w.lock != nil {
		if err := w.lock.Lock(); err != nil {
			return fmt.Errorf("locking sysfs writer: %w", err)
		}
		defer w.lock.Unlock()
	}

	minFreePages := make([]string, len(table))
	adjustments := make([]string, len(table))
	for i, lvl := range table {
		minFreePages[i] = fmt.Sprintf("%d", lvl.MinFreeHighRAMKB/pageSizeKB)
		adjustments[i] = fmt.Sprintf("%d", lvl.Adjustment)
	}
	line := strings.Join(minFreePages, ",") + "\n" + strings.Join(adjustments, ",") + "\n"
	if _, err := io.WriteString(w.minFreeAdj, line); err != nil {
		return fmt.Errorf("writing minfree/adj table: %w", err)
	}
	if _, err := io.WriteString(w.extraFree, fmt.Sprintf("%d\n", extraFreeKB)); err != nil {
		return fmt.Errorf("writing extra-free-kbytes: %w", err)
	}
	return nil
}
