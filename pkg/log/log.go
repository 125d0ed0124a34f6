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

// Package log provides the ambient structured logging used by every
// subsystem of the supervisor. Callers use the package-level functions
// rather than constructing their own logger, mirroring the global-logger
// convention the rest of the codebase expects.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	logger = logrus.New()
)

func init() {
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
}

// SetLevel adjusts the minimum level logged. It accepts the same names as
// logrus.ParseLevel ("debug", "info", "warning", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(lvl)
	return nil
}

// AlsoLogToStderr duplicates all output to stderr in addition to whatever
// sink is already configured, the way runsc's -alsologtostderr flag works.
func AlsoLogToStderr() {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(io.MultiWriter(logger.Out, os.Stderr))
}

// SetOutput replaces the log sink entirely. Tests use this to capture
// output into a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

func entry() *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return logrus.NewEntry(logger)
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) { entry().Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { entry().Infof(format, args...) }

// Warningf logs at warning level.
func Warningf(format string, args ...any) { entry().Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { entry().Errorf(format, args...) }

// WithField returns an entry carrying a structured field, for call sites
// that want to attach e.g. an activity or process id to several log lines.
func WithField(key string, value any) *logrus.Entry {
	return entry().WithField(key, value)
}
