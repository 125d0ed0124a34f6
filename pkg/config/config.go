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

// Package config loads the supervisor's static configuration: the OOM
// threshold interpolation profiles, the bounded-concurrency limit on
// running users, and the crash-window constants. Values come from a TOML
// file with hard-coded defaults matching the spec when no file is given,
// the way runsc/config layers flag defaults under an optional config file.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"
)

// OOMBucket names an OOM-adjustment priority bucket, listed below highest
// priority first; the levels of Config.OOMTable are the ones exported to
// the low-memory killer.
type OOMBucket string

const (
	BucketPersistent OOMBucket = "PERSISTENT"
	BucketForeground OOMBucket = "FOREGROUND"
	BucketVisible    OOMBucket = "VISIBLE"
	BucketPerceptible OOMBucket = "PERCEPTIBLE"
	BucketBackup     OOMBucket = "BACKUP"
	BucketService    OOMBucket = "SERVICE"
	BucketHome       OOMBucket = "HOME"
	BucketPrevious   OOMBucket = "PREVIOUS"
	BucketServiceB   OOMBucket = "SERVICE_B"
	BucketCachedMin  OOMBucket = "CACHED_MIN"
	BucketCachedMax  OOMBucket = "CACHED_MAX"
)

// OOMLevel is one (adjustment, minFreeKB) pair of the low-memory-killer
// table, per spec.md §4.E.
type OOMLevel struct {
	Bucket     OOMBucket `toml:"bucket"`
	Adjustment int       `toml:"adjustment"`
	// MinFreeKB is expressed per profile (low-RAM, high-RAM); the
	// effective value is interpolated by BlendedOOMTable.
	MinFreeLowRAMKB  int `toml:"min_free_low_ram_kb"`
	MinFreeHighRAMKB int `toml:"min_free_high_ram_kb"`
}

// Config is the supervisor's static, rarely-changing configuration.
type Config struct {
	// MaxRunningUsers bounds concurrently running users (spec.md §4.G).
	MaxRunningUsers int `toml:"max_running_users"`

	// MinCrashIntervalSeconds is the quick-crash rule's minimum interval
	// between crashes before a process is considered to be crash-looping.
	MinCrashIntervalSeconds int `toml:"min_crash_interval_seconds"`

	// CrashWindowResetSeconds is the rolling window over which crash
	// counts are tallied.
	CrashWindowResetSeconds int `toml:"crash_window_reset_seconds"`

	// CrashCountLimit is the number of crashes allowed within the
	// rolling window before the process is marked bad.
	CrashCountLimit int `toml:"crash_count_limit"`

	// CrashDialogThrottleSeconds limits how often the user is shown an
	// error dialog for the same process.
	CrashDialogThrottleSeconds int `toml:"crash_dialog_throttle_seconds"`

	// PauseTimeoutMillis, StopTimeoutMillis, DestroyTimeoutMillis are the
	// deadline timers of spec.md §4.A/§4.B.
	PauseTimeoutMillis   int `toml:"pause_timeout_millis"`
	StopTimeoutMillis    int `toml:"stop_timeout_millis"`
	DestroyTimeoutMillis int `toml:"destroy_timeout_millis"`

	// LaunchTimeoutMillis bounds StartActivityMayWait.
	LaunchTimeoutMillis int `toml:"launch_timeout_millis"`

	// UserSwitchTimeoutMillis bounds the onUserSwitching observer
	// fan-out.
	UserSwitchTimeoutMillis int `toml:"user_switch_timeout_millis"`

	// TotalMemoryScaleLowMB / HighMB and DisplayAreaScaleLow / High are
	// the two interpolation endpoints of spec.md §4.E.
	TotalMemoryScaleLowMB  int `toml:"total_memory_scale_low_mb"`
	TotalMemoryScaleHighMB int `toml:"total_memory_scale_high_mb"`

	// OOMTable holds the six buckets, each carrying both its low-RAM and
	// high-RAM min-free thresholds; BlendedOOMTable interpolates between
	// them per entry.
	OOMTable []OOMLevel `toml:"oom_table"`

	// HeavyweightPolicyEnabled gates the single-heavyweight-process
	// interception of spec.md §4.D.
	HeavyweightPolicyEnabled bool `toml:"heavyweight_policy_enabled"`
}

// Default returns the spec's hard-coded defaults.
func Default() *Config {
	return &Config{
		MaxRunningUsers:            3,
		MinCrashIntervalSeconds:    60,
		CrashWindowResetSeconds:    60,
		CrashCountLimit:            2,
		CrashDialogThrottleSeconds: 30,
		PauseTimeoutMillis:         500,
		StopTimeoutMillis:          11000,
		DestroyTimeoutMillis:       10000,
		LaunchTimeoutMillis:        10000,
		UserSwitchTimeoutMillis:    3000,
		TotalMemoryScaleLowMB:      300,
		TotalMemoryScaleHighMB:     700,
		HeavyweightPolicyEnabled:   true,
		OOMTable: []OOMLevel{
			{Bucket: BucketPersistent, Adjustment: -1000, MinFreeLowRAMKB: 1024, MinFreeHighRAMKB: 1024},
			{Bucket: BucketForeground, Adjustment: 0, MinFreeLowRAMKB: 1536, MinFreeHighRAMKB: 3072},
			{Bucket: BucketVisible, Adjustment: 100, MinFreeLowRAMKB: 2560, MinFreeHighRAMKB: 6144},
			{Bucket: BucketPerceptible, Adjustment: 200, MinFreeLowRAMKB: 4096, MinFreeHighRAMKB: 9216},
			{Bucket: BucketBackup, Adjustment: 300, MinFreeLowRAMKB: 5632, MinFreeHighRAMKB: 12288},
			{Bucket: BucketCachedMin, Adjustment: 900, MinFreeLowRAMKB: 8192, MinFreeHighRAMKB: 24576},
		},
	}
}

// Load reads a TOML configuration file, falling back to Default() for any
// zero-valued field left unset in the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PauseTimeout, StopTimeout, DestroyTimeout, LaunchTimeout, and
// UserSwitchTimeout convert the millisecond fields to time.Duration for
// callers arming deadline timers.
func (c *Config) PauseTimeout() time.Duration {
	return time.Duration(c.PauseTimeoutMillis) * time.Millisecond
}

func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMillis) * time.Millisecond
}

func (c *Config) DestroyTimeout() time.Duration {
	return time.Duration(c.DestroyTimeoutMillis) * time.Millisecond
}

func (c *Config) LaunchTimeout() time.Duration {
	return time.Duration(c.LaunchTimeoutMillis) * time.Millisecond
}

func (c *Config) UserSwitchTimeout() time.Duration {
	return time.Duration(c.UserSwitchTimeoutMillis) * time.Millisecond
}

func (c *Config) MinCrashInterval() time.Duration {
	return time.Duration(c.MinCrashIntervalSeconds) * time.Second
}

func (c *Config) CrashWindowReset() time.Duration {
	return time.Duration(c.CrashWindowResetSeconds) * time.Second
}

func (c *Config) CrashDialogThrottle() time.Duration {
	return time.Duration(c.CrashDialogThrottleSeconds) * time.Second
}

// BlendedOOMTable interpolates the low-RAM and high-RAM profiles using the
// larger of the total-memory scale and the display-area scale, per
// spec.md §4.E ("The larger of the two scales drives the mix").
func (c *Config) BlendedOOMTable(totalMemoryMB int, displayWidth, displayHeight int) []OOMLevel {
	memScale := scaleFraction(float64(totalMemoryMB), float64(c.TotalMemoryScaleLowMB), float64(c.TotalMemoryScaleHighMB))
	areaScale := scaleFraction(float64(displayWidth*displayHeight), float64(320*480), float64(1280*800))
	mix := memScale
	if areaScale > mix {
		mix = areaScale
	}

	blended := deepcopy.Copy(c.OOMTable).([]OOMLevel)
	for i := range blended {
		lvl := &blended[i]
		lvl.MinFreeHighRAMKB = lvl.MinFreeLowRAMKB + int(mix*float64(lvl.MinFreeHighRAMKB-lvl.MinFreeLowRAMKB))
	}
	return blended
}

func scaleFraction(value, low, high float64) float64 {
	if high <= low {
		return 0
	}
	f := (value - low) / (high - low)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ScreenBufferReserveKB is the "3x width*height*4 bytes" screen-buffer
// reserve added as extra free kbytes, per spec.md §4.E.
func ScreenBufferReserveKB(width, height int) int {
	bytes := 3 * width * height * 4
	return bytes / 1024
}
