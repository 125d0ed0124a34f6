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

package config

import "testing"

func TestBlendedOOMTableUsesLargerScale(t *testing.T) {
	cfg := Default()

	// Low memory, large display: display scale should dominate and push
	// min-free thresholds toward the high-RAM profile.
	lowMemBigDisplay := cfg.BlendedOOMTable(300, 1280, 800)
	// High memory, tiny display: memory scale dominates instead.
	highMemSmallDisplay := cfg.BlendedOOMTable(700, 320, 480)

	for i := range lowMemBigDisplay {
		if lowMemBigDisplay[i].MinFreeHighRAMKB != highMemSmallDisplay[i].MinFreeHighRAMKB {
			t.Fatalf("bucket %d: expected symmetric blend at opposite extremes, got %d vs %d",
				i, lowMemBigDisplay[i].MinFreeHighRAMKB, highMemSmallDisplay[i].MinFreeHighRAMKB)
		}
	}

	// Both small should produce the low-RAM baseline (scale 0).
	allLow := cfg.BlendedOOMTable(300, 320, 480)
	for i, lvl := range allLow {
		if lvl.MinFreeHighRAMKB != cfg.OOMTable[i].MinFreeLowRAMKB {
			t.Fatalf("bucket %d: expected baseline min-free %d, got %d", i, cfg.OOMTable[i].MinFreeLowRAMKB, lvl.MinFreeHighRAMKB)
		}
	}
}

func TestScreenBufferReserveKB(t *testing.T) {
	got := ScreenBufferReserveKB(1280, 800)
	want := 3 * 1280 * 800 * 4 / 1024
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxRunningUsers != Default().MaxRunningUsers {
		t.Fatalf("expected default config")
	}
}
