/*
 * Copyright 2024 The wtinylfu Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wtinylfu

import "github.com/pkg/errors"

// ErrInvalidConfig is wrapped by all configuration validation failures, both
// at construction and from SetConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the tunables of a Container. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// DefaultLruRefreshTime is the floor, in seconds, of the promotion
	// throttle: an item is moved to the head of its list at most once per
	// refresh interval regardless of how often it is accessed. The default
	// of 60s keeps contention on the container lock down.
	DefaultLruRefreshTime uint32 `json:"defaultLruRefreshTime"`

	// LruRefreshTime is the effective refresh time the container starts
	// with (DefaultConfig sets it equal to DefaultLruRefreshTime) and, when
	// reconfiguration is enabled, tracks a ratio of the protected tail's age.
	LruRefreshTime uint32 `json:"lruRefreshTime"`

	// LruRefreshRatio scales the oldest protected element's age into a
	// refresh time. 0 disables the scaling and the refresh time stays at
	// its default.
	LruRefreshRatio float64 `json:"lruRefreshRatio"`

	// UpdateOnWrite and UpdateOnRead gate whether the corresponding access
	// mode can promote an item.
	UpdateOnWrite bool `json:"updateOnWrite"`
	UpdateOnRead  bool `json:"updateOnRead"`

	// TryLockUpdate makes RecordAccess attempt the container lock without
	// blocking; on contention the access is dropped and RecordAccess
	// returns false. Recommended under heavy concurrency.
	TryLockUpdate bool `json:"tryLockUpdate"`

	// WindowToCacheSizeRatio is the multiplier for the frequency window
	// given the cache size. With the default of 32, counters are first
	// halved after 32 x capacity inserts and promotion-driving accesses; the
	// window count is halved along with them, so later halvings follow every
	// 16 x capacity such accesses. Must be within [2, 128].
	WindowToCacheSizeRatio int `json:"windowToCacheSizeRatio"`

	// TinySizePercent is the size of the tiny cache as a percentage of the
	// total. Must be within [1, 50]. There is rarely a reason to move it
	// off the default of 1.
	TinySizePercent int `json:"tinySizePercent"`

	// ReconfigureIntervalSecs is the minimum interval between refresh-time
	// recomputations. 0 disables reconfiguration.
	ReconfigureIntervalSecs uint32 `json:"reconfigureIntervalSecs"`

	// NewcomerWinsOnTie makes a tiny-tail item beat a main-tail item whose
	// estimated frequency ties with it. A fine default, but for strict scan
	// patterns (each key touched exactly once) it guarantees misses, so
	// scan-heavy workloads should turn it off.
	NewcomerWinsOnTie bool `json:"newcomerWinsOnTie"`

	// ProtectionFreq is the estimated access frequency an item in probation
	// must exceed to be promoted into the protected segment.
	ProtectionFreq int64 `json:"protectionFreq"`

	// ProtectionSegmentSizePct is the protected segment's share of the main
	// cache, in percent. Must be within (0, 100].
	ProtectionSegmentSizePct int `json:"protectionSegmentSizePct"`
}

// DefaultConfig returns the configuration the original deployment tunings
// settled on: read-driven promotion throttled to once a minute, a 1% window,
// and an 80% protected segment.
func DefaultConfig() Config {
	return Config{
		DefaultLruRefreshTime:    60,
		LruRefreshTime:           60,
		LruRefreshRatio:          0,
		UpdateOnWrite:            false,
		UpdateOnRead:             true,
		TryLockUpdate:            false,
		WindowToCacheSizeRatio:   32,
		TinySizePercent:          1,
		ReconfigureIntervalSecs:  0,
		NewcomerWinsOnTie:        true,
		ProtectionFreq:           3,
		ProtectionSegmentSizePct: 80,
	}
}

// Validate rejects configurations whose segment sizing or frequency window
// would break the container's invariants.
func (c *Config) Validate() error {
	if c.TinySizePercent < 1 || c.TinySizePercent > 50 {
		return errors.Wrapf(ErrInvalidConfig,
			"tiny cache size %d%% must be between 1%% and 50%% of the total cache size",
			c.TinySizePercent)
	}
	if c.WindowToCacheSizeRatio < 2 || c.WindowToCacheSizeRatio > 128 {
		return errors.Wrapf(ErrInvalidConfig,
			"window to cache size ratio %d must be between 2 and 128",
			c.WindowToCacheSizeRatio)
	}
	if c.ProtectionSegmentSizePct <= 0 || c.ProtectionSegmentSizePct > 100 {
		return errors.Wrapf(ErrInvalidConfig,
			"protection segment size %d%% must be within (0, 100]",
			c.ProtectionSegmentSizePct)
	}
	return nil
}
