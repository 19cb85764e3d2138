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

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stat is a point-in-time snapshot of the container's counters.
type Stat struct {
	// Size is the number of items across the three segments.
	Size uint64

	// TailUpdateTime is the update time of the overall tail, the first
	// candidate an eviction walk would consider.
	TailUpdateTime int64

	// LruRefreshTime is the effective promotion throttle in seconds.
	LruRefreshTime uint32

	// CounterBytes is the byte footprint of the frequency counters.
	CounterBytes uint64

	// The remaining fields are reserved for downstream consumers that
	// expect per-queue breakdowns from other policies; they are always
	// zero here.
	NumHotItems  uint64
	NumColdItems uint64
	NumWarmItems uint64
	NumTailItems uint64
}

func (s Stat) String() string {
	return fmt.Sprintf("size: %s refresh-time: %ds counters: %s",
		humanize.Comma(int64(s.Size)), s.LruRefreshTime, humanize.IBytes(s.CounterBytes))
}

// EvictionAgeStat describes the age profile of the protected segment.
type EvictionAgeStat struct {
	// OldestElementAge is the seconds since the protected tail was last
	// promoted, or 0 when the segment is empty.
	OldestElementAge int64

	// ProjectedAge is the oldest age remaining after evicting the
	// requested number of items from the protected tail.
	ProjectedAge int64

	// Size is the protected segment's population.
	Size uint64
}
