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
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-metro"
)

const (
	// defaultCapacity is the initial capacity estimate the frequency
	// counters are sized for before the container has seen real load.
	defaultCapacity = 100

	// errorThreshold bounds the expected over-estimation of a frequency
	// count; the number of counters per row is derived from it.
	errorThreshold = 5

	// lruRefreshTimeCap caps the refresh time reconfiguration can reach.
	lruRefreshTimeCap = 900

	// metroSeed seeds the second key hash feeding the sketch's double
	// hashing scheme.
	metroSeed = 0x5bf0f7f2
)

// Container tracks a population of host-owned items across the tiny,
// probation and protected segments. It is safe for concurrent use; a single
// mutex serializes every mutation of the lists, the sketch and the window
// counters. The refresh time and the next reconfiguration time are atomics so
// the RecordAccess fast path can consult them without the lock.
type Container[T Node[T]] struct {
	mu    sync.Mutex
	lists [numSegments]dlist[T]

	// windowSize counts inserts and promotion-driving accesses; when it reaches
	// maxWindowSize the sketch counters are halved and it is itself halved.
	windowSize    uint64
	maxWindowSize uint64

	// capacity is the population the counters are currently sized for.
	capacity uint64

	accessFreq *cmSketch

	nextReconfigureTime atomic.Int64
	lruRefreshTime      atomic.Uint32

	// Write access to the config is serialized through the mutex. The
	// RecordAccess fast path reads the access-mode and try-lock knobs
	// without it; those reads may observe a config mid-swap, which is
	// harmless for boolean gates.
	config Config

	clock func() int64
}

// New creates an empty container with the given configuration.
func New[T Node[T]](cfg Config) (*Container[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container[T]{
		config: cfg,
		clock:  unixNow,
	}
	c.maybeGrowAccessCountersLocked()
	c.lruRefreshTime.Store(cfg.LruRefreshTime)
	c.scheduleReconfigure(c.clock())
	return c, nil
}

func unixNow() int64 { return time.Now().Unix() }

func (c *Container[T]) scheduleReconfigure(now int64) {
	if c.config.ReconfigureIntervalSecs == 0 {
		c.nextReconfigureTime.Store(math.MaxInt64)
		return
	}
	c.nextReconfigureTime.Store(now + int64(c.config.ReconfigureIntervalSecs))
}

// hashNode returns the two independent hashes of the item's key used to
// address the sketch.
func hashNode[T Node[T]](n T) (uint64, uint64) {
	key := n.Key()
	return xxhash.Sum64(key), metro.Hash64(key, metroSeed)
}

// lenLocked is the total population across the three segments.
func (c *Container[T]) lenLocked() int {
	return c.lists[SegmentTiny].len() +
		c.lists[SegmentProbation].len() +
		c.lists[SegmentProtected].len()
}

// maybeGrowAccessCountersLocked resizes the frequency counters once the
// population has outgrown the capacity they were sized for. The counters are
// rebuilt from zero; they are never shrunk.
func (c *Container[T]) maybeGrowAccessCountersLocked() {
	capacity := uint64(c.lenLocked())
	// Recreate the counters only once the population has doubled past the
	// capacity they were sized for.
	if 2*c.capacity > capacity {
		return
	}

	if capacity < defaultCapacity {
		capacity = defaultCapacity
	}
	c.capacity = capacity

	c.windowSize = 0
	c.maxWindowSize = c.capacity * uint64(c.config.WindowToCacheSizeRatio)

	// Counter count is e times the window size divided by the error
	// tolerance, rounded up to a power of two.
	numCounters := int64(math.Ceil(math.E * float64(c.maxWindowSize) / errorThreshold))
	c.accessFreq = newCmSketch(numCounters)
}

// updateFrequenciesLocked records one access in the sketch and drives the
// decay window. Halving the counts each time the window fills keeps items
// that were hot but have gone cold from looking hot forever.
func (c *Container[T]) updateFrequenciesLocked(n T) {
	h1, h2 := hashNode(n)
	c.accessFreq.Increment(h1, h2)
	c.windowSize++
	if c.windowSize == c.maxWindowSize {
		c.windowSize >>= 1
		c.accessFreq.Reset()
	}
}

// admitToProbation reports whether the tiny-tail item should displace the
// main-tail item, i.e. whether its estimated frequency wins. The tie-break
// knob is what separates hit-biased from scan-robust behavior.
func (c *Container[T]) admitToProbation(tinyNode, mainNode T) bool {
	t1, t2 := hashNode(tinyNode)
	m1, m2 := hashNode(mainNode)
	tinyFreq := c.accessFreq.Estimate(t1, t2)
	mainFreq := c.accessFreq.Estimate(m1, m2)
	if c.config.NewcomerWinsOnTie {
		return tinyFreq >= mainFreq
	}
	return tinyFreq > mainFreq
}

// maybePromoteTailLocked considers swapping the tiny tail with the probation
// tail when the tiny tail has proven the more frequent of the two.
func (c *Container[T]) maybePromoteTailLocked() {
	var zero T
	probationNode := c.lists[SegmentProbation].getTail()
	if probationNode == zero {
		return
	}
	tinyNode := c.lists[SegmentTiny].getTail()
	if tinyNode == zero {
		return
	}

	if c.admitToProbation(tinyNode, probationNode) {
		c.lists[SegmentTiny].remove(tinyNode)
		c.lists[SegmentProbation].linkAtHead(tinyNode)
		unmarkTiny(tinyNode)
		markTiny(probationNode)
		c.lists[SegmentProbation].remove(probationNode)
		c.lists[SegmentTiny].linkAtTail(probationNode)
		unmarkProbation(probationNode)
		markProbation(tinyNode)
		return
	}

	// A high-frequency item at the probation tail could block tiny
	// promotions indefinitely. Relocate it to the head instead.
	c.lists[SegmentProbation].moveToHead(probationNode)
}

// Add inserts the item at the head of the tiny cache and marks it as present.
// Returns false, leaving the item untouched, if it is already in the
// container.
func (c *Container[T]) Add(node T) bool {
	currTime := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if isLinked(node) {
		return false
	}

	c.lists[SegmentTiny].linkAtHead(node)
	markTiny(node)
	unmarkProbation(node)
	// Initialize the frequency count for this item.
	c.updateFrequenciesLocked(node)

	// If the tiny cache is over quota, unconditionally promote its tail to
	// the main cache.
	expectedSize := c.config.TinySizePercent * c.lenLocked() / 100
	if c.lists[SegmentTiny].len() > expectedSize {
		tailNode := c.lists[SegmentTiny].getTail()
		c.lists[SegmentTiny].remove(tailNode)
		c.lists[SegmentProbation].linkAtHead(tailNode)
		unmarkTiny(tailNode)
		markProbation(tailNode)
	} else {
		// With both tails in place, swap them if the tiny tail has the
		// higher frequency.
		c.maybePromoteTailLocked()
	}

	c.maybeGrowAccessCountersLocked()

	markLinked(node)
	node.EvictionHook().setUpdateTime(currTime)
	unmarkAccessed(node)
	return true
}

// RecordAccess notes that the item was accessed. Within the refresh time of
// the item's last update, an access to an item already marked accessed is
// dropped without taking the lock. Otherwise the item is moved
// to the head of its list, possibly promoted from probation into the
// protected segment, and its frequency count bumped. Returns true when the
// access was recorded.
func (c *Container[T]) RecordAccess(node T, mode AccessMode) bool {
	if (mode == AccessModeWrite && !c.config.UpdateOnWrite) ||
		(mode == AccessModeRead && !c.config.UpdateOnRead) {
		return false
	}

	curr := c.clock()
	h := node.EvictionHook()
	// Check if the item is still being tracked before committing to the
	// lock.
	if !h.isFlagSet(flagLinked) {
		return false
	}
	if curr < h.getUpdateTime()+int64(c.lruRefreshTime.Load()) && h.isFlagSet(flagAccessed) {
		return false
	}
	if !h.isFlagSet(flagAccessed) {
		h.setFlag(flagAccessed)
	}

	if c.config.TryLockUpdate {
		if !c.mu.TryLock() {
			return false
		}
	} else {
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	c.reconfigureLocked(curr)

	// Membership may have been lost while we raced for the lock.
	if !h.isFlagSet(flagLinked) {
		return false
	}

	seg := SegmentOf(node)
	c.lists[seg].moveToHead(node)

	if seg == SegmentProbation {
		h1, h2 := hashNode(node)
		if c.accessFreq.Estimate(h1, h2) > c.config.ProtectionFreq {
			c.lists[SegmentProbation].remove(node)
			c.lists[SegmentProtected].linkAtHead(node)
			unmarkProbation(node)

			// The segments are LRU queues, so demoting to the head of
			// probation could evict fresh arrivals; demoted items go to
			// the tail, where the least frequently or least recently
			// used already live.
			totalMainSize := c.lists[SegmentProbation].len() + c.lists[SegmentProtected].len()
			expectedMainSize := c.config.ProtectionSegmentSizePct * totalMainSize / 100
			if c.lists[SegmentProtected].len() > expectedMainSize {
				var zero T
				if mainTail := c.lists[SegmentProtected].getTail(); mainTail != zero {
					c.lists[SegmentProtected].remove(mainTail)
					c.lists[SegmentProbation].linkAtTail(mainTail)
					markProbation(mainTail)
				}
			}
		}
	}

	h.setUpdateTime(curr)
	c.updateFrequenciesLocked(node)
	return true
}

// removeLocked unlinks the item from whichever list its bits imply and
// clears its tracking state. Sketch counters are left alone; they only ever
// decay globally.
func (c *Container[T]) removeLocked(node T) {
	switch {
	case isTiny(node):
		c.lists[SegmentTiny].remove(node)
		unmarkTiny(node)
	case isProbation(node):
		c.lists[SegmentProbation].remove(node)
		unmarkProbation(node)
	default:
		c.lists[SegmentProtected].remove(node)
	}
	unmarkAccessed(node)
	unmarkLinked(node)
}

// Remove takes the item out of the container. Returns false, leaving the
// item untouched, if it is not present.
func (c *Container[T]) Remove(node T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !isLinked(node) {
		return false
	}
	c.removeLocked(node)
	return true
}

// Replace swaps newNode into oldNode's list position, carrying over the
// segment bits, the accessed bit and the update time. Returns false if
// oldNode is not in the container, or if newNode already is or carries stale
// segment bits.
func (c *Container[T]) Replace(oldNode, newNode T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isTiny(newNode) || isProbation(newNode) {
		return false
	}
	if !isLinked(oldNode) || isLinked(newNode) {
		return false
	}
	updateTime := oldNode.EvictionHook().getUpdateTime()

	switch {
	case isTiny(oldNode):
		c.lists[SegmentTiny].replace(oldNode, newNode)
		unmarkTiny(oldNode)
		markTiny(newNode)
	case isProbation(oldNode):
		c.lists[SegmentProbation].replace(oldNode, newNode)
		unmarkProbation(oldNode)
		markProbation(newNode)
	default:
		c.lists[SegmentProtected].replace(oldNode, newNode)
	}

	unmarkLinked(oldNode)
	markLinked(newNode)
	newNode.EvictionHook().setUpdateTime(updateTime)
	if isAccessed(oldNode) {
		markAccessed(newNode)
	} else {
		unmarkAccessed(newNode)
	}
	return true
}

// Size returns the number of items in the container.
func (c *Container[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

// IsEmpty reports whether the container holds no items.
func (c *Container[T]) IsEmpty() bool {
	return c.Size() == 0
}

// CounterSize is the byte footprint of the live frequency counters.
func (c *Container[T]) CounterSize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessFreq.byteSize()
}

// GetConfig returns a copy of the current configuration.
func (c *Container[T]) GetConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SetConfig validates and installs a new configuration, resetting the
// refresh time and the reconfiguration schedule.
func (c *Container[T]) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	c.lruRefreshTime.Store(cfg.LruRefreshTime)
	c.scheduleReconfigure(c.clock())
	return nil
}

// reconfigureLocked recomputes the refresh time from the protected tail's
// age, at most once per configured interval.
func (c *Container[T]) reconfigureLocked(currTime int64) {
	if currTime < c.nextReconfigureTime.Load() {
		return
	}
	c.nextReconfigureTime.Store(currTime + int64(c.config.ReconfigureIntervalSecs))

	stat := c.evictionAgeStatLocked(currTime, 0)
	refresh := uint32(float64(stat.OldestElementAge) * c.config.LruRefreshRatio)
	if refresh < c.config.DefaultLruRefreshTime {
		refresh = c.config.DefaultLruRefreshTime
	}
	if refresh > lruRefreshTimeCap {
		refresh = lruRefreshTimeCap
	}
	c.lruRefreshTime.Store(refresh)
}

// GetStats returns a snapshot of the container's counters.
func (c *Container[T]) GetStats() Stat {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	var tailTime int64
	// The overall tail is the tail of the first non-empty segment in
	// eviction-facing order.
	for _, seg := range []Segment{SegmentTiny, SegmentProbation, SegmentProtected} {
		if tail := c.lists[seg].getTail(); tail != zero {
			tailTime = tail.EvictionHook().getUpdateTime()
			break
		}
	}
	return Stat{
		Size:           uint64(c.lenLocked()),
		TailUpdateTime: tailTime,
		LruRefreshTime: c.lruRefreshTime.Load(),
		CounterBytes:   c.accessFreq.byteSize(),
	}
}

// GetEvictionAgeStat reports the age of the oldest protected element and the
// age projected after evicting projectedLength items from the protected
// tail.
func (c *Container[T]) GetEvictionAgeStat(projectedLength uint64) EvictionAgeStat {
	curr := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictionAgeStatLocked(curr, projectedLength)
}

func (c *Container[T]) evictionAgeStatLocked(currTime int64, projectedLength uint64) EvictionAgeStat {
	var zero T
	var stat EvictionAgeStat
	list := &c.lists[SegmentProtected]
	it := list.getTail()
	if it != zero {
		stat.OldestElementAge = currTime - it.EvictionHook().getUpdateTime()
	}
	stat.Size = uint64(list.len())
	for numSeen := uint64(0); numSeen < projectedLength && it != zero; numSeen++ {
		it = prevOf(it)
	}
	if it != zero {
		stat.ProjectedAge = currTime - it.EvictionHook().getUpdateTime()
	} else {
		stat.ProjectedAge = stat.OldestElementAge
	}
	return stat
}
