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

import "sync/atomic"

// AccessMode tells RecordAccess what kind of access is being recorded so the
// container can apply the UpdateOnRead / UpdateOnWrite knobs.
type AccessMode int

const (
	AccessModeRead AccessMode = iota
	AccessModeWrite
)

// Segment identifies which of the three internal lists an item occupies.
type Segment int

const (
	SegmentTiny Segment = iota
	SegmentProbation
	SegmentProtected
	numSegments
)

func (s Segment) String() string {
	switch s {
	case SegmentTiny:
		return "tiny"
	case SegmentProbation:
		return "probation"
	case SegmentProtected:
		return "protected"
	default:
		return "unknown"
	}
}

// Node is the contract a host item type must satisfy to be tracked by a
// Container. T is instantiated with a pointer type; its zero value (nil) is
// the list terminator. The host embeds a Hook in the item and returns it from
// EvictionHook. Key must be stable for the lifetime of the item.
type Node[T any] interface {
	comparable
	EvictionHook() *Hook[T]
	Key() []byte
}

const (
	// flagTiny records that the item is in the tiny cache.
	flagTiny uint32 = 1 << iota
	// flagAccessed records that the item has been accessed since being
	// written. Unaccessed items bypass the refresh-time throttle once.
	flagAccessed
	flagProbation
	// flagLinked is set while the item is linked in the container.
	flagLinked
)

// Hook is the intrusive state the container borrows from a host item: the
// link slots of the segment lists, the last promotion time, and the flag
// word. The links are only touched under the container lock. The flags and
// update time are atomics because the RecordAccess fast path inspects them,
// and sets the accessed bit, without taking the lock.
//
// The zero Hook is ready for use.
type Hook[T any] struct {
	next, prev T
	updateTime atomic.Int64
	flags      atomic.Uint32
}

func (h *Hook[T]) isFlagSet(f uint32) bool { return h.flags.Load()&f != 0 }
func (h *Hook[T]) setFlag(f uint32)        { atomicOr32(&h.flags, f) }
func (h *Hook[T]) unSetFlag(f uint32)      { atomicAnd32(&h.flags, ^f) }

// atomicOr32 and atomicAnd32 mirror atomic.Uint32.Or/And (Go 1.23+) via a
// CAS loop, for toolchains that predate those methods.
func atomicOr32(v *atomic.Uint32, mask uint32) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

func atomicAnd32(v *atomic.Uint32, mask uint32) {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, old&mask) {
			return
		}
	}
}

func (h *Hook[T]) getUpdateTime() int64  { return h.updateTime.Load() }
func (h *Hook[T]) setUpdateTime(t int64) { h.updateTime.Store(t) }

func isTiny[T Node[T]](n T) bool      { return n.EvictionHook().isFlagSet(flagTiny) }
func isAccessed[T Node[T]](n T) bool  { return n.EvictionHook().isFlagSet(flagAccessed) }
func isProbation[T Node[T]](n T) bool { return n.EvictionHook().isFlagSet(flagProbation) }
func isLinked[T Node[T]](n T) bool    { return n.EvictionHook().isFlagSet(flagLinked) }

func markTiny[T Node[T]](n T)        { n.EvictionHook().setFlag(flagTiny) }
func unmarkTiny[T Node[T]](n T)      { n.EvictionHook().unSetFlag(flagTiny) }
func markAccessed[T Node[T]](n T)    { n.EvictionHook().setFlag(flagAccessed) }
func unmarkAccessed[T Node[T]](n T)  { n.EvictionHook().unSetFlag(flagAccessed) }
func markProbation[T Node[T]](n T)   { n.EvictionHook().setFlag(flagProbation) }
func unmarkProbation[T Node[T]](n T) { n.EvictionHook().unSetFlag(flagProbation) }
func markLinked[T Node[T]](n T)      { n.EvictionHook().setFlag(flagLinked) }
func unmarkLinked[T Node[T]](n T)    { n.EvictionHook().unSetFlag(flagLinked) }

// SegmentOf reports the segment implied by the item's flag bits. Meaningful
// only while the item is in a container.
func SegmentOf[T Node[T]](n T) Segment {
	switch {
	case isTiny(n):
		return SegmentTiny
	case isProbation(n):
		return SegmentProbation
	default:
		return SegmentProtected
	}
}
