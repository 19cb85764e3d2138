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
	"encoding/binary"
	"encoding/json"

	"github.com/dgryski/go-farm"
	"github.com/pkg/errors"
)

// ErrBadSnapshot is wrapped by all snapshot decode and restore failures.
var ErrBadSnapshot = errors.New("bad snapshot")

// Snapshot captures the configuration and the list topology of a container.
// Each segment lists its keys head to tail. The frequency counters are not
// captured; a restored container starts with an empty sketch and regrows it
// as items are re-added.
//
// Taking or restoring a snapshot must happen without concurrent readers or
// writers; the topology is only meaningful for a quiesced container.
type Snapshot struct {
	Config    Config   `json:"config"`
	Tiny      []string `json:"tiny"`
	Probation []string `json:"probation"`
	Protected []string `json:"protected"`
}

// SaveState captures the container's configuration, with the live refresh
// time folded in, and its list topology.
func (c *Container[T]) SaveState() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.config
	cfg.LruRefreshTime = c.lruRefreshTime.Load()

	snap := Snapshot{Config: cfg}
	collect := func(seg Segment) []string {
		var zero T
		keys := make([]string, 0, c.lists[seg].len())
		for n := c.lists[seg].getHead(); n != zero; n = n.EvictionHook().next {
			keys = append(keys, string(n.Key()))
		}
		return keys
	}
	snap.Tiny = collect(SegmentTiny)
	snap.Probation = collect(SegmentProbation)
	snap.Protected = collect(SegmentProtected)
	return snap
}

// Encode serializes the snapshot and appends an integrity fingerprint.
func (s Snapshot) Encode() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	buf := make([]byte, len(payload)+8)
	copy(buf, payload)
	binary.BigEndian.PutUint64(buf[len(payload):], farm.Fingerprint64(payload))
	return buf, nil
}

// DecodeSnapshot verifies the fingerprint and decodes a snapshot produced by
// Encode.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if len(data) < 8 {
		return snap, errors.Wrap(ErrBadSnapshot, "truncated")
	}
	payload := data[:len(data)-8]
	want := binary.BigEndian.Uint64(data[len(data)-8:])
	if got := farm.Fingerprint64(payload); got != want {
		return snap, errors.Wrapf(ErrBadSnapshot,
			"fingerprint mismatch: computed %x, stored %x", got, want)
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return snap, errors.Wrapf(ErrBadSnapshot, "decoding payload: %v", err)
	}
	return snap, nil
}

// NewFromSnapshot rebuilds a container from a snapshot. resolve maps a saved
// key back to the host's item, which must be unlinked; its update time is
// whatever the host restored. Fails if the configuration no longer
// validates, a key cannot be resolved, or a key appears twice.
func NewFromSnapshot[T Node[T]](snap Snapshot, resolve func(key string) (T, bool)) (*Container[T], error) {
	c, err := New[T](snap.Config)
	if err != nil {
		return nil, err
	}

	link := func(seg Segment, keys []string) error {
		for _, key := range keys {
			node, ok := resolve(key)
			if !ok {
				return errors.Wrapf(ErrBadSnapshot, "unresolved key %q", key)
			}
			if isLinked(node) {
				return errors.Wrapf(ErrBadSnapshot, "key %q appears twice", key)
			}
			// Keys were saved head to tail, so appending preserves order.
			c.lists[seg].linkAtTail(node)
			switch seg {
			case SegmentTiny:
				markTiny(node)
				unmarkProbation(node)
			case SegmentProbation:
				markProbation(node)
				unmarkTiny(node)
			default:
				unmarkTiny(node)
				unmarkProbation(node)
			}
			markLinked(node)
		}
		return nil
	}
	if err := link(SegmentTiny, snap.Tiny); err != nil {
		return nil, err
	}
	if err := link(SegmentProbation, snap.Probation); err != nil {
		return nil, err
	}
	if err := link(SegmentProtected, snap.Protected); err != nil {
		return nil, err
	}

	// Size the counters for the restored population. The sketch itself
	// starts empty either way.
	c.maybeGrowAccessCountersLocked()
	return c, nil
}
