package wtinylfu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSnapshotFixture stages a container with items in all three segments
// and returns it with the backing node registry.
func buildSnapshotFixture(t *testing.T) (*Container[*testNode], map[string]*testNode) {
	t.Helper()
	c, _ := newTestContainer(t, DefaultConfig())
	registry := make(map[string]*testNode)
	stage := func(seg Segment, keys ...string) {
		for _, k := range keys {
			n := newNode(k)
			registry[k] = n
			linkForTest(c, seg, n)
		}
	}
	stage(SegmentTiny, "t1", "t2")
	stage(SegmentProbation, "p1", "p2", "p3")
	stage(SegmentProtected, "m1")
	return c, registry
}

func TestSnapshotRoundTrip(t *testing.T) {
	c, _ := buildSnapshotFixture(t)
	snap := c.SaveState()

	require.Equal(t, []string{"t1", "t2"}, snap.Tiny)
	require.Equal(t, []string{"p1", "p2", "p3"}, snap.Probation)
	require.Equal(t, []string{"m1"}, snap.Protected)
	require.Equal(t, uint32(60), snap.Config.LruRefreshTime)

	// Fresh nodes stand in for the host restoring its items.
	restored := make(map[string]*testNode)
	for k := range map[string]bool{"t1": true, "t2": true, "p1": true, "p2": true, "p3": true, "m1": true} {
		restored[k] = newNode(k)
	}
	rc, err := NewFromSnapshot(snap, func(key string) (*testNode, bool) {
		n, ok := restored[key]
		return n, ok
	})
	require.NoError(t, err)

	require.Equal(t, []string{"t1", "t2"}, segmentKeys(rc, SegmentTiny))
	require.Equal(t, []string{"p1", "p2", "p3"}, segmentKeys(rc, SegmentProbation))
	require.Equal(t, []string{"m1"}, segmentKeys(rc, SegmentProtected))
	require.Equal(t, snap.Config, rc.GetConfig())
	require.Equal(t, SegmentTiny, SegmentOf(restored["t1"]))
	require.Equal(t, SegmentProbation, SegmentOf(restored["p2"]))
	require.Equal(t, SegmentProtected, SegmentOf(restored["m1"]))
	checkInvariants(t, rc)

	// The frequency counters start over; only the topology survives.
	h1, h2 := hashNode(restored["m1"])
	require.Equal(t, int64(0), rc.accessFreq.Estimate(h1, h2))
}

func TestSnapshotEncodeDecode(t *testing.T) {
	c, _ := buildSnapshotFixture(t)
	snap := c.SaveState()

	data, err := snap.Encode()
	require.NoError(t, err)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestSnapshotDecodeRejectsCorruption(t *testing.T) {
	c, _ := buildSnapshotFixture(t)
	data, err := c.SaveState().Encode()
	require.NoError(t, err)

	// Flip a payload byte: the fingerprint no longer matches.
	corrupt := append([]byte(nil), data...)
	corrupt[2] ^= 0xff
	_, err = DecodeSnapshot(corrupt)
	require.ErrorIs(t, err, ErrBadSnapshot)

	_, err = DecodeSnapshot(data[:4])
	require.ErrorIs(t, err, ErrBadSnapshot)
}

func TestSnapshotRestoreFailures(t *testing.T) {
	c, _ := buildSnapshotFixture(t)
	snap := c.SaveState()

	// A key the host cannot produce.
	_, err := NewFromSnapshot(snap, func(string) (*testNode, bool) { return nil, false })
	require.ErrorIs(t, err, ErrBadSnapshot)

	// The same node resolved for every key.
	dup := newNode("dup")
	_, err = NewFromSnapshot(snap, func(string) (*testNode, bool) { return dup, true })
	require.ErrorIs(t, err, ErrBadSnapshot)

	// A configuration that no longer validates.
	bad := snap
	bad.Config.TinySizePercent = 0
	_, err = NewFromSnapshot(bad, func(key string) (*testNode, bool) { return newNode(key), true })
	require.ErrorIs(t, err, ErrInvalidConfig)
}
