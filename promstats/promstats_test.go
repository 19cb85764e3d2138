package promstats_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/cachelab/wtinylfu"
	"github.com/cachelab/wtinylfu/promstats"
)

type item struct {
	hook wtinylfu.Hook[*item]
	key  []byte
}

func (n *item) EvictionHook() *wtinylfu.Hook[*item] { return &n.hook }
func (n *item) Key() []byte                         { return n.key }

func TestCollector(t *testing.T) {
	c, err := wtinylfu.New[*item](wtinylfu.DefaultConfig())
	require.NoError(t, err)
	require.True(t, c.Add(&item{key: []byte("a")}))
	require.True(t, c.Add(&item{key: []byte("b")}))

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(promstats.NewCollector(c, "testapp", "cache", prometheus.Labels{"pool": "main"}))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			byName[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	require.Equal(t, float64(2), byName["testapp_cache_items"])
	require.Equal(t, float64(60), byName["testapp_cache_refresh_time_seconds"])
	require.NotZero(t, byName["testapp_cache_counter_bytes"])
	require.Contains(t, byName, "testapp_cache_protected_items")
	require.Contains(t, byName, "testapp_cache_protected_oldest_age_seconds")
}
