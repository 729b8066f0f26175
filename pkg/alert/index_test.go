package alert

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndex_LoadUpsertRemove(t *testing.T) {
	idx := NewIndex()

	idx.Load([]*Alert{
		{ID: 1, Symbol: "BTC"},
		{ID: 2, Symbol: "ETH"},
	})
	require.Equal(t, 2, idx.Len())

	// Upsert 覆盖
	idx.Upsert(&Alert{ID: 1, Symbol: "BTC", Name: "updated"})
	a, ok := idx.Get(1)
	require.True(t, ok)
	require.Equal(t, "updated", a.Name)

	// Remove
	require.True(t, idx.Remove(2))
	require.False(t, idx.Remove(2))
	require.Equal(t, 1, idx.Len())

	// Load 整体替换
	idx.Load(nil)
	require.Equal(t, 0, idx.Len())
}

func TestIndex_Symbols_Dedup(t *testing.T) {
	idx := NewIndex()
	idx.Load([]*Alert{
		{ID: 1, Symbol: "BTC"},
		{ID: 2, Symbol: "BTC"},
		{ID: 3, Symbol: "ETH"},
	})

	syms := idx.Symbols()
	require.Len(t, syms, 2)
	require.ElementsMatch(t, []string{"BTC", "ETH"}, syms)
}

// All 返回的快照在并发增删时可以安全遍历
func TestIndex_All_SnapshotIsolation(t *testing.T) {
	idx := NewIndex()
	for i := int64(1); i <= 100; i++ {
		idx.Upsert(&Alert{ID: i, Symbol: "BTC"})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			snap := idx.All()
			for range snap {
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 100; i++ {
			idx.Remove(i)
			idx.Upsert(&Alert{ID: i + 1000, Symbol: "ETH"})
		}
	}()

	wg.Wait()
	require.Equal(t, 100, idx.Len())
}
