package application

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestWatermark_AdvanceIsMonotonic(t *testing.T) {
	wm := NewWatermark()

	assert.True(t, wm.Advance("A", 10))
	assert.False(t, wm.Advance("A", 5))
	assert.False(t, wm.Advance("A", 10))
	assert.True(t, wm.Advance("A", 11))

	got, ok := wm.Get("A")
	assert.True(t, ok)
	assert.Equal(t, domain.BuildID(11), got)

	_, ok = wm.Get("B")
	assert.False(t, ok)
}

func TestWatermark_ConcurrentAdvanceKeepsMaximum(t *testing.T) {
	wm := NewWatermark()
	vals := rand.New(rand.NewSource(1)).Perm(500)

	var wg sync.WaitGroup
	for _, v := range vals {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			wm.Advance("A", domain.BuildID(v))
		}(v)
	}
	wg.Wait()

	got, _ := wm.Get("A")
	assert.Equal(t, domain.BuildID(499), got)
}

func TestWatermark_MergeNeverRegresses(t *testing.T) {
	wm := NewWatermark()
	wm.Advance("A", 20)

	wm.Merge(map[domain.BuildTypeID]domain.BuildID{"A": 15, "B": 3})

	assert.Equal(t, map[domain.BuildTypeID]domain.BuildID{"A": 20, "B": 3}, wm.Snapshot())
}

func TestWatermark_SnapshotIsACopy(t *testing.T) {
	wm := NewWatermark()
	wm.Advance("A", 1)

	snap := wm.Snapshot()
	snap["A"] = 99

	got, _ := wm.Get("A")
	assert.Equal(t, domain.BuildID(1), got)
}

func TestSentSet_PruneDropsCoveredBuilds(t *testing.T) {
	s := NewSentSet()
	s.Add(build(5, "A"))
	s.Add(build(9, "A"))
	s.Add(build(3, "B"))

	s.Prune(map[domain.BuildTypeID]domain.BuildID{"A": 5})

	assert.False(t, s.Contains(5))
	assert.True(t, s.Contains(9))
	assert.True(t, s.Contains(3))
	assert.Equal(t, 2, s.Len())
}
