package application

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(id int64, t string) domain.BuildSummary {
	return domain.BuildSummary{ID: domain.BuildID(id), BuildTypeID: domain.BuildTypeID(t), Status: domain.StatusSuccess}
}

func ids(bs []domain.BuildSummary) []domain.BuildID {
	out := make([]domain.BuildID, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestResolve_BasicDetection(t *testing.T) {
	wm := map[domain.BuildTypeID]domain.BuildID{"A": 100}
	snapshot := []domain.BuildSummary{build(105, "A"), build(101, "A"), build(50, "B")}

	got := Resolve(snapshot, wm, domain.NewWhitelist("A"))

	assert.Equal(t, []domain.BuildID{101, 105}, ids(got))
}

func TestResolve_UntrackedTypeWithBaselineIsNotNew(t *testing.T) {
	wm := map[domain.BuildTypeID]domain.BuildID{"A": 100, "B": 50}
	snapshot := []domain.BuildSummary{build(105, "A"), build(101, "A"), build(50, "B")}

	got := Resolve(snapshot, wm, domain.NewWhitelist())

	assert.Equal(t, []domain.BuildID{101, 105}, ids(got))
}

func TestResolve_MissingWatermarkAcceptsAll(t *testing.T) {
	snapshot := []domain.BuildSummary{build(3, "C"), build(1, "C"), build(2, "C")}

	got := Resolve(snapshot, map[domain.BuildTypeID]domain.BuildID{}, nil)

	assert.Equal(t, []domain.BuildID{1, 2, 3}, ids(got))
}

func TestResolve_EqualToWatermarkIsExcluded(t *testing.T) {
	wm := map[domain.BuildTypeID]domain.BuildID{"A": 7}

	assert.Empty(t, Resolve([]domain.BuildSummary{build(7, "A"), build(6, "A")}, wm, nil))
}

func TestResolve_DropsDuplicateIDs(t *testing.T) {
	snapshot := []domain.BuildSummary{build(4, "A"), build(4, "A"), build(5, "A")}

	got := Resolve(snapshot, nil, nil)

	assert.Equal(t, []domain.BuildID{4, 5}, ids(got))
}

func TestResolve_EmptySnapshot(t *testing.T) {
	got := Resolve(nil, map[domain.BuildTypeID]domain.BuildID{"A": 1}, domain.NewWhitelist("A"))
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolve_IdempotentAfterFullDelivery(t *testing.T) {
	wm := NewWatermark()
	wm.Advance("A", 100)
	snapshot := []domain.BuildSummary{build(103, "A"), build(101, "A"), build(7, "B")}

	first := Resolve(snapshot, wm.Snapshot(), nil)
	require.Len(t, first, 3)
	for _, b := range first {
		wm.Advance(b.BuildTypeID, b.ID)
	}

	assert.Empty(t, Resolve(snapshot, wm.Snapshot(), nil))
}

func filterWhitelist(bs []domain.BuildSummary, wl domain.Whitelist) []domain.BuildSummary {
	var out []domain.BuildSummary
	for _, b := range bs {
		if wl.Allows(b.BuildTypeID) {
			out = append(out, b)
		}
	}
	return out
}

func filterWatermark(bs []domain.BuildSummary, wm map[domain.BuildTypeID]domain.BuildID) []domain.BuildSummary {
	var out []domain.BuildSummary
	for _, b := range bs {
		if aboveWatermark(b, wm) {
			out = append(out, b)
		}
	}
	return out
}

func sortedIDs(bs []domain.BuildSummary) []domain.BuildID {
	out := ids(bs)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestResolve_FiltersCommute(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []string{"A", "B", "C", "D"}

	for round := 0; round < 200; round++ {
		var snapshot []domain.BuildSummary
		used := map[int64]bool{}
		n := rng.Intn(15)
		for i := 0; i < n; i++ {
			id := int64(rng.Intn(200))
			if used[id] {
				continue
			}
			used[id] = true
			snapshot = append(snapshot, build(id, types[rng.Intn(len(types))]))
		}

		wm := map[domain.BuildTypeID]domain.BuildID{}
		wl := domain.NewWhitelist()
		for _, tp := range types {
			if rng.Intn(2) == 0 {
				wm[domain.BuildTypeID(tp)] = domain.BuildID(rng.Intn(200))
			}
			if rng.Intn(3) == 0 {
				wl[domain.BuildTypeID(tp)] = struct{}{}
			}
		}

		a := filterWatermark(filterWhitelist(snapshot, wl), wm)
		b := filterWhitelist(filterWatermark(snapshot, wm), wl)
		require.Equal(t, sortedIDs(a), sortedIDs(b), "round %d", round)
		require.Equal(t, sortedIDs(a), ids(Resolve(snapshot, wm, wl)), "round %d", round)
	}
}
