package application

import (
	"sort"

	"github.com/davarch/build-notifier/internal/domain"
)

// Resolve returns the builds that must be notified this cycle, oldest first.
//
// A build qualifies when its type is allowed by the whitelist and its ID is
// strictly above the type's watermark. Types without a watermark entry accept
// every build. Both filters are per-build predicates, so their order does not
// matter.
func Resolve(snapshot []domain.BuildSummary, wm map[domain.BuildTypeID]domain.BuildID, wl domain.Whitelist) []domain.BuildSummary {
	out := make([]domain.BuildSummary, 0, len(snapshot))
	seen := make(map[domain.BuildID]struct{}, len(snapshot))

	for _, b := range snapshot {
		if !wl.Allows(b.BuildTypeID) {
			continue
		}
		if !aboveWatermark(b, wm) {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func aboveWatermark(b domain.BuildSummary, wm map[domain.BuildTypeID]domain.BuildID) bool {
	mark, ok := wm[b.BuildTypeID]
	return !ok || b.ID > mark
}
