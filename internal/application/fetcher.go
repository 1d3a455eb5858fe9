package application

import (
	"context"

	"github.com/davarch/build-notifier/internal/domain"
)

const DefaultLookback = 10

// SnapshotFetcher reads a bounded window of recently finished builds.
// Builds older than the window are never seen again, even if unnotified.
type SnapshotFetcher struct {
	src      domain.BuildSource
	project  string
	lookback int
}

func NewSnapshotFetcher(src domain.BuildSource, project string, lookback int) *SnapshotFetcher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &SnapshotFetcher{src: src, project: project, lookback: lookback}
}

// Fetch returns the window restricted to the whitelist, in server order.
func (f *SnapshotFetcher) Fetch(ctx context.Context, wl domain.Whitelist) ([]domain.BuildSummary, error) {
	builds, err := f.src.ListFinishedBuilds(ctx, f.project, f.lookback)
	if err != nil {
		return nil, &domain.FetchError{Op: "list finished builds", Err: err}
	}
	if len(builds) == 0 {
		return []domain.BuildSummary{}, nil
	}

	out := make([]domain.BuildSummary, 0, len(builds))
	for _, b := range builds {
		if wl.Allows(b.BuildTypeID) {
			out = append(out, b)
		}
	}
	return out, nil
}
