package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davarch/build-notifier/internal/domain"
	"go.uber.org/zap"
)

// Bootstrapper seeds the watermark from one "most recent finished build"
// query per tracked build type, so builds that finished before the baseline
// are never notified.
type Bootstrapper struct {
	log     *zap.Logger
	src     domain.BuildSource
	project string

	mu        sync.Mutex
	baselined map[domain.BuildTypeID]struct{}
	pending   bool
	all       bool
	gen       uint64
}

func NewBootstrapper(log *zap.Logger, src domain.BuildSource, project string) *Bootstrapper {
	return &Bootstrapper{
		log:       log.Named("bootstrap"),
		src:       src,
		project:   project,
		baselined: make(map[domain.BuildTypeID]struct{}),
		pending:   true,
	}
}

// Pending reports whether a baseline must run before the next resolve.
func (b *Bootstrapper) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Needed reports whether wl still has tracked types without a baseline.
// An empty whitelist needs one full listing.
func (b *Bootstrapper) Needed(wl domain.Whitelist) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending {
		return true
	}
	if wl.Empty() {
		return !b.all
	}
	for _, t := range wl.IDs() {
		if _, ok := b.baselined[t]; !ok {
			return true
		}
	}
	return false
}

// Invalidate requests a baseline for types that do not have one yet.
func (b *Bootstrapper) Invalidate() {
	b.mu.Lock()
	b.pending = true
	b.gen++
	b.mu.Unlock()
}

// Run seeds wm for every tracked type that has no baseline. On any error
// nothing is applied and the baseline stays pending.
func (b *Bootstrapper) Run(ctx context.Context, wl domain.Whitelist, wm *Watermark) error {
	b.mu.Lock()
	gen := b.gen
	b.mu.Unlock()

	tracked := wl.IDs()
	if wl.Empty() {
		types, err := b.src.ListBuildTypes(ctx, b.project)
		if err != nil {
			return &domain.FetchError{Op: "list build types", Err: err}
		}
		tracked = types
	}

	todo := b.missing(tracked)
	if len(todo) == 0 {
		b.done(nil, gen, wl.Empty())
		return nil
	}

	type result struct {
		t     domain.BuildTypeID
		build *domain.BuildSummary
		err   error
	}

	results := make([]result, len(todo))
	var wg sync.WaitGroup
	for i, t := range todo {
		wg.Add(1)
		go func(i int, t domain.BuildTypeID) {
			defer wg.Done()
			bs, err := b.src.MostRecentFinishedBuild(ctx, b.project, t)
			results[i] = result{t: t, build: bs, err: err}
		}(i, t)
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("latest build of %s: %w", r.t, r.err))
		}
	}
	if len(errs) > 0 {
		return &domain.FetchError{Op: "bootstrap", Err: errors.Join(errs...)}
	}

	seed := make(map[domain.BuildTypeID]domain.BuildID, len(results))
	for _, r := range results {
		if r.build == nil {
			b.log.Debug("no finished builds yet", zap.String("build_type", string(r.t)))
			continue
		}
		seed[r.t] = r.build.ID
	}
	wm.Merge(seed)
	b.done(todo, gen, wl.Empty())

	b.log.Info("baseline established",
		zap.Int("types", len(todo)),
		zap.Int("seeded", len(seed)),
	)
	return nil
}

func (b *Bootstrapper) missing(tracked []domain.BuildTypeID) []domain.BuildTypeID {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.BuildTypeID
	for _, t := range tracked {
		if _, ok := b.baselined[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// done records a completed baseline. An Invalidate that raced with the run
// keeps the baseline pending.
func (b *Bootstrapper) done(types []domain.BuildTypeID, gen uint64, all bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.baselined[t] = struct{}{}
	}
	if all {
		b.all = true
	}
	if b.gen == gen {
		b.pending = false
	}
}
