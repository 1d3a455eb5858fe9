package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"go.uber.org/zap"
)

// PollUseCase owns the engine state: watermark, whitelist, baseline and
// dispatcher bookkeeping. Only the scheduler drives it, one cycle at a time.
type PollUseCase struct {
	log     *zap.Logger
	project string
	fetch   *SnapshotFetcher
	boot    *Bootstrapper
	disp    *Dispatcher
	cache   domain.StatusCache

	wm *Watermark

	mu sync.RWMutex
	wl domain.Whitelist
}

type PollConfig struct {
	Project   string
	Lookback  int
	Whitelist domain.Whitelist
	Dispatch  DispatcherOptions
}

func NewPollUseCase(log *zap.Logger, src domain.BuildSource, r domain.Renderer, sink domain.Sink, cache domain.StatusCache, cfg PollConfig) *PollUseCase {
	wl := cfg.Whitelist
	if wl == nil {
		wl = domain.NewWhitelist()
	}
	return &PollUseCase{
		log:     log,
		project: cfg.Project,
		fetch:   NewSnapshotFetcher(src, cfg.Project, cfg.Lookback),
		boot:    NewBootstrapper(log, src, cfg.Project),
		disp:    NewDispatcher(log, r, sink, cfg.Dispatch),
		cache:   cache,
		wm:      NewWatermark(),
		wl:      wl,
	}
}

func (uc *PollUseCase) Whitelist() domain.Whitelist {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.wl
}

// UpdateWhitelist swaps the tracked types. Types without a baseline get one
// before the next resolve.
func (uc *PollUseCase) UpdateWhitelist(wl domain.Whitelist) {
	uc.mu.Lock()
	uc.wl = wl
	uc.mu.Unlock()
	uc.boot.Invalidate()
}

func (uc *PollUseCase) Watermark() map[domain.BuildTypeID]domain.BuildID {
	return uc.wm.Snapshot()
}

// Bootstrap establishes the baseline for the current whitelist if needed.
func (uc *PollUseCase) Bootstrap(ctx context.Context) error {
	return uc.bootstrap(ctx, uc.Whitelist())
}

func (uc *PollUseCase) bootstrap(ctx context.Context, wl domain.Whitelist) error {
	if !uc.boot.Needed(wl) {
		return nil
	}
	return uc.boot.Run(ctx, wl, uc.wm)
}

type CycleReport struct {
	Fetched   int
	Changes   int
	Delivered int
	Failed    int
	Skipped   int
}

// Changes runs bootstrap, fetch and resolve without dispatching. All three
// see the same whitelist even if it is reloaded mid-cycle.
func (uc *PollUseCase) Changes(ctx context.Context) ([]domain.BuildSummary, int, error) {
	wl := uc.Whitelist()
	if err := uc.bootstrap(ctx, wl); err != nil {
		return nil, 0, fmt.Errorf("bootstrap: %w", err)
	}

	snapshot, err := uc.fetch.Fetch(ctx, wl)
	if err != nil {
		return nil, 0, err
	}
	return Resolve(snapshot, uc.wm.Snapshot(), wl), len(snapshot), nil
}

// PollOnce runs one detection cycle: baseline if pending, fetch, resolve,
// dispatch, merge.
func (uc *PollUseCase) PollOnce(ctx context.Context) (CycleReport, error) {
	log := loggerFrom(ctx, uc.log)

	changes, fetched, err := uc.Changes(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	rep := CycleReport{Fetched: fetched, Changes: len(changes)}
	if len(changes) == 0 {
		return rep, nil
	}
	log.Info("new builds", zap.Int("fetched", fetched), zap.Int("changes", len(changes)))

	outcomes := uc.disp.Dispatch(ctx, changes)
	settled := uc.disp.Settle(ctx, outcomes, uc.wm)
	rep.Delivered = settled.Delivered
	rep.Failed = settled.Failed
	rep.Skipped = settled.Skipped

	if settled.Delivered > 0 && uc.cache != nil {
		st := domain.Status{
			Project:   uc.project,
			Watermark: uc.wm.Snapshot(),
			LastBuild: settled.Last,
			Retrieved: time.Now().Unix(),
		}
		if err := uc.cache.Write(ctx, st); err != nil {
			log.Warn("status write failed", zap.Error(err))
		}
	}
	return rep, nil
}
