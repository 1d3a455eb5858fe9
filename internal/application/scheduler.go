package application

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/build-notifier/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Watchdog is told when the daemon is ready and after every settled cycle.
type Watchdog interface {
	Ready()
	Alive()
}

type nopWatchdog struct{}

func (nopWatchdog) Ready() {}
func (nopWatchdog) Alive() {}

type Scheduler struct {
	log       *zap.Logger
	use       *PollUseCase
	every     time.Duration
	pauseFile string
	watchdog  Watchdog

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func NewScheduler(l *zap.Logger, u *PollUseCase, every time.Duration, pauseFile string) *Scheduler {
	return &Scheduler{
		log: l, use: u, every: every, pauseFile: pauseFile, watchdog: nopWatchdog{},
	}
}

func (s *Scheduler) SetWatchdog(w Watchdog) {
	if w != nil {
		s.watchdog = w
	}
}

func (s *Scheduler) UpdateWhitelist(wl domain.Whitelist) {
	s.use.UpdateWhitelist(wl)
	s.log.Info("config reloaded", zap.Int("whitelist", len(wl)))
}

// Run bootstraps, then fires a cycle every interval until ctx ends. It
// returns once the in-flight cycle has settled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		return err
	}
	s.watchdog.Ready()

	t := time.NewTicker(s.every)
	defer t.Stop()
	defer s.wg.Wait()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) bootstrap(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	return backoff.RetryNotify(
		func() error { return s.use.Bootstrap(ctx) },
		backoff.WithContext(bo, ctx),
		func(err error, wait time.Duration) {
			s.log.Warn("bootstrap failed", zap.Error(err), zap.Duration("retry_in", wait))
		},
	)
}

// Tick starts a cycle unless one is already in flight or polling is paused.
// It reports whether a cycle was started.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.isPaused() {
		ticksSkipped.Inc()
		s.log.Debug("paused: skipping poll")
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		ticksSkipped.Inc()
		s.log.Debug("cycle in flight: skipping tick")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.cycle(ctx)
	}()
	return true
}

// Wait blocks until the in-flight cycle, if any, has settled.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) InFlight() bool { return s.inFlight.Load() }

func (s *Scheduler) cycle(ctx context.Context) {
	log := s.log.With(zap.String("cycle", uuid.NewString()))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			cyclesTotal.WithLabelValues("panic").Inc()
			log.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		cycleDuration.Observe(time.Since(start).Seconds())
		s.watchdog.Alive()
	}()

	rep, err := s.use.PollOnce(withLogger(ctx, log))
	if err != nil {
		cyclesTotal.WithLabelValues("error").Inc()
		log.Warn("poll failed", zap.Error(err))
		return
	}

	cyclesTotal.WithLabelValues("ok").Inc()
	if rep.Changes > 0 {
		log.Info("cycle done",
			zap.Int("changes", rep.Changes),
			zap.Int("delivered", rep.Delivered),
			zap.Int("failed", rep.Failed),
			zap.Int("skipped", rep.Skipped),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Scheduler) isPaused() bool {
	if s.pauseFile == "" {
		return false
	}
	_, err := os.Stat(s.pauseFile)
	return err == nil
}
