package application

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/build-notifier/internal/domain"
)

// RetryConfig bounds how failed notifications are retried on later cycles.
// A zero Initial retries on every cycle, a zero MaxAttempts never gives up.
type RetryConfig struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

type retryEntry struct {
	buildType domain.BuildTypeID
	attempts  int
	next      time.Time
	abandoned bool
	bo        *backoff.ExponentialBackOff
}

// RetryPolicy tracks failed builds between cycles.
type RetryPolicy struct {
	cfg RetryConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[domain.BuildID]*retryEntry
}

func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.Max <= 0 {
		cfg.Max = 5 * time.Minute
	}
	return &RetryPolicy{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[domain.BuildID]*retryEntry),
	}
}

type retryVerdict int

const (
	retryAllowed retryVerdict = iota
	retryDeferred
	retryAbandoned
)

func (p *RetryPolicy) check(id domain.BuildID) retryVerdict {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	switch {
	case !ok:
		return retryAllowed
	case e.abandoned:
		return retryAbandoned
	case p.now().Before(e.next):
		return retryDeferred
	default:
		return retryAllowed
	}
}

// failed records a failed attempt and returns the attempt count and
// whether the build is now abandoned.
func (p *RetryPolicy) failed(b domain.BuildSummary) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[b.ID]
	if !ok {
		e = &retryEntry{buildType: b.BuildTypeID, bo: p.newBackOff()}
		p.entries[b.ID] = e
	}
	e.attempts++

	if p.cfg.MaxAttempts > 0 && e.attempts >= p.cfg.MaxAttempts {
		e.abandoned = true
		return e.attempts, true
	}
	if p.cfg.Initial > 0 {
		e.next = p.now().Add(e.bo.NextBackOff())
	}
	return e.attempts, false
}

func (p *RetryPolicy) succeeded(id domain.BuildID) {
	p.mu.Lock()
	delete(p.entries, id)
	p.mu.Unlock()
}

// prune forgets builds the watermark has already passed.
func (p *RetryPolicy) prune(wm map[domain.BuildTypeID]domain.BuildID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, e := range p.entries {
		if mark, ok := wm[e.buildType]; ok && id <= mark {
			delete(p.entries, id)
		}
	}
}

func (p *RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.Initial
	bo.MaxInterval = p.cfg.Max
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0.2
	bo.Reset()
	return bo
}
