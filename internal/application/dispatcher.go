package application

import (
	"context"
	"fmt"

	"github.com/davarch/build-notifier/internal/domain"
	"go.uber.org/zap"
)

// DispatchState is where a single build's notification stands.
type DispatchState int

const (
	StatePending DispatchState = iota
	StateRendering
	StateSending
	StateDelivered
	StateFailed
	// StateDuplicate means the build was already delivered in this process.
	StateDuplicate
	// StateDeferred means the retry policy is holding the build back this cycle.
	StateDeferred
	// StateAbandoned means the build ran out of retry attempts.
	StateAbandoned
)

func (s DispatchState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	case StateSending:
		return "sending"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	case StateDuplicate:
		return "duplicate"
	case StateDeferred:
		return "deferred"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Outcome struct {
	Build domain.BuildSummary
	State DispatchState
	Err   error
}

type DispatcherOptions struct {
	Channel string
	// Concurrency caps in-flight sends. Zero means one goroutine per build.
	Concurrency int
	Retry       RetryConfig
}

// Dispatcher renders and sends one message per build and folds the results
// into the watermark once every send has settled.
type Dispatcher struct {
	log    *zap.Logger
	render domain.Renderer
	sink   domain.Sink
	opts   DispatcherOptions

	sent  *SentSet
	retry *RetryPolicy
}

func NewDispatcher(log *zap.Logger, r domain.Renderer, s domain.Sink, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		log:    log.Named("dispatcher"),
		render: r,
		sink:   s,
		opts:   opts,
		sent:   NewSentSet(),
		retry:  NewRetryPolicy(opts.Retry),
	}
}

// Dispatch issues the builds in order and waits for all of them. Completion
// order is unspecified. A failing build never affects its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, changes []domain.BuildSummary) []Outcome {
	log := loggerFrom(ctx, d.log)
	outcomes := make([]Outcome, len(changes))

	var sem chan struct{}
	if d.opts.Concurrency > 0 {
		sem = make(chan struct{}, d.opts.Concurrency)
	}

	done := make(chan struct{}, len(changes))
	issued := 0
	for i, b := range changes {
		outcomes[i] = Outcome{Build: b, State: StatePending}

		if d.sent.Contains(b.ID) {
			outcomes[i].State = StateDuplicate
			continue
		}
		switch d.retry.check(b.ID) {
		case retryDeferred:
			outcomes[i].State = StateDeferred
			continue
		case retryAbandoned:
			outcomes[i].State = StateAbandoned
			continue
		}

		if sem != nil {
			sem <- struct{}{}
		}
		issued++
		log.Debug("dispatching",
			zap.String("build_type", string(b.BuildTypeID)),
			zap.String("number", b.Number),
			zap.Int64("id", int64(b.ID)),
		)
		go func(i int, b domain.BuildSummary) {
			defer func() { done <- struct{}{} }()
			if sem != nil {
				defer func() { <-sem }()
			}
			outcomes[i] = d.dispatchOne(ctx, b)
		}(i, b)
	}

	for n := 0; n < issued; n++ {
		<-done
	}
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, b domain.BuildSummary) (out Outcome) {
	out = Outcome{Build: b, State: StateRendering}
	defer func() {
		if r := recover(); r != nil {
			out.Err = &domain.DispatchError{Build: b.ID, Stage: out.State.String(), Err: fmt.Errorf("panic: %v", r)}
			out.State = StateFailed
		}
	}()

	msg, err := d.render.Render(ctx, b)
	if err != nil {
		out.Err = &domain.DispatchError{Build: b.ID, Stage: out.State.String(), Err: err}
		out.State = StateFailed
		return out
	}
	msg.BuildID = b.ID

	out.State = StateSending
	if err := d.sink.Send(ctx, d.opts.Channel, msg); err != nil {
		out.Err = &domain.DispatchError{Build: b.ID, Stage: out.State.String(), Err: err}
		out.State = StateFailed
		return out
	}

	out.State = StateDelivered
	return out
}

// SettleReport counts a cycle's outcomes.
type SettleReport struct {
	Delivered int
	Failed    int
	Skipped   int
	Last      *domain.BuildSummary
}

// Settle folds delivered builds into wm with a per-type max and records
// failures with the retry policy. It must run after Dispatch returns.
func (d *Dispatcher) Settle(ctx context.Context, outcomes []Outcome, wm *Watermark) SettleReport {
	log := loggerFrom(ctx, d.log)
	var rep SettleReport
	batch := make(map[domain.BuildTypeID]domain.BuildID)

	for i := range outcomes {
		o := outcomes[i]
		b := o.Build
		notificationsTotal.WithLabelValues(o.State.String()).Inc()

		switch o.State {
		case StateDelivered:
			rep.Delivered++
			if cur, ok := batch[b.BuildTypeID]; !ok || b.ID > cur {
				batch[b.BuildTypeID] = b.ID
			}
			if rep.Last == nil || b.ID > rep.Last.ID {
				rep.Last = &outcomes[i].Build
			}
			d.sent.Add(b)
			d.retry.succeeded(b.ID)
			log.Info("notification sent",
				zap.String("build_type", string(b.BuildTypeID)),
				zap.String("number", b.Number),
				zap.Int64("id", int64(b.ID)),
			)

		case StateFailed:
			rep.Failed++
			attempts, abandoned := d.retry.failed(b)
			fields := []zap.Field{
				zap.String("build_type", string(b.BuildTypeID)),
				zap.Int64("id", int64(b.ID)),
				zap.Int("attempts", attempts),
				zap.Error(o.Err),
			}
			if abandoned {
				log.Error("notification abandoned", fields...)
			} else {
				log.Warn("notification failed", fields...)
			}

		default:
			rep.Skipped++
			log.Debug("notification skipped",
				zap.Int64("id", int64(b.ID)),
				zap.Stringer("state", o.State),
			)
		}
	}

	wm.Merge(batch)
	snap := wm.Snapshot()
	d.sent.Prune(snap)
	d.retry.prune(snap)
	for t, id := range snap {
		watermarkGauge.WithLabelValues(string(t)).Set(float64(id))
	}
	return rep
}
