package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// delaySink finishes lower build IDs later, so completions arrive newest first.
type delaySink struct {
	mu    sync.Mutex
	order []domain.BuildID
	top   domain.BuildID
	fail  map[domain.BuildID]bool
}

func (s *delaySink) Send(ctx context.Context, channel string, m domain.Message) error {
	time.Sleep(time.Duration(s.top-m.BuildID) * 2 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[m.BuildID] {
		return errors.New("rejected")
	}
	s.order = append(s.order, m.BuildID)
	return nil
}

func newTestDispatcher(sink domain.Sink, opts DispatcherOptions) *Dispatcher {
	return NewDispatcher(zap.NewNop(), &domain.MockRenderer{}, sink, opts)
}

func states(outs []Outcome) []DispatchState {
	out := make([]DispatchState, len(outs))
	for i, o := range outs {
		out[i] = o.State
	}
	return out
}

func TestDispatch_OutOfOrderCompletionsKeepMaximum(t *testing.T) {
	sink := &delaySink{top: 20, fail: map[domain.BuildID]bool{18: true}}
	d := newTestDispatcher(sink, DispatcherOptions{Channel: "#ci"})
	wm := NewWatermark()
	wm.Advance("A", 9)

	changes := []domain.BuildSummary{build(10, "A"), build(12, "A"), build(15, "B"), build(18, "B"), build(20, "A")}
	outs := d.Dispatch(context.Background(), changes)
	rep := d.Settle(context.Background(), outs, wm)

	assert.Equal(t, 4, rep.Delivered)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, map[domain.BuildTypeID]domain.BuildID{"A": 20, "B": 15}, wm.Snapshot())
	require.NotNil(t, rep.Last)
	assert.Equal(t, domain.BuildID(20), rep.Last.ID)
	// newest first is the completion order the sink forces
	assert.Equal(t, domain.BuildID(20), sink.order[0])
}

func TestDispatch_FailureDoesNotAdvanceWatermark(t *testing.T) {
	sink := &domain.MockSink{}
	sink.SetFail(106, errors.New("channel_not_found"))
	d := newTestDispatcher(sink, DispatcherOptions{})
	wm := NewWatermark()
	wm.Advance("A", 105)

	outs := d.Dispatch(context.Background(), []domain.BuildSummary{build(106, "A")})
	d.Settle(context.Background(), outs, wm)

	require.Len(t, outs, 1)
	assert.Equal(t, StateFailed, outs[0].State)
	var de *domain.DispatchError
	require.ErrorAs(t, outs[0].Err, &de)
	assert.Equal(t, "sending", de.Stage)
	got, _ := wm.Get("A")
	assert.Equal(t, domain.BuildID(105), got)
}

func TestDispatch_RenderFailureIsIsolated(t *testing.T) {
	sink := &domain.MockSink{}
	d := NewDispatcher(zap.NewNop(), &domain.MockRenderer{Err: errors.New("detail 404")}, sink, DispatcherOptions{})

	outs := d.Dispatch(context.Background(), []domain.BuildSummary{build(1, "A"), build(2, "A")})

	assert.Equal(t, []DispatchState{StateFailed, StateFailed}, states(outs))
	var de *domain.DispatchError
	require.ErrorAs(t, outs[0].Err, &de)
	assert.Equal(t, "rendering", de.Stage)
	assert.Empty(t, sink.Delivered())
}

func TestDispatch_PanicFailsOnlyThatBuild(t *testing.T) {
	sink := &domain.MockSink{Panic: map[domain.BuildID]bool{2: true}}
	d := newTestDispatcher(sink, DispatcherOptions{})

	outs := d.Dispatch(context.Background(), []domain.BuildSummary{build(1, "A"), build(2, "A"), build(3, "A")})

	assert.Equal(t, []DispatchState{StateDelivered, StateFailed, StateDelivered}, states(outs))
	assert.ErrorContains(t, outs[1].Err, "panic")
	assert.ElementsMatch(t, []domain.BuildID{1, 3}, sink.Delivered())
}

func TestDispatch_ConcurrencyOneSendsInOrder(t *testing.T) {
	sink := &domain.MockSink{}
	d := newTestDispatcher(sink, DispatcherOptions{Concurrency: 1})

	changes := []domain.BuildSummary{build(101, "A"), build(102, "B"), build(105, "A")}
	d.Dispatch(context.Background(), changes)

	assert.Equal(t, []domain.BuildID{101, 102, 105}, sink.Delivered())
}

func TestDispatch_SentSetSuppressesDuplicate(t *testing.T) {
	sink := &domain.MockSink{}
	d := newTestDispatcher(sink, DispatcherOptions{})
	d.sent.Add(build(7, "A"))

	outs := d.Dispatch(context.Background(), []domain.BuildSummary{build(7, "A"), build(8, "A")})

	assert.Equal(t, []DispatchState{StateDuplicate, StateDelivered}, states(outs))
	assert.Equal(t, []domain.BuildID{8}, sink.Delivered())
}

func TestDispatch_RetryPolicyDefersThenAllows(t *testing.T) {
	sink := &domain.MockSink{}
	sink.SetFail(5, errors.New("boom"))
	d := newTestDispatcher(sink, DispatcherOptions{Retry: RetryConfig{Initial: time.Minute}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.retry.now = func() time.Time { return now }
	wm := NewWatermark()
	changes := []domain.BuildSummary{build(5, "A")}

	d.Settle(context.Background(), d.Dispatch(context.Background(), changes), wm)

	outs := d.Dispatch(context.Background(), changes)
	assert.Equal(t, StateDeferred, outs[0].State)

	sink.SetFail(5, nil)
	now = now.Add(2 * time.Minute)
	outs = d.Dispatch(context.Background(), changes)
	assert.Equal(t, StateDelivered, outs[0].State)
	d.Settle(context.Background(), outs, wm)

	got, _ := wm.Get("A")
	assert.Equal(t, domain.BuildID(5), got)
}

func TestDispatch_RetryPolicyAbandonsAfterMaxAttempts(t *testing.T) {
	sink := &domain.MockSink{}
	sink.SetFail(5, errors.New("boom"))
	d := newTestDispatcher(sink, DispatcherOptions{Retry: RetryConfig{MaxAttempts: 2}})
	wm := NewWatermark()
	changes := []domain.BuildSummary{build(5, "A")}

	for i := 0; i < 2; i++ {
		outs := d.Dispatch(context.Background(), changes)
		require.Equal(t, StateFailed, outs[0].State)
		d.Settle(context.Background(), outs, wm)
	}

	outs := d.Dispatch(context.Background(), changes)
	assert.Equal(t, StateAbandoned, outs[0].State)
	_, ok := wm.Get("A")
	assert.False(t, ok)
}

func TestDispatch_DefaultRetryTriesEveryCycle(t *testing.T) {
	sink := &domain.MockSink{}
	sink.SetFail(5, errors.New("boom"))
	d := newTestDispatcher(sink, DispatcherOptions{})
	wm := NewWatermark()
	changes := []domain.BuildSummary{build(5, "A")}

	for i := 0; i < 5; i++ {
		outs := d.Dispatch(context.Background(), changes)
		require.Equal(t, StateFailed, outs[0].State)
		d.Settle(context.Background(), outs, wm)
	}
}

func TestDispatchState_String(t *testing.T) {
	assert.Equal(t, "delivered", StateDelivered.String())
	assert.Equal(t, "state(42)", DispatchState(42).String())
}
