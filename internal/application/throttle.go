package application

import (
	"context"

	"github.com/davarch/build-notifier/internal/domain"
	"golang.org/x/time/rate"
)

// ThrottledSink spaces sends with a token bucket so a burst of finished
// builds does not trip the chat server's rate limit.
type ThrottledSink struct {
	next    domain.Sink
	limiter *rate.Limiter
}

// NewThrottledSink wraps next. perSec <= 0 disables throttling.
func NewThrottledSink(next domain.Sink, perSec float64) domain.Sink {
	if perSec <= 0 {
		return next
	}
	burst := max(1, int(perSec))
	return &ThrottledSink{next: next, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (t *ThrottledSink) Send(ctx context.Context, channel string, m domain.Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.Send(ctx, channel, m)
}
