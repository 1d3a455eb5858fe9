package application

import (
	"context"
	"testing"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledSink_DisabledReturnsNext(t *testing.T) {
	sink := &domain.MockSink{}
	assert.Same(t, sink, NewThrottledSink(sink, 0))
}

func TestThrottledSink_WaitsForToken(t *testing.T) {
	sink := &domain.MockSink{}
	th := NewThrottledSink(sink, 1)

	require.NoError(t, th.Send(context.Background(), "#ci", domain.Message{BuildID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := th.Send(ctx, "#ci", domain.Message{BuildID: 2})

	assert.Error(t, err)
	assert.Equal(t, []domain.BuildID{1}, sink.Delivered())
}
