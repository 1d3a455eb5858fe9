package application

import (
	"context"
	"errors"
	"testing"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBootstrap_SeedsEachTrackedType(t *testing.T) {
	src := &domain.MockSource{Latest: map[domain.BuildTypeID]domain.BuildSummary{
		"A": build(40, "A"),
		"B": build(50, "B"),
	}}
	boot := NewBootstrapper(zap.NewNop(), src, "Proj")
	wm := NewWatermark()

	require.NoError(t, boot.Run(context.Background(), domain.NewWhitelist("A", "B", "Fresh"), wm))

	assert.Equal(t, map[domain.BuildTypeID]domain.BuildID{"A": 40, "B": 50}, wm.Snapshot())
	assert.False(t, boot.Pending())
	_, latest, types := src.Calls()
	assert.Equal(t, 3, latest)
	assert.Zero(t, types)
}

func TestBootstrap_EmptyWhitelistListsBuildTypes(t *testing.T) {
	src := &domain.MockSource{
		Types:  []domain.BuildTypeID{"A", "B"},
		Latest: map[domain.BuildTypeID]domain.BuildSummary{"B": build(7, "B")},
	}
	boot := NewBootstrapper(zap.NewNop(), src, "Proj")
	wm := NewWatermark()

	require.NoError(t, boot.Run(context.Background(), domain.NewWhitelist(), wm))

	assert.Equal(t, map[domain.BuildTypeID]domain.BuildID{"B": 7}, wm.Snapshot())
	_, _, types := src.Calls()
	assert.Equal(t, 1, types)
}

func TestBootstrap_ErrorAppliesNothing(t *testing.T) {
	src := &domain.MockSource{
		Latest:    map[domain.BuildTypeID]domain.BuildSummary{"A": build(40, "A")},
		LatestErr: errors.New("502 Bad Gateway"),
	}
	boot := NewBootstrapper(zap.NewNop(), src, "Proj")
	wm := NewWatermark()

	err := boot.Run(context.Background(), domain.NewWhitelist("A", "B"), wm)

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bootstrap", fe.Op)
	assert.Contains(t, err.Error(), "latest build of A")
	assert.Contains(t, err.Error(), "latest build of B")
	assert.Empty(t, wm.Snapshot())
	assert.True(t, boot.Pending())
}

func TestBootstrap_InvalidateOnlyQueriesNewTypes(t *testing.T) {
	src := &domain.MockSource{Latest: map[domain.BuildTypeID]domain.BuildSummary{
		"A": build(40, "A"),
		"C": build(90, "C"),
	}}
	boot := NewBootstrapper(zap.NewNop(), src, "Proj")
	wm := NewWatermark()
	require.NoError(t, boot.Run(context.Background(), domain.NewWhitelist("A"), wm))

	boot.Invalidate()
	assert.True(t, boot.Pending())
	require.NoError(t, boot.Run(context.Background(), domain.NewWhitelist("A", "C"), wm))

	_, latest, _ := src.Calls()
	assert.Equal(t, 2, latest)
	assert.Equal(t, map[domain.BuildTypeID]domain.BuildID{"A": 40, "C": 90}, wm.Snapshot())
	assert.False(t, boot.Pending())
}

func TestBootstrap_NeededTracksBaselinedTypes(t *testing.T) {
	src := &domain.MockSource{
		Types:  []domain.BuildTypeID{"A"},
		Latest: map[domain.BuildTypeID]domain.BuildSummary{"A": build(40, "A")},
	}
	boot := NewBootstrapper(zap.NewNop(), src, "Proj")
	wm := NewWatermark()
	assert.True(t, boot.Needed(domain.NewWhitelist("A")))

	require.NoError(t, boot.Run(context.Background(), domain.NewWhitelist("A"), wm))

	assert.False(t, boot.Needed(domain.NewWhitelist("A")))
	assert.True(t, boot.Needed(domain.NewWhitelist("A", "B")))
	assert.True(t, boot.Needed(domain.NewWhitelist()))

	require.NoError(t, boot.Run(context.Background(), domain.NewWhitelist(), wm))
	assert.False(t, boot.Needed(domain.NewWhitelist()))
}
