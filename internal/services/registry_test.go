package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/adaptation"
	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/eventstore"
	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/learning"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

func TestNewRegistry(t *testing.T) {
	logger := zap.NewNop()

	bus, err := event.NewBus(eventstore.NewMemoryStore(), logger)
	require.NoError(t, err)
	detector, err := pattern.NewDetector(config.DefaultDetectorConfig(), logger)
	require.NoError(t, err)
	generator := insight.NewGenerator(logger)
	store := learning.NewMemoryStore()
	workflow, err := learning.NewWorkflow(store, logger)
	require.NoError(t, err)
	engine, err := adaptation.NewEngine(config.DefaultEngineConfig(), bus, detector, generator, store, logger)
	require.NoError(t, err)

	registry := NewRegistry(Options{
		Bus:       bus,
		Detector:  detector,
		Generator: generator,
		Learning:  store,
		Workflow:  workflow,
		Engine:    engine,
	})

	assert.Same(t, bus, registry.Bus())
	assert.Same(t, detector, registry.Detector())
	assert.Same(t, generator, registry.Generator())
	assert.Same(t, workflow, registry.Workflow())
	assert.Same(t, engine, registry.Engine())
	assert.Equal(t, learning.Store(store), registry.Learning())
}
