package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishesToSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(RebalanceCompleted, func(e *Event) {
		received = append(received, e)
	})

	bus.Publish(&RebalanceCompletedData{RunID: "run-1", TotalValue: 10000})

	require.Len(t, received, 1)
	assert.Equal(t, RebalanceCompleted, received[0].Type)

	data, ok := received[0].Data.(*RebalanceCompletedData)
	require.True(t, ok)
	assert.Equal(t, "run-1", data.RunID)
}

func TestBusDoesNotCrossEventTypes(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got int
	bus.Subscribe(StrategyAdded, func(e *Event) { got++ })

	bus.Publish(&StrategyRemovedData{StrategyID: "s1"})
	assert.Zero(t, got)

	bus.Publish(&StrategyAddedData{StrategyID: "s1", TargetWeightBps: 5000})
	assert.Equal(t, 1, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got int
	unsubscribe := bus.Subscribe(WeightUpdated, func(e *Event) { got++ })

	bus.Publish(&WeightUpdatedData{StrategyID: "s1"})
	unsubscribe()
	bus.Publish(&WeightUpdatedData{StrategyID: "s1"})

	assert.Equal(t, 1, got)
}
