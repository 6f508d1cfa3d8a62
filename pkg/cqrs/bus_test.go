package cqrs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCommand struct {
	Payload string
}

func (c pingCommand) Name() string { return "Ping" }

type pingHandler struct {
	seen []string
	fail error
}

func (h *pingHandler) Handle(cmd pingCommand) error {
	h.seen = append(h.seen, cmd.Payload)
	return h.fail
}

type countQuery struct{}

func (q countQuery) Name() string { return "Count" }

type countHandler struct {
	count int
}

func (h *countHandler) Handle(q countQuery) (int, error) {
	return h.count, nil
}

func TestCommandBusDispatch(t *testing.T) {
	bus := NewCommandBus(context.Background())
	h := &pingHandler{}

	require.NoError(t, bus.Register(h))
	require.NoError(t, bus.Dispatch(pingCommand{Payload: "one"}))
	require.NoError(t, bus.Dispatch(pingCommand{Payload: "two"}))

	assert.Equal(t, []string{"one", "two"}, h.seen)
}

func TestCommandBusRejectsDuplicateRegistration(t *testing.T) {
	bus := NewCommandBus(context.Background())

	require.NoError(t, bus.Register(&pingHandler{}))
	assert.Error(t, bus.Register(&pingHandler{}))
}

func TestCommandBusRejectsUnknownCommand(t *testing.T) {
	bus := NewCommandBus(context.Background())
	assert.Error(t, bus.Dispatch(pingCommand{}))
}

func TestCommandBusShutdownRejectsNewCommands(t *testing.T) {
	bus := NewCommandBus(context.Background())
	require.NoError(t, bus.Register(&pingHandler{}))

	bus.Shutdown()
	bus.WaitForCompletion()

	err := bus.Dispatch(pingCommand{})
	assert.ErrorIs(t, err, ErrCommandBusShuttingDown)
}

func TestQueryBusDispatch(t *testing.T) {
	bus := NewQueryBus()
	require.NoError(t, bus.Register(&countHandler{count: 42}))

	result, err := bus.Dispatch(countQuery{})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
