package _switch

import (
	"testing"

	"github.com/avdeyev/tapbattle/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestSwitch() *Switch {
	logger := zerolog.Nop()
	return NewSwitch(&logger)
}

func TestSwitch_BroadcastReachesEverySubscriber(t *testing.T) {
	sw := newTestSwitch()

	tx1 := make(chan model.Event, 4)
	tx2 := make(chan model.Event, 4)
	other := make(chan model.Event, 4)
	sw.Connect("s1", "ep1", tx1)
	sw.Connect("s1", "ep2", tx2)
	sw.Connect("s2", "ep3", other)

	sw.Broadcast(model.Event{Type: model.EventMatchReady}, "s1")

	require.Len(t, tx1, 1)
	require.Len(t, tx2, 1)
	require.Empty(t, other)
	require.Equal(t, model.EventMatchReady, (<-tx1).Type)
}

func TestSwitch_DisconnectStopsDelivery(t *testing.T) {
	sw := newTestSwitch()

	tx := make(chan model.Event, 4)
	sw.Connect("s1", "ep1", tx)
	sw.Disconnect("s1", "ep1")

	sw.Broadcast(model.Event{Type: model.EventLobbyUpdate}, "s1")
	require.Empty(t, tx)
}

func TestSwitch_SaturatedEndpointDoesNotBlockOthers(t *testing.T) {
	sw := newTestSwitch()

	full := make(chan model.Event, 1)
	full <- model.Event{Type: "stale"}
	healthy := make(chan model.Event, 4)
	sw.Connect("s1", "full", full)
	sw.Connect("s1", "healthy", healthy)

	// Must return immediately even though "full" cannot take the event.
	sw.Broadcast(model.Event{Type: model.EventUpdate}, "s1")

	require.Len(t, healthy, 1)
	require.Len(t, full, 1)
	require.Equal(t, "stale", (<-full).Type)
}

func TestSwitch_BroadcastToEmptySessionIsNoop(t *testing.T) {
	sw := newTestSwitch()
	sw.Broadcast(model.Event{Type: model.EventUpdate}, "nobody")
}
