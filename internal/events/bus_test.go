package events

import (
	"testing"

	"papertrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversOnlyToAccount(t *testing.T) {
	b := NewBus()
	mine := b.Subscribe("a1")
	other := b.Subscribe("a2")

	b.Publish("a1", Event{Type: types.EventMessage, Data: "hi"})

	select {
	case evt := <-mine:
		assert.Equal(t, types.EventMessage, evt.Type)
	default:
		t.Fatal("expected event")
	}
	assert.Len(t, other, 0)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	first := b.Subscribe("a1")
	second := b.Subscribe("a1")
	assert.Equal(t, 2, b.Subscribers("a1"))

	b.Unsubscribe("a1", first)
	_, ok := <-first
	assert.False(t, ok)
	assert.Equal(t, 1, b.Subscribers("a1"))

	b.Unsubscribe("a1", second)
	b.Unsubscribe("a1", second)
	assert.Equal(t, 0, b.Subscribers("a1"))
}

func TestBusPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe("a1")
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish("a1", Event{Type: types.EventPresence})
	}
	require.Len(t, ch, cap(ch))
}
