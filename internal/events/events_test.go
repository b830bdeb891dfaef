package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		got = append(got, event)
		return nil
	})

	bus.Publish(&Event{Type: EventBookingCreated})
	bus.Publish(&Event{Type: EventCancelled})

	require.Len(t, got, 1)
	assert.Equal(t, EventBookingCreated, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var count int
	bus.SubscribeAll(func(event *Event) error {
		count++
		return nil
	})

	bus.Publish(&Event{Type: EventBookingCreated})
	bus.Publish(&Event{Type: EventListingSold})
	bus.Publish(&Event{Type: EventTreasuryPayout})

	assert.Equal(t, 3, count)
}

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got *Event
	bus.Subscribe(EventCheckedIn, func(event *Event) error {
		got = event
		return nil
	})

	payload := BookingPayload{BookingID: 7, Owner: "0xalice", Status: "checked_in"}
	require.NoError(t, bus.PublishJSON(EventCheckedIn, payload))

	require.NotNil(t, got)
	var decoded BookingPayload
	require.NoError(t, json.Unmarshal(got.Payload, &decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, "0xalice", decoded.Owner)
}

func TestEventBus_NilReceiver(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventPaused, map[string]string{"actor": "0xadmin"}))
}
