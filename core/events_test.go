package core

import (
	"context"
	"testing"
)

func TestEventBus_Publish(t *testing.T) {
	bus := NewEventBus(nil)
	var got []string

	bus.Subscribe(EventSessionStarted, func(_ context.Context, ev Event) { got = append(got, "first:"+ev.Username) })
	bus.Subscribe(EventSessionStarted, func(context.Context, Event) { panic("handler failure") })
	bus.Subscribe(EventSessionStarted, func(_ context.Context, ev Event) { got = append(got, "third:"+ev.Username) })
	bus.Subscribe(EventSessionEnded, func(context.Context, Event) { got = append(got, "ended") })

	bus.Publish(context.Background(), Event{Type: EventSessionStarted, Username: "kid1"})

	want := []string{"first:kid1", "third:kid1"}
	if len(got) != len(want) {
		t.Fatalf("Publish() delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Publish() delivered %v, want %v", got, want)
		}
	}
}

func TestEventBus_PublishFromHandler(t *testing.T) {
	bus := NewEventBus(NopLogger{})
	var ended bool

	bus.Subscribe(EventSessionEnded, func(context.Context, Event) { ended = true })
	bus.Subscribe(EventSessionSwitched, func(ctx context.Context, ev Event) {
		bus.Publish(ctx, Event{Type: EventSessionEnded, Username: ev.Username})
	})
	bus.Publish(context.Background(), Event{Type: EventSessionSwitched, Username: "kid2"})

	if !ended {
		t.Error("nested Publish() was not delivered")
	}
}
