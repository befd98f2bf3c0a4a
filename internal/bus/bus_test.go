package bus

import (
	"sync"
	"testing"
	"time"
)

func TestPublish_HandlersInOrder(t *testing.T) {
	b := New()

	var got []int
	b.Subscribe(func(Event) { got = append(got, 1) })
	b.Subscribe(func(Event) { got = append(got, 2) })
	b.Subscribe(func(Event) { got = append(got, 3) })

	b.Publish(Event{Type: EventTrack})

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("handler order = %v, want [1 2 3]", got)
	}
}

func TestPublish_PanickingHandlerDoesNotInterruptFanout(t *testing.T) {
	b := New()

	delivered := false
	b.Subscribe(func(Event) { panic("listener bug") })
	b.Subscribe(func(Event) { delivered = true })

	b.Publish(Event{Type: EventTask})

	if !delivered {
		t.Fatal("a panicking handler must not stop later handlers")
	}
}

func TestWatch_ReceivesEvents(t *testing.T) {
	b := New()
	s := b.Watch(8)
	defer b.Unwatch(s)

	b.Publish(Event{Type: EventTrack, EntityID: "e1"})

	select {
	case got := <-s.C:
		if got.Type != EventTrack || got.EntityID != "e1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestWatch_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New()
	s := b.Watch(1)
	defer b.Unwatch(s)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: EventTrack})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber queue")
	}
}

func TestUnwatch_ConcurrentWithPublish(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Publish(Event{Type: EventAssetTelemetry})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s := b.Watch(4)
			b.Unwatch(s)
		}
	}()

	wg.Wait()
}

func TestUnwatch_ClosesChannel(t *testing.T) {
	b := New()
	s := b.Watch(4)
	b.Unwatch(s)

	if _, ok := <-s.C; ok {
		t.Fatal("channel should be closed and drained after Unwatch")
	}

	// Unwatch of an already removed subscriber is a no-op.
	b.Unwatch(s)
}
