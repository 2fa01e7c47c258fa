package events

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestBus() *Bus {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewBus(log)
}

func TestBus_PublishDeliversInOrder(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var got []int
	b.Subscribe(ActionPlay, func(data any) {
		got = append(got, data.(int))
	})

	for i := range 5 {
		b.Publish(ActionPlay, i)
	}
	b.Sync()

	if len(got) != 5 {
		t.Fatalf("delivered %d events, want 5", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	first, second := 0, 0
	b.Subscribe(PlaybackStopped, func(any) { first++ })
	b.Subscribe(PlaybackStopped, func(any) { second++ })

	b.Publish(PlaybackStopped, nil)
	b.Sync()

	if first != 1 || second != 1 {
		t.Errorf("subscribers called %d/%d times, want 1/1", first, second)
	}
}

func TestBus_PublishFromHandlerRunsAfterQueue(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var order []string
	b.Subscribe(ActionPlay, func(any) {
		order = append(order, "play")
		b.Publish(TrackChanged, nil)
	})
	b.Subscribe(TrackChanged, func(any) {
		order = append(order, "track")
	})

	b.Publish(ActionPlay, nil)
	b.Publish(ActionPause, nil)
	b.Sync()
	b.Sync()

	if len(order) != 2 || order[0] != "play" || order[1] != "track" {
		t.Errorf("order = %v, want [play track]", order)
	}
}

func TestBus_DeferRunsAfterPending(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var order []string
	b.Subscribe(PlaylistChanged, func(any) { order = append(order, "event") })

	b.Publish(PlaylistChanged, nil)
	b.Defer(func() { order = append(order, "deferred") })
	b.Sync()

	if len(order) != 2 || order[1] != "deferred" {
		t.Errorf("order = %v, want deferred last", order)
	}
}

func TestBus_After(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	fired := make(chan struct{})
	b.After(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("After callback never fired")
	}
}

func TestBus_EveryStops(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	ticks := make(chan struct{}, 64)
	stop := b.Every(2*time.Millisecond, func() { ticks <- struct{}{} })

	<-ticks
	stop()
	b.Sync()
	n := len(ticks)
	time.Sleep(20 * time.Millisecond)
	b.Sync()
	if len(ticks) > n+1 {
		t.Errorf("ticker kept firing after stop: %d -> %d", n, len(ticks))
	}
}

func TestBus_HandlerPanicDoesNotKillLoop(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	called := false
	b.Subscribe(ActionStop, func(any) { panic("boom") })
	b.Subscribe(ActionNext, func(any) { called = true })

	b.Publish(ActionStop, nil)
	b.Publish(ActionNext, nil)
	b.Sync()

	if !called {
		t.Error("loop died after handler panic")
	}
}
