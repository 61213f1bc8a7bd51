package bus

import (
	"slices"
	"sync"
	"testing"
)

func TestBus(t *testing.T) {
	t.Run("delivers in registration order", func(t *testing.T) {
		b := New(nil)
		var order []int
		for i := range 3 {
			b.Subscribe(TopicPlaylistUpdated, func() { order = append(order, i) })
		}

		if n := b.Publish(TopicPlaylistUpdated); n != 3 {
			t.Errorf("expected 3 deliveries, got %d", n)
		}
		if !slices.Equal(order, []int{0, 1, 2}) {
			t.Errorf("expected [0 1 2], got %v", order)
		}
	})

	t.Run("topics are isolated", func(t *testing.T) {
		b := New(nil)
		liked, playlists := 0, 0
		b.Subscribe(TopicLikedTracksChanged, func() { liked++ })
		b.Subscribe(TopicPlaylistsChanged, func() { playlists++ })

		b.Publish(TopicLikedTracksChanged)
		b.Publish(TopicLikedTracksChanged)

		if liked != 2 || playlists != 0 {
			t.Errorf("expected liked=2 playlists=0, got %d %d", liked, playlists)
		}
		if n := b.Publish("nobody-listens"); n != 0 {
			t.Errorf("expected 0 deliveries, got %d", n)
		}
	})

	t.Run("publish is synchronous", func(t *testing.T) {
		b := New(nil)
		done := false
		b.Subscribe(TopicPlaylistUpdated, func() { done = true })
		b.Publish(TopicPlaylistUpdated)
		if !done {
			t.Error("handler should have run before Publish returned")
		}
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		b := New(nil)
		count := 0
		unsub := b.Subscribe(TopicPlaylistUpdated, func() { count++ })
		other := b.Subscribe(TopicPlaylistUpdated, func() {})

		unsub()
		unsub()

		if n := b.Publish(TopicPlaylistUpdated); n != 1 {
			t.Errorf("expected 1 delivery, got %d", n)
		}
		if count != 0 {
			t.Errorf("removed handler ran %d times", count)
		}
		if b.Subscribers(TopicPlaylistUpdated) != 1 {
			t.Errorf("expected 1 subscriber, got %d", b.Subscribers(TopicPlaylistUpdated))
		}
		other()
		if b.Subscribers(TopicPlaylistUpdated) != 0 {
			t.Error("expected no subscribers")
		}
	})

	t.Run("handler removed during publish is skipped", func(t *testing.T) {
		b := New(nil)
		var second func()
		ran := false
		b.Subscribe(TopicPlaylistUpdated, func() { second() })
		second = b.Subscribe(TopicPlaylistUpdated, func() { ran = true })

		if n := b.Publish(TopicPlaylistUpdated); n != 1 {
			t.Errorf("expected 1 delivery, got %d", n)
		}
		if ran {
			t.Error("unsubscribed handler should not run")
		}
	})

	t.Run("handler may publish", func(t *testing.T) {
		b := New(nil)
		got := 0
		b.Subscribe(TopicPlaylistUpdated, func() { b.Publish(TopicPlaylistsChanged) })
		b.Subscribe(TopicPlaylistsChanged, func() { got++ })

		b.Publish(TopicPlaylistUpdated)
		if got != 1 {
			t.Errorf("expected nested publish to deliver, got %d", got)
		}
	})

	t.Run("close", func(t *testing.T) {
		b := New(nil)
		count := 0
		unsub := b.Subscribe(TopicPlaylistUpdated, func() { count++ })
		b.Close()

		if n := b.Publish(TopicPlaylistUpdated); n != 0 {
			t.Errorf("expected no deliveries after close, got %d", n)
		}
		unsub()

		b.Subscribe(TopicPlaylistUpdated, func() { count++ })()
		b.Publish(TopicPlaylistUpdated)
		if count != 0 {
			t.Errorf("expected no handler to run, got %d", count)
		}
	})

	t.Run("concurrent use", func(t *testing.T) {
		b := New(nil)
		var mu sync.Mutex
		total := 0

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unsub := b.Subscribe(TopicLikedTracksChanged, func() {
					mu.Lock()
					total++
					mu.Unlock()
				})
				b.Publish(TopicLikedTracksChanged)
				unsub()
			}()
		}
		wg.Wait()

		if b.Subscribers(TopicLikedTracksChanged) != 0 {
			t.Error("expected all subscriptions removed")
		}
		if total < 8 {
			t.Errorf("expected at least 8 deliveries, got %d", total)
		}
	})
}
