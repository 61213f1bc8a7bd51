// package bus is a small in-process publish/subscribe hub keyed by topic name.
//
// Delivery is synchronous: [Bus.Publish] calls every handler registered for the topic,
// in registration order, before it returns. Handlers receive no payload; they re-read
// whatever state they care about.
package bus

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/shared"
)

const (
	// TopicPlaylistUpdated is published after a track was added to a playlist.
	TopicPlaylistUpdated = "playlist-updated"
	// TopicLikedTracksChanged is published whenever the liked-track set changes.
	TopicLikedTracksChanged = "liked-tracks-changed"
	// TopicPlaylistsChanged is published after the playlist cache was replaced.
	TopicPlaylistsChanged = "playlists-changed"
)

// Handler is invoked once per publish.
type Handler func()

type subscription struct {
	topic   string
	handler Handler
	active  bool
}

// Bus routes topic notifications to subscribers.
// The zero value is not usable; use [New].
type Bus struct {
	mu     sync.Mutex
	subs   []*subscription
	closed bool
	logger *log.Logger
}

// New creates an empty bus. A nil logger discards output.
func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for topic and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	sub := &subscription{topic: topic, handler: h, active: true}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Debug("subscribe on closed bus", "topic", topic)
		return func() {}
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub.active = false
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers topic to every current subscriber and returns how many handlers ran.
// A handler removed while the publish is in progress is skipped if it has not run yet.
func (b *Bus) Publish(topic string) int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == topic {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		if !b.isActive(s) {
			continue
		}
		s.handler()
		delivered++
	}
	b.logger.Debug("published", "topic", topic, "delivered", delivered)
	return delivered
}

func (b *Bus) isActive(s *subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return s.active
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, s := range b.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}

// Close drops every subscription. Later publishes deliver nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		s.active = false
	}
	b.subs = nil
	b.closed = true
}
