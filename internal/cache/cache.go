// package cache holds the client-side mirrors of per-user server collections.
//
// Each cache is keyed by a single [models.UserID]. Switching identity empties the cache before
// any refresh for the new identity can land, and a refresh is always a wholesale replacement:
// on failure the previous contents stay in place.
package cache

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// Caller is the part of [gateway.Gateway] the caches need.
type Caller interface {
	Call(ctx context.Context, method, path string, body any, query url.Values) (*gateway.Response, error)
}

// Option configures a cache.
type Option func(*options)

type options struct {
	bus    *bus.Bus
	logger *log.Logger
}

// WithBus makes the cache publish its change topic on b.
func WithBus(b *bus.Bus) Option {
	return func(o *options) { o.bus = b }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: shared.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// collection is the state shared by every cache: one identity, its contents and a generation
// counter that is bumped on every identity switch. A fetch dispatched under an older generation
// is discarded when it returns.
type collection[T any] struct {
	mu          sync.RWMutex
	user        models.UserID
	generation  uint64
	data        T
	loaded      bool
	refreshedAt time.Time

	name   string
	topic  string
	empty  func() T
	equal  func(a, b T) bool
	fetch  func(ctx context.Context) (T, error)
	bus    *bus.Bus
	logger *log.Logger
}

func (c *collection[T]) identity() models.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// setIdentity switches to user and clears the contents. It reports whether anything changed.
func (c *collection[T]) setIdentity(user models.UserID) bool {
	c.mu.Lock()
	if c.user == user {
		c.mu.Unlock()
		return false
	}
	hadData := c.loaded
	c.user = user
	c.generation++
	c.data = c.empty()
	c.loaded = false
	c.refreshedAt = time.Time{}
	c.mu.Unlock()

	c.logger.Debug("identity switched", "cache", c.name, "user", user)
	if hadData {
		c.publish()
	}
	return true
}

func (c *collection[T]) refresh(ctx context.Context, user models.UserID) error {
	c.mu.RLock()
	current, generation := c.user, c.generation
	c.mu.RUnlock()

	switch {
	case !user.Valid():
		return shared.ErrNotAuthenticated
	case user != current:
		return fmt.Errorf("%s cache belongs to %q, not %q: %w", c.name, current, user, shared.ErrIdentityMismatch)
	}

	data, err := c.fetch(ctx)
	if err != nil {
		c.logFailure(user, err)
		return err
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		c.logger.Debug("discarding stale response", "cache", c.name, "user", user)
		return fmt.Errorf("%s cache: %w", c.name, shared.ErrStaleResponse)
	}
	changed := !c.loaded || !c.equal(c.data, data)
	c.data = data
	c.loaded = true
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	if changed {
		c.publish()
	}
	return nil
}

func (c *collection[T]) logFailure(user models.UserID, err error) {
	if f, ok := gateway.AsFailure(err); ok {
		c.logger.Warn("refresh failed", "cache", c.name, "user", user, "kind", f.Kind, "status", f.Status)
		return
	}
	c.logger.Warn("refresh failed", "cache", c.name, "user", user, "err", err)
}

// read runs fn with the read lock held.
func (c *collection[T]) read(fn func(data T)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.data)
}

func (c *collection[T]) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *collection[T]) lastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

func (c *collection[T]) publish() {
	if c.bus != nil {
		c.bus.Publish(c.topic)
	}
}
