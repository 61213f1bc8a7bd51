package cache

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/playsync/internal/bus"
	"github.com/desertthunder/playsync/internal/models"
)

// PlaylistsPath lists the current user's playlists.
const PlaylistsPath = "/api/music/user_playlist"

// Playlists mirrors the user's playlists, without the "Liked Songs" entry which is
// represented by [LikedTracks].
//
// Once subscribed to a bus, every playlist-updated signal schedules a background refresh.
// At most one refresh runs at a time and at most one more is queued behind it, so a burst
// of signals costs two fetches.
type Playlists struct {
	c *collection[models.PlaylistCollection]

	mu      sync.Mutex
	unsubs  []func()
	running bool
	pending bool
	closed  bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewPlaylists(caller Caller, opts ...Option) *Playlists {
	o := newOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Playlists{
		c: &collection[models.PlaylistCollection]{
			name:   "playlists",
			topic:  bus.TopicPlaylistsChanged,
			empty:  func() models.PlaylistCollection { return models.PlaylistCollection{} },
			equal:  func(a, b models.PlaylistCollection) bool { return a.Equal(b) },
			fetch:  func(ctx context.Context) (models.PlaylistCollection, error) { return fetchPlaylists(ctx, caller) },
			bus:    o.bus,
			logger: o.logger,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func fetchPlaylists(ctx context.Context, caller Caller) (models.PlaylistCollection, error) {
	resp, err := caller.Call(ctx, http.MethodGet, PlaylistsPath, nil, nil)
	if err != nil {
		return models.PlaylistCollection{}, err
	}

	var all []models.Playlist
	if err := resp.Decode(&all); err != nil {
		return models.PlaylistCollection{}, fmt.Errorf("playlists: %w", err)
	}

	custom := make([]models.Playlist, 0, len(all))
	for _, p := range all {
		if p.Name == models.LikedSongsPlaylist {
			continue
		}
		custom = append(custom, p)
	}
	return models.NewPlaylistCollection(custom), nil
}

func (p *Playlists) SetIdentity(user models.UserID) bool { return p.c.setIdentity(user) }

func (p *Playlists) Identity() models.UserID { return p.c.identity() }

// Refresh replaces the collection with the server's. On failure the previous collection is kept.
func (p *Playlists) Refresh(ctx context.Context, user models.UserID) error {
	return p.c.refresh(ctx, user)
}

func (p *Playlists) Loaded() bool { return p.c.isLoaded() }

func (p *Playlists) RefreshedAt() time.Time { return p.c.lastRefresh() }

// List returns the playlists in server order.
func (p *Playlists) List() []models.Playlist {
	var out []models.Playlist
	p.c.read(func(c models.PlaylistCollection) { out = c.List() })
	return out
}

func (p *Playlists) Get(id models.PlaylistID) (models.Playlist, bool) {
	var (
		pl models.Playlist
		ok bool
	)
	p.c.read(func(c models.PlaylistCollection) { pl, ok = c.Get(id) })
	return pl, ok
}

func (p *Playlists) Len() int {
	var n int
	p.c.read(func(c models.PlaylistCollection) { n = c.Len() })
	return n
}

// Subscribe registers the cache on b's playlist-updated topic. The subscription is removed by
// the returned function or by [Playlists.Close].
func (p *Playlists) Subscribe(b *bus.Bus) func() {
	unsub := b.Subscribe(bus.TopicPlaylistUpdated, p.schedule)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		unsub()
		return func() {}
	}
	p.unsubs = append(p.unsubs, unsub)
	return unsub
}

// schedule starts a background refresh, or queues one behind the refresh already running.
func (p *Playlists) schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return
	case p.running:
		p.pending = true
		return
	}
	p.running = true
	p.wg.Add(1)
	go p.drain()
}

func (p *Playlists) drain() {
	defer p.wg.Done()
	for {
		if user := p.c.identity(); user.Valid() {
			// failures are logged by the collection and the prior contents stay usable
			_ = p.c.refresh(p.ctx, user)
		}

		p.mu.Lock()
		if p.pending && !p.closed {
			p.pending = false
			p.mu.Unlock()
			continue
		}
		p.pending = false
		p.running = false
		p.mu.Unlock()
		return
	}
}

// Wait blocks until every scheduled refresh has finished.
func (p *Playlists) Wait() { p.wg.Wait() }

// Close removes every bus subscription, cancels background refreshes and waits for them.
func (p *Playlists) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	p.cancel()
	p.wg.Wait()
}
